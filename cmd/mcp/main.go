package main

import (
	"fmt"
	"os"

	"github.com/benvon/thought-capture/internal/config"
	"github.com/benvon/thought-capture/internal/logger"
	"github.com/benvon/thought-capture/internal/mcpserver"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cfg, err := config.LoadEngine()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// zap writes to stderr; stdout carries the protocol.
	log, err := logger.New(logger.Format(cfg.LogFormat), os.Getenv("MCP_DEBUG_MODE") == "true")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync(log) }()

	engine, err := cfg.NewEngine()
	if err != nil {
		log.Fatal("failed_to_load_rules", zap.Error(err))
	}

	s := mcpserver.NewServer(mcpserver.Config{
		Engine:    engine,
		Version:   version,
		MaxLength: cfg.MaxCaptureLength,
		Threshold: cfg.LLMConfidenceThreshold,
		Logger:    log,
	})

	log.Info("mcp_server_starting",
		zap.String("version", version),
		zap.String("rules_version", engine.Rules().Version()),
	)
	if err := server.ServeStdio(s); err != nil {
		log.Fatal("mcp_server_failed", zap.Error(err))
	}
}
