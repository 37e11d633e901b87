package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/benvon/thought-capture/internal/config"
	"github.com/benvon/thought-capture/internal/database"
	"github.com/benvon/thought-capture/internal/logger"
	"github.com/benvon/thought-capture/internal/queue"
	"github.com/benvon/thought-capture/internal/services/ai"
	"github.com/benvon/thought-capture/internal/services/capture"
	"github.com/benvon/thought-capture/internal/telemetry"
	"github.com/benvon/thought-capture/internal/workers"
	"go.uber.org/zap"
)

const dlqGCInterval = time.Hour

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug mode for LLM API logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.WorkerDebugMode || *debugFlag

	log, err := logger.New(logger.Format(cfg.LogFormat), debugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync(log) }()

	if cfg.RabbitMQURL == "" {
		log.Fatal("rabbitmq_url_required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.OTELEnabled {
		tp, err := telemetry.InitTracer(ctx, "thought-capture-worker", cfg.OTELEndpoint)
		if err != nil {
			log.Warn("otel_init_failed", zap.Error(err))
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = telemetry.Shutdown(shutdownCtx, tp)
			}()
		}
	}

	engine, err := cfg.NewEngine()
	if err != nil {
		log.Fatal("failed_to_load_rules", zap.Error(err))
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("database_connect_failed", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Warn("database_close_failed", zap.Error(err))
		}
	}()

	captureRepo := database.NewCaptureRepository(db)
	thoughtRepo := database.NewThoughtRepository(db)
	contextRepo := database.NewCategorizationContextRepository(db)
	activityRepo := database.NewUserActivityRepository(db)

	jobQueue, err := queue.NewRabbitMQQueue(cfg.RabbitMQURL, log)
	if err != nil {
		log.Fatal("rabbitmq_connect_failed", zap.Error(err))
	}
	defer func() {
		if err := jobQueue.Close(); err != nil {
			log.Warn("rabbitmq_close_failed", zap.Error(err))
		}
	}()

	// Without a provider every pending thought gets the fallback note.
	var categorizer ai.Categorizer
	provider, err := ai.NewDefaultRegistry(log).GetProvider(cfg.AIProvider, map[string]string{
		"api_key":  cfg.OpenAIKey,
		"base_url": cfg.AIBaseURL,
		"model":    cfg.AIModel,
		"debug":    strconv.FormatBool(debugMode),
	})
	if err != nil {
		log.Warn("categorizer_unavailable", zap.String("provider", cfg.AIProvider), zap.Error(err))
	} else {
		categorizer = provider
	}

	svc := capture.NewService(capture.Options{
		Engine:       engine,
		Captures:     captureRepo,
		Thoughts:     thoughtRepo,
		Contexts:     contextRepo,
		Queue:        jobQueue,
		Categorizer:  categorizer,
		Mode:         cfg.LLMMode,
		Threshold:    cfg.LLMConfidenceThreshold,
		MaxLength:    cfg.MaxCaptureLength,
		DefaultModel: cfg.AIModel,
		Logger:       log,
	})

	worker := workers.NewCategorizationWorker(categorizer, thoughtRepo, contextRepo, activityRepo, svc, jobQueue, log)

	if cfg.ReprocessInterval > 0 {
		reprocessor := workers.NewReprocessor(jobQueue, activityRepo, captureRepo, engine.Rules().Version(), cfg.ReprocessInterval, log)
		go func() {
			if err := reprocessor.Start(ctx); err != nil && ctx.Err() == nil {
				log.Error("reprocessor_stopped", zap.Error(err))
			}
		}()
	}

	gc := queue.NewGarbageCollector(jobQueue, dlqGCInterval, cfg.DLQRetention, log)
	go func() {
		if err := gc.Start(ctx); err != nil && ctx.Err() == nil {
			log.Error("dlq_gc_stopped", zap.Error(err))
		}
	}()

	msgChan, errChan, err := jobQueue.Consume(ctx, cfg.RabbitMQPrefetch)
	if err != nil {
		log.Fatal("queue_consume_failed", zap.Error(err))
	}

	log.Info("worker_started",
		zap.Bool("debug_mode", debugMode),
		zap.String("ai_provider", cfg.AIProvider),
		zap.String("ai_model", cfg.AIModel),
		zap.Bool("categorizer", categorizer != nil),
		zap.String("rules_version", engine.Rules().Version()),
		zap.Int("prefetch", cfg.RabbitMQPrefetch),
		zap.Duration("reprocess_interval", cfg.ReprocessInterval),
	)

	for {
		select {
		case <-ctx.Done():
			log.Info("worker_stopped")
			return
		case msg, ok := <-msgChan:
			if !ok {
				log.Info("queue_channel_closed")
				return
			}
			if err := worker.ProcessJob(ctx, msg); err != nil {
				log.Error("job_failed",
					zap.String("job_id", msg.Job.ID.String()),
					zap.String("job_type", string(msg.Job.Type)),
					zap.Error(err),
				)
			}
		case err, ok := <-errChan:
			if !ok {
				errChan = nil
				continue
			}
			log.Error("queue_error", zap.Error(err))
		}
	}
}
