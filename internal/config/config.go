package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/benvon/thought-capture/internal/services/nlp"
)

// LLMMode controls when the capture pipeline consults the categorization model.
type LLMMode string

const (
	// LLMModeOff keeps rule-based results as they are.
	LLMModeOff LLMMode = "off"
	// LLMModeSync categorizes low-confidence thoughts inside the request.
	LLMModeSync LLMMode = "sync"
	// LLMModeAsync queues low-confidence thoughts for the worker.
	LLMModeAsync LLMMode = "async"
)

// EngineConfig is the part of the configuration the stateless engine entry
// points (cmd/mcp, configure process) need. They run without a database.
type EngineConfig struct {
	LogFormat              string
	RulesFile              string
	MaxCaptureLength       int
	LLMConfidenceThreshold float64
}

// Config holds application configuration
type Config struct {
	EngineConfig

	DatabaseURL      string
	ServerPort       string
	BaseURL          string
	FrontendURL      string
	EnableHSTS       bool
	OIDCProvider     string
	RedisURL         string
	RabbitMQURL      string
	RabbitMQPrefetch int
	WorkerDebugMode  bool
	ServerDebugMode  bool
	OTELEnabled      bool
	OTELEndpoint     string

	OpenAIKey  string
	AIProvider string
	AIModel    string
	AIBaseURL  string

	LLMMode           LLMMode
	ReprocessInterval time.Duration
	DLQRetention      time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		EngineConfig:     loadEngineConfig(),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		BaseURL:          getEnv("BASE_URL", "http://localhost:8080"),
		FrontendURL:      getEnv("FRONTEND_URL", "http://localhost:3000"),
		EnableHSTS:       getEnvBool("ENABLE_HSTS", false),
		OIDCProvider:     getEnv("OIDC_PROVIDER", "cognito"),
		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RabbitMQURL:      getEnv("RABBITMQ_URL", ""),
		RabbitMQPrefetch: getEnvInt("RABBITMQ_PREFETCH", 1),
		WorkerDebugMode:  getEnvBool("WORKER_DEBUG_MODE", false),
		ServerDebugMode:  getEnvBool("SERVER_DEBUG_MODE", false),
		OTELEnabled:      getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		OpenAIKey:  getEnv("OPENAI_API_KEY", ""),
		AIProvider: getEnv("AI_PROVIDER", "openai"),
		AIModel:    getEnv("AI_MODEL", ""),
		AIBaseURL:  getEnv("AI_BASE_URL", ""),

		LLMMode:           LLMMode(strings.ToLower(getEnv("LLM_FALLBACK_MODE", string(LLMModeAsync)))),
		ReprocessInterval: time.Duration(getEnvInt("CAPTURE_REPROCESS_INTERVAL_MINUTES", 0)) * time.Minute,
		DLQRetention:      time.Duration(getEnvInt("DLQ_RETENTION_HOURS", 168)) * time.Hour,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadEngineConfig() EngineConfig {
	return EngineConfig{
		LogFormat:              getEnv("LOG_FORMAT", "json"),
		RulesFile:              getEnv("RULES_FILE", ""),
		MaxCaptureLength:       getEnvInt("MAX_CAPTURE_LENGTH", 10000),
		LLMConfidenceThreshold: getEnvFloat("LLM_CONFIDENCE_THRESHOLD", 0.7),
	}
}

// LoadEngine loads only the engine settings.
func LoadEngine() (*EngineConfig, error) {
	cfg := loadEngineConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the engine settings.
func (c *EngineConfig) Validate() error {
	if c.LLMConfidenceThreshold < 0 || c.LLMConfidenceThreshold > 1 {
		return fmt.Errorf("LLM_CONFIDENCE_THRESHOLD must be between 0 and 1, got %v", c.LLMConfidenceThreshold)
	}
	if c.MaxCaptureLength <= 0 {
		return fmt.Errorf("MAX_CAPTURE_LENGTH must be positive, got %d", c.MaxCaptureLength)
	}
	return nil
}

// NewEngine builds the engine over RULES_FILE, or over the built-in rule
// table when none is set.
func (c *EngineConfig) NewEngine() (*nlp.Engine, error) {
	if c.RulesFile == "" {
		return nlp.Default(), nil
	}
	f, err := os.Open(c.RulesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open rules file: %w", err)
	}
	defer f.Close()
	rules, err := nlp.LoadRules(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules file %s: %w", c.RulesFile, err)
	}
	return nlp.NewEngine(rules), nil
}

// Validate checks required settings and the combinations the chosen LLM mode needs.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	switch c.LLMMode {
	case LLMModeOff, LLMModeSync:
	case LLMModeAsync:
		if c.RabbitMQURL == "" {
			return fmt.Errorf("RABBITMQ_URL is required when LLM_FALLBACK_MODE is async")
		}
	default:
		return fmt.Errorf("invalid LLM_FALLBACK_MODE %q (must be off, sync or async)", c.LLMMode)
	}

	return c.EngineConfig.Validate()
}

// LLMEnabled reports whether low-confidence thoughts go to the model at all.
func (c *Config) LLMEnabled() bool {
	return c.LLMMode != LLMModeOff
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
