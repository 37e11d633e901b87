package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/benvon/thought-capture/api/openapi"
	"github.com/benvon/thought-capture/internal/config"
	"github.com/benvon/thought-capture/internal/database"
	"github.com/benvon/thought-capture/internal/handlers"
	"github.com/benvon/thought-capture/internal/logger"
	"github.com/benvon/thought-capture/internal/middleware"
	"github.com/benvon/thought-capture/internal/queue"
	"github.com/benvon/thought-capture/internal/services/ai"
	"github.com/benvon/thought-capture/internal/services/capture"
	"github.com/benvon/thought-capture/internal/services/oidc"
	"github.com/benvon/thought-capture/internal/telemetry"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"
)

const (
	serviceName    = "thought-capture-api"
	reloadInterval = time.Minute
)

var version = "dev"

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug mode for LLM API logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.New(logger.Format(cfg.LogFormat), debugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync(zapLogger) }()

	zapLogger.Info("starting_server",
		zap.String("version", version),
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("frontend_url", cfg.FrontendURL),
		zap.String("llm_mode", string(cfg.LLMMode)),
		zap.String("ai_provider", cfg.AIProvider),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracing := false
	if cfg.OTELEnabled {
		if cfg.OTELEndpoint == "" {
			zapLogger.Warn("otel_enabled_but_endpoint_not_configured")
		} else if tp, err := telemetry.InitTracer(ctx, serviceName, cfg.OTELEndpoint); err != nil {
			zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
		} else {
			tracing = true
			zapLogger.Info("otel_tracer_initialized", zap.String("endpoint", cfg.OTELEndpoint))
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := telemetry.Shutdown(shutdownCtx, tp); err != nil {
					zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
				}
			}()
		}
	}

	engine, err := cfg.NewEngine()
	if err != nil {
		zapLogger.Fatal("failed_to_load_rules", zap.Error(err))
	}
	zapLogger.Info("rules_loaded",
		zap.String("rules_version", engine.Rules().Version()),
		zap.Int("rule_count", len(engine.Rules().Rules())),
	)

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()
	if err := db.Migrate(ctx); err != nil {
		zapLogger.Fatal("failed_to_migrate_database", zap.Error(err))
	}
	zapLogger.Info("connected_to_database")

	redisClient, err := middleware.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
		}
	}()
	limiterStore, err := middleware.NewRedisLimiterStore(redisClient)
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limit_store", zap.Error(err))
	}
	zapLogger.Info("connected_to_redis")

	// The queue is optional outside async mode; a nil interface keeps the
	// service and health checks from seeing a typed nil.
	var jobQueue queue.JobQueue
	if cfg.RabbitMQURL != "" {
		rmq, err := connectQueue(ctx, cfg.RabbitMQURL, zapLogger)
		if err != nil {
			zapLogger.Fatal("failed_to_connect_to_rabbitmq_after_retries", zap.Error(err))
		}
		defer func() {
			if err := rmq.Close(); err != nil {
				zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
			}
		}()
		jobQueue = rmq
	}

	var categorizer ai.Categorizer
	if cfg.LLMMode != config.LLMModeOff {
		provider, err := ai.NewDefaultRegistry(zapLogger).GetProvider(cfg.AIProvider, map[string]string{
			"api_key":  cfg.OpenAIKey,
			"base_url": cfg.AIBaseURL,
			"model":    cfg.AIModel,
			"debug":    strconv.FormatBool(debugMode),
		})
		if err != nil {
			zapLogger.Warn("failed_to_create_ai_provider_llm_features_limited", zap.Error(err))
		} else {
			categorizer = provider
		}
	}

	captureRepo := database.NewCaptureRepository(db)
	thoughtRepo := database.NewThoughtRepository(db)
	userRepo := database.NewUserRepository(db)
	contextRepo := database.NewCategorizationContextRepository(db)
	activityRepo := database.NewUserActivityRepository(db)
	corsConfigRepo := database.NewCorsConfigRepository(db)
	ratelimitConfigRepo := database.NewRatelimitConfigRepository(db)
	oidcConfigRepo := database.NewOIDCConfigRepository(db)

	captureService := capture.NewService(capture.Options{
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
		Logger:       zapLogger,
	})
	if captureService.Mode() != cfg.LLMMode {
		zapLogger.Warn("llm_mode_downgraded",
			zap.String("configured", string(cfg.LLMMode)),
			zap.String("effective", string(captureService.Mode())),
		)
	}

	oidcProvider := oidc.NewProvider(oidcConfigRepo, nil, zapLogger)
	jwksManager := oidc.NewJWKSManager(ctx, nil)
	authenticator := oidc.NewAuthenticator(oidcProvider, jwksManager, cfg.OIDCProvider)

	openAPIHandler, err := handlers.NewOpenAPIHandler(openapi.Spec)
	if err != nil {
		zapLogger.Fatal("failed_to_load_openapi_spec", zap.Error(err))
	}
	authHandler := handlers.NewAuthHandler(oidcProvider, cfg.OIDCProvider, zapLogger)
	captureHandler := handlers.NewCaptureHandler(captureService, captureRepo, thoughtRepo, zapLogger)
	thoughtHandler := handlers.NewThoughtHandler(thoughtRepo, zapLogger)
	nlpHandler := handlers.NewNLPHandler(captureService, zapLogger)
	contextHandler := handlers.NewCategorizationContextHandler(contextRepo)

	checks := map[string]handlers.CheckFunc{
		"database": db.PingContext,
		"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	}
	if jobQueue != nil {
		checks["queue"] = jobQueue.HealthCheck
	}
	healthChecker := handlers.NewHealthChecker(checks, zapLogger)

	corsReloader := middleware.NewCORSReloader(corsConfigRepo, cfg.FrontendURL, zapLogger, reloadInterval)
	rateLimitReloader := middleware.NewRateLimitReloader(limiterStore, ratelimitConfigRepo, middleware.DefaultRatelimitRate, zapLogger, reloadInterval)

	// gorilla/mux runs middleware in registration order, outermost first.
	r := mux.NewRouter()
	if tracing {
		r.Use(otelmux.Middleware(serviceName))
	}
	r.Use(middleware.RequestID)
	r.Use(middleware.Recover(zapLogger))
	r.Use(middleware.Logging(zapLogger))
	r.Use(middleware.Audit(zapLogger))
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	r.Use(corsReloader.Middleware())

	r.HandleFunc("/healthz", healthChecker.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/version", handlers.VersionHandler(version, engine.Rules().Version())).Methods(http.MethodGet)

	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(rateLimitReloader.Middleware())
	apiRouter.Use(middleware.Timeout(middleware.DefaultRequestTimeout))
	apiRouter.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize, zapLogger))
	apiRouter.Use(middleware.ContentType(zapLogger))

	openAPIHandler.RegisterRoutes(apiRouter)
	authHandler.RegisterPublicRoutes(apiRouter.PathPrefix("/auth").Subrouter())

	protected := apiRouter.PathPrefix("").Subrouter()
	protected.Use(middleware.Auth(authenticator, userRepo, zapLogger))
	protected.Use(middleware.ActivityTracking(activityRepo, zapLogger))

	authHandler.RegisterRoutes(protected.PathPrefix("/auth").Subrouter())
	captureHandler.RegisterRoutes(protected.PathPrefix("/captures").Subrouter())
	thoughtHandler.RegisterRoutes(protected.PathPrefix("/thoughts").Subrouter())
	nlpHandler.RegisterRoutes(protected.PathPrefix("/nlp").Subrouter())
	contextHandler.RegisterRoutes(protected.PathPrefix("/categorization-context").Subrouter())

	// Preflight requests are answered by the CORS middleware before this runs.
	r.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      middleware.DefaultRequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go corsReloader.Start(ctx)
	go rateLimitReloader.Start(ctx)

	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLogger.Info("server_shutting_down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("server_forced_to_shutdown", zap.Error(err))
	}
	zapLogger.Info("server_exited")
}

// connectQueue retries with exponential backoff so the API can start
// alongside a RabbitMQ that is still booting.
func connectQueue(ctx context.Context, url string, log *zap.Logger) (*queue.RabbitMQQueue, error) {
	const (
		maxRetries   = 10
		initialDelay = 2 * time.Second
		maxDelay     = 30 * time.Second
	)
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		q, err := queue.NewRabbitMQQueue(url, log)
		if err == nil {
			log.Info("connected_to_rabbitmq", zap.Int("attempt", attempt+1))
			return q, nil
		}
		lastErr = err

		delay := min(initialDelay*time.Duration(1<<uint(attempt)), maxDelay)
		log.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries),
			zap.Duration("retry_delay", delay),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("rabbitmq unreachable after %d attempts: %w", maxRetries, lastErr)
}
