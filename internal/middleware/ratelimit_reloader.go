package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/benvon/thought-capture/internal/database"
	"github.com/benvon/thought-capture/internal/models"
	"github.com/benvon/thought-capture/internal/request"
	"github.com/ulule/limiter/v3"
	"go.uber.org/zap"
)

// DefaultRatelimitRate is stored and applied when no rate has been configured.
const DefaultRatelimitRate = "5-S"

// RateLimitReloader wraps ulule/limiter and periodically reloads rate limit config from the database.
type RateLimitReloader struct {
	store       limiter.Store
	repo        database.RatelimitConfigStore
	defaultRate string
	log         *zap.Logger
	interval    time.Duration
	mu          sync.RWMutex
	current     *limiter.Limiter
	rate        string
}

// NewRateLimitReloader creates a rate limit middleware over store that loads
// its rate from the DB and hot-reloads it.
func NewRateLimitReloader(store limiter.Store, repo database.RatelimitConfigStore, defaultRate string, log *zap.Logger, reloadInterval time.Duration) *RateLimitReloader {
	if defaultRate == "" {
		defaultRate = DefaultRatelimitRate
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RateLimitReloader{
		store:       store,
		repo:        repo,
		defaultRate: defaultRate,
		log:         log,
		interval:    reloadInterval,
	}
}

// Middleware loads the current rate and returns a middleware that limits
// each client IP against whatever rate is loaded when the request arrives.
func (r *RateLimitReloader) Middleware() func(http.Handler) http.Handler {
	r.load(context.Background())
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			r.serve(w, req, next)
		})
	}
}

// Start runs the reload loop until ctx is cancelled.
func (r *RateLimitReloader) Start(ctx context.Context) {
	if r.interval <= 0 {
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.load(ctx)
		}
	}
}

// rateString returns the stored rate, seeding the default when none exists.
func (r *RateLimitReloader) rateString(ctx context.Context) string {
	cfg, err := r.repo.Get(ctx)
	switch {
	case err == nil && cfg.Rate != "":
		return cfg.Rate
	case err == nil || errors.Is(err, database.ErrNotFound):
		if err := r.repo.Set(ctx, &models.RatelimitConfig{Rate: r.defaultRate}); err != nil {
			r.log.Error("failed_to_save_default_ratelimit_config",
				zap.Error(err),
				zap.String("default_rate", r.defaultRate),
			)
		}
	default:
		r.log.Warn("failed_to_load_ratelimit_config_from_db_using_default",
			zap.Error(err),
			zap.String("default_rate", r.defaultRate),
		)
	}
	return r.defaultRate
}

func (r *RateLimitReloader) load(ctx context.Context) {
	rateStr := r.rateString(ctx)
	r.mu.RLock()
	unchanged := r.current != nil && r.rate == rateStr
	r.mu.RUnlock()
	if unchanged {
		return
	}

	rate, err := limiter.NewRateFromFormatted(rateStr)
	if err != nil {
		r.log.Error("failed_to_parse_rate_limit_using_default",
			zap.Error(err),
			zap.String("rate_str", rateStr),
			zap.String("default_rate", r.defaultRate),
		)
		rateStr = r.defaultRate
		if rate, err = limiter.NewRateFromFormatted(rateStr); err != nil {
			r.log.Error("failed_to_parse_default_rate_limit", zap.Error(err))
			return
		}
	}

	instance := limiter.New(r.store, rate)
	r.mu.Lock()
	r.current = instance
	r.rate = rateStr
	r.mu.Unlock()
	r.log.Info("rate_limit_loaded", zap.String("rate", rateStr))
}

func (r *RateLimitReloader) serve(w http.ResponseWriter, req *http.Request, next http.Handler) {
	r.mu.RLock()
	instance := r.current
	r.mu.RUnlock()
	if instance == nil {
		next.ServeHTTP(w, req)
		return
	}

	lctx, err := instance.Get(req.Context(), request.ClientIP(req))
	if err != nil {
		// Fail open: a store outage must not take the API down.
		r.log.Warn("rate_limit_store_error", zap.Error(err))
		next.ServeHTTP(w, req)
		return
	}

	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
	h.Set("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))
	if lctx.Reached {
		respondErrorJSON(w, req, http.StatusTooManyRequests, "Too Many Requests", "Rate limit exceeded", r.log)
		return
	}
	next.ServeHTTP(w, req)
}
