package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/benvon/thought-capture/internal/database"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

const defaultCORSMaxAge = 86400

// CORSReloader wraps rs/cors and periodically reloads CORS config from the database.
type CORSReloader struct {
	repo     database.CorsConfigStore
	fallback string // FRONTEND_URL
	log      *zap.Logger
	interval time.Duration
	mu       sync.RWMutex
	current  *cors.Cors
}

// NewCORSReloader creates a CORS middleware that loads config from the DB and hot-reloads it.
// Until a policy is stored, frontendURLFallback is the only allowed origin.
func NewCORSReloader(repo database.CorsConfigStore, frontendURLFallback string, log *zap.Logger, reloadInterval time.Duration) *CORSReloader {
	fallback := strings.TrimSpace(frontendURLFallback)
	if fallback == "" {
		fallback = "http://localhost:3000"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CORSReloader{
		repo:     repo,
		fallback: fallback,
		log:      log,
		interval: reloadInterval,
	}
}

// Middleware loads the current policy and returns a middleware applying
// whichever policy is loaded when the request arrives.
func (r *CORSReloader) Middleware() func(http.Handler) http.Handler {
	r.load(context.Background())
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			r.mu.RLock()
			c := r.current
			r.mu.RUnlock()
			c.Handler(next).ServeHTTP(w, req)
		})
	}
}

// Start runs the reload loop until ctx is cancelled.
func (r *CORSReloader) Start(ctx context.Context) {
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

func (r *CORSReloader) options(ctx context.Context) cors.Options {
	opts := cors.Options{
		AllowedOrigins:   []string{r.fallback},
		AllowCredentials: true,
		MaxAge:           defaultCORSMaxAge,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
	}
	cfg, err := r.repo.Get(ctx)
	switch {
	case err == nil && len(cfg.Origins()) > 0:
		opts.AllowedOrigins = cfg.Origins()
		opts.AllowCredentials = cfg.AllowCredentials
		opts.MaxAge = cfg.MaxAge
	case err != nil && !errors.Is(err, database.ErrNotFound):
		r.log.Warn("failed_to_load_cors_config_using_fallback", zap.Error(err))
	}
	return opts
}

func (r *CORSReloader) load(ctx context.Context) {
	c := cors.New(r.options(ctx))
	r.mu.Lock()
	r.current = c
	r.mu.Unlock()
}
