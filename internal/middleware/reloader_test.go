package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/benvon/thought-capture/internal/models"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap/zaptest"
)

func preflight(h http.Handler, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/captures", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestCORSReloader(t *testing.T) {
	t.Parallel()

	store := &mockCorsStore{}
	reloader := NewCORSReloader(store, "https://app.example.com", zaptest.NewLogger(t), 0)
	handler := reloader.Middleware()(okHandler)

	if got := preflight(handler, "https://app.example.com").Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("fallback origin not allowed: %q", got)
	}
	if got := preflight(handler, "https://other.example.com").Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unknown origin allowed: %q", got)
	}

	_ = store.Set(context.Background(), &models.CorsConfig{AllowedOrigins: "https://other.example.com", MaxAge: 60})
	reloader.load(context.Background())
	if got := preflight(handler, "https://other.example.com").Header().Get("Access-Control-Allow-Origin"); got != "https://other.example.com" {
		t.Errorf("reloaded origin not allowed: %q", got)
	}
	if got := preflight(handler, "https://app.example.com").Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("fallback still allowed after reload: %q", got)
	}

	store.err = errors.New("db down")
	reloader.load(context.Background())
	if got := preflight(handler, "https://app.example.com").Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("fallback not restored on load failure: %q", got)
	}
}

func TestRateLimitReloader(t *testing.T) {
	t.Parallel()

	repo := &mockRatelimitStore{}
	reloader := NewRateLimitReloader(memory.NewStore(), repo, "2-M", zaptest.NewLogger(t), 0)
	handler := reloader.Middleware()(okHandler)

	if repo.cfg == nil || repo.cfg.Rate != "2-M" {
		t.Fatalf("default rate not seeded: %+v", repo.cfg)
	}

	call := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/thoughts", nil)
		req.Header.Set("X-Forwarded-For", ip)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}
	for i := 0; i < 2; i++ {
		if got := call("203.0.113.1"); got != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i+1, got)
		}
	}
	if got := call("203.0.113.1"); got != http.StatusTooManyRequests {
		t.Errorf("third request status = %d, want 429", got)
	}
	if got := call("203.0.113.2"); got != http.StatusOK {
		t.Errorf("other client status = %d, want 200", got)
	}

	repo.cfg = &models.RatelimitConfig{Rate: "100-M"}
	reloader.load(context.Background())
	if got := call("203.0.113.1"); got != http.StatusOK {
		t.Errorf("after raising the rate status = %d, want 200", got)
	}
}

func TestRateLimitReloader_BadStoredRate(t *testing.T) {
	t.Parallel()

	repo := &mockRatelimitStore{cfg: &models.RatelimitConfig{Rate: "lots"}}
	reloader := NewRateLimitReloader(memory.NewStore(), repo, "1-M", zaptest.NewLogger(t), 0)
	handler := reloader.Middleware()(okHandler)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429 under the default rate", w.Code)
	}
}

func TestReloaders_KeepEachWrappedHandler(t *testing.T) {
	t.Parallel()

	named := func(name string) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Handler", name)
		})
	}
	wraps := map[string]func(http.Handler) http.Handler{
		"cors":      NewCORSReloader(&mockCorsStore{}, "", zaptest.NewLogger(t), 0).Middleware(),
		"ratelimit": NewRateLimitReloader(memory.NewStore(), &mockRatelimitStore{}, "100-M", zaptest.NewLogger(t), 0).Middleware(),
	}
	for name, wrap := range wraps {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			first := wrap(named("first"))
			second := wrap(named("second"))

			w := httptest.NewRecorder()
			first.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
			if got := w.Header().Get("X-Handler"); got != "first" {
				t.Errorf("first wrapper reached %q", got)
			}
			w = httptest.NewRecorder()
			second.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
			if got := w.Header().Get("X-Handler"); got != "second" {
				t.Errorf("second wrapper reached %q", got)
			}
		})
	}
}
