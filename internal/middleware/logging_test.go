package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogging(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		method        string
		path          string
		handlerStatus int
		wantLevel     zapcore.Level
	}{
		{"GET request", http.MethodGet, "/health", http.StatusOK, zapcore.InfoLevel},
		{"POST request", http.MethodPost, "/api/v1/captures", http.StatusCreated, zapcore.InfoLevel},
		{"404 request", http.MethodGet, "/notfound", http.StatusNotFound, zapcore.InfoLevel},
		{"server error", http.MethodGet, "/api/v1/thoughts", http.StatusBadGateway, zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			core, logs := observer.New(zap.DebugLevel)
			handler := RequestID(Logging(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.handlerStatus)
				w.WriteHeader(http.StatusTeapot) // ignored second call
			})))

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))

			entries := logs.FilterMessage("http_request").All()
			if len(entries) != 1 {
				t.Fatalf("got %d http_request entries, want 1", len(entries))
			}
			e := entries[0]
			if e.Level != tt.wantLevel {
				t.Errorf("level = %v, want %v", e.Level, tt.wantLevel)
			}
			fields := e.ContextMap()
			if fields["status_code"] != int64(tt.handlerStatus) {
				t.Errorf("status_code = %v, want %d", fields["status_code"], tt.handlerStatus)
			}
			if fields["request_id"] != w.Header().Get(RequestIDHeader) {
				t.Errorf("request_id = %v, header = %q", fields["request_id"], w.Header().Get(RequestIDHeader))
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	t.Parallel()

	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if got := w.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Errorf("inbound id not reused: %q", got)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if got := w.Header().Get(RequestIDHeader); len(got) != 36 {
		t.Errorf("generated id = %q, want a uuid", got)
	}
}
