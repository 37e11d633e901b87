package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/benvon/thought-capture/api/openapi"
	"github.com/gorilla/mux"
)

func TestOpenAPIHandler(t *testing.T) {
	t.Parallel()

	h, err := NewOpenAPIHandler(openapi.Spec)
	if err != nil {
		t.Fatalf("NewOpenAPIHandler() error = %v", err)
	}
	r := mux.NewRouter()
	h.RegisterRoutes(r.PathPrefix("/api/v1").Subrouter())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/openapi.yaml", nil))
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "application/yaml" {
		t.Errorf("yaml: status = %d, content type = %q", w.Code, w.Header().Get("Content-Type"))
	}
	if w.Body.Len() != len(openapi.Spec) {
		t.Errorf("yaml body = %d bytes, want %d", w.Body.Len(), len(openapi.Spec))
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/openapi.json", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("json: status = %d", w.Code)
	}
	var doc struct {
		OpenAPI string                    `json:"openapi"`
		Paths   map[string]map[string]any `json:"paths"`
	}
	if err := json.NewDecoder(w.Body).Decode(&doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.OpenAPI == "" {
		t.Error("openapi version missing")
	}
	for _, path := range []string{"/captures", "/thoughts/{id}", "/nlp/process"} {
		if _, ok := doc.Paths[path]; !ok {
			t.Errorf("path %s missing from document", path)
		}
	}
}

func TestNewOpenAPIHandler_InvalidYAML(t *testing.T) {
	t.Parallel()

	if _, err := NewOpenAPIHandler([]byte("openapi: [unclosed")); err == nil {
		t.Error("expected an error for malformed YAML")
	}
}
