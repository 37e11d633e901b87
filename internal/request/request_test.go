package request

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/benvon/thought-capture/internal/models"
	"github.com/google/uuid"
)

func TestClientIP(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		wantIP  string
	}{
		{"x-forwarded-for", map[string]string{"X-Forwarded-For": "1.2.3.4"}, "", "1.2.3.4"},
		{"x-forwarded-for first", map[string]string{"X-Forwarded-For": " 1.2.3.4 , 5.6.7.8 "}, "", "1.2.3.4"},
		{"x-real-ip", map[string]string{"X-Real-IP": "9.9.9.9"}, "", "9.9.9.9"},
		{"remote addr", nil, "10.0.0.1:12345", "10.0.0.1:12345"},
		{"xff over xri", map[string]string{"X-Forwarded-For": "1.2.3.4", "X-Real-IP": "9.9.9.9"}, "", "1.2.3.4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest("GET", "/", nil)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if tt.remote != "" {
				r.RemoteAddr = tt.remote
			}
			got := ClientIP(r)
			if got != tt.wantIP {
				t.Errorf("ClientIP() = %q, want %q", got, tt.wantIP)
			}
		})
	}
}

func TestUserFromContext(t *testing.T) {
	t.Parallel()

	user := &models.User{ID: uuid.New(), Email: "sam@example.com", Timezone: "Europe/Berlin"}
	tests := []struct {
		name string
		ctx  context.Context
		want *models.User
	}{
		{"attached user", WithUser(context.Background(), user), user},
		{"no user", context.Background(), nil},
		{"value of another type", context.WithValue(context.Background(), UserContextKey(), "sam"), nil},
		{"nil user", WithUser(context.Background(), nil), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest("POST", "/api/v1/captures", nil).WithContext(tt.ctx)
			if got := UserFromContext(r); got != tt.want {
				t.Errorf("UserFromContext() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	t.Parallel()
	if got := RequestID(context.Background()); got != "" {
		t.Errorf("RequestID(empty) = %q, want empty", got)
	}
	ctx := WithUser(WithRequestID(context.Background(), "capture-7f3a"), &models.User{})
	if got := RequestID(ctx); got != "capture-7f3a" {
		t.Errorf("RequestID() = %q, want capture-7f3a", got)
	}
}
