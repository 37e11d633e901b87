package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/benvon/thought-capture/internal/database"
	"github.com/benvon/thought-capture/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"
)

func strPtr(s string) *string { return &s }

func TestAuth(t *testing.T) {
	t.Parallel()

	existingID := uuid.New()
	verifier := &mockVerifier{verifyFunc: func(ctx context.Context, token string) (*models.JWTClaims, error) {
		switch token {
		case "new-user":
			return &models.JWTClaims{Sub: "sub-new", Email: "new@example.com", Name: "New", EmailVerified: true}, nil
		case "existing":
			return &models.JWTClaims{Sub: "sub-existing", Email: "renamed@example.com", Name: "Old"}, nil
		case "unconfigured":
			return nil, database.ErrNotFound
		}
		return nil, errors.New("signature invalid")
	}}

	tests := []struct {
		name        string
		header      string
		getErr      error
		wantStatus  int
		wantCreated int
		wantUpdated int
		wantEmail   string
		wantUserID  *uuid.UUID
	}{
		{name: "missing header", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "empty bearer", header: "Bearer ", wantStatus: http.StatusUnauthorized},
		{name: "invalid token", header: "Bearer forged", wantStatus: http.StatusUnauthorized},
		{name: "provider not configured", header: "Bearer unconfigured", wantStatus: http.StatusInternalServerError},
		{name: "first login creates user", header: "Bearer new-user", wantStatus: http.StatusOK, wantCreated: 1, wantEmail: "new@example.com"},
		{name: "changed email updates user", header: "bearer existing", wantStatus: http.StatusOK, wantUpdated: 1, wantEmail: "renamed@example.com", wantUserID: &existingID},
		{name: "user store failure", header: "Bearer existing", getErr: errors.New("db down"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			users := newMockUserStore(&models.User{
				ID:         existingID,
				Email:      "old@example.com",
				ProviderID: strPtr("sub-existing"),
				Name:       strPtr("Old"),
			})
			users.getErr = tt.getErr

			var seen *models.User
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = UserFromContext(r)
				w.WriteHeader(http.StatusOK)
			})
			handler := Auth(verifier, users, zaptest.NewLogger(t))(next)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/thoughts", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if users.created != tt.wantCreated || users.updated != tt.wantUpdated {
				t.Errorf("created=%d updated=%d, want %d/%d", users.created, users.updated, tt.wantCreated, tt.wantUpdated)
			}
			if tt.wantStatus != http.StatusOK {
				var body ErrorResponse
				if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
					t.Fatalf("decode error body: %v", err)
				}
				if body.Success || body.Message == "" {
					t.Errorf("error body = %+v", body)
				}
				if seen != nil {
					t.Error("next handler ran for a rejected request")
				}
				return
			}
			if seen == nil {
				t.Fatal("user not set in context")
			}
			if seen.Email != tt.wantEmail {
				t.Errorf("Email = %q, want %q", seen.Email, tt.wantEmail)
			}
			if tt.wantUserID != nil && seen.ID != *tt.wantUserID {
				t.Errorf("ID = %v, want %v", seen.ID, *tt.wantUserID)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", true},
		{"  Bearer   abc  ", "abc", true},
		{"BEARER abc", "abc", true},
		{"Bearer", "", false},
		{"Token abc", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := bearerToken(tt.header)
		if got != tt.want || ok != tt.ok {
			t.Errorf("bearerToken(%q) = %q, %v; want %q, %v", tt.header, got, ok, tt.want, tt.ok)
		}
	}
}
