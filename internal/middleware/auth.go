package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/benvon/thought-capture/internal/database"
	logpkg "github.com/benvon/thought-capture/internal/logger"
	"github.com/benvon/thought-capture/internal/models"
	"github.com/benvon/thought-capture/internal/request"
	"github.com/benvon/thought-capture/internal/services/oidc"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TokenVerifier checks a bearer token and returns its identity claims.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*models.JWTClaims, error)
}

var _ TokenVerifier = (*oidc.Authenticator)(nil)

// UserFromContext extracts the user from the request context
func UserFromContext(r *http.Request) *models.User {
	return request.UserFromContext(r)
}

// Auth creates authentication middleware that validates bearer JWTs and
// loads, creating on first sight, the user the token names.
func Auth(verifier TokenVerifier, users database.UserStore, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				respondErrorJSON(w, r, http.StatusUnauthorized, "Unauthorized", "Missing or malformed Authorization header", logger)
				return
			}

			ctx := r.Context()
			claims, err := verifier.VerifyToken(ctx, token)
			if err != nil {
				if errors.Is(err, database.ErrNotFound) || errors.Is(err, oidc.ErrNoJWKSURL) {
					logger.Error("oidc_not_configured", zap.Error(err))
					respondErrorJSON(w, r, http.StatusInternalServerError, "Internal Server Error", "Authentication is not configured", logger)
					return
				}
				logger.Warn("token_verification_failed", zap.String("error", logpkg.SanitizeError(err)))
				respondErrorJSON(w, r, http.StatusUnauthorized, "Unauthorized", "Invalid or expired token", logger)
				return
			}

			user, err := syncUser(ctx, users, claims)
			if err != nil {
				logger.Error("user_sync_failed",
					zap.String("provider_id", logpkg.SanitizeUserID(claims.Sub)),
					zap.Error(err),
				)
				respondErrorJSON(w, r, http.StatusInternalServerError, "Internal Server Error", "Failed to load user", logger)
				return
			}

			next.ServeHTTP(w, r.WithContext(request.WithUser(ctx, user)))
		})
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// syncUser returns the user for the token subject, creating it on first
// login and refreshing email and name when the provider's copy changed.
func syncUser(ctx context.Context, users database.UserStore, claims *models.JWTClaims) (*models.User, error) {
	user, err := users.GetByProviderID(ctx, claims.Sub)
	if errors.Is(err, database.ErrNotFound) {
		sub := claims.Sub
		user = &models.User{
			ID:            uuid.New(),
			Email:         claims.Email,
			ProviderID:    &sub,
			EmailVerified: claims.EmailVerified,
		}
		if claims.Name != "" {
			name := claims.Name
			user.Name = &name
		}
		if err := users.Create(ctx, user); err != nil {
			return nil, err
		}
		return user, nil
	}
	if err != nil {
		return nil, err
	}

	changed := false
	if claims.Email != "" && user.Email != claims.Email {
		user.Email = claims.Email
		changed = true
	}
	if claims.Name != "" && (user.Name == nil || *user.Name != claims.Name) {
		name := claims.Name
		user.Name = &name
		changed = true
	}
	if claims.EmailVerified && !user.EmailVerified {
		user.EmailVerified = true
		changed = true
	}
	if changed {
		if err := users.Update(ctx, user); err != nil {
			return nil, err
		}
	}
	return user, nil
}
