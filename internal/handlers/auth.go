package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/benvon/thought-capture/internal/database"
	"github.com/benvon/thought-capture/internal/services/oidc"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// LoginConfigSource resolves the frontend login settings for a provider.
type LoginConfigSource interface {
	GetLoginConfig(ctx context.Context, providerName string) (*oidc.LoginConfig, error)
}

var _ LoginConfigSource = (*oidc.Provider)(nil)

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	source       LoginConfigSource
	providerName string
	logger       *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(source LoginConfigSource, providerName string, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{source: source, providerName: providerName, logger: logger}
}

// RegisterPublicRoutes registers the unauthenticated auth routes
// The router should already have the /auth prefix
func (h *AuthHandler) RegisterPublicRoutes(r *mux.Router) {
	r.HandleFunc("/oidc/config", h.GetOIDCConfig).Methods(http.MethodGet)
}

// RegisterRoutes registers the authenticated auth routes
// The router should already have the /auth prefix
func (h *AuthHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/me", h.GetMe).Methods(http.MethodGet)
}

// GetOIDCConfig returns the OIDC settings the frontend needs to start a login.
func (h *AuthHandler) GetOIDCConfig(w http.ResponseWriter, r *http.Request) {
	loginConfig, err := h.source.GetLoginConfig(r.Context(), h.providerName)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondJSONError(w, http.StatusNotFound, "Not Found", "OIDC provider is not configured")
			return
		}
		h.logger.Error("oidc_login_config_failed", zap.String("provider", h.providerName), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to get OIDC configuration")
		return
	}
	respondJSON(w, http.StatusOK, loginConfig)
}

// GetMe returns current user information
func (h *AuthHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	respondJSON(w, http.StatusOK, user)
}
