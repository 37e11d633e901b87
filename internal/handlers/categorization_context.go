package handlers

import (
	"errors"
	"net/http"

	"github.com/benvon/thought-capture/internal/database"
	"github.com/benvon/thought-capture/internal/models"
	"github.com/benvon/thought-capture/internal/validation"
	"github.com/gorilla/mux"
)

// CategorizationContextHandler handles the user's standing guidance for the model
type CategorizationContextHandler struct {
	contexts database.CategorizationContextStore
}

// NewCategorizationContextHandler creates a new categorization context handler
func NewCategorizationContextHandler(contexts database.CategorizationContextStore) *CategorizationContextHandler {
	return &CategorizationContextHandler{contexts: contexts}
}

// RegisterRoutes registers context routes on the given router
// The router should already have the /categorization-context prefix
func (h *CategorizationContextHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.GetContext).Methods(http.MethodGet)
	r.HandleFunc("", h.UpdateContext).Methods(http.MethodPut)
}

// CategorizationContextRequest replaces the user's guidance.
type CategorizationContextRequest struct {
	Hint          string   `json:"hint" validate:"max=2000"`
	PreferredTags []string `json:"preferred_tags" validate:"max=20,dive,required,max=50"`
}

// GetContext returns the current user's guidance, empty when none was saved.
func (h *CategorizationContextHandler) GetContext(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	cc, err := h.contexts.GetByUserID(r.Context(), user.ID)
	if errors.Is(err, database.ErrNotFound) {
		cc = &models.CategorizationContext{UserID: user.ID, PreferredTags: []string{}}
	} else if err != nil {
		respondStoreError(w, err, "categorization context", "retrieve")
		return
	}
	respondJSON(w, http.StatusOK, cc)
}

// UpdateContext replaces the current user's guidance.
func (h *CategorizationContextHandler) UpdateContext(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	var req CategorizationContextRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	cc := &models.CategorizationContext{
		UserID: user.ID,
		Hint:   validation.SanitizeText(req.Hint),
	}
	seen := make(map[string]bool, len(req.PreferredTags))
	for _, tag := range req.PreferredTags {
		tag = validation.SanitizeText(tag)
		if tag != "" && !seen[tag] {
			seen[tag] = true
			cc.PreferredTags = append(cc.PreferredTags, tag)
		}
	}
	if err := h.contexts.Upsert(r.Context(), cc); err != nil {
		respondStoreError(w, err, "categorization context", "update")
		return
	}
	respondJSON(w, http.StatusOK, cc)
}
