package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/benvon/thought-capture/internal/database"
	"github.com/benvon/thought-capture/internal/models"
	"github.com/benvon/thought-capture/internal/services/nlp"
	"github.com/benvon/thought-capture/internal/validation"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// ThoughtHandler handles stored thought requests
type ThoughtHandler struct {
	thoughts database.ThoughtStore
	logger   *zap.Logger
}

// NewThoughtHandler creates a new thought handler
func NewThoughtHandler(thoughts database.ThoughtStore, logger *zap.Logger) *ThoughtHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ThoughtHandler{thoughts: thoughts, logger: logger}
}

// RegisterRoutes registers thought routes on the given router
// The router should already have the /thoughts prefix
func (h *ThoughtHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.ListThoughts).Methods(http.MethodGet)
	r.HandleFunc("/{id}", h.GetThought).Methods(http.MethodGet)
	r.HandleFunc("/{id}", h.UpdateThought).Methods(http.MethodPatch)
	r.HandleFunc("/{id}", h.DeleteThought).Methods(http.MethodDelete)
}

// ListThoughtsResponse is a page of thoughts.
type ListThoughtsResponse struct {
	Thoughts []*models.StoredThought `json:"thoughts"`
	Pagination
}

// ListThoughts lists thoughts, optionally filtered by type, status and capture.
func (h *ThoughtHandler) ListThoughts(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	p := parsePage(r)
	filter := database.ThoughtFilter{UserID: user.ID, Limit: p.Size, Offset: p.offset()}

	q := r.URL.Query()
	if v := q.Get("type"); v != "" {
		if err := validation.ValidateThoughtType(v); err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		t := nlp.ThoughtType(v)
		filter.Type = &t
	}
	if v := q.Get("status"); v != "" {
		if err := validation.ValidateThoughtStatus(v); err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		s := models.ThoughtStatus(v)
		filter.Status = &s
	}
	if v := q.Get("capture_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid capture ID")
			return
		}
		filter.CaptureID = &id
	}

	thoughts, total, err := h.thoughts.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("thought_list_failed", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve thoughts")
		return
	}
	if thoughts == nil {
		thoughts = []*models.StoredThought{}
	}
	respondJSON(w, http.StatusOK, ListThoughtsResponse{Thoughts: thoughts, Pagination: newPagination(p, total)})
}

// GetThought returns one thought.
func (h *ThoughtHandler) GetThought(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := pathID(w, r, "thought")
	if !ok {
		return
	}
	thought, err := h.thoughts.GetByID(r.Context(), user.ID, id)
	if err != nil {
		respondStoreError(w, err, "Thought", "retrieve")
		return
	}
	respondJSON(w, http.StatusOK, thought)
}

// UpdateThoughtRequest is a user correction. Changing the type requires new
// content of that type; content alone is re-validated against the current type.
type UpdateThoughtRequest struct {
	ThoughtType      *nlp.ThoughtType     `json:"thought_type,omitempty" validate:"omitempty,thought_type"`
	Confidence       *nlp.ConfidenceLevel `json:"confidence,omitempty" validate:"omitempty,confidence_level"`
	ProcessedContent json.RawMessage      `json:"processed_content,omitempty"`
}

var errContentRequired = errors.New("processed_content is required when changing thought_type")

// apply returns the edited thought. User edits are authoritative, so the
// confidence becomes high unless the request names one.
func (req UpdateThoughtRequest) apply(current nlp.Thought) (nlp.Thought, error) {
	thoughtType := current.Type()
	if req.ThoughtType != nil {
		thoughtType = *req.ThoughtType
	}
	content := current.Content
	switch {
	case len(req.ProcessedContent) > 0:
		decoded, err := nlp.DecodeContent(thoughtType, req.ProcessedContent)
		if err != nil {
			return nlp.Thought{}, err
		}
		content = decoded
	case thoughtType != current.Type():
		return nlp.Thought{}, errContentRequired
	}

	confidence := nlp.ConfidenceHigh
	if req.Confidence != nil {
		confidence = *req.Confidence
	}
	edited := nlp.NewThought(content, confidence)
	if err := edited.Validate(); err != nil {
		return nlp.Thought{}, err
	}
	return edited, nil
}

// UpdateThought applies a user edit and marks the thought user_edited so
// later model answers and reprocessing leave it alone.
func (h *ThoughtHandler) UpdateThought(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := pathID(w, r, "thought")
	if !ok {
		return
	}
	var req UpdateThoughtRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ThoughtType == nil && req.Confidence == nil && len(req.ProcessedContent) == 0 {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "No fields to update")
		return
	}

	ctx := r.Context()
	thought, err := h.thoughts.GetByID(ctx, user.ID, id)
	if err != nil {
		respondStoreError(w, err, "Thought", "retrieve")
		return
	}
	edited, err := req.apply(thought.Thought)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid thought: "+err.Error())
		return
	}

	thought.Thought = edited
	thought.Status = models.ThoughtStatusUserEdited
	if err := h.thoughts.Update(ctx, thought); err != nil {
		respondStoreError(w, err, "Thought", "update")
		return
	}
	h.logger.Info("thought_edited",
		zap.String("thought_id", thought.ID.String()),
		zap.String("thought_type", string(edited.Type())),
	)
	respondJSON(w, http.StatusOK, thought)
}

// DeleteThought deletes one thought.
func (h *ThoughtHandler) DeleteThought(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := pathID(w, r, "thought")
	if !ok {
		return
	}
	if err := h.thoughts.Delete(r.Context(), user.ID, id); err != nil {
		respondStoreError(w, err, "Thought", "delete")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
