package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/benvon/thought-capture/internal/database"
	"github.com/benvon/thought-capture/internal/models"
	"github.com/benvon/thought-capture/internal/services/capture"
	"github.com/benvon/thought-capture/internal/services/nlp"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// CapturePipeline is the capture service as the handlers use it.
type CapturePipeline interface {
	Capture(ctx context.Context, userID uuid.UUID, req capture.CaptureRequest) (*capture.Result, error)
	Reprocess(ctx context.Context, userID, captureID uuid.UUID) (*capture.Result, error)
	Preview(ctx context.Context, text string) (nlp.ProcessingResult, error)
	Segments(text string) ([]capture.Segment, error)
}

var _ CapturePipeline = (*capture.Service)(nil)

// CaptureHandler handles capture-related requests
type CaptureHandler struct {
	pipeline CapturePipeline
	captures database.CaptureStore
	thoughts database.ThoughtStore
	logger   *zap.Logger
}

// NewCaptureHandler creates a new capture handler
func NewCaptureHandler(pipeline CapturePipeline, captures database.CaptureStore, thoughts database.ThoughtStore, logger *zap.Logger) *CaptureHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CaptureHandler{pipeline: pipeline, captures: captures, thoughts: thoughts, logger: logger}
}

// RegisterRoutes registers capture routes on the given router
// The router should already have the /captures prefix
func (h *CaptureHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.ListCaptures).Methods(http.MethodGet)
	r.HandleFunc("", h.CreateCapture).Methods(http.MethodPost)
	r.HandleFunc("/{id}", h.GetCapture).Methods(http.MethodGet)
	r.HandleFunc("/{id}", h.DeleteCapture).Methods(http.MethodDelete)
	r.HandleFunc("/{id}/reprocess", h.ReprocessCapture).Methods(http.MethodPost)
}

// ListCapturesResponse is a page of captures, newest first.
type ListCapturesResponse struct {
	Captures []*models.Capture `json:"captures"`
	Pagination
}

// respondTextError answers capture text problems with 400 and reports whether it did.
func respondTextError(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, capture.ErrEmptyText):
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Text is required and cannot be empty after sanitization")
	case errors.Is(err, capture.ErrTextTooLong):
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
	default:
		return false
	}
	return true
}

// CreateCapture runs the engine over the posted text and stores the result.
func (h *CaptureHandler) CreateCapture(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	var req capture.CaptureRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.pipeline.Capture(r.Context(), user.ID, req)
	if err != nil {
		if respondTextError(w, err) {
			return
		}
		h.logger.Error("capture_create_failed", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to create capture")
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

// ListCaptures lists captures for the authenticated user with pagination
func (h *CaptureHandler) ListCaptures(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	p := parsePage(r)
	captures, total, err := h.captures.ListByUser(r.Context(), user.ID, p.Size, p.offset())
	if err != nil {
		h.logger.Error("capture_list_failed", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve captures")
		return
	}
	if captures == nil {
		captures = []*models.Capture{}
	}
	respondJSON(w, http.StatusOK, ListCapturesResponse{Captures: captures, Pagination: newPagination(p, total)})
}

// GetCapture returns one capture with its thoughts.
func (h *CaptureHandler) GetCapture(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := pathID(w, r, "capture")
	if !ok {
		return
	}

	ctx := r.Context()
	c, err := h.captures.GetByID(ctx, user.ID, id)
	if err != nil {
		respondStoreError(w, err, "Capture", "retrieve")
		return
	}
	thoughts, err := h.thoughts.ListByCapture(ctx, user.ID, id)
	if err != nil {
		respondStoreError(w, err, "thoughts", "retrieve")
		return
	}
	if thoughts == nil {
		thoughts = []*models.StoredThought{}
	}
	respondJSON(w, http.StatusOK, capture.Result{Capture: c, Thoughts: thoughts})
}

// DeleteCapture deletes a capture and, through the foreign key, its thoughts.
func (h *CaptureHandler) DeleteCapture(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := pathID(w, r, "capture")
	if !ok {
		return
	}
	if err := h.captures.Delete(r.Context(), user.ID, id); err != nil {
		respondStoreError(w, err, "Capture", "delete")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReprocessCapture re-runs the current rules over a stored capture.
func (h *CaptureHandler) ReprocessCapture(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := pathID(w, r, "capture")
	if !ok {
		return
	}
	result, err := h.pipeline.Reprocess(r.Context(), user.ID, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondJSONError(w, http.StatusNotFound, "Not Found", "Capture not found")
			return
		}
		h.logger.Error("capture_reprocess_failed", zap.String("capture_id", id.String()), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to reprocess capture")
		return
	}
	respondJSON(w, http.StatusOK, result)
}
