package handlers

import (
	"net/http"

	"github.com/benvon/thought-capture/internal/services/capture"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// NLPHandler exposes the engine without persistence.
type NLPHandler struct {
	pipeline CapturePipeline
	logger   *zap.Logger
}

// NewNLPHandler creates a new engine preview handler
func NewNLPHandler(pipeline CapturePipeline, logger *zap.Logger) *NLPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NLPHandler{pipeline: pipeline, logger: logger}
}

// RegisterRoutes registers engine routes on the given router
// The router should already have the /nlp prefix
func (h *NLPHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/process", h.Process).Methods(http.MethodPost)
	r.HandleFunc("/segments", h.Segments).Methods(http.MethodPost)
}

// TextRequest carries text for a stateless engine call.
type TextRequest struct {
	Text string `json:"text" validate:"required"`
}

// SegmentsResponse lists candidate thoughts in source order.
type SegmentsResponse struct {
	Segments []capture.Segment `json:"segments"`
}

// Process returns what a capture of the text would produce.
func (h *NLPHandler) Process(w http.ResponseWriter, r *http.Request) {
	var req TextRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.pipeline.Preview(r.Context(), req.Text)
	if err != nil {
		if respondTextError(w, err) {
			return
		}
		h.logger.Error("nlp_preview_failed", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to process text")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Segments splits the text and flags each segment.
func (h *NLPHandler) Segments(w http.ResponseWriter, r *http.Request) {
	var req TextRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	segments, err := h.pipeline.Segments(req.Text)
	if err != nil {
		if respondTextError(w, err) {
			return
		}
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to segment text")
		return
	}
	respondJSON(w, http.StatusOK, SegmentsResponse{Segments: segments})
}
