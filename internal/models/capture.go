package models

import (
	"time"

	"github.com/google/uuid"
)

// CaptureSource says how the text was captured.
type CaptureSource string

const (
	CaptureSourceSpeech CaptureSource = "speech"
	CaptureSourceTyped  CaptureSource = "typed"
)

// Capture is one block of raw captured text and the summary of its engine run.
type Capture struct {
	ID               uuid.UUID     `json:"id"`
	UserID           uuid.UUID     `json:"user_id"`
	RawText          string        `json:"raw_text"`
	Source           CaptureSource `json:"source"`
	Model            string        `json:"model,omitempty"`
	RulesVersion     string        `json:"rules_version"`
	Confidence       float64       `json:"confidence"`
	ProcessingTimeMS float64       `json:"processing_time_ms"`
	ThoughtCount     int           `json:"thought_count"`
	// CapturedAt is the clock reading relative dates were resolved against.
	CapturedAt time.Time `json:"captured_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
