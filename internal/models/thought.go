package models

import (
	"time"

	"github.com/benvon/thought-capture/internal/services/nlp"
	"github.com/google/uuid"
)

// ThoughtStatus tracks who produced a stored thought's current content.
type ThoughtStatus string

const (
	ThoughtStatusRuleBased      ThoughtStatus = "rule_based"
	ThoughtStatusPendingLLM     ThoughtStatus = "pending_llm"
	ThoughtStatusLLMCategorized ThoughtStatus = "llm_categorized"
	ThoughtStatusLLMFallback    ThoughtStatus = "llm_fallback"
	ThoughtStatusUserEdited     ThoughtStatus = "user_edited"
)

// ThoughtStatuses lists every status.
var ThoughtStatuses = []ThoughtStatus{
	ThoughtStatusRuleBased, ThoughtStatusPendingLLM, ThoughtStatusLLMCategorized,
	ThoughtStatusLLMFallback, ThoughtStatusUserEdited,
}

// LLMUsage is the token and cost accounting of one categorization call.
type LLMUsage struct {
	Model            string  `json:"model,omitempty"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	CostUSD          float64 `json:"cost_usd"`
}

// StoredThought is a thought persisted under its capture.
type StoredThought struct {
	ID        uuid.UUID     `json:"id"`
	CaptureID uuid.UUID     `json:"capture_id"`
	UserID    uuid.UUID     `json:"user_id"`
	Position  int           `json:"position"`
	Thought   nlp.Thought   `json:"thought"`
	Status    ThoughtStatus `json:"status"`
	Usage     LLMUsage      `json:"usage"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// SourceText is the text the thought was built from, for re-categorization.
func (t *StoredThought) SourceText() string {
	switch c := t.Thought.Content.(type) {
	case nlp.TaskContent:
		if c.Details != "" {
			return c.Details
		}
	case nlp.EventContent:
		if c.Details != "" {
			return c.Details
		}
	case nlp.NoteContent:
		if c.Details != "" {
			return c.Details
		}
	case nlp.UncertainContent:
		if c.Details != "" {
			return c.Details
		}
	}
	return t.Thought.Title()
}

// CategorizationContext is a user's standing guidance for the categorization model.
type CategorizationContext struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	Hint          string    `json:"hint,omitempty"`
	PreferredTags []string  `json:"preferred_tags,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
