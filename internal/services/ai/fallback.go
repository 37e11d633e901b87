package ai

import (
	"context"

	"github.com/benvon/thought-capture/internal/services/nlp"
)

// FallbackTitle titles thoughts the model could not categorize.
const FallbackTitle = "Unprocessed thought"

// Fallback is the result used when categorization fails: a low-confidence
// note carrying the raw text, with no usage.
func Fallback(rawText string) *Categorization {
	return &Categorization{
		Thought: nlp.NewThought(nlp.NoteContent{Title: FallbackTitle, Details: rawText}, nlp.ConfidenceLow),
	}
}

// CategorizeWithFallback categorizes req and substitutes Fallback on any
// error. The error is still returned so callers can log or retry it.
func CategorizeWithFallback(ctx context.Context, c Categorizer, req CategorizationRequest) (*Categorization, error) {
	result, err := c.CategorizeThought(ctx, req)
	if err != nil {
		return Fallback(req.Text), err
	}
	return result, nil
}
