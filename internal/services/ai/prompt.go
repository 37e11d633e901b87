package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/benvon/thought-capture/internal/services/nlp"
)

const systemPrompt = `You categorize one short captured thought. Answer with a single JSON object only:
{"thought_type": "task"|"event"|"note"|"uncertain", "confidence": "high"|"medium"|"low", "processed_content": {...}}
processed_content by type:
- task: {"title", "due_date"?, "due_time"?, "priority": "high"|"medium"|"low", "details"?}
- event: {"title", "date"?, "time"?, "start_time"?, "end_time"?, "location"?, "person"?, "details"?}
- note: {"title", "tags"?: [string], "details"?}
- uncertain: {"title", "suggested_date"?, "suggested_action"?, "details"?}
Dates are YYYY-MM-DD, times are "hh:mm AM" or "hh:mm PM". Titles are at most 50 characters.`

// buildCategorizationPrompt renders the user message for one thought.
func buildCategorizationPrompt(req CategorizationRequest) string {
	var b strings.Builder
	if hint := strings.TrimSpace(req.Hint); hint != "" {
		b.WriteString("User guidance: ")
		b.WriteString(hint)
		b.WriteString("\n")
	}
	if len(req.PreferredTags) > 0 {
		b.WriteString("Prefer these tags for notes when they fit: ")
		b.WriteString(strings.Join(req.PreferredTags, ", "))
		b.WriteString("\n")
	}
	b.WriteString("Thought: ")
	b.WriteString(req.Text)
	return b.String()
}

// parseCategorization decodes a model answer into a valid thought. Prose
// around the JSON object is tolerated; anything else is ErrMalformedResponse.
func parseCategorization(content, rawText string) (nlp.Thought, error) {
	raw := strings.TrimSpace(content)
	if !strings.HasPrefix(raw, "{") {
		start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}")
		if start == -1 || end <= start {
			return nlp.Thought{}, fmt.Errorf("%w: no JSON object", ErrMalformedResponse)
		}
		raw = raw[start : end+1]
	}

	var decoded nlp.Thought
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nlp.Thought{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	// Possible types follow from the content kind, whatever the model sent.
	t := nlp.NewThought(withDetails(decoded.Content, rawText), decoded.Confidence)
	if err := t.Validate(); err != nil {
		return nlp.Thought{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return t, nil
}

// withDetails keeps the captured text on the thought when the model dropped it.
func withDetails(c nlp.Content, rawText string) nlp.Content {
	switch v := c.(type) {
	case nlp.TaskContent:
		if v.Details == "" {
			v.Details = rawText
		}
		if v.Priority == "" {
			v.Priority = nlp.PriorityMedium
		}
		return v
	case nlp.EventContent:
		if v.Details == "" {
			v.Details = rawText
		}
		return v
	case nlp.NoteContent:
		if v.Details == "" {
			v.Details = rawText
		}
		return v
	case nlp.UncertainContent:
		if v.Details == "" {
			v.Details = rawText
		}
		return v
	}
	return c
}

// modelPrices are USD per million prompt and completion tokens.
var modelPrices = map[string][2]float64{
	"gpt-4o-mini":  {0.15, 0.60},
	"gpt-4o":       {2.50, 10.00},
	"gpt-4.1-mini": {0.40, 1.60},
	"gpt-4.1-nano": {0.10, 0.40},
	"gpt-4.1":      {2.00, 8.00},
}

// estimateCost prices a call; unknown models cost 0.
func estimateCost(model string, promptTokens, completionTokens int) float64 {
	p, ok := modelPrices[model]
	if !ok {
		return 0
	}
	return (float64(promptTokens)*p[0] + float64(completionTokens)*p[1]) / 1e6
}
