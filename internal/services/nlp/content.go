package nlp

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	maxTitleLength  = 50
	truncatedLength = 47
)

// Build assembles the thought for a classified segment.
func (e *Engine) Build(segment string, c Classification, ti TimeInfo, entities Entities) Thought {
	var content Content
	switch c.Type {
	case TypeTask:
		title := e.taskTitle(segment)
		content = TaskContent{
			Title:    title,
			DueDate:  ti.Date,
			DueTime:  firstNonEmpty(ti.Time, ti.StartTime),
			Priority: e.priority(segment),
			Details:  detailsBeyond(title, segment),
		}
	case TypeEvent:
		title := e.eventTitle(segment)
		ec := EventContent{
			Title:     title,
			Time:      ti.Time,
			Date:      ti.Date,
			StartTime: ti.StartTime,
			EndTime:   ti.EndTime,
			Details:   detailsBeyond(title, segment),
		}
		if len(entities.People) > 0 {
			ec.Person = entities.People[0].Name
		}
		if len(entities.Locations) > 0 {
			ec.Location = entities.Locations[0].Name
		}
		content = ec
	case TypeUncertain:
		content = UncertainContent{
			Title:           genericTitle(segment),
			SuggestedDate:   ti.Date,
			SuggestedAction: capitalize(e.rules.find(TagTaskTitle, segment)),
			Details:         segment,
		}
	default:
		content = NoteContent{
			Title:   genericTitle(segment),
			Details: segment,
		}
	}
	return NewThought(content, c.Confidence)
}

func (e *Engine) taskTitle(segment string) string {
	if m := e.rules.find(TagTaskTitle, segment); m != "" {
		return capitalize(m)
	}
	return genericTitle(segment)
}

func (e *Engine) eventTitle(segment string) string {
	if m := e.rules.find(TagEventTitle, segment); m != "" {
		return capitalize(strings.ToLower(m))
	}
	return genericTitle(segment)
}

func (e *Engine) priority(segment string) Priority {
	tier, ok := e.rules.firstTier(TagPriority, segment)
	if !ok {
		return PriorityMedium
	}
	if tier == TierHigh {
		return PriorityHigh
	}
	return PriorityLow
}

// genericTitle takes text up to the first sentence terminator, truncated to
// 47 runes plus an ellipsis when longer than 50.
func genericTitle(text string) string {
	title := text
	if i := strings.IndexAny(text, ".!?"); i > 0 {
		title = text[:i]
	}
	title = strings.TrimSpace(title)
	if utf8.RuneCountInString(title) > maxTitleLength {
		title = strings.TrimSpace(string([]rune(title)[:truncatedLength])) + "..."
	}
	return capitalize(title)
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// detailsBeyond keeps the segment as details only when the title does not
// already say everything.
func detailsBeyond(title, segment string) string {
	if strings.EqualFold(strings.TrimSpace(segment), title) {
		return ""
	}
	return segment
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
