package nlp

import (
	"regexp"
	"strings"
)

var (
	sentenceBoundaryRe = regexp.MustCompile(`[.!?]+(?:\s+|$)`)
	partBoundaryRe     = regexp.MustCompile(`(?i)\s*[,;]\s*(?:and\s+)?|\s+and\s+`)
	leftoverRe         = regexp.MustCompile(`(?i)^(?:at|on|by|around|from|until|the)?[\s,.]*$`)
)

// Segment is one candidate thought. Text is what the user sees; Source is
// the uncleaned part it came from, which keeps framing like "need to".
// Classify a segment on its Source to get the verdict Process gives.
type Segment struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

// SplitIntoThoughts splits text into ordered, non-empty candidate thoughts.
func (e *Engine) SplitIntoThoughts(text string) []string {
	segs := e.Segments(text)
	out := make([]string, len(segs))
	for i, s := range segs {
		out[i] = s.Text
	}
	return out
}

// Segments splits text like SplitIntoThoughts and keeps each segment's source.
func (e *Engine) Segments(text string) []Segment {
	text = normalizeMeridiem(collapseSpace(quoteReplacer.Replace(text)))
	var out []Segment
	for _, sentence := range sentenceBoundaryRe.Split(text, -1) {
		out = append(out, e.sentenceSegments(sentence)...)
	}
	return out
}

func (e *Engine) sentenceSegments(sentence string) []Segment {
	var parts []string
	for _, p := range partBoundaryRe.Split(sentence, -1) {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}

	// Meeting fragments borrow a time or date from their siblings first, so a
	// sibling that only carried that time is not emitted on its own.
	additions := make([]string, len(parts))
	absorbed := make([]bool, len(parts))
	for i, part := range parts {
		if !e.isMeetingFragment(part) {
			continue
		}
		additions[i] = e.borrowTime(parts, i, absorbed)
	}

	var out []Segment
	for i, part := range parts {
		if absorbed[i] && !e.isMeetingFragment(part) {
			continue
		}
		cleaned := e.Clean(part)
		var seg Segment
		switch {
		case e.isMeetingFragment(part):
			seg = Segment{Text: cleaned + additions[i], Source: part + additions[i]}
		case e.HasTaskIndicators(part) || !e.HasEventIndicators(part):
			seg = Segment{Text: e.stripObligation(cleaned), Source: part}
		default:
			seg = Segment{Text: cleaned, Source: part}
		}
		if strings.TrimSpace(seg.Text) == "" {
			continue
		}
		out = append(out, seg)
	}
	return out
}

func (e *Engine) isMeetingFragment(part string) bool {
	return e.rules.any(TagMeeting, TierNone, part)
}

// borrowTime returns the " at <time>" and " <date>" suffixes the fragment at
// index i takes from its siblings, marking siblings left empty as absorbed.
func (e *Engine) borrowTime(parts []string, i int, absorbed []bool) string {
	needTime := timePhrase(parts[i]) == ""
	needDate := datePhrase(parts[i]) == ""
	var suffix strings.Builder
	for j, sibling := range parts {
		if j == i || e.isMeetingFragment(sibling) || (!needTime && !needDate) {
			continue
		}
		rest := sibling
		took := false
		if needTime {
			if tp := timePhrase(sibling); tp != "" {
				suffix.WriteString(withPreposition(tp))
				rest = strings.Replace(rest, tp, "", 1)
				needTime, took = false, true
			}
		}
		if needDate {
			if dp := datePhrase(sibling); dp != "" {
				rest = strings.Replace(rest, dp, "", 1)
				if relativeDateRe.MatchString(dp) {
					dp = strings.ToLower(dp)
				}
				suffix.WriteString(" " + dp)
				needDate, took = false, true
			}
		}
		if took && leftoverRe.MatchString(strings.TrimSpace(rest)) {
			absorbed[j] = true
		}
	}
	return suffix.String()
}

func withPreposition(tp string) string {
	lower := strings.ToLower(tp)
	for _, p := range []string{"at ", "by ", "from ", "until "} {
		if strings.HasPrefix(lower, p) {
			return " " + tp
		}
	}
	return " at " + tp
}
