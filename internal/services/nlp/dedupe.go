package nlp

import (
	"strings"
)

const minSharedWordLength = 4

// Dedupe merges thoughts of the same type whose titles are similar, keeping
// the first position and preferring a high-confidence newcomer over a
// weaker incumbent. Dedupe(Dedupe(ts)) equals Dedupe(ts).
func Dedupe(thoughts []Thought) []Thought {
	out := dedupePass(thoughts)
	// A replacement can make a kept title similar to a later one.
	for len(out) < len(thoughts) {
		thoughts = out
		out = dedupePass(thoughts)
	}
	return out
}

func dedupePass(thoughts []Thought) []Thought {
	out := make([]Thought, 0, len(thoughts))
	for _, t := range thoughts {
		merged := false
		for i, kept := range out {
			if kept.Type() != t.Type() || !similarTitles(kept.Title(), t.Title()) {
				continue
			}
			if t.Confidence == ConfidenceHigh && kept.Confidence != ConfidenceHigh {
				out[i] = t
			}
			merged = true
			break
		}
		if !merged {
			out = append(out, t)
		}
	}
	return out
}

func normalizeTitle(title string) string {
	return strings.ToLower(collapseSpace(title))
}

func similarTitles(a, b string) bool {
	a, b = normalizeTitle(a), normalizeTitle(b)
	if a == b {
		return true
	}
	if a == "" || b == "" {
		return false
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}
	return sharedLongWords(a, b) >= 2
}

func sharedLongWords(a, b string) int {
	words := make(map[string]bool)
	for _, w := range strings.Fields(a) {
		if len(w) >= minSharedWordLength {
			words[w] = true
		}
	}
	shared := 0
	for _, w := range strings.Fields(b) {
		if words[w] {
			shared++
			delete(words, w)
		}
	}
	return shared
}
