package nlp

import (
	"strings"
)

var quoteReplacer = strings.NewReplacer("’", "'", "‘", "'")

// Clean strips leading fillers and first-person framing, then collapses
// whitespace. Clean(Clean(s)) == Clean(s).
func (e *Engine) Clean(text string) string {
	s := collapseSpace(quoteReplacer.Replace(text))
	for {
		prev := s
		s = e.rules.trimPrefix(TagFiller, s)
		s = e.rules.trimPrefix(TagFraming, s)
		s = strings.TrimLeft(s, " ,;:-")
		if s == prev {
			return s
		}
	}
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// stripObligation removes a leading "need to"/"have to"/"must"/"should".
func (e *Engine) stripObligation(s string) string {
	return strings.TrimSpace(e.rules.trimPrefix(TagObligation, s))
}
