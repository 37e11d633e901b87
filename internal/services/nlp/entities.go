package nlp

import (
	"regexp"
	"strings"
)

const (
	roleParticipant = "participant"
	locationVenue   = "venue"
)

var (
	relationalNameRe = regexp.MustCompile(`\b(?:[Mm]eeting [Ww]ith|[Mm]eet [Ww]ith|[Mm]eet|[Ww]ith)\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)`)
	capitalizedRe    = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)?\b`)
	locationRe       = regexp.MustCompile(`\b(?:[Aa]t|[Ii]n)\s+(?:the\s+)?([A-Z][A-Za-z']*(?:\s+[A-Z][A-Za-z']*)*)`)
	followedByMarker = regexp.MustCompile(`(?i)^\s*(?:am|pm)\b`)
	organizationRe   = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)+\b`)
)

// nameStopwords are capitalized words that are never names on their own:
// pronouns, calendar words and the sentence-initial verbs and nouns common in
// captured thoughts.
var nameStopwords = toSet(
	"i", "i'm", "i'll", "i've", "me", "my", "we", "our", "you", "the", "a", "an", "this", "that",
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
	"january", "february", "march", "april", "may", "june", "july", "august",
	"september", "october", "november", "december",
	"today", "tomorrow", "tonight", "next", "also", "then", "and", "but", "so", "well",
	"um", "hey", "ok", "okay", "please", "remember", "remind", "need", "have", "must", "should",
	"meeting", "meet", "call", "appointment", "session", "interview", "lunch", "dinner", "breakfast",
	"create", "make", "finish", "complete", "do", "send", "update", "fix", "add", "remove",
	"write", "read", "review", "check", "buy", "get", "pick", "email", "text", "ask", "tell",
)

func toSet(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

// ExtractEntities finds candidate people, locations and organizations by
// capitalization and nearby keywords. The three scans are independent.
func ExtractEntities(text string) Entities {
	return Entities{
		People:        extractPeople(text),
		Locations:     extractLocations(text),
		Organizations: extractOrganizations(text),
	}
}

func extractPeople(text string) []PersonInfo {
	people := []PersonInfo{}
	seen := make(map[string]bool)
	add := func(name, role string) {
		name = dropStopwords(name)
		if name == "" || seen[strings.ToLower(name)] {
			return
		}
		seen[strings.ToLower(name)] = true
		people = append(people, PersonInfo{Name: name, Role: role})
	}

	for _, m := range relationalNameRe.FindAllStringSubmatch(text, -1) {
		add(m[1], roleParticipant)
	}
	for _, m := range capitalizedRe.FindAllString(text, -1) {
		add(m, "")
	}
	return people
}

func extractLocations(text string) []LocationInfo {
	locations := []LocationInfo{}
	seen := make(map[string]bool)
	for _, loc := range locationRe.FindAllStringSubmatchIndex(text, -1) {
		if followedByMarker.MatchString(text[loc[1]:]) {
			continue
		}
		name := text[loc[2]:loc[3]]
		if allStopwords(name) || seen[strings.ToLower(name)] {
			continue
		}
		seen[strings.ToLower(name)] = true
		locations = append(locations, LocationInfo{Name: name, Type: locationVenue})
	}
	return locations
}

// extractOrganizations does not exclude spans already claimed as people or
// locations; callers relying on the combined output see the overlap.
func extractOrganizations(text string) []string {
	orgs := []string{}
	seen := make(map[string]bool)
	for _, m := range organizationRe.FindAllString(text, -1) {
		key := strings.ToLower(m)
		if seen[key] {
			continue
		}
		seen[key] = true
		orgs = append(orgs, m)
	}
	return orgs
}

func dropStopwords(phrase string) string {
	words := strings.Fields(phrase)
	kept := words[:0]
	for _, w := range words {
		if !nameStopwords[strings.ToLower(w)] {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

func allStopwords(phrase string) bool {
	return dropStopwords(phrase) == ""
}
