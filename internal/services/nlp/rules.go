package nlp

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"regexp"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// Tag groups rules by the decision they feed.
type Tag string

const (
	TagFiller     Tag = "filler"
	TagFraming    Tag = "framing"
	TagObligation Tag = "obligation"
	TagTask       Tag = "task"
	TagEvent      Tag = "event"
	TagMeeting    Tag = "meeting"
	TagTaskTitle  Tag = "task_title"
	TagEventTitle Tag = "event_title"
	TagPriority   Tag = "priority"
)

// Tier grades a rule within its tag.
type Tier string

const (
	TierNone   Tier = ""
	TierWeak   Tier = "weak"
	TierStrong Tier = "strong"
	TierHigh   Tier = "high"
	TierLow    Tier = "low"
)

// Rule is one declarative entry of a rule table.
type Rule struct {
	Name          string `yaml:"name" json:"name"`
	Tag           Tag    `yaml:"tag" json:"tag"`
	Tier          Tier   `yaml:"tier,omitempty" json:"tier,omitempty"`
	Pattern       string `yaml:"pattern" json:"pattern"`
	Requires      string `yaml:"requires,omitempty" json:"requires,omitempty"`
	Unless        string `yaml:"unless,omitempty" json:"unless,omitempty"`
	CaseSensitive bool   `yaml:"case_sensitive,omitempty" json:"case_sensitive,omitempty"`
	// DateOnly marks a weak event rule that only dates a segment.
	DateOnly bool `yaml:"date_only,omitempty" json:"date_only,omitempty"`
}

type ruleTable struct {
	Version string `yaml:"version"`
	Rules   []Rule `yaml:"rules"`
}

type compiledRule struct {
	Rule
	re       *regexp.Regexp
	requires *regexp.Regexp
	unless   *regexp.Regexp
}

func (r *compiledRule) match(text string) bool {
	if !r.re.MatchString(text) {
		return false
	}
	if r.requires != nil && !r.requires.MatchString(text) {
		return false
	}
	if r.unless != nil && r.unless.MatchString(text) {
		return false
	}
	return true
}

// RuleSet is a compiled, immutable rule table. It is safe for concurrent use.
type RuleSet struct {
	version string
	rules   []*compiledRule
	byTag   map[Tag][]*compiledRule
}

var validTiers = map[Tag][]Tier{
	TagFiller:     {TierNone},
	TagFraming:    {TierNone},
	TagObligation: {TierNone},
	TagTask:       {TierWeak, TierStrong},
	TagEvent:      {TierWeak, TierStrong},
	TagMeeting:    {TierNone},
	TagTaskTitle:  {TierNone},
	TagEventTitle: {TierNone},
	TagPriority:   {TierHigh, TierLow},
}

// ErrInvalidRules is wrapped by every rule table loading failure.
var ErrInvalidRules = errors.New("invalid rule table")

// LoadRules reads and compiles a YAML rule table.
func LoadRules(r io.Reader) (*RuleSet, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule table: %w", err)
	}
	return ParseRules(data)
}

// ParseRules compiles a YAML rule table. Every tag/tier pair the engine
// consults must have at least one rule.
func ParseRules(data []byte) (*RuleSet, error) {
	var table ruleTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}
	if table.Version == "" {
		return nil, fmt.Errorf("%w: missing version", ErrInvalidRules)
	}

	rs := &RuleSet{
		version: table.Version,
		byTag:   make(map[Tag][]*compiledRule),
	}
	seen := make(map[string]bool, len(table.Rules))
	for i, rule := range table.Rules {
		if rule.Name == "" {
			return nil, fmt.Errorf("%w: rule %d has no name", ErrInvalidRules, i)
		}
		if seen[rule.Name] {
			return nil, fmt.Errorf("%w: duplicate rule name %q", ErrInvalidRules, rule.Name)
		}
		seen[rule.Name] = true

		tiers, ok := validTiers[rule.Tag]
		if !ok {
			return nil, fmt.Errorf("%w: rule %q has unknown tag %q", ErrInvalidRules, rule.Name, rule.Tag)
		}
		if !containsTier(tiers, rule.Tier) {
			return nil, fmt.Errorf("%w: rule %q has tier %q not valid for tag %q", ErrInvalidRules, rule.Name, rule.Tier, rule.Tag)
		}
		if rule.DateOnly && (rule.Tag != TagEvent || rule.Tier != TierWeak) {
			return nil, fmt.Errorf("%w: rule %q: date_only applies to weak event rules", ErrInvalidRules, rule.Name)
		}

		compiled, err := compileRule(rule)
		if err != nil {
			return nil, fmt.Errorf("%w: rule %q: %v", ErrInvalidRules, rule.Name, err)
		}
		rs.rules = append(rs.rules, compiled)
		rs.byTag[rule.Tag] = append(rs.byTag[rule.Tag], compiled)
	}

	for tag, tiers := range validTiers {
		for _, tier := range tiers {
			if !rs.hasTier(tag, tier) {
				return nil, fmt.Errorf("%w: no rule for tag %q tier %q", ErrInvalidRules, tag, tier)
			}
		}
	}
	return rs, nil
}

// MustParseRules is ParseRules for tables known to be valid at init time.
func MustParseRules(data []byte) *RuleSet {
	rs, err := ParseRules(data)
	if err != nil {
		panic(err)
	}
	return rs
}

func compileRule(rule Rule) (*compiledRule, error) {
	pattern := rule.Pattern
	if pattern == "" {
		return nil, errors.New("empty pattern")
	}
	if !rule.CaseSensitive {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("pattern: %w", err)
	}
	compiled := &compiledRule{Rule: rule, re: re}
	if rule.Requires != "" {
		if compiled.requires, err = regexp.Compile("(?i)" + rule.Requires); err != nil {
			return nil, fmt.Errorf("requires: %w", err)
		}
	}
	if rule.Unless != "" {
		if compiled.unless, err = regexp.Compile("(?i)" + rule.Unless); err != nil {
			return nil, fmt.Errorf("unless: %w", err)
		}
	}
	return compiled, nil
}

func containsTier(tiers []Tier, tier Tier) bool {
	for _, t := range tiers {
		if t == tier {
			return true
		}
	}
	return false
}

func (rs *RuleSet) hasTier(tag Tag, tier Tier) bool {
	for _, r := range rs.byTag[tag] {
		if r.Tier == tier {
			return true
		}
	}
	return false
}

// Version reports the table's version string.
func (rs *RuleSet) Version() string {
	return rs.version
}

// Rules returns a copy of the table in evaluation order.
func (rs *RuleSet) Rules() []Rule {
	out := make([]Rule, len(rs.rules))
	for i, r := range rs.rules {
		out[i] = r.Rule
	}
	return out
}

// Matching returns the names of the rules for tag that fire on text.
func (rs *RuleSet) Matching(tag Tag, text string) []string {
	var names []string
	for _, r := range rs.byTag[tag] {
		if r.match(text) {
			names = append(names, r.Name)
		}
	}
	return names
}

// any reports whether a rule with the given tag and tier fires on text.
func (rs *RuleSet) any(tag Tag, tier Tier, text string) bool {
	for _, r := range rs.byTag[tag] {
		if r.Tier == tier && r.match(text) {
			return true
		}
	}
	return false
}

// anyEventSignal reports whether an event rule that is not date_only fires on text.
func (rs *RuleSet) anyEventSignal(text string) bool {
	for _, r := range rs.byTag[TagEvent] {
		if !r.DateOnly && r.match(text) {
			return true
		}
	}
	return false
}

// firstTier returns the tier of the first rule for tag that fires on text.
func (rs *RuleSet) firstTier(tag Tag, text string) (Tier, bool) {
	for _, r := range rs.byTag[tag] {
		if r.match(text) {
			return r.Tier, true
		}
	}
	return TierNone, false
}

// find returns the leftmost match of the first firing rule for tag.
func (rs *RuleSet) find(tag Tag, text string) string {
	for _, r := range rs.byTag[tag] {
		if !r.match(text) {
			continue
		}
		if m := r.re.FindString(text); m != "" {
			return m
		}
	}
	return ""
}

// trimPrefix strips a leading match of any rule for tag.
func (rs *RuleSet) trimPrefix(tag Tag, text string) string {
	for _, r := range rs.byTag[tag] {
		loc := r.re.FindStringIndex(text)
		if loc != nil && loc[0] == 0 && loc[1] > 0 {
			return text[loc[1]:]
		}
	}
	return text
}
