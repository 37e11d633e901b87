// Package nlp turns freeform captured text into classified, structured
// thoughts using a deterministic rule table. It performs no I/O and reads no
// ambient clock: every date is resolved against the time passed in by the
// caller.
package nlp

import (
	"time"
)

// StrategyRules names the rule-based strategy in result metadata.
const StrategyRules = "rules"

// Engine runs the pipeline against one rule set. An Engine is immutable and
// safe for concurrent use.
type Engine struct {
	rules *RuleSet
}

var defaultEngine = &Engine{rules: MustParseRules(defaultRulesYAML)}

// NewEngine returns an engine backed by rules, or by the built-in table when
// rules is nil.
func NewEngine(rules *RuleSet) *Engine {
	if rules == nil {
		return defaultEngine
	}
	return &Engine{rules: rules}
}

// Default returns the engine built on the embedded rule table.
func Default() *Engine {
	return defaultEngine
}

// DefaultRules returns the embedded rule table.
func DefaultRules() *RuleSet {
	return defaultEngine.rules
}

// Rules returns the engine's rule set.
func (e *Engine) Rules() *RuleSet {
	return e.rules
}

// ProcessOption adjusts a single Process call.
type ProcessOption func(*processOptions)

type processOptions struct {
	model        string
	omitOriginal bool
}

// WithModel records the model the caller may consult for low-confidence
// thoughts. The engine itself never calls it.
func WithModel(model string) ProcessOption {
	return func(o *processOptions) { o.model = model }
}

// WithoutOriginalText leaves the input out of the result metadata.
func WithoutOriginalText() ProcessOption {
	return func(o *processOptions) { o.omitOriginal = true }
}

// Process cleans, segments, classifies and structures rawText, resolving
// relative dates against now. It never fails; empty input yields no thoughts
// and zero confidence.
func (e *Engine) Process(rawText string, now time.Time, opts ...ProcessOption) ProcessingResult {
	var o processOptions
	for _, opt := range opts {
		opt(&o)
	}
	start := time.Now()

	segments := e.Segments(rawText)
	thoughts := make([]Thought, 0, len(segments))
	for _, seg := range segments {
		c := e.ClassifySegment(seg.Source, now)
		thoughts = append(thoughts, e.Build(seg.Text, c, ExtractTimeInfo(seg.Text, now), ExtractEntities(seg.Text)))
	}
	thoughts = Dedupe(thoughts)

	meta := Metadata{
		ProcessingTimeMS: float64(time.Since(start).Microseconds()) / 1000,
		Strategy:         StrategyRules,
		Confidence:       MeanConfidence(thoughts),
		RulesVersion:     e.rules.Version(),
		Model:            o.model,
	}
	if !o.omitOriginal {
		meta.OriginalText = rawText
	}
	return ProcessingResult{Thoughts: thoughts, Metadata: meta}
}

// anchoredSpecificTime decides whether a specific time is strong enough to
// make the segment an event on its own. A bare date word ("today") is only
// enough when the segment also carries a clock time or an event signal
// other than a date word.
func (e *Engine) anchoredSpecificTime(segment string, ti TimeInfo) bool {
	if !ti.IsSpecific {
		return false
	}
	return ti.HasClockTime() || e.hasEventSignal(segment)
}

// ClassifySegment classifies one segment the way Process does, taking the
// specific-time signal from the segment's own time expressions. Pass a
// Segment's Source, not its Text, to match Process.
func (e *Engine) ClassifySegment(segment string, now time.Time) Classification {
	return e.Classify(segment, e.anchoredSpecificTime(segment, ExtractTimeInfo(segment, now)))
}

// Process runs the default engine.
func Process(rawText string, now time.Time, opts ...ProcessOption) ProcessingResult {
	return defaultEngine.Process(rawText, now, opts...)
}

// Clean runs the default engine's cleaner.
func Clean(text string) string {
	return defaultEngine.Clean(text)
}

// SplitIntoThoughts runs the default engine's segmenter.
func SplitIntoThoughts(text string) []string {
	return defaultEngine.SplitIntoThoughts(text)
}

// Classify runs the default engine's classifier.
func Classify(segment string, isSpecificTime bool) Classification {
	return defaultEngine.Classify(segment, isSpecificTime)
}

// Build runs the default engine's content builder.
func Build(segment string, c Classification, ti TimeInfo, entities Entities) Thought {
	return defaultEngine.Build(segment, c, ti, entities)
}

// Segments runs the default engine's segmenter, keeping each segment's source.
func Segments(text string) []Segment {
	return defaultEngine.Segments(text)
}

// HasTaskIndicators reports whether a default task rule fires on segment.
func HasTaskIndicators(segment string) bool { return defaultEngine.HasTaskIndicators(segment) }

// HasStrongTaskIndicators reports whether a default strong task rule fires on segment.
func HasStrongTaskIndicators(segment string) bool {
	return defaultEngine.HasStrongTaskIndicators(segment)
}

// HasEventIndicators reports whether a default event rule fires on segment.
func HasEventIndicators(segment string) bool { return defaultEngine.HasEventIndicators(segment) }

// HasStrongEventIndicators reports whether a default strong event rule fires on segment.
func HasStrongEventIndicators(segment string) bool {
	return defaultEngine.HasStrongEventIndicators(segment)
}

// IsUncertainType reports whether the default table finds segment ambiguous.
func IsUncertainType(segment string) bool { return defaultEngine.IsUncertainType(segment) }
