package nlp

// HasTaskIndicators reports whether any task rule, weak or strong, fires.
func (e *Engine) HasTaskIndicators(segment string) bool {
	return e.rules.any(TagTask, TierWeak, segment) || e.rules.any(TagTask, TierStrong, segment)
}

// HasStrongTaskIndicators reports whether a strong task rule fires.
func (e *Engine) HasStrongTaskIndicators(segment string) bool {
	return e.rules.any(TagTask, TierStrong, segment)
}

// HasEventIndicators reports whether any event rule, weak or strong, fires.
func (e *Engine) HasEventIndicators(segment string) bool {
	return e.rules.any(TagEvent, TierWeak, segment) || e.rules.any(TagEvent, TierStrong, segment)
}

// HasStrongEventIndicators reports whether a strong event rule fires.
func (e *Engine) HasStrongEventIndicators(segment string) bool {
	return e.rules.any(TagEvent, TierStrong, segment)
}

// IsUncertainType reports whether segment shows weak signals of both a task
// and an event and no strong signal of either.
func (e *Engine) IsUncertainType(segment string) bool {
	if e.HasStrongTaskIndicators(segment) || e.HasStrongEventIndicators(segment) {
		return false
	}
	return e.rules.any(TagTask, TierWeak, segment) && e.rules.any(TagEvent, TierWeak, segment)
}

// hasEventSignal reports whether an event rule fires that does more than
// date the segment.
func (e *Engine) hasEventSignal(segment string) bool {
	return e.rules.anyEventSignal(segment)
}

// Classify decides the type and confidence of one segment. Ambiguous
// segments are uncertain; otherwise task signals win over event signals, and
// a specific time alone is enough for a high-confidence event. A bare date
// word on its own leaves the segment a note.
func (e *Engine) Classify(segment string, isSpecificTime bool) Classification {
	if e.IsUncertainType(segment) {
		return Classification{
			Type:          TypeUncertain,
			Confidence:    ConfidenceLow,
			PossibleTypes: []ThoughtType{TypeTask, TypeEvent},
		}
	}

	if e.HasTaskIndicators(segment) {
		confidence := ConfidenceMedium
		if e.HasStrongTaskIndicators(segment) {
			confidence = ConfidenceHigh
		}
		return Classification{Type: TypeTask, Confidence: confidence}
	}

	if e.hasEventSignal(segment) || isSpecificTime {
		confidence := ConfidenceMedium
		if isSpecificTime || e.HasStrongEventIndicators(segment) {
			confidence = ConfidenceHigh
		}
		return Classification{Type: TypeEvent, Confidence: confidence}
	}

	return Classification{Type: TypeNote, Confidence: ConfidenceMedium}
}
