package nlp

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ThoughtType is the semantic kind of a thought.
type ThoughtType string

const (
	TypeTask      ThoughtType = "task"
	TypeEvent     ThoughtType = "event"
	TypeNote      ThoughtType = "note"
	TypeUncertain ThoughtType = "uncertain"
)

// ThoughtTypes lists every thought type.
var ThoughtTypes = []ThoughtType{TypeTask, TypeEvent, TypeNote, TypeUncertain}

// Valid reports whether t is one of the known thought types.
func (t ThoughtType) Valid() bool {
	switch t {
	case TypeTask, TypeEvent, TypeNote, TypeUncertain:
		return true
	}
	return false
}

// ConfidenceLevel grades a classification. high > medium > low.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// Valid reports whether c is one of the known confidence levels.
func (c ConfidenceLevel) Valid() bool {
	return c.rank() > 0
}

// Weight maps the level onto the numeric scale used for aggregate confidence.
func (c ConfidenceLevel) Weight() float64 {
	switch c {
	case ConfidenceHigh:
		return 1.0
	case ConfidenceMedium:
		return 0.7
	case ConfidenceLow:
		return 0.4
	}
	return 0
}

func (c ConfidenceLevel) rank() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	}
	return 0
}

// Less reports whether c ranks below other.
func (c ConfidenceLevel) Less(other ConfidenceLevel) bool {
	return c.rank() < other.rank()
}

// Priority of a task.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// TimeInfo is what the time extractor found in a piece of text.
type TimeInfo struct {
	Time       string `json:"time,omitempty"`
	Date       string `json:"date,omitempty"`
	StartTime  string `json:"start_time,omitempty"`
	EndTime    string `json:"end_time,omitempty"`
	IsSpecific bool   `json:"is_specific"`
}

// HasClockTime reports whether any clock time was found.
func (ti TimeInfo) HasClockTime() bool {
	return ti.Time != "" || ti.StartTime != ""
}

// PersonInfo is a candidate person name.
type PersonInfo struct {
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
}

// LocationInfo is a candidate place name.
type LocationInfo struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// Entities groups the extractor's findings. Slices are never nil.
type Entities struct {
	People        []PersonInfo   `json:"people"`
	Locations     []LocationInfo `json:"locations"`
	Organizations []string       `json:"organizations"`
}

// Content is the type-specific payload of a thought. The set of
// implementations is closed: TaskContent, EventContent, NoteContent and
// UncertainContent.
type Content interface {
	Kind() ThoughtType
	TitleText() string
	content()
}

// TaskContent is the payload of a task thought.
type TaskContent struct {
	Title    string   `json:"title"`
	DueDate  string   `json:"due_date,omitempty"`
	DueTime  string   `json:"due_time,omitempty"`
	Priority Priority `json:"priority,omitempty"`
	Details  string   `json:"details,omitempty"`
}

// EventContent is the payload of an event thought.
type EventContent struct {
	Title     string `json:"title"`
	Time      string `json:"time,omitempty"`
	Date      string `json:"date,omitempty"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
	Person    string `json:"person,omitempty"`
	Location  string `json:"location,omitempty"`
	Details   string `json:"details,omitempty"`
}

// NoteContent is the payload of a note thought.
type NoteContent struct {
	Title   string   `json:"title"`
	Tags    []string `json:"tags,omitempty"`
	Details string   `json:"details,omitempty"`
}

// UncertainContent is the payload of a thought that could be a task or an event.
type UncertainContent struct {
	Title           string `json:"title"`
	SuggestedDate   string `json:"suggested_date,omitempty"`
	SuggestedAction string `json:"suggested_action,omitempty"`
	Details         string `json:"details,omitempty"`
}

func (TaskContent) Kind() ThoughtType      { return TypeTask }
func (EventContent) Kind() ThoughtType     { return TypeEvent }
func (NoteContent) Kind() ThoughtType      { return TypeNote }
func (UncertainContent) Kind() ThoughtType { return TypeUncertain }

func (c TaskContent) TitleText() string      { return c.Title }
func (c EventContent) TitleText() string     { return c.Title }
func (c NoteContent) TitleText() string      { return c.Title }
func (c UncertainContent) TitleText() string { return c.Title }

func (TaskContent) content()      {}
func (EventContent) content()     {}
func (NoteContent) content()      {}
func (UncertainContent) content() {}

// Classification is the classifier's verdict on one segment.
type Classification struct {
	Type          ThoughtType     `json:"thought_type"`
	Confidence    ConfidenceLevel `json:"confidence"`
	PossibleTypes []ThoughtType   `json:"possible_types,omitempty"`
}

// Thought is one classified, structured unit of captured text. Its type is
// always the kind of its content.
type Thought struct {
	Confidence    ConfidenceLevel
	PossibleTypes []ThoughtType
	Content       Content
}

// NewThought builds a thought around content. Uncertain thoughts always carry
// exactly {task, event} as possible types; other kinds carry none.
func NewThought(content Content, confidence ConfidenceLevel) Thought {
	t := Thought{Confidence: confidence, Content: content}
	if content != nil && content.Kind() == TypeUncertain {
		t.PossibleTypes = []ThoughtType{TypeTask, TypeEvent}
	}
	return t
}

// Type is the kind of the thought's content.
func (t Thought) Type() ThoughtType {
	if t.Content == nil {
		return ""
	}
	return t.Content.Kind()
}

// Title is the thought's generated title.
func (t Thought) Title() string {
	if t.Content == nil {
		return ""
	}
	return t.Content.TitleText()
}

var (
	ErrMissingContent     = errors.New("thought has no content")
	ErrInvalidConfidence  = errors.New("invalid confidence level")
	ErrInvalidThoughtType = errors.New("invalid thought type")
	ErrEmptyTitle         = errors.New("thought title is empty")
	ErrPossibleTypes      = errors.New("possible types must be exactly task and event for uncertain thoughts and empty otherwise")
)

// Validate checks a thought that arrived from outside the engine.
func (t Thought) Validate() error {
	if t.Content == nil {
		return ErrMissingContent
	}
	if !t.Confidence.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidConfidence, t.Confidence)
	}
	if t.Title() == "" {
		return ErrEmptyTitle
	}
	if t.Type() == TypeUncertain {
		if len(t.PossibleTypes) != 2 || !hasType(t.PossibleTypes, TypeTask) || !hasType(t.PossibleTypes, TypeEvent) {
			return ErrPossibleTypes
		}
	} else if len(t.PossibleTypes) != 0 {
		return ErrPossibleTypes
	}
	return nil
}

func hasType(types []ThoughtType, want ThoughtType) bool {
	for _, t := range types {
		if t == want {
			return true
		}
	}
	return false
}

type thoughtJSON struct {
	ThoughtType      ThoughtType     `json:"thought_type"`
	Confidence       ConfidenceLevel `json:"confidence"`
	PossibleTypes    []ThoughtType   `json:"possible_types,omitempty"`
	ProcessedContent json.RawMessage `json:"processed_content"`
}

// MarshalJSON emits the thought with its type tag next to the content.
func (t Thought) MarshalJSON() ([]byte, error) {
	if t.Content == nil {
		return nil, ErrMissingContent
	}
	content, err := json.Marshal(t.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal content: %w", err)
	}
	return json.Marshal(thoughtJSON{
		ThoughtType:      t.Type(),
		Confidence:       t.Confidence,
		PossibleTypes:    t.PossibleTypes,
		ProcessedContent: content,
	})
}

// UnmarshalJSON decodes content according to the thought_type tag.
func (t *Thought) UnmarshalJSON(data []byte) error {
	var raw thoughtJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	content, err := DecodeContent(raw.ThoughtType, raw.ProcessedContent)
	if err != nil {
		return err
	}
	t.Confidence = raw.Confidence
	t.PossibleTypes = raw.PossibleTypes
	t.Content = content
	return nil
}

// DecodeContent decodes a processed_content payload of the given type.
func DecodeContent(thoughtType ThoughtType, data []byte) (Content, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, ErrMissingContent
	}
	var (
		content Content
		err     error
	)
	switch thoughtType {
	case TypeTask:
		var c TaskContent
		err = json.Unmarshal(data, &c)
		content = c
	case TypeEvent:
		var c EventContent
		err = json.Unmarshal(data, &c)
		content = c
	case TypeNote:
		var c NoteContent
		err = json.Unmarshal(data, &c)
		content = c
	case TypeUncertain:
		var c UncertainContent
		err = json.Unmarshal(data, &c)
		content = c
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidThoughtType, thoughtType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s content: %w", thoughtType, err)
	}
	return content, nil
}

// Metadata describes one engine run.
type Metadata struct {
	ProcessingTimeMS float64 `json:"processing_time_ms"`
	Strategy         string  `json:"strategy"`
	OriginalText     string  `json:"original_text,omitempty"`
	Confidence       float64 `json:"confidence"`
	RulesVersion     string  `json:"rules_version"`
	Model            string  `json:"model,omitempty"`
}

// ProcessingResult is the output of Process.
type ProcessingResult struct {
	Thoughts []Thought `json:"thoughts"`
	Metadata Metadata  `json:"metadata"`
}

// MeanConfidence averages the confidence weights of thoughts, 0 when empty.
func MeanConfidence(thoughts []Thought) float64 {
	if len(thoughts) == 0 {
		return 0
	}
	var sum float64
	for _, t := range thoughts {
		sum += t.Confidence.Weight()
	}
	return sum / float64(len(thoughts))
}
