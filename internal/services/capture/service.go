// Package capture runs captured text through the rule engine, stores the
// resulting thoughts and routes the ones the rules are unsure about to the
// categorization model.
package capture

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/benvon/thought-capture/internal/config"
	"github.com/benvon/thought-capture/internal/database"
	"github.com/benvon/thought-capture/internal/logger"
	"github.com/benvon/thought-capture/internal/models"
	"github.com/benvon/thought-capture/internal/queue"
	"github.com/benvon/thought-capture/internal/services/ai"
	"github.com/benvon/thought-capture/internal/services/nlp"
	"github.com/benvon/thought-capture/internal/telemetry"
	"github.com/benvon/thought-capture/internal/validation"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var (
	// ErrEmptyText means nothing was left to process after sanitizing.
	ErrEmptyText = errors.New("capture text is empty")
	// ErrTextTooLong means the text exceeds the configured maximum length.
	ErrTextTooLong = errors.New("capture text is too long")
)

// Clock returns the current time. It is the only source of "now" for the engine.
type Clock func() time.Time

// CaptureRequest is one block of captured text.
type CaptureRequest struct {
	Text   string               `json:"text" validate:"required"`
	Source models.CaptureSource `json:"source,omitempty" validate:"omitempty,capture_source"`
	// Model overrides the configured categorization model for this capture.
	Model string `json:"model,omitempty" validate:"omitempty,max=100"`
}

// Result is a stored capture and its thoughts in position order.
type Result struct {
	Capture  *models.Capture         `json:"capture"`
	Thoughts []*models.StoredThought `json:"thoughts"`
}

// Options wires a Service. Queue is only needed in async mode and
// Categorizer only when the mode is not off.
type Options struct {
	Engine       *nlp.Engine
	Captures     database.CaptureStore
	Thoughts     database.ThoughtStore
	Contexts     database.CategorizationContextStore
	Queue        queue.JobQueue
	Categorizer  ai.Categorizer
	Mode         config.LLMMode
	Threshold    float64
	MaxLength    int
	DefaultModel string
	Clock        Clock
	Logger       *zap.Logger
}

// Service is the capture pipeline.
type Service struct {
	engine       *nlp.Engine
	captures     database.CaptureStore
	thoughts     database.ThoughtStore
	contexts     database.CategorizationContextStore
	queue        queue.JobQueue
	categorizer  ai.Categorizer
	mode         config.LLMMode
	threshold    float64
	maxLength    int
	defaultModel string
	clock        Clock
	logger       *zap.Logger
}

// NewService creates a capture service
func NewService(opts Options) *Service {
	s := &Service{
		engine:       opts.Engine,
		captures:     opts.Captures,
		thoughts:     opts.Thoughts,
		contexts:     opts.Contexts,
		queue:        opts.Queue,
		categorizer:  opts.Categorizer,
		mode:         opts.Mode,
		threshold:    opts.Threshold,
		maxLength:    opts.MaxLength,
		defaultModel: opts.DefaultModel,
		clock:        opts.Clock,
		logger:       opts.Logger,
	}
	if s.engine == nil {
		s.engine = nlp.Default()
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.mode == "" {
		s.mode = config.LLMModeOff
	}
	// Without a categorizer (or a queue for async) there is nowhere to route.
	if s.categorizer == nil && s.mode == config.LLMModeSync {
		s.mode = config.LLMModeOff
	}
	if s.queue == nil && s.mode == config.LLMModeAsync {
		s.mode = config.LLMModeOff
	}
	return s
}

// Mode is the effective LLM routing mode.
func (s *Service) Mode() config.LLMMode {
	return s.mode
}

// NeedsLLM reports whether the rules are too unsure of t to keep it as is.
func NeedsLLM(t nlp.Thought, threshold float64) bool {
	return t.Type() == nlp.TypeUncertain || t.Confidence.Weight() < threshold
}

// prepare sanitizes text and enforces the length limit.
func (s *Service) prepare(text string) (string, error) {
	text = validation.SanitizeText(text)
	if text == "" {
		return "", ErrEmptyText
	}
	if s.maxLength > 0 && utf8.RuneCountInString(text) > s.maxLength {
		return "", fmt.Errorf("%w: %d characters, limit %d", ErrTextTooLong, utf8.RuneCountInString(text), s.maxLength)
	}
	return text, nil
}

// Capture processes, stores and routes one capture.
func (s *Service) Capture(ctx context.Context, userID uuid.UUID, req CaptureRequest) (result *Result, err error) {
	ctx, span := telemetry.StartSpan(ctx, "capture.create", attribute.String("llm_mode", string(s.mode)))
	defer func() { telemetry.EndSpan(span, err) }()

	text, err := s.prepare(req.Text)
	if err != nil {
		return nil, err
	}
	source := req.Source
	if source == "" {
		source = models.CaptureSourceTyped
	}
	model := s.modelFor(req.Model)

	now := s.clock()
	res := s.engine.Process(text, now, nlp.WithModel(model), nlp.WithoutOriginalText())
	c := &models.Capture{
		ID:               uuid.New(),
		UserID:           userID,
		RawText:          text,
		Source:           source,
		Model:            model,
		RulesVersion:     res.Metadata.RulesVersion,
		Confidence:       res.Metadata.Confidence,
		ProcessingTimeMS: res.Metadata.ProcessingTimeMS,
		CapturedAt:       now,
	}
	thoughts := toStored(res.Thoughts, 0)
	if s.mode == config.LLMModeSync {
		s.categorizeInline(ctx, userID, model, thoughts)
	}
	pending := s.markPending(thoughts)

	if err := s.captures.Create(ctx, c, thoughts); err != nil {
		return nil, fmt.Errorf("failed to store capture: %w", err)
	}
	s.enqueue(ctx, c, model, pending)

	s.logger.Info("capture_processed",
		zap.String("capture_id", c.ID.String()),
		zap.String("user_id", logger.SanitizeUserID(userID.String())),
		zap.String("source", string(source)),
		zap.Int("thought_count", len(thoughts)),
		zap.Int("pending_llm", len(pending)),
		zap.Float64("confidence", c.Confidence),
		zap.Float64("processing_time_ms", c.ProcessingTimeMS),
	)
	return &Result{Capture: c, Thoughts: thoughts}, nil
}

// Preview runs the engine without storing anything.
func (s *Service) Preview(ctx context.Context, text string) (nlp.ProcessingResult, error) {
	_, span := telemetry.StartSpan(ctx, "capture.preview")
	defer span.End()

	text, err := s.prepare(text)
	if err != nil {
		return nlp.ProcessingResult{}, err
	}
	return s.engine.Process(text, s.clock()), nil
}

// Segment is one candidate thought with the predicate flags a caller uses to
// decide whether the model is needed. The flags and the classification are
// computed on Source, as a full run does.
type Segment struct {
	Text            string              `json:"text"`
	Source          string              `json:"source"`
	TaskIndicators  bool                `json:"has_task_indicators"`
	StrongTask      bool                `json:"has_strong_task_indicators"`
	EventIndicators bool                `json:"has_event_indicators"`
	StrongEvent     bool                `json:"has_strong_event_indicators"`
	Uncertain       bool                `json:"is_uncertain"`
	Type            nlp.ThoughtType     `json:"thought_type"`
	Confidence      nlp.ConfidenceLevel `json:"confidence"`
	NeedsLLM        bool                `json:"needs_llm"`
}

// Segments splits text and flags every segment.
func (s *Service) Segments(text string) ([]Segment, error) {
	text, err := s.prepare(text)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	parts := s.engine.Segments(text)
	out := make([]Segment, 0, len(parts))
	for _, p := range parts {
		c := s.engine.ClassifySegment(p.Source, now)
		seg := Segment{
			Text:            p.Text,
			Source:          p.Source,
			TaskIndicators:  s.engine.HasTaskIndicators(p.Source),
			StrongTask:      s.engine.HasStrongTaskIndicators(p.Source),
			EventIndicators: s.engine.HasEventIndicators(p.Source),
			StrongEvent:     s.engine.HasStrongEventIndicators(p.Source),
			Uncertain:       s.engine.IsUncertainType(p.Source),
			Type:            c.Type,
			Confidence:      c.Confidence,
		}
		seg.NeedsLLM = seg.Uncertain || c.Confidence.Weight() < s.threshold
		out = append(out, seg)
	}
	return out, nil
}

// Reprocess runs the current rules over a stored capture again, resolving
// dates against the original capture time. User-edited thoughts are kept.
func (s *Service) Reprocess(ctx context.Context, userID, captureID uuid.UUID) (result *Result, err error) {
	ctx, span := telemetry.StartSpan(ctx, "capture.reprocess", attribute.String("capture_id", captureID.String()))
	defer func() { telemetry.EndSpan(span, err) }()

	c, err := s.captures.GetByID(ctx, userID, captureID)
	if err != nil {
		return nil, err
	}
	res := s.engine.Process(c.RawText, c.CapturedAt, nlp.WithModel(c.Model), nlp.WithoutOriginalText())
	c.RulesVersion = res.Metadata.RulesVersion
	c.Confidence = res.Metadata.Confidence
	c.ProcessingTimeMS = res.Metadata.ProcessingTimeMS

	thoughts := toStored(res.Thoughts, 0)
	if s.mode == config.LLMModeSync {
		s.categorizeInline(ctx, userID, c.Model, thoughts)
	}
	pending := s.markPending(thoughts)
	if err := s.captures.ReplaceThoughts(ctx, c, thoughts); err != nil {
		return nil, fmt.Errorf("failed to replace thoughts: %w", err)
	}
	s.enqueue(ctx, c, c.Model, pending)

	stored, err := s.thoughts.ListByCapture(ctx, userID, captureID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload thoughts: %w", err)
	}
	s.logger.Info("capture_reprocessed",
		zap.String("capture_id", c.ID.String()),
		zap.String("rules_version", c.RulesVersion),
		zap.Int("thought_count", c.ThoughtCount),
		zap.Int("pending_llm", len(pending)),
	)
	return &Result{Capture: c, Thoughts: stored}, nil
}

func (s *Service) modelFor(requested string) string {
	if requested != "" {
		return requested
	}
	return s.defaultModel
}

func toStored(thoughts []nlp.Thought, firstPosition int) []*models.StoredThought {
	out := make([]*models.StoredThought, len(thoughts))
	for i, t := range thoughts {
		out[i] = &models.StoredThought{
			ID:       uuid.New(),
			Position: firstPosition + i,
			Thought:  t,
			Status:   models.ThoughtStatusRuleBased,
		}
	}
	return out
}

// markPending flags the rule-based thoughts the worker should categorize.
func (s *Service) markPending(thoughts []*models.StoredThought) []*models.StoredThought {
	if s.mode != config.LLMModeAsync {
		return nil
	}
	var pending []*models.StoredThought
	for _, t := range thoughts {
		if t.Status == models.ThoughtStatusRuleBased && NeedsLLM(t.Thought, s.threshold) {
			t.Status = models.ThoughtStatusPendingLLM
			pending = append(pending, t)
		}
	}
	return pending
}

// categorizeInline replaces low-confidence thoughts with the model's reading,
// or with the fallback note when the model fails.
func (s *Service) categorizeInline(ctx context.Context, userID uuid.UUID, model string, thoughts []*models.StoredThought) {
	req := s.requestBase(ctx, userID, model)
	for _, t := range thoughts {
		if !NeedsLLM(t.Thought, s.threshold) {
			continue
		}
		req.Text = t.SourceText()
		result, err := ai.CategorizeWithFallback(ctx, s.categorizer, req)
		if err != nil {
			s.logger.Warn("llm_categorization_failed",
				zap.String("thought_id", t.ID.String()),
				zap.String("text", logger.SanitizeThoughtText(req.Text)),
				zap.Error(err),
			)
			t.Status = models.ThoughtStatusLLMFallback
		} else {
			t.Status = models.ThoughtStatusLLMCategorized
		}
		t.Thought = result.Thought
		t.Usage = models.LLMUsage(result.Usage)
	}
}

// requestBase carries the user's categorization guidance, when any.
func (s *Service) requestBase(ctx context.Context, userID uuid.UUID, model string) ai.CategorizationRequest {
	req := ai.CategorizationRequest{Model: model}
	if s.contexts == nil {
		return req
	}
	cc, err := s.contexts.GetByUserID(ctx, userID)
	switch {
	case err == nil:
		req.Hint, req.PreferredTags = cc.Hint, cc.PreferredTags
	case !errors.Is(err, database.ErrNotFound):
		s.logger.Warn("categorization_context_lookup_failed", zap.Error(err))
	}
	return req
}

// enqueue queues a categorization job per pending thought. A thought whose
// job could not be queued goes back to its rule-based result.
func (s *Service) enqueue(ctx context.Context, c *models.Capture, model string, pending []*models.StoredThought) {
	for _, t := range pending {
		job := queue.NewCategorizationJob(c.UserID, c.ID, t.ID, model)
		err := s.queue.Enqueue(ctx, job)
		if err == nil {
			continue
		}
		s.logger.Error("categorization_enqueue_failed",
			zap.String("capture_id", c.ID.String()),
			zap.String("thought_id", t.ID.String()),
			zap.Error(err),
		)
		t.Status = models.ThoughtStatusRuleBased
		if err := s.thoughts.UpdateIfStatus(ctx, t, models.ThoughtStatusPendingLLM); err != nil {
			s.logger.Error("thought_status_revert_failed", zap.String("thought_id", t.ID.String()), zap.Error(err))
		}
	}
}
