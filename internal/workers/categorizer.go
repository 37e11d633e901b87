package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/thought-capture/internal/database"
	"github.com/benvon/thought-capture/internal/logger"
	"github.com/benvon/thought-capture/internal/models"
	"github.com/benvon/thought-capture/internal/queue"
	"github.com/benvon/thought-capture/internal/services/ai"
	"github.com/benvon/thought-capture/internal/services/capture"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CaptureReprocessor re-runs the engine over a stored capture.
type CaptureReprocessor interface {
	Reprocess(ctx context.Context, userID, captureID uuid.UUID) (*capture.Result, error)
}

var _ CaptureReprocessor = (*capture.Service)(nil)

// CategorizationWorker processes thought categorization and capture reprocess jobs
type CategorizationWorker struct {
	categorizer  ai.Categorizer
	thoughts     database.ThoughtStore
	contexts     database.CategorizationContextStore
	activityRepo database.UserActivityStore
	reprocessor  CaptureReprocessor
	jobQueue     queue.JobQueue // for re-enqueueing delayed retries
	now          func() time.Time
	logger       *zap.Logger
}

// NewCategorizationWorker creates a new categorization worker
func NewCategorizationWorker(
	categorizer ai.Categorizer,
	thoughts database.ThoughtStore,
	contexts database.CategorizationContextStore,
	activityRepo database.UserActivityStore,
	reprocessor CaptureReprocessor,
	jobQueue queue.JobQueue,
	logger *zap.Logger,
) *CategorizationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CategorizationWorker{
		categorizer:  categorizer,
		thoughts:     thoughts,
		contexts:     contexts,
		activityRepo: activityRepo,
		reprocessor:  reprocessor,
		jobQueue:     jobQueue,
		now:          time.Now,
		logger:       logger,
	}
}

var (
	// errSkipped marks a job that no longer applies and is simply acked.
	errSkipped = errors.New("job no longer applies")
	// ErrNoCategorizer means no model provider is configured; pending
	// thoughts get the fallback note.
	ErrNoCategorizer = errors.New("no categorization provider configured")
)

// ProcessCategorizationJob asks the model for one pending thought and stores
// the answer. The thought is only written while it is still pending, so a
// user edit made meanwhile wins.
func (w *CategorizationWorker) ProcessCategorizationJob(ctx context.Context, job *queue.Job) error {
	thought, err := w.pendingThought(ctx, job)
	if err != nil {
		return err
	}

	if w.categorizer == nil {
		return ErrNoCategorizer
	}
	req := w.request(ctx, job.UserID, job.Model)
	req.Text = thought.SourceText()
	result, err := w.categorizer.CategorizeThought(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to categorize thought: %w", err)
	}
	return w.store(ctx, thought, result, models.ThoughtStatusLLMCategorized)
}

// ProcessReprocessJob re-runs the rule engine over a capture unless the
// user's reprocessing is paused.
func (w *CategorizationWorker) ProcessReprocessJob(ctx context.Context, job *queue.Job) error {
	if w.activityRepo != nil {
		activity, err := w.activityRepo.GetByUserID(ctx, job.UserID)
		if err == nil && activity.ReprocessingPaused {
			w.logger.Debug("reprocess_skipped_paused_user",
				zap.String("user_id", logger.SanitizeUserID(job.UserID.String())),
			)
			return errSkipped
		}
	}
	if _, err := w.reprocessor.Reprocess(ctx, job.UserID, job.CaptureID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return errSkipped
		}
		return fmt.Errorf("failed to reprocess capture: %w", err)
	}
	return nil
}

// ProcessJob processes a job based on its type and settles its message.
func (w *CategorizationWorker) ProcessJob(ctx context.Context, msg *queue.Message) error {
	job := msg.Job
	start := w.now()

	var err error
	switch job.Type {
	case queue.JobTypeThoughtCategorization:
		err = w.ProcessCategorizationJob(ctx, job)
	case queue.JobTypeCaptureReprocess:
		err = w.ProcessReprocessJob(ctx, job)
	default:
		if nackErr := msg.Nack(false); nackErr != nil {
			w.logger.Error("job_nack_failed", zap.String("job_id", job.ID.String()), zap.Error(nackErr))
		}
		return fmt.Errorf("%w: %s", queue.ErrUnknownJobType, job.Type)
	}

	if err == nil || errors.Is(err, errSkipped) {
		w.logger.Info("job_processed",
			zap.String("job_id", job.ID.String()),
			zap.String("job_type", string(job.Type)),
			zap.Bool("skipped", err != nil),
			zap.Duration("duration", w.now().Sub(start)),
		)
		if ackErr := msg.Ack(); ackErr != nil {
			return fmt.Errorf("failed to ack job: %w", ackErr)
		}
		return nil
	}
	return w.handleJobError(ctx, msg, job, err)
}

// handleJobError retries retryable failures through the delayed exchange.
// A categorization that cannot be retried gets the fallback note; if that
// was because retries ran out the message is also dead-lettered.
func (w *CategorizationWorker) handleJobError(ctx context.Context, msg *queue.Message, job *queue.Job, err error) error {
	fields := []zap.Field{
		zap.String("job_id", job.ID.String()),
		zap.String("job_type", string(job.Type)),
		zap.Int("retry_count", job.RetryCount),
		zap.Int("max_retries", job.MaxRetries),
		zap.Error(err),
	}

	retryable := ai.IsRetryable(err) && !errors.Is(err, ErrNoCategorizer)
	if retryable && job.CanRetry() && w.jobQueue != nil {
		delay := ai.GetRetryDelay(err, job.RetryCount)
		next := job.NextAttempt(w.now(), delay, err)
		enqueueErr := w.jobQueue.Enqueue(ctx, next)
		if enqueueErr == nil {
			w.logger.Warn("job_retry_scheduled", append(fields,
				zap.Duration("delay", delay),
				zap.Bool("quota", ai.IsQuotaError(err)),
				zap.Bool("rate_limited", ai.IsRateLimitError(err)),
			)...)
			if ackErr := msg.Ack(); ackErr != nil {
				return fmt.Errorf("failed to ack retried job: %w", ackErr)
			}
			return nil
		}
		w.logger.Error("job_retry_enqueue_failed", append(fields, zap.NamedError("enqueue_error", enqueueErr))...)
	}

	if job.Type == queue.JobTypeThoughtCategorization {
		if fbErr := w.storeFallback(ctx, job); fbErr != nil && !errors.Is(fbErr, errSkipped) {
			w.logger.Error("llm_fallback_store_failed", append(fields, zap.NamedError("store_error", fbErr))...)
			if nackErr := msg.Nack(false); nackErr != nil {
				w.logger.Error("job_nack_failed", zap.String("job_id", job.ID.String()), zap.Error(nackErr))
			}
			return fmt.Errorf("categorization failed and fallback not stored: %w", err)
		}
		if !retryable {
			w.logger.Warn("llm_categorization_fallback", fields...)
			if ackErr := msg.Ack(); ackErr != nil {
				return fmt.Errorf("failed to ack job: %w", ackErr)
			}
			return nil
		}
	}

	w.logger.Error("job_dead_lettered", fields...)
	if nackErr := msg.Nack(false); nackErr != nil {
		w.logger.Error("job_nack_failed", zap.String("job_id", job.ID.String()), zap.Error(nackErr))
	}
	return fmt.Errorf("job failed after %d retries: %w", job.RetryCount, err)
}

// storeFallback replaces a still-pending thought with the fallback note.
func (w *CategorizationWorker) storeFallback(ctx context.Context, job *queue.Job) error {
	thought, err := w.pendingThought(ctx, job)
	if err != nil {
		return err
	}
	return w.store(ctx, thought, ai.Fallback(thought.SourceText()), models.ThoughtStatusLLMFallback)
}

func (w *CategorizationWorker) pendingThought(ctx context.Context, job *queue.Job) (*models.StoredThought, error) {
	if job.ThoughtID == nil {
		return nil, queue.ErrMissingThoughtID
	}
	thought, err := w.thoughts.GetByID(ctx, job.UserID, *job.ThoughtID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, errSkipped
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get thought: %w", err)
	}
	if thought.Status != models.ThoughtStatusPendingLLM {
		return nil, errSkipped
	}
	return thought, nil
}

func (w *CategorizationWorker) store(ctx context.Context, thought *models.StoredThought, result *ai.Categorization, status models.ThoughtStatus) error {
	thought.Thought = result.Thought
	thought.Usage = models.LLMUsage(result.Usage)
	thought.Status = status
	err := w.thoughts.UpdateIfStatus(ctx, thought, models.ThoughtStatusPendingLLM)
	if errors.Is(err, database.ErrNotFound) {
		return errSkipped
	}
	if err != nil {
		return fmt.Errorf("failed to store categorization: %w", err)
	}
	w.logger.Info("thought_categorized",
		zap.String("thought_id", thought.ID.String()),
		zap.String("status", string(status)),
		zap.String("thought_type", string(thought.Thought.Type())),
		zap.String("confidence", string(thought.Thought.Confidence)),
		zap.Int("prompt_tokens", thought.Usage.PromptTokens),
		zap.Int("completion_tokens", thought.Usage.CompletionTokens),
		zap.Float64("cost_usd", thought.Usage.CostUSD),
	)
	return nil
}

func (w *CategorizationWorker) request(ctx context.Context, userID uuid.UUID, model string) ai.CategorizationRequest {
	req := ai.CategorizationRequest{Model: model}
	if w.contexts == nil {
		return req
	}
	cc, err := w.contexts.GetByUserID(ctx, userID)
	if err == nil {
		req.Hint, req.PreferredTags = cc.Hint, cc.PreferredTags
	} else if !errors.Is(err, database.ErrNotFound) {
		w.logger.Warn("categorization_context_lookup_failed", zap.Error(err))
	}
	return req
}
