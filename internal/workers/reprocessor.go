package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/thought-capture/internal/database"
	"github.com/benvon/thought-capture/internal/queue"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Reprocessor schedules capture reprocessing jobs for active users whose
// captures were built with an older rule table.
type Reprocessor struct {
	jobQueue     queue.JobQueue
	activityRepo database.UserActivityStore
	captures     database.CaptureStore
	rulesVersion string
	interval     time.Duration
	now          func() time.Time
	logger       *zap.Logger
}

// NewReprocessor creates a new reprocessor
func NewReprocessor(jobQueue queue.JobQueue, activityRepo database.UserActivityStore, captures database.CaptureStore, rulesVersion string, interval time.Duration, logger *zap.Logger) *Reprocessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reprocessor{
		jobQueue:     jobQueue,
		activityRepo: activityRepo,
		captures:     captures,
		rulesVersion: rulesVersion,
		interval:     interval,
		now:          time.Now,
		logger:       logger,
	}
}

// Start runs ScheduleReprocessingJobs every interval until ctx is cancelled.
func (r *Reprocessor) Start(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.ScheduleReprocessingJobs(ctx); err != nil {
				r.logger.Error("reprocess_schedule_failed", zap.Error(err))
			}
		}
	}
}

// ScheduleReprocessingJobs pauses users idle past the inactivity window, then
// enqueues one reprocess job per stale capture of every remaining user. Jobs
// expire after one interval so a backlog never piles up across runs.
func (r *Reprocessor) ScheduleReprocessingJobs(ctx context.Context) (int, error) {
	now := r.now()
	paused, err := r.activityRepo.PauseInactive(ctx, now)
	if err != nil {
		r.logger.Warn("pause_inactive_users_failed", zap.Error(err))
	}

	eligibleUsers, err := r.GetEligibleUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get eligible users: %w", err)
	}

	scheduled := 0
	for _, userID := range eligibleUsers {
		ids, err := r.captures.ListStaleIDs(ctx, userID, r.rulesVersion)
		if err != nil {
			r.logger.Warn("list_stale_captures_failed",
				zap.String("user_id", userID.String()),
				zap.Error(err),
			)
			continue
		}
		for _, captureID := range ids {
			if err := r.createReprocessingJob(ctx, userID, captureID, now); err != nil {
				r.logger.Warn("failed_to_schedule_reprocessing_job",
					zap.String("capture_id", captureID.String()),
					zap.Error(err),
				)
				continue
			}
			scheduled++
		}
	}

	r.logger.Info("scheduled_reprocessing_jobs",
		zap.Int("user_count", len(eligibleUsers)),
		zap.Int64("paused_users", paused),
		zap.Int("job_count", scheduled),
		zap.String("rules_version", r.rulesVersion),
	)
	return scheduled, nil
}

func (r *Reprocessor) createReprocessingJob(ctx context.Context, userID, captureID uuid.UUID, now time.Time) error {
	job := queue.NewReprocessJob(userID, captureID)
	if r.interval > 0 {
		notAfter := now.Add(r.interval)
		job.NotAfter = &notAfter
	}
	if err := r.jobQueue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("failed to enqueue reprocessing job: %w", err)
	}
	return nil
}

// GetEligibleUsers returns users whose reprocessing is not paused
func (r *Reprocessor) GetEligibleUsers(ctx context.Context) ([]uuid.UUID, error) {
	return r.activityRepo.GetEligibleUsersForReprocessing(ctx)
}
