package queue

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobType represents the type of job
type JobType string

const (
	// JobTypeThoughtCategorization asks the model to categorize one low-confidence thought.
	JobTypeThoughtCategorization JobType = "thought_categorization"
	// JobTypeCaptureReprocess re-runs the rule engine over a stored capture.
	JobTypeCaptureReprocess JobType = "capture_reprocess"
)

// DefaultMaxRetries is how often a job is retried before it goes to the DLQ.
const DefaultMaxRetries = 3

// Job is one unit of background work
type Job struct {
	ID         uuid.UUID  `json:"id"`
	Type       JobType    `json:"type"`
	UserID     uuid.UUID  `json:"user_id"`
	CaptureID  uuid.UUID  `json:"capture_id"`
	ThoughtID  *uuid.UUID `json:"thought_id,omitempty"`  // set for categorization jobs
	NotBefore  *time.Time `json:"not_before,omitempty"`  // earliest processing time, nil = immediate
	NotAfter   *time.Time `json:"not_after,omitempty"`   // latest processing time, nil = never expires
	Model      string     `json:"model,omitempty"`       // model requested at capture time
	LastError  string     `json:"last_error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	RetryCount int        `json:"retry_count"`
	MaxRetries int        `json:"max_retries"`
}

// NewCategorizationJob creates a job categorizing one stored thought.
func NewCategorizationJob(userID, captureID, thoughtID uuid.UUID, model string) *Job {
	j := newJob(JobTypeThoughtCategorization, userID, captureID)
	j.ThoughtID = &thoughtID
	j.Model = model
	return j
}

// NewReprocessJob creates a job re-running the engine over one capture.
func NewReprocessJob(userID, captureID uuid.UUID) *Job {
	return newJob(JobTypeCaptureReprocess, userID, captureID)
}

func newJob(jobType JobType, userID, captureID uuid.UUID) *Job {
	return &Job{
		ID:         uuid.New(),
		Type:       jobType,
		UserID:     userID,
		CaptureID:  captureID,
		CreatedAt:  time.Now(),
		MaxRetries: DefaultMaxRetries,
	}
}

var (
	ErrUnknownJobType   = errors.New("unknown job type")
	ErrMissingThoughtID = errors.New("categorization job has no thought id")
)

// Validate checks the job carries what its type needs.
func (j *Job) Validate() error {
	switch j.Type {
	case JobTypeThoughtCategorization:
		if j.ThoughtID == nil || *j.ThoughtID == uuid.Nil {
			return ErrMissingThoughtID
		}
	case JobTypeCaptureReprocess:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownJobType, j.Type)
	}
	if j.UserID == uuid.Nil || j.CaptureID == uuid.Nil {
		return fmt.Errorf("job %s: user and capture ids are required", j.ID)
	}
	return nil
}

// ReadyAt reports whether the job's NotBefore has passed at now.
func (j *Job) ReadyAt(now time.Time) bool {
	return j.NotBefore == nil || !now.Before(*j.NotBefore)
}

// ExpiredAt reports whether the job's NotAfter has passed at now.
func (j *Job) ExpiredAt(now time.Time) bool {
	return j.NotAfter != nil && now.After(*j.NotAfter)
}

// ShouldProcessAt reports whether now is inside the job's processing window.
func (j *Job) ShouldProcessAt(now time.Time) bool {
	return j.ReadyAt(now) && !j.ExpiredAt(now)
}

// CanRetry checks if the job can be retried
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// NextAttempt returns a copy of the job scheduled delay after now with the
// retry count bumped and cause recorded.
func (j *Job) NextAttempt(now time.Time, delay time.Duration, cause error) *Job {
	next := *j
	next.RetryCount++
	if delay > 0 {
		at := now.Add(delay)
		next.NotBefore = &at
	} else {
		next.NotBefore = nil
	}
	if cause != nil {
		next.LastError = cause.Error()
	}
	return &next
}
