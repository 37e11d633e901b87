package queue

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewJobs(t *testing.T) {
	t.Parallel()

	userID, captureID, thoughtID := uuid.New(), uuid.New(), uuid.New()

	cat := NewCategorizationJob(userID, captureID, thoughtID, "gpt-4o-mini")
	if cat.Type != JobTypeThoughtCategorization || cat.ThoughtID == nil || *cat.ThoughtID != thoughtID {
		t.Errorf("categorization job = %+v", cat)
	}
	if cat.Model != "gpt-4o-mini" || cat.MaxRetries != DefaultMaxRetries || cat.RetryCount != 0 {
		t.Errorf("categorization job defaults = %+v", cat)
	}
	if err := cat.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}

	re := NewReprocessJob(userID, captureID)
	if re.Type != JobTypeCaptureReprocess || re.ThoughtID != nil || re.CaptureID != captureID {
		t.Errorf("reprocess job = %+v", re)
	}
	if err := re.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
	if cat.ID == re.ID || cat.ID == uuid.Nil {
		t.Error("job ids must be unique and set")
	}
}

func TestJob_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		job     Job
		wantErr error
	}{
		{"unknown type", Job{Type: "task_analysis", UserID: uuid.New(), CaptureID: uuid.New()}, ErrUnknownJobType},
		{"categorization without thought", Job{Type: JobTypeThoughtCategorization, UserID: uuid.New(), CaptureID: uuid.New()}, ErrMissingThoughtID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := tt.job.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}

	missingCapture := Job{Type: JobTypeCaptureReprocess, UserID: uuid.New()}
	if err := missingCapture.Validate(); err == nil {
		t.Error("Validate() without capture id = nil, want error")
	}
}

func TestJob_ProcessingWindow(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time { v := now.Add(d); return &v }

	tests := []struct {
		name        string
		notBefore   *time.Time
		notAfter    *time.Time
		wantReady   bool
		wantExpired bool
	}{
		{"no constraints", nil, nil, true, false},
		{"not before passed", at(-time.Hour), nil, true, false},
		{"not before exactly now", at(0), nil, true, false},
		{"not before in future", at(time.Hour), nil, false, false},
		{"not after passed", nil, at(-time.Hour), true, true},
		{"not after in future", nil, at(time.Hour), true, false},
		{"inside window", at(-time.Hour), at(time.Hour), true, false},
		{"window ahead", at(time.Hour), at(2 * time.Hour), false, false},
		{"window behind", at(-2 * time.Hour), at(-time.Hour), true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			j := &Job{NotBefore: tt.notBefore, NotAfter: tt.notAfter}
			if got := j.ReadyAt(now); got != tt.wantReady {
				t.Errorf("ReadyAt() = %v, want %v", got, tt.wantReady)
			}
			if got := j.ExpiredAt(now); got != tt.wantExpired {
				t.Errorf("ExpiredAt() = %v, want %v", got, tt.wantExpired)
			}
			if got := j.ShouldProcessAt(now); got != (tt.wantReady && !tt.wantExpired) {
				t.Errorf("ShouldProcessAt() = %v", got)
			}
		})
	}
}

func TestJob_CanRetry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		retryCount, maxRetries int
		want                   bool
	}{
		{0, 3, true},
		{2, 3, true},
		{3, 3, false},
		{4, 3, false},
		{0, 0, false},
	}
	for _, tt := range tests {
		j := &Job{RetryCount: tt.retryCount, MaxRetries: tt.maxRetries}
		if got := j.CanRetry(); got != tt.want {
			t.Errorf("CanRetry(%d/%d) = %v, want %v", tt.retryCount, tt.maxRetries, got, tt.want)
		}
	}
}

func TestJob_NextAttempt(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)
	j := NewCategorizationJob(uuid.New(), uuid.New(), uuid.New(), "")

	next := j.NextAttempt(now, 30*time.Second, errors.New("rate limited"))
	if next.RetryCount != 1 || j.RetryCount != 0 {
		t.Errorf("RetryCount next=%d original=%d, want 1 and 0", next.RetryCount, j.RetryCount)
	}
	if next.NotBefore == nil || !next.NotBefore.Equal(now.Add(30*time.Second)) {
		t.Errorf("NotBefore = %v, want now+30s", next.NotBefore)
	}
	if next.LastError != "rate limited" || next.ID != j.ID {
		t.Errorf("next = %+v", next)
	}

	immediate := next.NextAttempt(now, 0, nil)
	if immediate.NotBefore != nil || immediate.RetryCount != 2 || immediate.LastError != "rate limited" {
		t.Errorf("immediate retry = %+v", immediate)
	}
}
