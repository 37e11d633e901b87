package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benvon/thought-capture/internal/queue"
	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"
)

func TestReprocessor_ScheduleReprocessingJobs(t *testing.T) {
	t.Parallel()

	user1, user2 := uuid.New(), uuid.New()
	cap1, cap2, cap3 := uuid.New(), uuid.New(), uuid.New()

	tests := []struct {
		name        string
		activity    *mockUserActivityRepo
		captures    *mockCaptureStore
		enqueueErr  error
		expectError bool
		wantJobs    int
	}{
		{
			name: "stale captures of eligible users",
			activity: &mockUserActivityRepo{getEligibleUsersForReprocessingFunc: func(context.Context) ([]uuid.UUID, error) {
				return []uuid.UUID{user1, user2}, nil
			}},
			captures: &mockCaptureStore{listStaleIDsFunc: func(_ context.Context, u uuid.UUID, version string) ([]uuid.UUID, error) {
				if version != "v2" {
					t.Errorf("rules version = %q, want v2", version)
				}
				if u == user1 {
					return []uuid.UUID{cap1, cap2}, nil
				}
				return []uuid.UUID{cap3}, nil
			}},
			wantJobs: 3,
		},
		{
			name:     "no eligible users",
			activity: &mockUserActivityRepo{},
			captures: &mockCaptureStore{},
			wantJobs: 0,
		},
		{
			name: "eligible user lookup fails",
			activity: &mockUserActivityRepo{getEligibleUsersForReprocessingFunc: func(context.Context) ([]uuid.UUID, error) {
				return nil, errors.New("db down")
			}},
			captures:    &mockCaptureStore{},
			expectError: true,
		},
		{
			name: "capture listing failure skips the user",
			activity: &mockUserActivityRepo{getEligibleUsersForReprocessingFunc: func(context.Context) ([]uuid.UUID, error) {
				return []uuid.UUID{user1, user2}, nil
			}},
			captures: &mockCaptureStore{listStaleIDsFunc: func(_ context.Context, u uuid.UUID, _ string) ([]uuid.UUID, error) {
				if u == user1 {
					return nil, errors.New("timeout")
				}
				return []uuid.UUID{cap3}, nil
			}},
			wantJobs: 1,
		},
		{
			name: "pause failure does not stop scheduling",
			activity: &mockUserActivityRepo{
				pauseInactiveFunc: func(context.Context, time.Time) (int64, error) { return 0, errors.New("locked") },
				getEligibleUsersForReprocessingFunc: func(context.Context) ([]uuid.UUID, error) {
					return []uuid.UUID{user2}, nil
				},
			},
			captures: &mockCaptureStore{listStaleIDsFunc: func(context.Context, uuid.UUID, string) ([]uuid.UUID, error) {
				return []uuid.UUID{cap3}, nil
			}},
			wantJobs: 1,
		},
		{
			name: "enqueue failures are not counted",
			activity: &mockUserActivityRepo{getEligibleUsersForReprocessingFunc: func(context.Context) ([]uuid.UUID, error) {
				return []uuid.UUID{user1}, nil
			}},
			captures: &mockCaptureStore{listStaleIDsFunc: func(context.Context, uuid.UUID, string) ([]uuid.UUID, error) {
				return []uuid.UUID{cap1}, nil
			}},
			enqueueErr: errors.New("channel closed"),
			wantJobs:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			q := &mockJobQueue{enqueueFunc: func(context.Context, *queue.Job) error { return tt.enqueueErr }}
			r := NewReprocessor(q, tt.activity, tt.captures, "v2", time.Hour, zaptest.NewLogger(t))
			r.now = func() time.Time { return fixedNow }

			n, err := r.ScheduleReprocessingJobs(context.Background())
			if (err != nil) != tt.expectError {
				t.Fatalf("ScheduleReprocessingJobs() error = %v, expectError %v", err, tt.expectError)
			}
			if n != tt.wantJobs || len(q.jobs) != tt.wantJobs {
				t.Errorf("scheduled = %d, enqueued = %d, want %d", n, len(q.jobs), tt.wantJobs)
			}
			for _, job := range q.jobs {
				if job.Type != queue.JobTypeCaptureReprocess {
					t.Errorf("job type = %s", job.Type)
				}
				if job.NotAfter == nil || !job.NotAfter.Equal(fixedNow.Add(time.Hour)) {
					t.Errorf("NotAfter = %v, want one interval after now", job.NotAfter)
				}
			}
		})
	}
}

func TestReprocessor_PausesInactiveUsersFirst(t *testing.T) {
	t.Parallel()

	var order []string
	activity := &mockUserActivityRepo{
		pauseInactiveFunc: func(_ context.Context, now time.Time) (int64, error) {
			if !now.Equal(fixedNow) {
				t.Errorf("PauseInactive(now = %v)", now)
			}
			order = append(order, "pause")
			return 2, nil
		},
		getEligibleUsersForReprocessingFunc: func(context.Context) ([]uuid.UUID, error) {
			order = append(order, "eligible")
			return nil, nil
		},
	}
	r := NewReprocessor(&mockJobQueue{}, activity, &mockCaptureStore{}, "v1", time.Hour, zaptest.NewLogger(t))
	r.now = func() time.Time { return fixedNow }

	if _, err := r.ScheduleReprocessingJobs(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(order) != 2 || order[0] != "pause" || order[1] != "eligible" {
		t.Errorf("call order = %v", order)
	}
}

func TestReprocessor_StartStopsOnCancel(t *testing.T) {
	t.Parallel()

	r := NewReprocessor(&mockJobQueue{}, &mockUserActivityRepo{}, &mockCaptureStore{}, "v1", time.Millisecond, zaptest.NewLogger(t))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := r.Start(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Start() = %v, want deadline exceeded", err)
	}
}
