package workers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benvon/thought-capture/internal/database"
	"github.com/benvon/thought-capture/internal/models"
	"github.com/benvon/thought-capture/internal/queue"
	"github.com/benvon/thought-capture/internal/services/ai"
	"github.com/benvon/thought-capture/internal/services/capture"
	"github.com/google/uuid"
)

var fixedNow = time.Date(2026, time.October, 14, 9, 0, 0, 0, time.UTC)

// mockCategorizer is a mock implementation of ai.Categorizer
type mockCategorizer struct {
	calls          int
	categorizeFunc func(ctx context.Context, req ai.CategorizationRequest) (*ai.Categorization, error)
}

func (m *mockCategorizer) CategorizeThought(ctx context.Context, req ai.CategorizationRequest) (*ai.Categorization, error) {
	m.calls++
	if m.categorizeFunc != nil {
		return m.categorizeFunc(ctx, req)
	}
	return nil, errors.New("not implemented")
}

var _ ai.Categorizer = (*mockCategorizer)(nil)

// mockThoughtStore is a mock implementation of database.ThoughtStore
type mockThoughtStore struct {
	getByIDFunc        func(ctx context.Context, userID, id uuid.UUID) (*models.StoredThought, error)
	updateIfStatusFunc func(ctx context.Context, t *models.StoredThought, expected models.ThoughtStatus) error
	updated            []*models.StoredThought
}

func (m *mockThoughtStore) GetByID(ctx context.Context, userID, id uuid.UUID) (*models.StoredThought, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, userID, id)
	}
	return nil, database.ErrNotFound
}

func (m *mockThoughtStore) List(context.Context, database.ThoughtFilter) ([]*models.StoredThought, int, error) {
	return nil, 0, nil
}

func (m *mockThoughtStore) ListByCapture(context.Context, uuid.UUID, uuid.UUID) ([]*models.StoredThought, error) {
	return nil, nil
}

func (m *mockThoughtStore) Update(context.Context, *models.StoredThought) error { return nil }

func (m *mockThoughtStore) UpdateIfStatus(ctx context.Context, t *models.StoredThought, expected models.ThoughtStatus) error {
	if m.updateIfStatusFunc != nil {
		if err := m.updateIfStatusFunc(ctx, t, expected); err != nil {
			return err
		}
	}
	m.updated = append(m.updated, t)
	return nil
}

func (m *mockThoughtStore) Delete(context.Context, uuid.UUID, uuid.UUID) error { return nil }

var _ database.ThoughtStore = (*mockThoughtStore)(nil)

// mockContextStore is a mock implementation of database.CategorizationContextStore
type mockContextStore struct {
	cc *models.CategorizationContext
}

func (m *mockContextStore) GetByUserID(context.Context, uuid.UUID) (*models.CategorizationContext, error) {
	if m.cc == nil {
		return nil, database.ErrNotFound
	}
	return m.cc, nil
}

func (m *mockContextStore) Upsert(context.Context, *models.CategorizationContext) error { return nil }

var _ database.CategorizationContextStore = (*mockContextStore)(nil)

// mockUserActivityRepo is a mock implementation of database.UserActivityStore
type mockUserActivityRepo struct {
	getByUserIDFunc                     func(ctx context.Context, userID uuid.UUID) (*models.UserActivity, error)
	pauseInactiveFunc                   func(ctx context.Context, now time.Time) (int64, error)
	getEligibleUsersForReprocessingFunc func(ctx context.Context) ([]uuid.UUID, error)
}

func (m *mockUserActivityRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.UserActivity, error) {
	if m.getByUserIDFunc != nil {
		return m.getByUserIDFunc(ctx, userID)
	}
	return &models.UserActivity{UserID: userID}, nil
}

func (m *mockUserActivityRepo) UpdateLastInteraction(context.Context, uuid.UUID) error { return nil }

func (m *mockUserActivityRepo) PauseInactive(ctx context.Context, now time.Time) (int64, error) {
	if m.pauseInactiveFunc != nil {
		return m.pauseInactiveFunc(ctx, now)
	}
	return 0, nil
}

func (m *mockUserActivityRepo) GetEligibleUsersForReprocessing(ctx context.Context) ([]uuid.UUID, error) {
	if m.getEligibleUsersForReprocessingFunc != nil {
		return m.getEligibleUsersForReprocessingFunc(ctx)
	}
	return []uuid.UUID{}, nil
}

var _ database.UserActivityStore = (*mockUserActivityRepo)(nil)

// mockCaptureStore is a mock implementation of database.CaptureStore
type mockCaptureStore struct {
	listStaleIDsFunc func(ctx context.Context, userID uuid.UUID, rulesVersion string) ([]uuid.UUID, error)
}

func (m *mockCaptureStore) Create(context.Context, *models.Capture, []*models.StoredThought) error {
	return nil
}

func (m *mockCaptureStore) ReplaceThoughts(context.Context, *models.Capture, []*models.StoredThought) error {
	return nil
}

func (m *mockCaptureStore) GetByID(context.Context, uuid.UUID, uuid.UUID) (*models.Capture, error) {
	return nil, database.ErrNotFound
}

func (m *mockCaptureStore) ListByUser(context.Context, uuid.UUID, int, int) ([]*models.Capture, int, error) {
	return nil, 0, nil
}

func (m *mockCaptureStore) ListStaleIDs(ctx context.Context, userID uuid.UUID, rulesVersion string) ([]uuid.UUID, error) {
	if m.listStaleIDsFunc != nil {
		return m.listStaleIDsFunc(ctx, userID, rulesVersion)
	}
	return nil, nil
}

func (m *mockCaptureStore) Delete(context.Context, uuid.UUID, uuid.UUID) error { return nil }

var _ database.CaptureStore = (*mockCaptureStore)(nil)

// mockReprocessor is a mock implementation of CaptureReprocessor
type mockReprocessor struct {
	reprocessFunc func(ctx context.Context, userID, captureID uuid.UUID) (*capture.Result, error)
}

func (m *mockReprocessor) Reprocess(ctx context.Context, userID, captureID uuid.UUID) (*capture.Result, error) {
	if m.reprocessFunc != nil {
		return m.reprocessFunc(ctx, userID, captureID)
	}
	return &capture.Result{}, nil
}

var _ CaptureReprocessor = (*mockReprocessor)(nil)

// mockJobQueue is a mock implementation of queue.JobQueue
type mockJobQueue struct {
	mu          sync.Mutex
	jobs        []*queue.Job
	enqueueFunc func(ctx context.Context, job *queue.Job) error
}

func (m *mockJobQueue) Enqueue(ctx context.Context, job *queue.Job) error {
	if m.enqueueFunc != nil {
		if err := m.enqueueFunc(ctx, job); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, job)
	return nil
}

func (m *mockJobQueue) Consume(context.Context, int) (<-chan *queue.Message, <-chan error, error) {
	return nil, nil, errors.New("not implemented")
}

func (m *mockJobQueue) Close() error                      { return nil }
func (m *mockJobQueue) HealthCheck(context.Context) error { return nil }

var _ queue.JobQueue = (*mockJobQueue)(nil)

// recordingAcker records how a delivery was settled
type recordingAcker struct {
	acks  int
	nacks []bool // requeue flag per nack
}

func (a *recordingAcker) Ack(uint64, bool) error {
	a.acks++
	return nil
}

func (a *recordingAcker) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacks = append(a.nacks, requeue)
	return nil
}

var _ queue.Acknowledger = (*recordingAcker)(nil)

func newMessage(job *queue.Job) (*queue.Message, *recordingAcker) {
	acker := &recordingAcker{}
	return &queue.Message{Job: job, DeliveryTag: 1, Acker: acker}, acker
}
