package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/benvon/thought-capture/internal/database"
	"github.com/benvon/thought-capture/internal/models"
	"github.com/google/uuid"
)

type mockVerifier struct {
	verifyFunc func(ctx context.Context, token string) (*models.JWTClaims, error)
}

var _ TokenVerifier = (*mockVerifier)(nil)

func (m *mockVerifier) VerifyToken(ctx context.Context, token string) (*models.JWTClaims, error) {
	return m.verifyFunc(ctx, token)
}

type mockUserStore struct {
	mu      sync.Mutex
	users   map[string]*models.User
	created int
	updated int
	getErr  error
}

var _ database.UserStore = (*mockUserStore)(nil)

func newMockUserStore(users ...*models.User) *mockUserStore {
	m := &mockUserStore{users: map[string]*models.User{}}
	for _, u := range users {
		m.users[*u.ProviderID] = u
	}
	return m
}

func (m *mockUserStore) Create(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[*user.ProviderID] = user
	m.created++
	return nil
}

func (m *mockUserStore) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, database.ErrNotFound
}

func (m *mockUserStore) GetByProviderID(ctx context.Context, providerID string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	if u, ok := m.users[providerID]; ok {
		return u, nil
	}
	return nil, database.ErrNotFound
}

func (m *mockUserStore) Update(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updated++
	return nil
}

type mockActivityStore struct {
	mu        sync.Mutex
	touched   []uuid.UUID
	updateErr error
}

var _ database.UserActivityStore = (*mockActivityStore)(nil)

func (m *mockActivityStore) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.UserActivity, error) {
	return nil, database.ErrNotFound
}

func (m *mockActivityStore) UpdateLastInteraction(ctx context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touched = append(m.touched, userID)
	return m.updateErr
}

func (m *mockActivityStore) PauseInactive(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

func (m *mockActivityStore) GetEligibleUsersForReprocessing(ctx context.Context) ([]uuid.UUID, error) {
	return nil, nil
}

type mockCorsStore struct {
	mu  sync.Mutex
	cfg *models.CorsConfig
	err error
}

var _ database.CorsConfigStore = (*mockCorsStore)(nil)

func (m *mockCorsStore) Get(ctx context.Context) (*models.CorsConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.cfg == nil {
		return nil, database.ErrNotFound
	}
	return m.cfg, nil
}

func (m *mockCorsStore) Set(ctx context.Context, c *models.CorsConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = c
	return nil
}

type mockRatelimitStore struct {
	mu  sync.Mutex
	cfg *models.RatelimitConfig
	err error
}

var _ database.RatelimitConfigStore = (*mockRatelimitStore)(nil)

func (m *mockRatelimitStore) Get(ctx context.Context) (*models.RatelimitConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.cfg == nil {
		return nil, database.ErrNotFound
	}
	return m.cfg, nil
}

func (m *mockRatelimitStore) Set(ctx context.Context, c *models.RatelimitConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = c
	return nil
}
