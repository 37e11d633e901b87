package database

import (
	"context"
	"time"

	"github.com/benvon/thought-capture/internal/models"
	"github.com/google/uuid"
)

// CaptureStore is the capture persistence the capture service needs.
type CaptureStore interface {
	Create(ctx context.Context, c *models.Capture, thoughts []*models.StoredThought) error
	ReplaceThoughts(ctx context.Context, c *models.Capture, thoughts []*models.StoredThought) error
	GetByID(ctx context.Context, userID, id uuid.UUID) (*models.Capture, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Capture, int, error)
	ListStaleIDs(ctx context.Context, userID uuid.UUID, rulesVersion string) ([]uuid.UUID, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

// ThoughtStore is the stored thought persistence.
type ThoughtStore interface {
	GetByID(ctx context.Context, userID, id uuid.UUID) (*models.StoredThought, error)
	List(ctx context.Context, f ThoughtFilter) ([]*models.StoredThought, int, error)
	ListByCapture(ctx context.Context, userID, captureID uuid.UUID) ([]*models.StoredThought, error)
	Update(ctx context.Context, t *models.StoredThought) error
	UpdateIfStatus(ctx context.Context, t *models.StoredThought, expected models.ThoughtStatus) error
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

// UserStore is the user persistence used by authentication.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByProviderID(ctx context.Context, providerID string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
}

// CategorizationContextStore is the per-user model guidance persistence.
type CategorizationContextStore interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.CategorizationContext, error)
	Upsert(ctx context.Context, c *models.CategorizationContext) error
}

// UserActivityStore tracks activity for reprocessing eligibility.
type UserActivityStore interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.UserActivity, error)
	UpdateLastInteraction(ctx context.Context, userID uuid.UUID) error
	PauseInactive(ctx context.Context, now time.Time) (int64, error)
	GetEligibleUsersForReprocessing(ctx context.Context) ([]uuid.UUID, error)
}

// CorsConfigStore reads and writes the runtime CORS policy.
type CorsConfigStore interface {
	Get(ctx context.Context) (*models.CorsConfig, error)
	Set(ctx context.Context, c *models.CorsConfig) error
}

// RatelimitConfigStore reads and writes the runtime request rate.
type RatelimitConfigStore interface {
	Get(ctx context.Context) (*models.RatelimitConfig, error)
	Set(ctx context.Context, c *models.RatelimitConfig) error
}

// OIDCConfigStore reads identity provider registrations.
type OIDCConfigStore interface {
	GetByProvider(ctx context.Context, provider string) (*models.OIDCConfig, error)
}

// Ensure concrete types implement the interfaces
var (
	_ CaptureStore               = (*CaptureRepository)(nil)
	_ ThoughtStore               = (*ThoughtRepository)(nil)
	_ UserStore                  = (*UserRepository)(nil)
	_ CategorizationContextStore = (*CategorizationContextRepository)(nil)
	_ UserActivityStore          = (*UserActivityRepository)(nil)
	_ CorsConfigStore            = (*CorsConfigRepository)(nil)
	_ RatelimitConfigStore       = (*RatelimitConfigRepository)(nil)
	_ OIDCConfigStore            = (*OIDCConfigRepository)(nil)
)
