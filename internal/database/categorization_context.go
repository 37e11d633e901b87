package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/benvon/thought-capture/internal/models"
	"github.com/google/uuid"
)

// CategorizationContextRepository stores each user's guidance for the categorization model
type CategorizationContextRepository struct {
	db *DB
}

// NewCategorizationContextRepository creates a new categorization context repository
func NewCategorizationContextRepository(db *DB) *CategorizationContextRepository {
	return &CategorizationContextRepository{db: db}
}

// GetByUserID returns the user's context, or ErrNotFound when none was saved
func (r *CategorizationContextRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.CategorizationContext, error) {
	c := &models.CategorizationContext{}
	var tagsJSON []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, hint, preferred_tags, created_at, updated_at
		FROM categorization_context
		WHERE user_id = $1
	`, userID).Scan(&c.ID, &c.UserID, &c.Hint, &tagsJSON, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "categorization context")
	}
	if err := json.Unmarshal(tagsJSON, &c.PreferredTags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal preferred tags: %w", err)
	}
	return c, nil
}

// Upsert creates or replaces the user's context
func (r *CategorizationContextRepository) Upsert(ctx context.Context, c *models.CategorizationContext) error {
	if c.PreferredTags == nil {
		c.PreferredTags = []string{}
	}
	tagsJSON, err := json.Marshal(c.PreferredTags)
	if err != nil {
		return fmt.Errorf("failed to marshal preferred tags: %w", err)
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO categorization_context (id, user_id, hint, preferred_tags, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			hint = EXCLUDED.hint,
			preferred_tags = EXCLUDED.preferred_tags,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at
	`, c.ID, c.UserID, c.Hint, tagsJSON, time.Now()).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert categorization context: %w", err)
	}
	return nil
}
