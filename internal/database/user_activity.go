package database

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/thought-capture/internal/models"
	"github.com/google/uuid"
)

// InactivityPause is how long a user may be idle before their captures stop being reprocessed.
const InactivityPause = 72 * time.Hour

// UserActivityRepository handles user activity database operations
type UserActivityRepository struct {
	db *DB
}

// NewUserActivityRepository creates a new user activity repository
func NewUserActivityRepository(db *DB) *UserActivityRepository {
	return &UserActivityRepository{db: db}
}

// GetByUserID retrieves user activity by user ID
func (r *UserActivityRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.UserActivity, error) {
	activity := &models.UserActivity{}
	query := `
		SELECT user_id, last_api_interaction, reprocessing_paused, created_at, updated_at
		FROM user_activity
		WHERE user_id = $1
	`
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&activity.UserID,
		&activity.LastAPIInteraction,
		&activity.ReprocessingPaused,
		&activity.CreatedAt,
		&activity.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err, "user activity")
	}
	return activity, nil
}

// UpdateLastInteraction records an API call and resumes reprocessing for the user
func (r *UserActivityRepository) UpdateLastInteraction(ctx context.Context, userID uuid.UUID) error {
	query := `
		INSERT INTO user_activity (user_id, last_api_interaction, reprocessing_paused, created_at, updated_at)
		VALUES ($1, $2, false, $2, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET last_api_interaction = EXCLUDED.last_api_interaction,
		    reprocessing_paused = false,
		    updated_at = EXCLUDED.updated_at
	`
	if _, err := r.db.ExecContext(ctx, query, userID, time.Now()); err != nil {
		return fmt.Errorf("failed to update last interaction: %w", err)
	}
	return nil
}

// PauseInactive pauses reprocessing for users idle longer than InactivityPause
// and returns how many were paused.
func (r *UserActivityRepository) PauseInactive(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE user_activity
		SET reprocessing_paused = true, updated_at = $1
		WHERE last_api_interaction < $2 AND reprocessing_paused = false
	`
	result, err := r.db.ExecContext(ctx, query, now, now.Add(-InactivityPause))
	if err != nil {
		return 0, fmt.Errorf("failed to pause inactive users: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// GetEligibleUsersForReprocessing returns users whose reprocessing is not paused
func (r *UserActivityRepository) GetEligibleUsersForReprocessing(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT user_id FROM user_activity WHERE reprocessing_paused = false`)
	if err != nil {
		return nil, fmt.Errorf("failed to query eligible users: %w", err)
	}
	defer closeRows(rows)

	var userIDs []uuid.UUID
	for rows.Next() {
		var userID uuid.UUID
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan user ID: %w", err)
		}
		userIDs = append(userIDs, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return userIDs, nil
}
