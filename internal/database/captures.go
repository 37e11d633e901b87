package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/benvon/thought-capture/internal/models"
	"github.com/google/uuid"
)

const captureColumns = `id, user_id, raw_text, source, model, rules_version, confidence, processing_time_ms, thought_count, captured_at, created_at, updated_at`

// CaptureRepository handles capture database operations. Captures and their
// thoughts are written in one transaction.
type CaptureRepository struct {
	db *DB
}

// NewCaptureRepository creates a new capture repository
func NewCaptureRepository(db *DB) *CaptureRepository {
	return &CaptureRepository{db: db}
}

func scanCapture(row rowScanner) (*models.Capture, error) {
	c := &models.Capture{}
	var source string
	err := row.Scan(&c.ID, &c.UserID, &c.RawText, &source, &c.Model, &c.RulesVersion, &c.Confidence,
		&c.ProcessingTimeMS, &c.ThoughtCount, &c.CapturedAt, &c.CreatedAt, &c.UpdatedAt)
	c.Source = models.CaptureSource(source)
	return c, err
}

// Create stores a capture together with its thoughts
func (r *CaptureRepository) Create(ctx context.Context, c *models.Capture, thoughts []*models.StoredThought) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		now := time.Now()
		c.ThoughtCount = len(thoughts)
		err := tx.QueryRowContext(ctx, `
			INSERT INTO captures (`+captureColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
			RETURNING created_at, updated_at
		`, c.ID, c.UserID, c.RawText, string(c.Source), c.Model, c.RulesVersion, c.Confidence,
			c.ProcessingTimeMS, c.ThoughtCount, c.CapturedAt, now).Scan(&c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create capture: %w", err)
		}
		for _, t := range thoughts {
			t.CaptureID, t.UserID = c.ID, c.UserID
			if err := insertThought(ctx, tx, t, now); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReplaceThoughts swaps every thought of the capture except user-edited ones
// for the given set and refreshes the capture's engine summary.
func (r *CaptureRepository) ReplaceThoughts(ctx context.Context, c *models.Capture, thoughts []*models.StoredThought) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM thoughts WHERE capture_id = $1 AND status <> $2`,
			c.ID, string(models.ThoughtStatusUserEdited)); err != nil {
			return fmt.Errorf("failed to clear thoughts: %w", err)
		}
		now := time.Now()
		for _, t := range thoughts {
			t.CaptureID, t.UserID = c.ID, c.UserID
			if err := insertThought(ctx, tx, t, now); err != nil {
				return err
			}
		}
		err := tx.QueryRowContext(ctx, `
			UPDATE captures
			SET model = $3, rules_version = $4, confidence = $5, processing_time_ms = $6,
			    thought_count = (SELECT COUNT(*) FROM thoughts WHERE capture_id = $1), updated_at = $7
			WHERE id = $1 AND user_id = $2
			RETURNING thought_count, updated_at
		`, c.ID, c.UserID, c.Model, c.RulesVersion, c.Confidence, c.ProcessingTimeMS, now).Scan(&c.ThoughtCount, &c.UpdatedAt)
		if err != nil {
			return notFound(err, "capture")
		}
		return nil
	})
}

// GetByID returns a capture owned by userID
func (r *CaptureRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*models.Capture, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+captureColumns+` FROM captures WHERE id = $1 AND user_id = $2`, id, userID)
	c, err := scanCapture(row)
	if err != nil {
		return nil, notFound(err, "capture")
	}
	return c, nil
}

// ListByUser returns one page of a user's captures, newest first, plus the total count
func (r *CaptureRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Capture, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM captures WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count captures: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+captureColumns+` FROM captures
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query captures: %w", err)
	}
	defer closeRows(rows)

	captures := []*models.Capture{}
	for rows.Next() {
		c, err := scanCapture(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan capture: %w", err)
		}
		captures = append(captures, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating captures: %w", err)
	}
	return captures, total, nil
}

// ListStaleIDs returns the user's captures processed under a rule table
// other than rulesVersion that still hold engine-produced thoughts.
func (r *CaptureRepository) ListStaleIDs(ctx context.Context, userID uuid.UUID, rulesVersion string) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id FROM captures c
		WHERE c.user_id = $1 AND c.rules_version <> $2
		  AND EXISTS (SELECT 1 FROM thoughts t WHERE t.capture_id = c.id AND t.status = $3)
		ORDER BY c.captured_at DESC
	`, userID, rulesVersion, string(models.ThoughtStatusRuleBased))
	if err != nil {
		return nil, fmt.Errorf("failed to query capture ids: %w", err)
	}
	defer closeRows(rows)

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan capture id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating capture ids: %w", err)
	}
	return ids, nil
}

// Delete removes a capture and its thoughts
func (r *CaptureRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return execOne(ctx, r.db, "capture", `DELETE FROM captures WHERE id = $1 AND user_id = $2`, id, userID)
}

func (r *CaptureRepository) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
