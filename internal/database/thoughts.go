package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/benvon/thought-capture/internal/models"
	"github.com/benvon/thought-capture/internal/services/nlp"
	"github.com/google/uuid"
)

const thoughtColumns = `id, capture_id, user_id, position, thought, status, usage, created_at, updated_at`

// ThoughtFilter narrows a thought listing. Nil fields do not filter.
type ThoughtFilter struct {
	UserID    uuid.UUID
	Type      *nlp.ThoughtType
	Status    *models.ThoughtStatus
	CaptureID *uuid.UUID
	Limit     int
	Offset    int
}

// ThoughtRepository handles stored thought operations
type ThoughtRepository struct {
	db *DB
}

// NewThoughtRepository creates a new thought repository
func NewThoughtRepository(db *DB) *ThoughtRepository {
	return &ThoughtRepository{db: db}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertThought(ctx context.Context, db execer, t *models.StoredThought, now time.Time) error {
	thoughtJSON, usageJSON, err := encodeThought(t)
	if err != nil {
		return err
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.CreatedAt, t.UpdatedAt = now, now
	_, err = db.ExecContext(ctx, `
		INSERT INTO thoughts (id, capture_id, user_id, position, thought_type, confidence, title, thought, status, usage, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
	`, t.ID, t.CaptureID, t.UserID, t.Position, string(t.Thought.Type()), string(t.Thought.Confidence),
		t.Thought.Title(), thoughtJSON, string(t.Status), usageJSON, now)
	if err != nil {
		return fmt.Errorf("failed to insert thought: %w", err)
	}
	return nil
}

func encodeThought(t *models.StoredThought) (thoughtJSON, usageJSON []byte, err error) {
	if err := t.Thought.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid thought: %w", err)
	}
	thoughtJSON, err = json.Marshal(t.Thought)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal thought: %w", err)
	}
	usageJSON, err = json.Marshal(t.Usage)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal usage: %w", err)
	}
	return thoughtJSON, usageJSON, nil
}

func scanThought(row rowScanner) (*models.StoredThought, error) {
	t := &models.StoredThought{}
	var thoughtJSON, usageJSON []byte
	var status string
	if err := row.Scan(&t.ID, &t.CaptureID, &t.UserID, &t.Position, &thoughtJSON, &status, &usageJSON, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Status = models.ThoughtStatus(status)
	if err := json.Unmarshal(thoughtJSON, &t.Thought); err != nil {
		return nil, fmt.Errorf("failed to unmarshal thought %s: %w", t.ID, err)
	}
	if len(usageJSON) > 0 {
		if err := json.Unmarshal(usageJSON, &t.Usage); err != nil {
			return nil, fmt.Errorf("failed to unmarshal usage %s: %w", t.ID, err)
		}
	}
	return t, nil
}

// GetByID returns a thought owned by userID
func (r *ThoughtRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*models.StoredThought, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+thoughtColumns+` FROM thoughts WHERE id = $1 AND user_id = $2`, id, userID)
	t, err := scanThought(row)
	if err != nil {
		return nil, notFound(err, "thought")
	}
	return t, nil
}

// List returns one page of thoughts plus the total matching count, newest capture first
func (r *ThoughtRepository) List(ctx context.Context, f ThoughtFilter) ([]*models.StoredThought, int, error) {
	where, args := thoughtWhere(f)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM thoughts WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count thoughts: %w", err)
	}

	order := "created_at DESC, position ASC"
	if f.CaptureID != nil {
		order = "position ASC, created_at ASC"
	}
	query := `SELECT ` + thoughtColumns + ` FROM thoughts WHERE ` + where + ` ORDER BY ` + order
	if f.Limit > 0 {
		args = append(args, f.Limit, f.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}
	thoughts, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return thoughts, total, nil
}

// ListByCapture returns a capture's thoughts in position order
func (r *ThoughtRepository) ListByCapture(ctx context.Context, userID, captureID uuid.UUID) ([]*models.StoredThought, error) {
	thoughts, _, err := r.List(ctx, ThoughtFilter{UserID: userID, CaptureID: &captureID})
	if err != nil {
		return nil, err
	}
	return thoughts, nil
}

func (r *ThoughtRepository) query(ctx context.Context, query string, args ...any) ([]*models.StoredThought, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query thoughts: %w", err)
	}
	defer closeRows(rows)

	thoughts := []*models.StoredThought{}
	for rows.Next() {
		t, err := scanThought(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan thought: %w", err)
		}
		thoughts = append(thoughts, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating thoughts: %w", err)
	}
	return thoughts, nil
}

// thoughtWhere builds the WHERE clause and positional args for a filter.
func thoughtWhere(f ThoughtFilter) (string, []any) {
	clauses := []string{"user_id = $1"}
	args := []any{f.UserID}
	add := func(column string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if f.Type != nil {
		add("thought_type", string(*f.Type))
	}
	if f.Status != nil {
		add("status", string(*f.Status))
	}
	if f.CaptureID != nil {
		add("capture_id", *f.CaptureID)
	}
	return strings.Join(clauses, " AND "), args
}

// Update replaces a thought's content, status and usage
func (r *ThoughtRepository) Update(ctx context.Context, t *models.StoredThought) error {
	return r.update(ctx, t, "")
}

// UpdateIfStatus updates the thought only while it still has status expected.
// It returns ErrNotFound when the thought moved on, e.g. the user edited it.
func (r *ThoughtRepository) UpdateIfStatus(ctx context.Context, t *models.StoredThought, expected models.ThoughtStatus) error {
	return r.update(ctx, t, expected)
}

func (r *ThoughtRepository) update(ctx context.Context, t *models.StoredThought, expected models.ThoughtStatus) error {
	thoughtJSON, usageJSON, err := encodeThought(t)
	if err != nil {
		return err
	}
	query := `
		UPDATE thoughts
		SET thought_type = $3, confidence = $4, title = $5, thought = $6, status = $7, usage = $8, updated_at = $9
		WHERE id = $1 AND user_id = $2`
	args := []any{t.ID, t.UserID, string(t.Thought.Type()), string(t.Thought.Confidence), t.Thought.Title(),
		thoughtJSON, string(t.Status), usageJSON, time.Now()}
	if expected != "" {
		query += ` AND status = $10`
		args = append(args, string(expected))
	}
	query += ` RETURNING updated_at`

	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&t.UpdatedAt); err != nil {
		return notFound(err, "thought")
	}
	return nil
}

// Delete removes a thought owned by userID
func (r *ThoughtRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return execOne(ctx, r.db, "thought", `DELETE FROM thoughts WHERE id = $1 AND user_id = $2`, id, userID)
}
