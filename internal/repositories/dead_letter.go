package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/reelq/internal/models"
	"github.com/desertthunder/reelq/internal/shared"
)

// DeadLetterRepository keeps actions evicted at the retry ceiling so they can be inspected or requeued.
type DeadLetterRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewDeadLetterRepository creates a new [DeadLetterRepository] with the given database connection
func NewDeadLetterRepository(db *sql.DB) *DeadLetterRepository {
	return &DeadLetterRepository{db: db, now: time.Now}
}

// Record stores a copy of the evicted action along with the last replay error.
func (r *DeadLetterRepository) Record(ctx context.Context, action models.QueuedAction, reason string) error {
	headers, err := encodeHeaders(action.Headers)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO dead_letters (id, action_id, type, url, method, body, headers, timestamp, retry_count, reason, failed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		shared.GenerateID(),
		action.ID,
		string(action.Type),
		action.URL,
		action.Method,
		action.Body,
		headers,
		action.Timestamp,
		action.RetryCount,
		reason,
		r.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert dead letter: %w", err)
	}
	return nil
}

// List returns every dead letter, oldest failure first.
func (r *DeadLetterRepository) List(ctx context.Context) ([]models.DeadLetter, error) {
	query := `
		SELECT id, action_id, type, url, method, body, headers, timestamp, retry_count, reason, failed_at
		FROM dead_letters
		ORDER BY failed_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query dead letters: %w", err)
	}
	defer rows.Close()

	letters := []models.DeadLetter{}
	for rows.Next() {
		letter, err := scanDeadLetter(rows)
		if err != nil {
			return nil, err
		}
		letters = append(letters, letter)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dead letters: %w", err)
	}
	return letters, nil
}

// Get retrieves a dead letter by ID.
func (r *DeadLetterRepository) Get(ctx context.Context, id string) (*models.DeadLetter, error) {
	query := `
		SELECT id, action_id, type, url, method, body, headers, timestamp, retry_count, reason, failed_at
		FROM dead_letters
		WHERE id = ?
	`

	letter, err := scanDeadLetter(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", shared.ErrDeadLetterNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &letter, nil
}

// Delete removes a dead letter by ID.
func (r *DeadLetterRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM dead_letters WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete dead letter: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrDeadLetterNotFound, id)
	}
	return nil
}

// Clear removes every dead letter and returns how many were dropped.
func (r *DeadLetterRepository) Clear(ctx context.Context) (int, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM dead_letters")
	if err != nil {
		return 0, fmt.Errorf("failed to clear dead letters: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return int(rows), nil
}

func scanDeadLetter(row rowScanner) (models.DeadLetter, error) {
	var (
		letter     models.DeadLetter
		actionType string
		headers    string
		failedAt   int64
	)

	err := row.Scan(
		&letter.ID,
		&letter.Action.ID,
		&actionType,
		&letter.Action.URL,
		&letter.Action.Method,
		&letter.Action.Body,
		&headers,
		&letter.Action.Timestamp,
		&letter.Action.RetryCount,
		&letter.Reason,
		&failedAt,
	)
	if err == sql.ErrNoRows {
		return letter, err
	}
	if err != nil {
		return letter, fmt.Errorf("failed to scan dead letter: %w", err)
	}

	letter.Action.Type = models.ActionType(actionType)
	letter.FailedAt = time.UnixMilli(failedAt)
	if letter.Action.Headers, err = decodeHeaders(headers); err != nil {
		return letter, err
	}
	return letter, nil
}
