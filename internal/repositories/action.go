package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/reelq/internal/models"
	"github.com/desertthunder/reelq/internal/shared"
)

// ActionRepository persists queued actions in SQLite.
//
// It implements the queue's store and claimer contracts. Leases live in the claimed_by and claimed_until
// columns and never leave the table as part of an action.
type ActionRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewActionRepository creates a new [ActionRepository] with the given database connection
func NewActionRepository(db *sql.DB) *ActionRepository {
	return &ActionRepository{db: db, now: time.Now}
}

// Open applies pending migrations.
func (r *ActionRepository) Open(ctx context.Context) error {
	if r.db == nil {
		return fmt.Errorf("%w: no database connection", shared.ErrStorageUnavailable)
	}
	if err := shared.RunMigrations(ctx, r.db); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrStorageUnavailable, err)
	}
	return nil
}

// GetAll returns every action ordered by timestamp, then insertion order.
func (r *ActionRepository) GetAll(ctx context.Context) ([]models.QueuedAction, error) {
	query := `
		SELECT id, type, url, method, body, headers, timestamp, retry_count
		FROM queued_actions
		ORDER BY timestamp ASC, sequence ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query actions: %w", err)
	}
	defer rows.Close()

	actions := []models.QueuedAction{}
	for rows.Next() {
		action, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		actions = append(actions, action)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating actions: %w", err)
	}

	return actions, nil
}

// Get retrieves a single action by ID.
func (r *ActionRepository) Get(ctx context.Context, id string) (*models.QueuedAction, error) {
	query := `
		SELECT id, type, url, method, body, headers, timestamp, retry_count
		FROM queued_actions
		WHERE id = ?
	`

	action, err := scanAction(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", shared.ErrActionNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &action, nil
}

// Put replaces the record with the action's ID or inserts it with a fresh sequence number.
// An existing record keeps its sequence, so ordering survives retry count updates.
func (r *ActionRepository) Put(ctx context.Context, action models.QueuedAction) error {
	if err := action.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	headers, err := encodeHeaders(action.Headers)
	if err != nil {
		return err
	}

	updated, err := r.update(ctx, action, headers)
	if err != nil || updated {
		return err
	}

	sequence, err := NextSequence(ctx, r.db, "queued_actions")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	insert := `
		INSERT INTO queued_actions (id, sequence, type, url, method, body, headers, timestamp, retry_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, insert,
		action.ID, sequence, string(action.Type), action.URL, action.Method, action.Body, headers, action.Timestamp, action.RetryCount,
	)
	if err != nil {
		return fmt.Errorf("failed to insert action: %w", err)
	}

	return nil
}

// Update replaces an existing record in place. A removed or never-stored action is not recreated.
func (r *ActionRepository) Update(ctx context.Context, action models.QueuedAction) error {
	if err := action.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	headers, err := encodeHeaders(action.Headers)
	if err != nil {
		return err
	}

	updated, err := r.update(ctx, action, headers)
	if err != nil {
		return err
	}
	if !updated {
		return fmt.Errorf("%w: %s", shared.ErrActionNotFound, action.ID)
	}
	return nil
}

func (r *ActionRepository) update(ctx context.Context, action models.QueuedAction, headers string) (bool, error) {
	query := `
		UPDATE queued_actions
		SET type = ?, url = ?, method = ?, body = ?, headers = ?, timestamp = ?, retry_count = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		string(action.Type), action.URL, action.Method, action.Body, headers, action.Timestamp, action.RetryCount, action.ID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update action: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows > 0, nil
}

// Delete removes an action by ID. Deleting an absent ID is not an error.
func (r *ActionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM queued_actions WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete action: %w", err)
	}
	return nil
}

// Clear removes every action.
func (r *ActionRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM queued_actions"); err != nil {
		return fmt.Errorf("failed to clear actions: %w", err)
	}
	return nil
}

// Count returns the number of stored actions.
func (r *ActionRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM queued_actions").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count actions: %w", err)
	}
	return n, nil
}

// Claim leases the action to owner until now+ttl.
//
// The lease is granted when the action exists and is unleased, its lease has expired, or owner already holds it.
func (r *ActionRepository) Claim(ctx context.Context, id, owner string, ttl time.Duration) (bool, error) {
	now := r.now()

	query := `
		UPDATE queued_actions
		SET claimed_by = ?, claimed_until = ?
		WHERE id = ?
			AND (claimed_by IS NULL OR claimed_until IS NULL OR claimed_until < ? OR claimed_by = ?)
	`

	result, err := r.db.ExecContext(ctx, query, owner, now.Add(ttl).UnixMilli(), id, now.UnixMilli(), owner)
	if err != nil {
		return false, fmt.Errorf("failed to claim action: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows == 1, nil
}

// Release clears owner's lease on the action.
func (r *ActionRepository) Release(ctx context.Context, id, owner string) error {
	query := `
		UPDATE queued_actions
		SET claimed_by = NULL, claimed_until = NULL
		WHERE id = ? AND claimed_by = ?
	`

	if _, err := r.db.ExecContext(ctx, query, id, owner); err != nil {
		return fmt.Errorf("failed to release action: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAction(row rowScanner) (models.QueuedAction, error) {
	var (
		action     models.QueuedAction
		actionType string
		headers    string
	)

	err := row.Scan(
		&action.ID, &actionType, &action.URL, &action.Method, &action.Body, &headers, &action.Timestamp, &action.RetryCount,
	)
	if err == sql.ErrNoRows {
		return action, err
	}
	if err != nil {
		return action, fmt.Errorf("failed to scan action: %w", err)
	}

	action.Type = models.ActionType(actionType)
	if action.Headers, err = decodeHeaders(headers); err != nil {
		return action, err
	}
	return action, nil
}
