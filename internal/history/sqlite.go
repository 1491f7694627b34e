package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// SQLiteRepository implements Repository using SQLite.
//
// Transitions are stored in the state_transitions table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed transition repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record inserts a new state transition row.
func (r *SQLiteRepository) Record(ctx context.Context, tr *Transition) error {
	if tr == nil {
		return fmt.Errorf("transition is required")
	}
	if !IsValidKind(tr.Kind) {
		return fmt.Errorf("invalid transition kind %q", tr.Kind)
	}
	if tr.From == "" || tr.To == "" {
		return fmt.Errorf("from and to states are required")
	}
	if tr.ID == "" {
		tr.ID = "trn-" + uuid.New().String()[:8]
	}
	if tr.CreatedAt.IsZero() {
		tr.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO state_transitions (id, kind, from_state, to_state, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		tr.ID,
		tr.Kind,
		tr.From,
		tr.To,
		tr.Reason,
		tr.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting transition: %w", err)
	}
	return nil
}

// List returns recent transitions newest first, optionally filtered by kind.
// The limit defaults to 50 and is clamped at 200.
func (r *SQLiteRepository) List(ctx context.Context, kind string, limit int) ([]Transition, error) {
	if kind != "" && !IsValidKind(kind) {
		return nil, fmt.Errorf("invalid transition kind %q", kind)
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	query := `SELECT id, kind, from_state, to_state, reason, created_at
		 FROM state_transitions`
	args := []any{}
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying transitions: %w", err)
	}
	defer rows.Close()

	transitions := make([]Transition, 0, limit)
	for rows.Next() {
		var tr Transition
		var createdAt string

		if err := rows.Scan(&tr.ID, &tr.Kind, &tr.From, &tr.To, &tr.Reason, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning transition: %w", err)
		}

		timestamp, err := parseTimestamp(createdAt)
		if err != nil {
			return nil, err
		}
		tr.CreatedAt = timestamp

		transitions = append(transitions, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transitions: %w", err)
	}
	return transitions, nil
}

// Prune deletes transitions older than the given duration.
func (r *SQLiteRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339Nano)
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM state_transitions WHERE created_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting transitions: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return rowsAffected, nil
}

// parseTimestamp parses a timestamp stored in SQLite.
func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("created_at is empty")
	}

	timestamp, err := time.Parse(time.RFC3339Nano, value)
	if err == nil {
		return timestamp, nil
	}

	fallback, fallbackErr := time.Parse(time.RFC3339, value)
	if fallbackErr == nil {
		return fallback, nil
	}

	return time.Time{}, fmt.Errorf("parsing created_at: %w", err)
}
