// Package audit records every control action taken against the
// transmitter: who did what, from where, and whether it worked.
//
// Entries fan out two ways: a fixed-size in-memory ring for the live
// operator view, and a SQLite table for the persistent trail. The two
// are combined by the Recorder so callers log once.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Sources identify where a control action originated.
const (
	SourceAPI    = "api"
	SourceMQTT   = "mqtt"
	SourceSystem = "system"
)

// Outcomes of an audited action.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Entry represents a single audit trail entry.
type Entry struct {
	ID        string         `json:"id"`
	Action    string         `json:"action"`
	Actor     string         `json:"actor,omitempty"`
	Source    string         `json:"source"`
	Outcome   string         `json:"outcome"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Filter controls which audit entries to return.
type Filter struct {
	Action  string // optional: filter by action (connect, arm, start, set_channel, ...)
	Actor   string // optional: filter by operator username
	Source  string // optional: api, mqtt, system
	Outcome string // optional: success, failure
	Limit   int    // default 50, max 200
	Offset  int    // pagination offset
}

// ListResult contains the paginated audit results.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Repository defines the interface for persistent audit operations.
type Repository interface {
	Create(ctx context.Context, entry *Entry) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository stores audit entries in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new audit repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a new audit entry. The ID and CreatedAt are generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, entry *Entry) error {
	if entry.ID == "" {
		entry.ID = "aud-" + uuid.NewString()[:8]
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.Outcome == "" {
		entry.Outcome = OutcomeSuccess
	}

	detailsJSON := "{}"
	if entry.Details != nil {
		b, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("marshalling audit details: %w", err)
		}
		detailsJSON = string(b)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, action, actor, source, outcome, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Action, entry.Actor, entry.Source, entry.Outcome,
		detailsJSON,
		entry.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}

	return nil
}

// List returns audit entries matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	// Clamp limit.
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 200 { //nolint:mnd // max page size for audit queries
		filter.Limit = 200
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	// Build WHERE clause dynamically.
	var conditions []string
	var args []any

	if filter.Action != "" {
		conditions = append(conditions, "action = ?")
		args = append(args, filter.Action)
	}
	if filter.Actor != "" {
		conditions = append(conditions, "actor = ?")
		args = append(args, filter.Actor)
	}
	if filter.Source != "" {
		conditions = append(conditions, "source = ?")
		args = append(args, filter.Source)
	}
	if filter.Outcome != "" {
		conditions = append(conditions, "outcome = ?")
		args = append(args, filter.Outcome)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	// Get total count.
	// WHERE clause is built from parameterised conditions (? placeholders) — no user input in SQL string.
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM audit_logs %s", where) //nolint:gosec // WHERE built from parameterised conditions, not user input
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting audit entries: %w", err)
	}

	// Get paginated results.
	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		"SELECT id, action, actor, source, outcome, details, created_at FROM audit_logs %s ORDER BY created_at DESC LIMIT ? OFFSET ?",
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var detailsJSON, createdAt string

		if err := rows.Scan(&entry.ID, &entry.Action, &entry.Actor,
			&entry.Source, &entry.Outcome, &detailsJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}

		if detailsJSON != "" && detailsJSON != "{}" {
			var details map[string]any
			if json.Unmarshal([]byte(detailsJSON), &details) == nil {
				entry.Details = details
			}
		}

		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing audit timestamp %q: %w", createdAt, err)
		}
		entry.CreatedAt = t

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}

	if entries == nil {
		entries = []Entry{}
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}
