package program

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-radio/internal/transmitter"
)

// Repository defines the interface for program persistence.
// This abstraction allows different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// Program CRUD
	GetByID(ctx context.Context, id string) (*Program, error)
	GetBySlug(ctx context.Context, slug string) (*Program, error)
	List(ctx context.Context) ([]Program, error)
	Create(ctx context.Context, p *Program) error
	Update(ctx context.Context, p *Program) error
	Delete(ctx context.Context, id string) error

	// Execution logging
	CreateExecution(ctx context.Context, exec *Execution) error
	GetExecution(ctx context.Context, id string) (*Execution, error)
	ListExecutions(ctx context.Context, programID string, limit int) ([]Execution, error)
}

// programColumns is the SELECT column list for program queries.
const programColumns = `id, name, slug, description, enabled, source, message,
			channels, sort_order, created_at, updated_at`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByID retrieves a program by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Program, error) {
	query := `SELECT ` + programColumns + ` FROM programs WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	p, err := scanProgramRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProgramNotFound
		}
		return nil, fmt.Errorf("querying program by id: %w", err)
	}
	return p, nil
}

// GetBySlug retrieves a program by its slug.
func (r *SQLiteRepository) GetBySlug(ctx context.Context, slug string) (*Program, error) {
	query := `SELECT ` + programColumns + ` FROM programs WHERE slug = ?`

	row := r.db.QueryRowContext(ctx, query, slug)
	p, err := scanProgramRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProgramNotFound
		}
		return nil, fmt.Errorf("querying program by slug: %w", err)
	}
	return p, nil
}

// List retrieves all programs ordered by sort_order then name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Program, error) {
	query := `SELECT ` + programColumns + ` FROM programs ORDER BY sort_order, name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying programs: %w", err)
	}
	defer rows.Close()

	var programs []Program
	for rows.Next() {
		p, scanErr := scanProgramRow(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning program: %w", scanErr)
		}
		programs = append(programs, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating programs: %w", err)
	}
	return programs, nil
}

// Create inserts a new program.
func (r *SQLiteRepository) Create(ctx context.Context, p *Program) error {
	channelsJSON, err := json.Marshal(p.Channels)
	if err != nil {
		return fmt.Errorf("marshalling channels: %w", err)
	}

	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	query := `
		INSERT INTO programs (
			id, name, slug, description, enabled, source, message,
			channels, sort_order, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		p.ID,
		p.Name,
		p.Slug,
		p.Description,
		boolToInt(p.Enabled),
		string(p.Source),
		p.Message,
		string(channelsJSON),
		p.SortOrder,
		p.CreatedAt.Format(time.RFC3339),
		p.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrProgramExists
		}
		return fmt.Errorf("inserting program: %w", err)
	}
	return nil
}

// Update modifies an existing program.
func (r *SQLiteRepository) Update(ctx context.Context, p *Program) error {
	channelsJSON, err := json.Marshal(p.Channels)
	if err != nil {
		return fmt.Errorf("marshalling channels: %w", err)
	}

	p.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE programs SET
			name = ?, slug = ?, description = ?, enabled = ?,
			source = ?, message = ?, channels = ?, sort_order = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		p.Name,
		p.Slug,
		p.Description,
		boolToInt(p.Enabled),
		string(p.Source),
		p.Message,
		string(channelsJSON),
		p.SortOrder,
		p.UpdatedAt.Format(time.RFC3339),
		p.ID,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrProgramExists
		}
		return fmt.Errorf("updating program: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrProgramNotFound
	}
	return nil
}

// Delete removes a program by ID. Execution records cascade.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM programs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting program: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrProgramNotFound
	}
	return nil
}

// CreateExecution inserts a new execution record.
func (r *SQLiteRepository) CreateExecution(ctx context.Context, exec *Execution) error {
	query := `
		INSERT INTO program_executions (
			id, program_id, triggered_by, status,
			steps_total, steps_failed, error, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		exec.ID,
		exec.ProgramID,
		exec.TriggeredBy,
		string(exec.Status),
		exec.StepsTotal,
		exec.StepsFailed,
		exec.Error,
		exec.StartedAt.Format(time.RFC3339),
		exec.FinishedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting execution: %w", err)
	}
	return nil
}

// GetExecution retrieves an execution by ID.
func (r *SQLiteRepository) GetExecution(ctx context.Context, id string) (*Execution, error) {
	query := `
		SELECT id, program_id, triggered_by, status,
			steps_total, steps_failed, error, started_at, finished_at
		FROM program_executions
		WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	exec, err := scanExecutionRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrExecutionNotFound
		}
		return nil, fmt.Errorf("querying execution: %w", err)
	}
	return exec, nil
}

// ListExecutions retrieves recent executions for a program, newest first.
func (r *SQLiteRepository) ListExecutions(ctx context.Context, programID string, limit int) ([]Execution, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	query := `
		SELECT id, program_id, triggered_by, status,
			steps_total, steps_failed, error, started_at, finished_at
		FROM program_executions
		WHERE program_id = ?
		ORDER BY started_at DESC
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, programID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying executions: %w", err)
	}
	defer rows.Close()

	var executions []Execution
	for rows.Next() {
		exec, scanErr := scanExecutionRow(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning execution: %w", scanErr)
		}
		executions = append(executions, *exec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating executions: %w", err)
	}
	return executions, nil
}

// ─── Row Scanning Helpers ───────────────────────────────────────────────────

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanProgramRow(scanner rowScanner) (*Program, error) {
	var p Program
	var channelsJSON string
	var source string
	var enabled int
	var createdAt, updatedAt string

	err := scanner.Scan(
		&p.ID,
		&p.Name,
		&p.Slug,
		&p.Description,
		&enabled,
		&source,
		&p.Message,
		&channelsJSON,
		&p.SortOrder,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Enabled = enabled != 0
	if mode, parseErr := transmitter.ParseSourceMode(source); parseErr == nil {
		p.Source = mode
	} else {
		p.Source = transmitter.SourceBRAM
	}

	// Parse timestamps (stored as RFC3339 text)
	if t, parseErr := time.Parse(time.RFC3339, createdAt); parseErr == nil {
		p.CreatedAt = t
	}
	if t, parseErr := time.Parse(time.RFC3339, updatedAt); parseErr == nil {
		p.UpdatedAt = t
	}

	// Unmarshal channels JSON
	if channelsJSON != "" && channelsJSON != "[]" {
		if jsonErr := json.Unmarshal([]byte(channelsJSON), &p.Channels); jsonErr != nil {
			return nil, fmt.Errorf("unmarshalling channels: %w", jsonErr)
		}
	}
	if p.Channels == nil {
		p.Channels = []ChannelSetting{}
	}

	return &p, nil
}

func scanExecutionRow(scanner rowScanner) (*Execution, error) {
	var e Execution
	var status string
	var startedAt, finishedAt string

	err := scanner.Scan(
		&e.ID,
		&e.ProgramID,
		&e.TriggeredBy,
		&status,
		&e.StepsTotal,
		&e.StepsFailed,
		&e.Error,
		&startedAt,
		&finishedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Status = ExecutionStatus(status)
	if t, parseErr := time.Parse(time.RFC3339, startedAt); parseErr == nil {
		e.StartedAt = t
	}
	if t, parseErr := time.Parse(time.RFC3339, finishedAt); parseErr == nil {
		e.FinishedAt = t
	}

	return &e, nil
}

// ─── SQL Helpers ────────────────────────────────────────────────────────────

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
