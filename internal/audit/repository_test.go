package audit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// testDB creates a temporary SQLite database with the audit schema applied.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp("", "audit-test-*.db")
	if err != nil {
		t.Fatalf("creating temp db: %v", err)
	}
	dbPath := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(dbPath) })

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
		CREATE TABLE audit_logs (
			id         TEXT PRIMARY KEY,
			action     TEXT NOT NULL,
			actor      TEXT NOT NULL DEFAULT '',
			source     TEXT NOT NULL,
			outcome    TEXT NOT NULL,
			details    TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL
		);
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("applying audit schema: %v", err)
	}

	return db
}

func TestSQLiteRepository_CreateAndList(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	entry := &Entry{
		Action:  "arm",
		Actor:   "alice",
		Source:  SourceAPI,
		Outcome: OutcomeSuccess,
		Details: map[string]any{"channels": float64(12)},
	}
	if err := repo.Create(ctx, entry); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if entry.ID == "" {
		t.Error("Create() should generate an ID")
	}

	result, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Total != 1 || len(result.Entries) != 1 {
		t.Fatalf("List() total = %d, entries = %d, want 1/1", result.Total, len(result.Entries))
	}

	got := result.Entries[0]
	if got.Action != "arm" || got.Actor != "alice" || got.Source != SourceAPI {
		t.Errorf("round-trip mismatch: %+v", got)
	}
	if got.Details["channels"] != float64(12) {
		t.Errorf("Details = %v, want channels=12", got.Details)
	}
}

func TestSQLiteRepository_ListFilters(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	seed := []Entry{
		{Action: "arm", Actor: "alice", Source: SourceAPI, Outcome: OutcomeSuccess},
		{Action: "start", Actor: "alice", Source: SourceAPI, Outcome: OutcomeFailure},
		{Action: "arm", Actor: "bob", Source: SourceMQTT, Outcome: OutcomeSuccess},
	}
	for i := range seed {
		seed[i].CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Second)
		if err := repo.Create(ctx, &seed[i]); err != nil {
			t.Fatalf("seeding entry %d: %v", i, err)
		}
	}

	tests := []struct {
		name      string
		filter    Filter
		wantTotal int
	}{
		{"no filter", Filter{}, 3},
		{"by action", Filter{Action: "arm"}, 2},
		{"by actor", Filter{Actor: "alice"}, 2},
		{"by source", Filter{Source: SourceMQTT}, 1},
		{"by outcome", Filter{Outcome: OutcomeFailure}, 1},
		{"combined", Filter{Action: "arm", Actor: "bob"}, 1},
		{"no match", Filter{Action: "emergency"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if result.Total != tt.wantTotal {
				t.Errorf("Total = %d, want %d", result.Total, tt.wantTotal)
			}
		})
	}
}

func TestSQLiteRepository_ListPagination(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		entry := &Entry{
			Action:    fmt.Sprintf("action-%d", i),
			Source:    SourceSystem,
			Outcome:   OutcomeSuccess,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := repo.Create(ctx, entry); err != nil {
			t.Fatalf("seeding entry %d: %v", i, err)
		}
	}

	result, err := repo.List(ctx, Filter{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Total != 5 {
		t.Errorf("Total = %d, want 5", result.Total)
	}
	if len(result.Entries) != 2 {
		t.Fatalf("len(Entries) = %d, want 2", len(result.Entries))
	}
	// Newest first: offset 1 skips action-4.
	if result.Entries[0].Action != "action-3" {
		t.Errorf("first entry = %q, want action-3", result.Entries[0].Action)
	}
}

func TestSQLiteRepository_LimitClamped(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)

	result, err := repo.List(context.Background(), Filter{Limit: 9999})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Limit != 200 {
		t.Errorf("Limit = %d, want clamped to 200", result.Limit)
	}

	result, err = repo.List(context.Background(), Filter{Limit: -1})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Limit != 50 {
		t.Errorf("Limit = %d, want default 50", result.Limit)
	}
}
