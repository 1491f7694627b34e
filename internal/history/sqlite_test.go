package history

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// testDB creates a temporary SQLite database with the transitions schema applied.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp("", "history-test-*.db")
	if err != nil {
		t.Fatalf("creating temp db: %v", err)
	}
	dbPath := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(dbPath) })

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
		CREATE TABLE state_transitions (
			id         TEXT PRIMARY KEY,
			kind       TEXT NOT NULL,
			from_state TEXT NOT NULL,
			to_state   TEXT NOT NULL,
			reason     TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("applying transitions schema: %v", err)
	}

	return db
}

func TestSQLiteRepository_RecordAndList(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	tr := &Transition{
		Kind:   KindConnection,
		From:   "disconnected",
		To:     "connecting",
		Reason: "operator connect",
	}
	if err := repo.Record(ctx, tr); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if tr.ID == "" {
		t.Error("ID was not generated")
	}
	if tr.CreatedAt.IsZero() {
		t.Error("CreatedAt was not set")
	}

	got, err := repo.List(ctx, "", 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].From != "disconnected" || got[0].To != "connecting" {
		t.Errorf("edge = %s -> %s", got[0].From, got[0].To)
	}
	if got[0].Reason != "operator connect" {
		t.Errorf("Reason = %q", got[0].Reason)
	}
}

func TestSQLiteRepository_Record_Validation(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	tests := []struct {
		name string
		tr   *Transition
	}{
		{"nil transition", nil},
		{"bad kind", &Transition{Kind: "thermal", From: "a", To: "b"}},
		{"missing from", &Transition{Kind: KindBroadcast, To: "armed"}},
		{"missing to", &Transition{Kind: KindBroadcast, From: "idle"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := repo.Record(ctx, tt.tr); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSQLiteRepository_List_FilterAndOrder(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 1, 20, 10, 0, 0, 0, time.UTC)
	edges := []Transition{
		{Kind: KindConnection, From: "disconnected", To: "connecting", CreatedAt: base},
		{Kind: KindConnection, From: "connecting", To: "connected", CreatedAt: base.Add(time.Second)},
		{Kind: KindBroadcast, From: "idle", To: "arming", CreatedAt: base.Add(2 * time.Second)},
		{Kind: KindWatchdog, From: "ok", To: "warning", CreatedAt: base.Add(3 * time.Second)},
	}
	for i := range edges {
		if err := repo.Record(ctx, &edges[i]); err != nil {
			t.Fatalf("Record[%d]: %v", i, err)
		}
	}

	t.Run("all kinds newest first", func(t *testing.T) {
		got, err := repo.List(ctx, "", 10)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(got) != 4 {
			t.Fatalf("len = %d, want 4", len(got))
		}
		if got[0].Kind != KindWatchdog {
			t.Errorf("got[0].Kind = %q, want watchdog (newest)", got[0].Kind)
		}
		if got[3].From != "disconnected" {
			t.Errorf("got[3].From = %q, want disconnected (oldest)", got[3].From)
		}
	})

	t.Run("filter by kind", func(t *testing.T) {
		got, err := repo.List(ctx, KindConnection, 10)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("len = %d, want 2", len(got))
		}
		for _, tr := range got {
			if tr.Kind != KindConnection {
				t.Errorf("Kind = %q, want connection", tr.Kind)
			}
		}
	})

	t.Run("invalid kind", func(t *testing.T) {
		if _, err := repo.List(ctx, "thermal", 10); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("limit applied", func(t *testing.T) {
		got, err := repo.List(ctx, "", 2)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("len = %d, want 2", len(got))
		}
	})
}

func TestSQLiteRepository_Prune(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	old := Transition{Kind: KindBroadcast, From: "idle", To: "arming", CreatedAt: time.Now().UTC().Add(-48 * time.Hour)}
	recent := Transition{Kind: KindBroadcast, From: "arming", To: "armed", CreatedAt: time.Now().UTC()}
	for _, tr := range []*Transition{&old, &recent} {
		if err := repo.Record(ctx, tr); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	deleted, err := repo.Prune(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	got, _ := repo.List(ctx, "", 10)
	if len(got) != 1 || got[0].To != "armed" {
		t.Errorf("surviving rows = %+v", got)
	}

	t.Run("rejects non-positive window", func(t *testing.T) {
		if _, err := repo.Prune(ctx, 0); err == nil {
			t.Error("expected error")
		}
	})
}

func TestSQLiteRepository_List_ClampsLimit(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	if _, err := repo.List(ctx, "", -5); err != nil {
		t.Fatalf("List with negative limit: %v", err)
	}
	if _, err := repo.List(ctx, "", maxListLimit+100); err != nil {
		t.Fatalf("List with oversized limit: %v", err)
	}
}
