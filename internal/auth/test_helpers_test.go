package auth

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// testDB creates a temporary SQLite database with the operators schema applied.
// The database file is cleaned up when the test completes.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	// Use a temp file so WAL mode works (in-memory doesn't support it)
	f, err := os.CreateTemp("", "auth-test-*.db")
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

	migrationSQL := `
		CREATE TABLE operators (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL UNIQUE,
			display_name  TEXT NOT NULL DEFAULT '',
			role          TEXT NOT NULL CHECK (role IN ('viewer', 'operator', 'admin')),
			password_hash TEXT NOT NULL,
			is_active     INTEGER NOT NULL DEFAULT 1,
			created_at    TEXT NOT NULL,
			updated_at    TEXT NOT NULL
		);

		CREATE INDEX idx_operators_username ON operators (username);
	`
	if _, err := db.Exec(migrationSQL); err != nil {
		t.Fatalf("applying operators migration: %v", err)
	}

	return db
}

// seedTestOperator inserts a test operator and returns it.
func seedTestOperator(t *testing.T, db *sql.DB, username string, role Role) *Operator {
	t.Helper()

	hash, err := HashPassword("test-password")
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}

	repo := NewOperatorRepository(db)
	op := &Operator{
		Username:     username,
		DisplayName:  username,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if err := repo.Create(context.Background(), op); err != nil {
		t.Fatalf("creating test operator %s: %v", username, err)
	}
	return op
}
