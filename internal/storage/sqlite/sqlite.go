// Package sqlite persists the event journal and session read model in
// a single sqlite database file.
package sqlite

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/vk2dls/qsonet/internal/platform/storage/sqlitemigrate"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// The read model is derived state. Reprojection drops and recreates
// it, so its schema lives here as runtime DDL rather than in a
// migration file.
const qsosDDL = `
CREATE TABLE IF NOT EXISTS qsos (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT NOT NULL,
    frequency REAL NOT NULL,
    moderator_id TEXT NOT NULL,
    start_time TEXT NOT NULL,
    participants TEXT NOT NULL,
    deleted INTEGER NOT NULL DEFAULT 0,
    deleted_by TEXT NOT NULL DEFAULT '',
    deleted_at TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
`

// Store implements storage.Store on sqlite.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path, applies migrations, and
// ensures the read-model table exists.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single writer connection avoids SQLITE_BUSY under concurrent
	// appends from the command path and the pipeline worker.
	db.SetMaxOpenConns(1)

	if err := sqlitemigrate.ApplyMigrations(db, migrationFS, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	if _, err := db.Exec(qsosDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure qsos table: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
