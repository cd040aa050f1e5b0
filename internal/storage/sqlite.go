package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrEmptyPath is returned when no database path is configured.
var ErrEmptyPath = errors.New("sqlite path is empty")

const pragmaTimeout = 5 * time.Second

var connPragmas = []string{
	"PRAGMA foreign_keys = ON",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA journal_mode = WAL",
}

// schema holds the gateway tables. system_events is the per-session queue
// drained by heartbeat turns; hook_runs records every isolated agent turn.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS system_events (
  seq         INTEGER PRIMARY KEY AUTOINCREMENT,
  id          TEXT NOT NULL UNIQUE,
  session_key TEXT NOT NULL,
  text        TEXT NOT NULL,
  created_at  TEXT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS system_events_session_seq_idx ON system_events(session_key, seq)`,
	`CREATE TABLE IF NOT EXISTS hook_runs (
  run_id       TEXT PRIMARY KEY,
  job_id       TEXT NOT NULL,
  job_name     TEXT NOT NULL,
  agent_id     TEXT,
  session_key  TEXT NOT NULL,
  lane         TEXT NOT NULL,
  status       TEXT NOT NULL,
  summary      TEXT,
  last_error   TEXT,
  delivered    INTEGER NOT NULL DEFAULT 0,
  started_at   TEXT NOT NULL,
  finished_at  TEXT
)`,
	`CREATE INDEX IF NOT EXISTS hook_runs_job_id_idx ON hook_runs(job_id)`,
}

// OpenSQLite opens the state database at path, creating its directory and
// tables on first use. The database must live on a local filesystem.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	if err := requireLocalFilesystem(path); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Hook tasks enqueue concurrently; one connection serialises the writers.
	db.SetMaxOpenConns(1)

	if err := prepare(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func prepare(ctx context.Context, db *sql.DB) error {
	pctx, cancel := context.WithTimeout(ctx, pragmaTimeout)
	defer cancel()
	for _, p := range connPragmas {
		if _, err := db.ExecContext(pctx, p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return BootstrapSQLite(ctx, db)
}

// BootstrapSQLite creates missing tables and indexes. It is safe to call on
// an already initialised database.
func BootstrapSQLite(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("bootstrap sqlite: %w", err)
	}
	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("bootstrap sqlite: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("bootstrap sqlite: %w", err)
	}
	return nil
}
