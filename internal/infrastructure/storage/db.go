// Package storage persists tender records, dashboard projections and
// processing watermarks in SQLite.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
    source          TEXT NOT NULL,
    id              TEXT NOT NULL,
    department_code INTEGER,
    status          TEXT NOT NULL,
    fields          TEXT NOT NULL,
    created_at      TEXT NOT NULL,
    PRIMARY KEY (source, id)
);

CREATE INDEX IF NOT EXISTS idx_records_source_created
    ON records (source, created_at);

CREATE TABLE IF NOT EXISTS dashboard_records (
    source           TEXT NOT NULL,
    record_id        TEXT NOT NULL,
    process_number   TEXT NOT NULL,
    process_name     TEXT NOT NULL,
    category         TEXT NOT NULL,
    general_category TEXT NOT NULL,
    created_at       TEXT NOT NULL,
    PRIMARY KEY (source, record_id)
);

CREATE TABLE IF NOT EXISTS watermarks (
    source     TEXT NOT NULL,
    purpose    TEXT NOT NULL,
    ts         TEXT NOT NULL,
    metadata   TEXT NOT NULL DEFAULT '{}',
    updated_at TEXT NOT NULL,
    PRIMARY KEY (source, purpose)
);
`

// Open opens the SQLite database at path, applies production pragmas and
// bootstraps the schema. Parent directories are created as needed.
func Open(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}
