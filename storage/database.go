// Package storage provides the durable device-local state behind the
// chat engine: the message cache mirroring received envelopes, the
// catch-up watermark, and small key/value settings. Everything lives in
// one SQLite database per device.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultDBFileName is the SQLite filename under the app data dir.
const DefaultDBFileName = "driftwire.db"

var migrations = []string{
	`
CREATE TABLE IF NOT EXISTS messages (
  signature          TEXT PRIMARY KEY,
  channel            TEXT NOT NULL,
  sender_public_key  TEXT NOT NULL,
  timestamp          INTEGER NOT NULL,
  payload_json       TEXT NOT NULL
);
`,
	`
CREATE INDEX IF NOT EXISTS idx_messages_channel
ON messages (channel);
`,
	`
CREATE TABLE IF NOT EXISTS settings (
  key   TEXT PRIMARY KEY,
  value TEXT NOT NULL
);
`,
}

// Store wraps the device's SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies
// migrations. The parent directory is created if missing.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create data dir %q: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", path, err)
	}

	// A single writer keeps SQLite transactions from tripping over each
	// other under concurrent persists.
	db.SetMaxOpenConns(1)

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply migration %d: %w", i, err)
		}
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
