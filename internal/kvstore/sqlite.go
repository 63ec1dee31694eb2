package kvstore

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// SQLiteStore implements Store on a single-table SQLite database
type SQLiteStore struct {
	db     *sqlx.DB
	path   string
	logger *logrus.Logger
}

// OpenSQLite opens or creates a SQLite-backed store at path
func OpenSQLite(path string, logger *logrus.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store %s: %w: %v", path, ErrCorrupt, err)
	}

	// WAL keeps readers unblocked while the single writer commits.
	db.Exec("PRAGMA journal_mode = WAL")
	db.Exec("PRAGMA synchronous = NORMAL")

	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		key TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		// A truncated or foreign file opens fine but fails here with
		// "file is not a database".
		db.Close()
		return nil, fmt.Errorf("init sqlite store %s: %w: %v", path, ErrCorrupt, err)
	}

	return &SQLiteStore{db: db, path: path, logger: logger}, nil
}

// Get returns the stored value for key, with found=false on absence
func (s *SQLiteStore) Get(key string) (bool, bool, error) {
	var value int
	err := s.db.Get(&value, "SELECT value FROM entries WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("read sqlite store: %w", err)
	}
	return value != 0, true, nil
}

// Put upserts key=value in its own transaction
func (s *SQLiteStore) Put(key string, value bool) error {
	v := 0
	if value {
		v = 1
	}
	_, err := s.db.Exec(
		"INSERT INTO entries (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, v,
	)
	if err != nil {
		return fmt.Errorf("write sqlite store: %w", err)
	}
	return nil
}

// Flush checkpoints the WAL into the main database file
func (s *SQLiteStore) Flush() error {
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("checkpoint sqlite store: %w", err)
	}
	return nil
}

// Close flushes and releases the database handle
func (s *SQLiteStore) Close() error {
	s.Flush()
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite store: %w", err)
	}
	return nil
}
