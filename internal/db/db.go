package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jonboulle/clockwork"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultPrefix namespaces every key written by the dashboard.
const DefaultPrefix = "wthr_"

var errNotInitialized = errors.New("database not initialized")

// DB wraps a database connection and exposes a namespaced key-value store of
// JSON values.
type DB struct {
	*sql.DB
	prefix string
	clock  clockwork.Clock
}

// Open opens the database at path, creating the parent directory if needed.
// ":memory:" gives a throwaway store. clock stamps updated_at and defaults to
// the real clock when nil.
func Open(path, prefix string, clock clockwork.Clock) (*DB, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps ":memory:" databases shared and serialises
	// writers.
	db.SetMaxOpenConns(1)

	// Verify connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &DB{DB: db, prefix: prefix, clock: clock}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS kv (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		);
	`)
	return err
}

func (d *DB) key(k string) string {
	return d.prefix + k
}

// Get decodes the value stored under key into dst. It reports false when the
// key is absent.
func (d *DB) Get(key string, dst any) (bool, error) {
	if d == nil || d.DB == nil {
		return false, errNotInitialized
	}

	var raw string
	err := d.QueryRow("SELECT value FROM kv WHERE key = ?", d.key(key)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading %q: %w", key, err)
	}

	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("decoding %q: %w", key, err)
	}
	return true, nil
}

// Set stores v as JSON under key, replacing any previous value.
func (d *DB) Set(key string, v any) error {
	if d == nil || d.DB == nil {
		return errNotInitialized
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %q: %w", key, err)
	}

	_, err = d.Exec(
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		d.key(key), string(data), d.clock.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("writing %q: %w", key, err)
	}
	return nil
}

// Remove deletes key. Removing an absent key is not an error.
func (d *DB) Remove(key string) error {
	if d == nil || d.DB == nil {
		return errNotInitialized
	}

	if _, err := d.Exec("DELETE FROM kv WHERE key = ?", d.key(key)); err != nil {
		return fmt.Errorf("removing %q: %w", key, err)
	}
	return nil
}
