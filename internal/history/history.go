// Package history records dispatched voice commands in a local sqlite
// database.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// DefaultLimit bounds Recent when no limit is given.
const DefaultLimit = 20

// Entry is one dispatched command.
type Entry struct {
	ID         int64     `json:"id"`
	At         time.Time `json:"at"`
	Profile    string    `json:"profile"`
	Recognizer string    `json:"recognizer"`
	Phrase     string    `json:"phrase"`
	Command    string    `json:"command"`
	Macro      string    `json:"macro"`
	Exact      bool      `json:"exact"`
	Error      string    `json:"error,omitempty"`
}

// Store is the sqlite-backed history log.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	// One writer: the engine goroutine. A single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("history pragma %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database file.
func (s *Store) Path() string { return s.path }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Record appends e. A zero At is stamped with the current time.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO command_history (at_unix_ms, profile, recognizer, phrase, command, macro, exact, error)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.At.UnixMilli(), e.Profile, e.Recognizer, e.Phrase, e.Command, e.Macro, boolToInt(e.Exact), e.Error,
	)
	if err != nil {
		return fmt.Errorf("record history: %w", err)
	}
	return nil
}

// Recent returns the newest limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, at_unix_ms, profile, recognizer, phrase, command, macro, exact, error
FROM command_history
ORDER BY at_unix_ms DESC, id DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e     Entry
			atMS  int64
			exact int
		)
		if err := rows.Scan(&e.ID, &atMS, &e.Profile, &e.Recognizer, &e.Phrase, &e.Command, &e.Macro, &exact, &e.Error); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.At = time.UnixMilli(atMS)
		e.Exact = exact != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
