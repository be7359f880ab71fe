// Package session persists chat interactions in a SQLite database under
// the vault. Recent entries are folded into prompt context so the
// assistant can refer back to what happened earlier in the day.
package session

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS interactions (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	ts      TEXT    NOT NULL,
	kind    TEXT    NOT NULL,
	text    TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_interactions_user_ts ON interactions(user_id, ts);
`

// Entry is one recorded interaction.
type Entry struct {
	ID     int64
	UserID int64
	Time   time.Time
	Kind   string
	Text   string
}

// Store is a SQLite-backed interaction log. Safe for concurrent use; the
// connection pool is capped at one to avoid writer contention.
type Store struct {
	db *sql.DB
}

// Open creates or opens the store at path, applying the schema. The
// parent directory is created when missing.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("session: create directory: %w", err)
	}

	dsn := "file:" + url.PathEscape(path) +
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("session: open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("session: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append records one interaction with the current time.
func (s *Store) Append(ctx context.Context, userID int64, kind, text string) error {
	ts := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO interactions (user_id, ts, kind, text) VALUES (?, ?, ?, ?)`,
		userID, ts, kind, text)
	if err != nil {
		return fmt.Errorf("session: append: %w", err)
	}
	return nil
}

// Today returns the user's entries since local midnight, oldest first.
func (s *Store) Today(ctx context.Context, userID int64) ([]Entry, error) {
	dayStart := time.Now()
	dayStart = time.Date(dayStart.Year(), dayStart.Month(), dayStart.Day(), 0, 0, 0, 0, dayStart.Location())
	since := dayStart.UTC().Format(time.RFC3339)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, ts, kind, text FROM interactions
		 WHERE user_id = ? AND ts >= ? ORDER BY ts ASC, id ASC`,
		userID, since)
	if err != nil {
		return nil, fmt.Errorf("session: query today: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e  Entry
			ts string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &ts, &e.Kind, &e.Text); err != nil {
			return nil, fmt.Errorf("session: scan row: %w", err)
		}
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			e.Time = parsed
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("session: iterate rows: %w", err)
	}
	return entries, nil
}
