// Package history records every filter application of a project in a SQLite
// database, so past selections can be reviewed and searched.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS filter_history (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	dataset_id    TEXT NOT NULL,
	dataset_name  TEXT NOT NULL,
	filters       TEXT NOT NULL,
	applied_at    TEXT NOT NULL,
	duration_ms   INTEGER NOT NULL DEFAULT 0,
	rows_visible  INTEGER NOT NULL DEFAULT 0,
	success       INTEGER NOT NULL DEFAULT 1,
	error_message TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_filter_history_dataset ON filter_history(dataset_id);
`

const timeLayout = "2006-01-02 15:04:05"

// Entry is one filter application
type Entry struct {
	ID           int
	DatasetID    string
	DatasetName  string
	Filters      string
	AppliedAt    time.Time
	Duration     time.Duration
	RowsVisible  int
	Success      bool
	ErrorMessage string
}

// Store manages filter history persistence
type Store struct {
	db *sql.DB
}

// NewStore opens or creates the history database at path
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Add records an application. A zero AppliedAt means now.
func (s *Store) Add(ctx context.Context, entry Entry) error {
	if entry.AppliedAt.IsZero() {
		entry.AppliedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO filter_history
		(dataset_id, dataset_name, filters, applied_at, duration_ms, rows_visible, success, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.DatasetID,
		entry.DatasetName,
		entry.Filters,
		entry.AppliedAt.UTC().Format(timeLayout),
		entry.Duration.Milliseconds(),
		entry.RowsVisible,
		entry.Success,
		entry.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to record filter history: %w", err)
	}
	return nil
}

// Recent returns the latest entries, newest first. An empty datasetID
// returns entries of every dataset.
func (s *Store) Recent(ctx context.Context, datasetID string, limit int) ([]Entry, error) {
	return s.query(ctx, `
		SELECT id, dataset_id, dataset_name, filters, applied_at,
		       duration_ms, rows_visible, success, error_message
		FROM filter_history
		WHERE ? = '' OR dataset_id = ?
		ORDER BY id DESC
		LIMIT ?`, datasetID, datasetID, limit)
}

// Search returns entries whose filter text contains text, newest first
func (s *Store) Search(ctx context.Context, text string, limit int) ([]Entry, error) {
	return s.query(ctx, `
		SELECT id, dataset_id, dataset_name, filters, applied_at,
		       duration_ms, rows_visible, success, error_message
		FROM filter_history
		WHERE filters LIKE ?
		ORDER BY id DESC
		LIMIT ?`, "%"+text+"%", limit)
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read filter history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var durationMs int64
		var appliedAt string

		err := rows.Scan(
			&e.ID,
			&e.DatasetID,
			&e.DatasetName,
			&e.Filters,
			&appliedAt,
			&durationMs,
			&e.RowsVisible,
			&e.Success,
			&e.ErrorMessage,
		)
		if err != nil {
			return nil, err
		}

		e.Duration = time.Duration(durationMs) * time.Millisecond
		e.AppliedAt, _ = time.Parse(timeLayout, appliedAt)

		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
