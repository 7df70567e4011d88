// Package history records code deploys in a SQLite database. The bare
// logs operation and the webhook status endpoint read from it.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// History manages the deploy history database.
type History struct {
	db *sql.DB
}

// New opens (and if needed creates) the history database at dbPath.
func New(dbPath string) (*History, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	h := &History{db: db}
	if err := h.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}

	return h, nil
}

// Close closes the database connection.
func (h *History) Close() error {
	return h.db.Close()
}

func (h *History) initSchema() error {
	_, err := h.db.Exec(`
		CREATE TABLE IF NOT EXISTS deploys (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			project TEXT NOT NULL,
			status TEXT NOT NULL,
			started_at TEXT NOT NULL,
			duration_seconds REAL NOT NULL,
			checkout_exit INTEGER,
			restart_exit INTEGER,
			error_message TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	_, err = h.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_project_started
		ON deploys(project, started_at DESC)
	`)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// Append records one deploy and returns its row id.
func (h *History) Append(ctx context.Context, record *Record) (int64, error) {
	startedAt := record.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}

	result, err := h.db.ExecContext(ctx, `
		INSERT INTO deploys
		(project, status, started_at, duration_seconds, checkout_exit, restart_exit, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		record.Project,
		record.Status,
		startedAt.UTC().Format(time.RFC3339),
		record.DurationSeconds,
		record.CheckoutExit,
		record.RestartExit,
		record.ErrorMessage,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert deploy record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}

	return id, nil
}

// Latest returns the most recent deploy for a project, or nil if none.
func (h *History) Latest(ctx context.Context, project string) (*Record, error) {
	row := h.db.QueryRowContext(ctx, `
		SELECT id, project, status, started_at, duration_seconds,
		       checkout_exit, restart_exit, error_message
		FROM deploys
		WHERE project = ?
		ORDER BY id DESC
		LIMIT 1
	`, project)

	record, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest deploy: %w", err)
	}

	return record, nil
}

// Recent returns up to limit deploys for a project, newest first.
func (h *History) Recent(ctx context.Context, project string, limit int) ([]Record, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT id, project, status, started_at, duration_seconds,
		       checkout_exit, restart_exit, error_message
		FROM deploys
		WHERE project = ?
		ORDER BY id DESC
		LIMIT ?
	`, project, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query deploy history: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deploy record: %w", err)
		}
		records = append(records, *record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return records, nil
}

// scannable covers both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scannable) (*Record, error) {
	var record Record
	var startedAt string

	err := row.Scan(
		&record.ID,
		&record.Project,
		&record.Status,
		&startedAt,
		&record.DurationSeconds,
		&record.CheckoutExit,
		&record.RestartExit,
		&record.ErrorMessage,
	)
	if err != nil {
		return nil, err
	}

	if t, err := time.Parse(time.RFC3339, startedAt); err == nil {
		record.StartedAt = t
	}

	return &record, nil
}
