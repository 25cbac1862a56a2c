package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/nexusai/nexus/internal/task"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS tasks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	description TEXT NOT NULL,
	status TEXT NOT NULL,
	result TEXT,
	created_at TIMESTAMP NOT NULL,
	completed_at TIMESTAMP
);
CREATE TABLE IF NOT EXISTS logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	level TEXT NOT NULL,
	message TEXT NOT NULL,
	timestamp TIMESTAMP NOT NULL
);`

// SQLiteStore is the default single-file store.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// The driver serializes access per connection; a single connection keeps
	// writes from competing for the file lock.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) CreateTask(ctx context.Context, description string) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO tasks (description, status, created_at) VALUES (?, ?, ?)`,
		description, task.StatusRunning, time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create task record: %w", err)
	}

	return res.LastInsertId()
}

func (s *SQLiteStore) CompleteTask(ctx context.Context, id int64, result string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE tasks SET status = ?, result = ?, completed_at = ? WHERE id = ?`,
		task.StatusCompleted, result, time.Now().UTC(), id,
	)
	return err
}

func (s *SQLiteStore) FailTask(ctx context.Context, id int64, errText string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE tasks SET status = ?, result = ?, completed_at = ? WHERE id = ?`,
		task.StatusFailed, errText, time.Now().UTC(), id,
	)
	return err
}

func (s *SQLiteStore) RecentTasks(ctx context.Context, limit int) ([]task.Record, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, description, status, result, created_at, completed_at
		 FROM tasks ORDER BY created_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("failed to close rows: %v", err)
		}
	}()

	return scanTaskRows(rows)
}

func (s *SQLiteStore) CountTasks(ctx context.Context, status task.Status) (int, error) {
	var count int
	err := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(*) FROM tasks WHERE status = ?`,
		status,
	).Scan(&count)
	return count, err
}

func (s *SQLiteStore) AppendLog(ctx context.Context, level, message string) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO logs (level, message, timestamp) VALUES (?, ?, ?)`,
		level, message, time.Now().UTC(),
	)
	return err
}

func (s *SQLiteStore) RecentLogs(ctx context.Context, limit int) ([]task.LogRecord, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT level, message, timestamp FROM logs ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("failed to close rows: %v", err)
		}
	}()

	return scanLogRows(rows)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanTaskRows(rows *sql.Rows) ([]task.Record, error) {
	var records []task.Record
	for rows.Next() {
		var (
			rec         task.Record
			result      sql.NullString
			completedAt sql.NullTime
		)
		if err := rows.Scan(&rec.ID, &rec.Description, &rec.Status, &result, &rec.CreatedAt, &completedAt); err != nil {
			return nil, err
		}

		if result.Valid {
			rec.Result = result.String
		}
		if completedAt.Valid {
			rec.CompletedAt = &completedAt.Time
		}

		records = append(records, rec)
	}

	return records, rows.Err()
}

func scanLogRows(rows *sql.Rows) ([]task.LogRecord, error) {
	var logs []task.LogRecord
	for rows.Next() {
		var lr task.LogRecord
		if err := rows.Scan(&lr.Level, &lr.Message, &lr.Timestamp); err != nil {
			return nil, err
		}
		logs = append(logs, lr)
	}

	return logs, rows.Err()
}
