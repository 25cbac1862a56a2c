package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"
	"github.com/nexusai/nexus/internal/task"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS tasks (
	id BIGSERIAL PRIMARY KEY,
	description TEXT NOT NULL,
	status TEXT NOT NULL,
	result TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS logs (
	id BIGSERIAL PRIMARY KEY,
	level TEXT NOT NULL,
	message TEXT NOT NULL,
	timestamp TIMESTAMPTZ NOT NULL
);`

// PostgresStore backs shared deployments where several operators read the
// same task history.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(connectionString string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if _, err := db.Exec(postgresSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) CreateTask(ctx context.Context, description string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(
		ctx,
		`INSERT INTO tasks (description, status, created_at) VALUES ($1, $2, $3) RETURNING id`,
		description, task.StatusRunning, time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create task record: %w", err)
	}

	return id, nil
}

func (s *PostgresStore) CompleteTask(ctx context.Context, id int64, result string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE tasks SET status = $1, result = $2, completed_at = NOW() WHERE id = $3`,
		task.StatusCompleted, result, id,
	)
	return err
}

func (s *PostgresStore) FailTask(ctx context.Context, id int64, errText string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE tasks SET status = $1, result = $2, completed_at = NOW() WHERE id = $3`,
		task.StatusFailed, errText, id,
	)
	return err
}

func (s *PostgresStore) RecentTasks(ctx context.Context, limit int) ([]task.Record, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, description, status, result, created_at, completed_at
		 FROM tasks ORDER BY created_at DESC, id DESC LIMIT $1`,
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

func (s *PostgresStore) CountTasks(ctx context.Context, status task.Status) (int, error) {
	var count int
	err := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(*) FROM tasks WHERE status = $1`,
		status,
	).Scan(&count)
	return count, err
}

func (s *PostgresStore) AppendLog(ctx context.Context, level, message string) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO logs (level, message, timestamp) VALUES ($1, $2, $3)`,
		level, message, time.Now().UTC(),
	)
	return err
}

func (s *PostgresStore) RecentLogs(ctx context.Context, limit int) ([]task.LogRecord, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT level, message, timestamp FROM logs ORDER BY id DESC LIMIT $1`,
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

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
