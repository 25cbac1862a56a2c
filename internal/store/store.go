// Package store provides durable persistence for task and log records.
// Implementations must be safe for interleaved calls from concurrently
// executing tasks and offer read-after-write consistency, since the status
// endpoint queries immediately after writes.
package store

import (
	"context"

	"github.com/nexusai/nexus/internal/task"
)

type Store interface {
	// CreateTask inserts a record with status running and returns its row id.
	CreateTask(ctx context.Context, description string) (int64, error)
	// CompleteTask transitions running→completed and sets completed_at.
	CompleteTask(ctx context.Context, id int64, result string) error
	// FailTask transitions running→failed, stores the error text as the
	// result and sets completed_at.
	FailTask(ctx context.Context, id int64, errText string) error
	RecentTasks(ctx context.Context, limit int) ([]task.Record, error)
	CountTasks(ctx context.Context, status task.Status) (int, error)
	AppendLog(ctx context.Context, level, message string) error
	RecentLogs(ctx context.Context, limit int) ([]task.LogRecord, error)
	Close() error
}
