package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nexusai/nexus/internal/task"
)

// MockStore is an in-memory Store used by pipeline and API tests. It records
// terminal transitions so tests can assert the exactly-once property.
type MockStore struct {
	mu sync.Mutex

	nextID int64
	Tasks  map[int64]*task.Record
	Logs   []task.LogRecord

	CompleteCalls []int64
	FailCalls     []int64

	CreateTaskError   error
	CompleteTaskError error
	FailTaskError     error
	AppendLogError    error
}

func NewMockStore() *MockStore {
	return &MockStore{
		nextID: 1,
		Tasks:  make(map[int64]*task.Record),
	}
}

func (m *MockStore) CreateTask(_ context.Context, description string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CreateTaskError != nil {
		return 0, m.CreateTaskError
	}

	id := m.nextID
	m.nextID++
	m.Tasks[id] = &task.Record{
		ID:          id,
		Description: description,
		Status:      task.StatusRunning,
		CreatedAt:   time.Now(),
	}

	return id, nil
}

func (m *MockStore) CompleteTask(_ context.Context, id int64, result string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CompleteCalls = append(m.CompleteCalls, id)
	if m.CompleteTaskError != nil {
		return m.CompleteTaskError
	}

	rec, ok := m.Tasks[id]
	if !ok {
		return fmt.Errorf("no task record %d", id)
	}

	now := time.Now()
	rec.Status = task.StatusCompleted
	rec.Result = result
	rec.CompletedAt = &now
	return nil
}

func (m *MockStore) FailTask(_ context.Context, id int64, errText string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.FailCalls = append(m.FailCalls, id)
	if m.FailTaskError != nil {
		return m.FailTaskError
	}

	rec, ok := m.Tasks[id]
	if !ok {
		return fmt.Errorf("no task record %d", id)
	}

	now := time.Now()
	rec.Status = task.StatusFailed
	rec.Result = errText
	rec.CompletedAt = &now
	return nil
}

func (m *MockStore) RecentTasks(_ context.Context, limit int) ([]task.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	records := make([]task.Record, 0, len(m.Tasks))
	for _, rec := range m.Tasks {
		records = append(records, *rec)
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID > records[j].ID
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (m *MockStore) CountTasks(_ context.Context, status task.Status) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, rec := range m.Tasks {
		if rec.Status == status {
			count++
		}
	}
	return count, nil
}

func (m *MockStore) AppendLog(_ context.Context, level, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.AppendLogError != nil {
		return m.AppendLogError
	}

	m.Logs = append(m.Logs, task.LogRecord{Level: level, Message: message, Timestamp: time.Now()})
	return nil
}

func (m *MockStore) RecentLogs(_ context.Context, limit int) ([]task.LogRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	logs := make([]task.LogRecord, 0, limit)
	for i := len(m.Logs) - 1; i >= 0 && len(logs) < limit; i-- {
		logs = append(logs, m.Logs[i])
	}
	return logs, nil
}

func (m *MockStore) TerminalCalls(id int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, c := range m.CompleteCalls {
		if c == id {
			count++
		}
	}
	for _, c := range m.FailCalls {
		if c == id {
			count++
		}
	}
	return count
}

func (m *MockStore) Close() error { return nil }
