// Package registry tracks tasks that are currently executing. Entries are
// ephemeral bookkeeping between submission and terminal outcome; the durable
// record lives in the store.
package registry

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nexusai/nexus/internal/task"
)

// Entry describes one in-flight task. RecordID is the backing store row.
type Entry struct {
	ID          string
	Description string
	Mode        task.Mode
	RecordID    int64
	StartedAt   time.Time
}

type Registry struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func New() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Begin allocates and stores an entry for a task about to dispatch. The id
// carries a uuid suffix so ids stay unique under sub-second concurrent
// submissions, where a timestamp alone would collide.
func (r *Registry) Begin(description string, mode task.Mode, recordID int64) Entry {
	entry := Entry{
		ID:          fmt.Sprintf("task_%s_%s", time.Now().Format("20060102_150405"), uuid.NewString()[:8]),
		Description: description,
		Mode:        mode,
		RecordID:    recordID,
		StartedAt:   time.Now(),
	}

	r.mu.Lock()
	r.entries[entry.ID] = entry
	r.mu.Unlock()

	return entry
}

// End removes the entry. Ending an absent id is a no-op, so the deferred
// cleanup in the dispatch goroutine can run unconditionally.
func (r *Registry) End(id string) {
	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()
}

func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) ActiveIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	return ids
}

// First returns an arbitrary in-flight entry for status reporting.
func (r *Registry) First() (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, entry := range r.entries {
		return entry, true
	}
	return Entry{}, false
}
