package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nexusai/nexus/internal/agent"
	"github.com/nexusai/nexus/internal/classify"
	"github.com/nexusai/nexus/internal/events"
	"github.com/nexusai/nexus/internal/memory"
	"github.com/nexusai/nexus/internal/store"
	"github.com/nexusai/nexus/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubCompleter struct {
	mu       sync.Mutex
	lastRole agent.Role
	result   string
	err      error
	delay    time.Duration
}

func (s *stubCompleter) Complete(ctx context.Context, role agent.Role, _ string) (string, error) {
	s.mu.Lock()
	s.lastRole = role
	s.mu.Unlock()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if s.err != nil {
		return "", s.err
	}
	return s.result, nil
}

func (s *stubCompleter) roleName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRole.Name
}

type fakeConn struct {
	mu   sync.Mutex
	msgs [][]byte
	fail bool
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fail {
		return errors.New("send failed")
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	c.msgs = append(c.msgs, buf)
	return nil
}

func (c *fakeConn) Close() error { return nil }

func (c *fakeConn) eventsOfType(typ string) []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []events.Event
	for _, msg := range c.msgs {
		var ev events.Event
		if err := json.Unmarshal(msg, &ev); err == nil && ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

type fixture struct {
	pipe      *Pipeline
	store     *store.MockStore
	completer *stubCompleter
	conn      *fakeConn
}

func setupPipeline(t *testing.T, completer *stubCompleter) *fixture {
	t.Helper()

	mem, err := memory.New(t.TempDir())
	require.NoError(t, err)

	hub := events.NewHub(zap.NewNop())
	conn := &fakeConn{}
	hub.Register(conn)

	mockStore := store.NewMockStore()
	pipe := New(Options{
		Store:           mockStore,
		Hub:             hub,
		Team:            agent.NewTeam(completer),
		Memory:          mem,
		Classifier:      classify.NewKeywordClassifier(),
		Logger:          zap.NewNop(),
		DispatchTimeout: 5 * time.Second,
	})

	return &fixture{pipe: pipe, store: mockStore, completer: completer, conn: conn}
}

func TestSubmitRejectsEmptyDescription(t *testing.T) {
	f := setupPipeline(t, &stubCompleter{result: "ok"})

	_, err := f.pipe.Submit(context.Background(), "", "auto")
	assert.ErrorIs(t, err, ErrEmptyTask)
}

// The market-keyword scenario: the description classifies as research, the
// CMO handles it, the record reaches completed exactly once, the registry
// entry is removed and one task_completed event goes out.
func TestSubmitSuccessPath(t *testing.T) {
	f := setupPipeline(t, &stubCompleter{result: "market analysis: strong demand"})

	taskID, err := f.pipe.Submit(context.Background(), "分析市场趋势和机会", "auto")
	require.NoError(t, err)
	require.NotEmpty(t, taskID)

	f.pipe.Wait()

	assert.Equal(t, "CMO", f.completer.roleName())

	rec := f.store.Tasks[1]
	require.NotNil(t, rec)
	assert.Equal(t, task.StatusCompleted, rec.Status)
	assert.Equal(t, "market analysis: strong demand", rec.Result)
	assert.NotNil(t, rec.CompletedAt)
	assert.Equal(t, 1, f.store.TerminalCalls(1))

	assert.Equal(t, 0, f.pipe.Registry().ActiveCount())

	completed := f.conn.eventsOfType(events.TypeTaskCompleted)
	require.Len(t, completed, 1)
	assert.Equal(t, taskID, completed[0].TaskID)

	started := f.conn.eventsOfType(events.TypeTaskStarted)
	require.Len(t, started, 1)
	assert.Equal(t, taskID, started[0].TaskID)
}

// Explicit develop mode with a failing dispatch: the record reaches failed
// with the error text as result, one task_failed event, registry entry
// removed.
func TestSubmitFailurePath(t *testing.T) {
	f := setupPipeline(t, &stubCompleter{err: errors.New("model unavailable")})

	taskID, err := f.pipe.Submit(context.Background(), "build the ingestion service", "develop")
	require.NoError(t, err)

	f.pipe.Wait()

	assert.Equal(t, "CTO", f.completer.roleName())

	rec := f.store.Tasks[1]
	require.NotNil(t, rec)
	assert.Equal(t, task.StatusFailed, rec.Status)
	assert.Contains(t, rec.Result, "model unavailable")
	assert.NotNil(t, rec.CompletedAt, "failed records carry a completion time")
	assert.Equal(t, 1, f.store.TerminalCalls(1))

	assert.Equal(t, 0, f.pipe.Registry().ActiveCount())

	failed := f.conn.eventsOfType(events.TypeTaskFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, taskID, failed[0].TaskID)
	assert.Contains(t, failed[0].Error, "model unavailable")

	assert.Empty(t, f.conn.eventsOfType(events.TypeTaskCompleted))
}

func TestDispatchTimeoutSurfacesAsFailure(t *testing.T) {
	f := setupPipeline(t, &stubCompleter{result: "too late", delay: time.Minute})
	f.pipe.timeout = 50 * time.Millisecond

	_, err := f.pipe.Submit(context.Background(), "slow task", "analyze")
	require.NoError(t, err)

	f.pipe.Wait()

	rec := f.store.Tasks[1]
	require.NotNil(t, rec)
	assert.Equal(t, task.StatusFailed, rec.Status)
	assert.Contains(t, rec.Result, context.DeadlineExceeded.Error())
}

// A store failure on the terminal path must still remove the registry entry.
func TestRegistryCleanupOnStoreFailure(t *testing.T) {
	f := setupPipeline(t, &stubCompleter{result: "fine"})
	f.store.CompleteTaskError = errors.New("disk full")

	_, err := f.pipe.Submit(context.Background(), "some analysis", "analyze")
	require.NoError(t, err)

	f.pipe.Wait()
	assert.Equal(t, 0, f.pipe.Registry().ActiveCount())
}

func TestSubmitWithStoreDown(t *testing.T) {
	f := setupPipeline(t, &stubCompleter{result: "fine"})
	f.store.CreateTaskError = errors.New("store unavailable")

	_, err := f.pipe.Submit(context.Background(), "some task", "analyze")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmptyTask)
	assert.Equal(t, 0, f.pipe.Registry().ActiveCount())
}

func TestStartStopIdempotent(t *testing.T) {
	f := setupPipeline(t, &stubCompleter{result: "ok"})

	f.pipe.Start()
	f.pipe.Start()
	assert.Equal(t, "running", f.pipe.Status(context.Background()).Status)

	f.pipe.Stop()
	f.pipe.Stop()
	assert.Equal(t, "stopped", f.pipe.Status(context.Background()).Status)
}

// Stop only halts scheduling; manual submissions still run.
func TestSubmitAfterStop(t *testing.T) {
	f := setupPipeline(t, &stubCompleter{result: "still works"})

	f.pipe.Start()
	f.pipe.Stop()

	_, err := f.pipe.Submit(context.Background(), "post-stop analysis", "analyze")
	require.NoError(t, err)

	f.pipe.Wait()
	assert.Equal(t, task.StatusCompleted, f.store.Tasks[1].Status)
}

func TestStatusSnapshot(t *testing.T) {
	blocker := &stubCompleter{result: "done", delay: 200 * time.Millisecond}
	f := setupPipeline(t, blocker)
	f.pipe.Start()

	_, err := f.pipe.Submit(context.Background(), "long running analysis", "analyze")
	require.NoError(t, err)

	snap := f.pipe.Status(context.Background())
	assert.Equal(t, "running", snap.Status)
	assert.Equal(t, 1, snap.ActiveAgents)
	assert.Equal(t, "long running analysis", snap.CurrentTask)
	assert.GreaterOrEqual(t, snap.UptimeSeconds, 0.0)

	f.pipe.Wait()

	snap = f.pipe.Status(context.Background())
	assert.Equal(t, 0, snap.ActiveAgents)
	assert.Equal(t, 1, snap.TasksCompleted)
	assert.Empty(t, snap.CurrentTask)
}

func TestConcurrentSubmissions(t *testing.T) {
	f := setupPipeline(t, &stubCompleter{result: "done", delay: 10 * time.Millisecond})

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.pipe.Submit(context.Background(), "parallel analysis", "analyze")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	f.pipe.Wait()

	assert.Equal(t, 0, f.pipe.Registry().ActiveCount())

	completed, err := f.store.CountTasks(context.Background(), task.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, n, completed)

	for id := int64(1); id <= n; id++ {
		assert.Equal(t, 1, f.store.TerminalCalls(id), "record %d", id)
	}
}

func TestLogfPersistsAndBroadcasts(t *testing.T) {
	f := setupPipeline(t, &stubCompleter{result: "ok"})

	f.pipe.Logf("info", "health check: system operational")

	logs, err := f.store.RecentLogs(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "health check: system operational", logs[0].Message)

	broadcast := f.conn.eventsOfType(events.TypeLog)
	require.Len(t, broadcast, 1)
	assert.Equal(t, "health check: system operational", broadcast[0].Message)
}
