// Package pipeline is the orchestration shell around agent dispatch: it
// accepts a task, selects an execution mode, runs the dispatch exactly once,
// records exactly one terminal outcome, and fans lifecycle events out to
// observers.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nexusai/nexus/internal/agent"
	"github.com/nexusai/nexus/internal/classify"
	"github.com/nexusai/nexus/internal/events"
	"github.com/nexusai/nexus/internal/memory"
	"github.com/nexusai/nexus/internal/metrics"
	"github.com/nexusai/nexus/internal/notify"
	"github.com/nexusai/nexus/internal/registry"
	"github.com/nexusai/nexus/internal/store"
	"github.com/nexusai/nexus/internal/task"
	"go.uber.org/zap"
)

// ErrEmptyTask is the one synchronous submission failure: malformed input.
var ErrEmptyTask = errors.New("task description is required")

const defaultDispatchTimeout = 10 * time.Minute

// Scheduler is the cron shell attached to the pipeline. Stop prevents new
// scheduled ticks; it does not cancel in-flight dispatches.
type Scheduler interface {
	Start()
	Stop()
}

type Options struct {
	Store      store.Store
	Hub        *events.Hub
	Team       *agent.Team
	Memory     *memory.Memory
	Classifier classify.Classifier
	Notifier   *notify.Notifier
	Logger     *zap.Logger
	// DispatchTimeout bounds a single agent dispatch; expiry surfaces as a
	// failed outcome through the normal failure path.
	DispatchTimeout time.Duration
}

type Pipeline struct {
	store      store.Store
	hub        *events.Hub
	team       *agent.Team
	memory     *memory.Memory
	classifier classify.Classifier
	notifier   *notify.Notifier
	registry   *registry.Registry
	log        *zap.Logger
	timeout    time.Duration

	mu        sync.Mutex
	running   bool
	sched     Scheduler
	startTime time.Time

	wg sync.WaitGroup
}

func New(opts Options) *Pipeline {
	timeout := opts.DispatchTimeout
	if timeout <= 0 {
		timeout = defaultDispatchTimeout
	}

	return &Pipeline{
		store:      opts.Store,
		hub:        opts.Hub,
		team:       opts.Team,
		memory:     opts.Memory,
		classifier: opts.Classifier,
		notifier:   opts.Notifier,
		registry:   registry.New(),
		log:        opts.Logger,
		timeout:    timeout,
		startTime:  time.Now(),
	}
}

// AttachScheduler wires the cron shell. Called once during startup wiring.
func (p *Pipeline) AttachScheduler(s Scheduler) {
	p.mu.Lock()
	p.sched = s
	p.mu.Unlock()
}

func (p *Pipeline) Registry() *registry.Registry { return p.registry }

// Submit accepts a task for asynchronous execution and returns its id
// immediately. Mode resolution: a valid explicit hint wins; anything else
// (including "auto") goes through the classifier.
func (p *Pipeline) Submit(ctx context.Context, description, modeHint string) (string, error) {
	if description == "" {
		return "", ErrEmptyTask
	}

	mode, ok := task.ParseMode(modeHint)
	if !ok {
		mode = p.classifier.Classify(description)
	}

	recordID, err := p.store.CreateTask(ctx, description)
	if err != nil {
		return "", fmt.Errorf("failed to persist task: %w", err)
	}

	entry := p.registry.Begin(description, mode, recordID)

	p.Logf("info", fmt.Sprintf("task accepted: %s (mode=%s)", description, mode))
	p.hub.Broadcast(events.TaskStarted(entry.ID, description))
	metrics.RecordTaskSubmitted(string(mode))

	p.wg.Add(1)
	go p.execute(entry)

	return entry.ID, nil
}

// execute runs one dispatch to its terminal outcome. The registry entry is
// removed in a deferred block so it never leaks, whatever path the dispatch
// takes.
func (p *Pipeline) execute(entry registry.Entry) {
	defer p.wg.Done()
	defer p.registry.End(entry.ID)

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	start := time.Now()
	result, err := p.team.Execute(ctx, entry.Description, entry.Mode)
	duration := time.Since(start)

	// Terminal store writes use a fresh context: the dispatch context may
	// already be expired, and the record must still reach its terminal state.
	storeCtx, storeCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer storeCancel()

	if err != nil {
		p.log.Error("task dispatch failed",
			zap.String("task_id", entry.ID),
			zap.String("mode", string(entry.Mode)),
			zap.Error(err))

		if serr := p.store.FailTask(storeCtx, entry.RecordID, err.Error()); serr != nil {
			p.log.Error("failed to record task failure", zap.Int64("record_id", entry.RecordID), zap.Error(serr))
		}

		p.Logf("error", fmt.Sprintf("task failed: %s: %v", entry.Description, err))
		p.hub.Broadcast(events.TaskFailed(entry.ID, err.Error()))
		metrics.RecordTaskFailed(string(entry.Mode), duration)

		if p.notifier != nil {
			p.notifier.TaskFailed(entry.Description, err)
		}
		return
	}

	if serr := p.store.CompleteTask(storeCtx, entry.RecordID, result); serr != nil {
		p.log.Error("failed to record task completion", zap.Int64("record_id", entry.RecordID), zap.Error(serr))
	}

	if merr := p.memory.SaveTaskResult(entry.Description, result); merr != nil {
		p.log.Warn("failed to save task result to memory", zap.Error(merr))
	}

	p.Logf("info", fmt.Sprintf("task completed: %s", entry.Description))
	p.hub.Broadcast(events.TaskCompleted(entry.ID, result))
	metrics.RecordTaskCompleted(string(entry.Mode), duration)
}

// Start marks the pipeline running and starts the scheduler. Idempotent.
func (p *Pipeline) Start() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	sched := p.sched
	p.mu.Unlock()

	p.Logf("info", "pipeline started")
	if sched != nil {
		sched.Start()
	}
}

// Stop halts scheduled ticks. In-flight dispatches continue to their
// terminal outcome, and manual submissions are still accepted. Idempotent.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	sched := p.sched
	p.mu.Unlock()

	if sched != nil {
		sched.Stop()
	}
	p.Logf("info", "pipeline stopped")
}

// Wait blocks until every in-flight dispatch has reached a terminal outcome.
// Used for graceful shutdown and by tests.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// Snapshot is the aggregate system status.
type Snapshot struct {
	Status         string  `json:"status"`
	UptimeSeconds  float64 `json:"uptime"`
	ActiveAgents   int     `json:"active_agents"`
	TasksCompleted int     `json:"tasks_completed"`
	CurrentTask    string  `json:"current_task,omitempty"`
}

func (p *Pipeline) Status(ctx context.Context) Snapshot {
	p.mu.Lock()
	running := p.running
	started := p.startTime
	p.mu.Unlock()

	snap := Snapshot{
		Status:        "stopped",
		UptimeSeconds: time.Since(started).Seconds(),
		ActiveAgents:  p.registry.ActiveCount(),
	}
	if running {
		snap.Status = "running"
	}

	completed, err := p.store.CountTasks(ctx, task.StatusCompleted)
	if err != nil {
		p.log.Warn("failed to count completed tasks", zap.Error(err))
	} else {
		snap.TasksCompleted = completed
	}

	if entry, ok := p.registry.First(); ok {
		snap.CurrentTask = entry.Description
	}

	return snap
}

// Logf writes one log line to the structured logger, the durable log table
// and the observer feed.
func (p *Pipeline) Logf(level, message string) {
	switch level {
	case "error":
		p.log.Error(message)
	case "warn":
		p.log.Warn(message)
	default:
		p.log.Info(message)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.store.AppendLog(ctx, level, message); err != nil {
		p.log.Warn("failed to persist log line", zap.Error(err))
	}

	p.hub.Broadcast(events.Log(level, message))
}
