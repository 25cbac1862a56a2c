// Package scheduler registers the fixed daily jobs that feed the dispatch
// pipeline. A tick whose predecessor is still running is skipped, so a slow
// agent dispatch never fans out into unbounded concurrent runs of the same
// job.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Submitter is the slice of the pipeline the scheduler needs.
type Submitter interface {
	Submit(ctx context.Context, description, modeHint string) (string, error)
	Logf(level, message string)
}

type job struct {
	spec        string
	name        string
	description string
	mode        string
}

var jobs = []job{
	{"0 9 * * *", "market_scan", "Scan the AI industry for the latest developments and identify potential business opportunities", "research"},
	{"0 10 * * *", "strategy_meeting", "Based on current market conditions, draw up this week's work plan and priorities", "analyze"},
	{"0 18 * * *", "daily_summary", "Summarize today's results and lessons learned", "analyze"},
}

const startupDescription = "Analyze the hottest technology trends and business opportunities in AI today"

type Scheduler struct {
	cron *cron.Cron
	pipe Submitter
	log  *zap.Logger
}

func New(pipe Submitter, log *zap.Logger) (*Scheduler, error) {
	cl := cronLogger{log: log.Sugar()}
	c := cron.New(cron.WithChain(
		cron.Recover(cl),
		cron.SkipIfStillRunning(cl),
	))

	s := &Scheduler{cron: c, pipe: pipe, log: log}

	for _, j := range jobs {
		j := j
		if _, err := c.AddFunc(j.spec, func() { s.runJob(j) }); err != nil {
			return nil, fmt.Errorf("failed to register job %s: %w", j.name, err)
		}
	}

	if _, err := c.AddFunc("0 * * * *", s.healthCheck); err != nil {
		return nil, fmt.Errorf("failed to register job health_check: %w", err)
	}

	return s, nil
}

// Start begins cron ticks and fires the one-off startup task.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started")

	go s.runJob(job{name: "startup", description: startupDescription, mode: "auto"})
}

// Stop halts future ticks; jobs already running finish on their own.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.log.Info("scheduler stopped")
}

// runJob submits one scheduled task through the same pipeline as manual
// submissions. Errors stay inside the job: one failing job never affects the
// scheduler's liveness or other jobs.
func (s *Scheduler) runJob(j job) {
	s.log.Info("running scheduled job", zap.String("job", j.name))

	id, err := s.pipe.Submit(context.Background(), j.description, j.mode)
	if err != nil {
		s.log.Error("scheduled job failed to submit", zap.String("job", j.name), zap.Error(err))
		s.pipe.Logf("error", fmt.Sprintf("scheduled job %s failed: %v", j.name, err))
		return
	}

	s.log.Info("scheduled job submitted", zap.String("job", j.name), zap.String("task_id", id))
}

func (s *Scheduler) healthCheck() {
	s.pipe.Logf("info", "health check: system operational")
}

// cronLogger adapts zap to the cron.Logger interface.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Infow(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
