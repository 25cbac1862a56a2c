// Package task defines the core task domain model shared by the pipeline,
// store and API layers: execution modes, terminal statuses and durable records.
package task

import "time"

type (
	Status string
	Mode   string
)

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

const (
	ModeResearch Mode = "research"
	ModeDevelop  Mode = "develop"
	ModeAnalyze  Mode = "analyze"
)

// ParseMode maps a submission mode hint to a concrete execution mode.
// "auto", the empty string and unknown values report ok=false, meaning the
// caller should classify the task description instead.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeResearch, ModeDevelop, ModeAnalyze:
		return Mode(s), true
	default:
		return "", false
	}
}

// Record is the durable form of a task. Status transitions only
// running→completed or running→failed, exactly once; CompletedAt is set at
// the terminal transition on both paths.
type Record struct {
	ID          int64      `json:"id"`
	Description string     `json:"description"`
	Status      Status     `json:"status"`
	Result      string     `json:"result,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// LogRecord is one append-only system log line.
type LogRecord struct {
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
