// Package events fans lifecycle events out to live WebSocket observers.
// Delivery is at-most-once and best-effort: a failed send evicts that
// connection only, and broadcasting with zero observers is a no-op.
package events

import "time"

const (
	TypeConnected     = "connected"
	TypeLog           = "log"
	TypeTaskStarted   = "task_started"
	TypeTaskCompleted = "task_completed"
	TypeTaskFailed    = "task_failed"
)

// Results carried in broadcast events are truncated so a large agent answer
// does not flood every observer; the full text lives in the store.
const maxBroadcastResult = 500

type Event struct {
	Type      string    `json:"type"`
	TaskID    string    `json:"task_id,omitempty"`
	Task      string    `json:"task,omitempty"`
	Level     string    `json:"level,omitempty"`
	Message   string    `json:"message,omitempty"`
	Result    string    `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func Connected(message string) Event {
	return Event{Type: TypeConnected, Message: message, Timestamp: time.Now()}
}

func Log(level, message string) Event {
	return Event{Type: TypeLog, Level: level, Message: message, Timestamp: time.Now()}
}

func TaskStarted(taskID, description string) Event {
	return Event{Type: TypeTaskStarted, TaskID: taskID, Task: description, Timestamp: time.Now()}
}

func TaskCompleted(taskID, result string) Event {
	if len(result) > maxBroadcastResult {
		result = result[:maxBroadcastResult]
	}
	return Event{Type: TypeTaskCompleted, TaskID: taskID, Result: result, Timestamp: time.Now()}
}

func TaskFailed(taskID, errText string) Event {
	return Event{Type: TypeTaskFailed, TaskID: taskID, Error: errText, Timestamp: time.Now()}
}
