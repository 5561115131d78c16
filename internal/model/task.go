package model

import (
	"encoding/json"
	"maps"
	"time"
)

// Task status constants.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// validTransitions maps each status to the set of statuses it may transition to.
// Completed and failed are terminal; a task never leaves them.
var validTransitions = map[string]map[string]bool{
	StatusPending: {
		StatusRunning: true,
		StatusFailed:  true,
	},
	StatusRunning: {
		StatusCompleted: true,
		StatusFailed:    true,
	},
}

// ValidTransition reports whether transitioning from one status to another is allowed.
func ValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// TerminalStatus reports whether the given status admits no further transitions.
func TerminalStatus(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

// TaskRequest describes one automation task as submitted by a caller.
// It is immutable once accepted; the metadata bag is passed through unmodified.
// A nil TimeoutS means "use the default"; an explicit non-positive value is
// rejected at validation.
type TaskRequest struct {
	Task             string          `json:"task"`
	URL              string          `json:"url,omitempty"`
	TimeoutS         *int            `json:"timeout,omitempty"`
	SaveScreenshot   bool            `json:"save_screenshot,omitempty"`
	StructuredOutput json.RawMessage `json:"structured_output,omitempty"`
	Metadata         map[string]any  `json:"metadata,omitempty"`
}

// LogLine represents a single persisted progress line from a task execution.
type LogLine struct {
	ID        int64     `json:"id"`
	TaskID    string    `json:"task_id"`
	Seq       int       `json:"seq"`
	Line      string    `json:"line"`
	CreatedAt time.Time `json:"created_at"`
}

// Task represents one automation task submitted to the service.
// StartedAt is set at submission; CompletedAt and DurationSeconds are set
// only once a terminal status is reached. Result and Error are mutually
// exclusive: at most one is populated, and only in a terminal status.
type Task struct {
	ID              string      `json:"task_id"`
	Status          string      `json:"status"`
	Request         TaskRequest `json:"request"`
	Result          string      `json:"result,omitempty"`
	Error           string      `json:"error,omitempty"`
	ScreenshotPath  string      `json:"screenshot_path,omitempty"`
	StartedAt       time.Time   `json:"started_at"`
	CompletedAt     *time.Time  `json:"completed_at,omitempty"`
	DurationSeconds *float64    `json:"duration_seconds,omitempty"`
}

// Terminal reports whether the task has reached a terminal status.
func (t *Task) Terminal() bool {
	return TerminalStatus(t.Status)
}

// Clone returns a deep copy of the task. The store hands out clones so that
// callers can never mutate a stored record outside an update.
func (t *Task) Clone() *Task {
	c := *t
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		c.CompletedAt = &at
	}
	if t.DurationSeconds != nil {
		d := *t.DurationSeconds
		c.DurationSeconds = &d
	}
	if t.Request.TimeoutS != nil {
		timeout := *t.Request.TimeoutS
		c.Request.TimeoutS = &timeout
	}
	if t.Request.StructuredOutput != nil {
		c.Request.StructuredOutput = append(json.RawMessage(nil), t.Request.StructuredOutput...)
	}
	if t.Request.Metadata != nil {
		c.Request.Metadata = maps.Clone(t.Request.Metadata)
	}
	return &c
}
