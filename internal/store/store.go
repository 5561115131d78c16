package store

import (
	"context"
	"errors"

	"github.com/tlane/browserpilot/internal/model"
)

// ErrNotFound is returned when a task is not found.
var ErrNotFound = errors.New("task not found")

// ErrInvalidTransition is returned when an update attempts a status
// transition that the lifecycle does not allow.
var ErrInvalidTransition = errors.New("invalid status transition")

// TaskStats holds aggregate execution statistics.
type TaskStats struct {
	Total              int            `json:"total"`
	CountByStatus      map[string]int `json:"count_by_status"`
	AvgDurationSeconds float64        `json:"avg_duration_seconds"`
}

// Store defines the persistence operations for tasks. All reads return
// copies; the only way to mutate a stored record is through UpdateTask,
// which applies the mutator atomically with respect to concurrent readers
// and rejects disallowed status transitions with ErrInvalidTransition.
type Store interface {
	CreateTask(ctx context.Context, t *model.Task) error
	GetTask(ctx context.Context, id string) (*model.Task, error)
	UpdateTask(ctx context.Context, id string, mutate func(*model.Task) error) error
	DeleteTask(ctx context.Context, id string) error

	// ListTasks returns tasks ordered by started_at descending, truncated to
	// limit (limit <= 0 means no truncation), along with the total count of
	// all tasks regardless of the status filter.
	ListTasks(ctx context.Context, status string, limit int) ([]*model.Task, int, error)

	TaskStats(ctx context.Context) (*TaskStats, error)

	AppendLog(ctx context.Context, taskID string, seq int, line string) error
	ListLogs(ctx context.Context, taskID string) ([]model.LogLine, error)

	Close() error
}
