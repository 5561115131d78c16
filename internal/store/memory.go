package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tlane/browserpilot/internal/model"
)

// Compile-time interface satisfaction check.
var _ Store = (*MemoryStore)(nil)

// MemoryStore implements Store with an in-process map. A single mutex
// serializes all record mutations, which is sufficient at this scale, and
// every read hands out a clone so callers can never corrupt stored state.
type MemoryStore struct {
	mu        sync.RWMutex
	tasks     map[string]*model.Task
	logs      map[string][]model.LogLine
	nextLogID int64
}

// NewMemoryStore creates an empty in-memory task store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tasks: make(map[string]*model.Task),
		logs:  make(map[string][]model.LogLine),
	}
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}

// CreateTask inserts a new task record. The ID must not already exist.
func (s *MemoryStore) CreateTask(_ context.Context, t *model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[t.ID]; ok {
		return fmt.Errorf("task %s already exists", t.ID)
	}
	s.tasks[t.ID] = t.Clone()
	return nil
}

// GetTask retrieves a snapshot of a task by ID.
func (s *MemoryStore) GetTask(_ context.Context, id string) (*model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return t.Clone(), nil
}

// UpdateTask applies the mutator to a copy of the stored record and commits
// the result atomically. Status changes are checked against the lifecycle
// transition table; a disallowed change aborts the update without modifying
// the record.
func (s *MemoryStore) UpdateTask(_ context.Context, id string, mutate func(*model.Task) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.tasks[id]
	if !ok {
		return ErrNotFound
	}

	next := cur.Clone()
	if err := mutate(next); err != nil {
		return err
	}
	next.ID = cur.ID
	if next.Status != cur.Status && !model.ValidTransition(cur.Status, next.Status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur.Status, next.Status)
	}

	s.tasks[id] = next
	return nil
}

// DeleteTask removes a task and its progress lines.
func (s *MemoryStore) DeleteTask(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return ErrNotFound
	}
	delete(s.tasks, id)
	delete(s.logs, id)
	return nil
}

// ListTasks returns task snapshots ordered by started_at descending, filtered
// by exact status match when status is non-empty and truncated to limit.
// The returned total counts all tasks regardless of the filter.
func (s *MemoryStore) ListTasks(_ context.Context, status string, limit int) ([]*model.Task, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := len(s.tasks)

	var tasks []*model.Task
	for _, t := range s.tasks {
		if status != "" && t.Status != status {
			continue
		}
		tasks = append(tasks, t.Clone())
	}

	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].StartedAt.Equal(tasks[j].StartedAt) {
			return tasks[i].StartedAt.After(tasks[j].StartedAt)
		}
		// ULIDs sort in creation order, so newer IDs first on a timestamp tie.
		return tasks[i].ID > tasks[j].ID
	})

	if limit > 0 && len(tasks) > limit {
		tasks = tasks[:limit]
	}
	return tasks, total, nil
}

// TaskStats returns aggregate counts and the average duration across tasks
// that have reached a terminal status.
func (s *MemoryStore) TaskStats(_ context.Context) (*TaskStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &TaskStats{
		Total:         len(s.tasks),
		CountByStatus: make(map[string]int),
	}

	var durSum float64
	var durCount int
	for _, t := range s.tasks {
		stats.CountByStatus[t.Status]++
		if t.DurationSeconds != nil {
			durSum += *t.DurationSeconds
			durCount++
		}
	}
	if durCount > 0 {
		stats.AvgDurationSeconds = durSum / float64(durCount)
	}
	return stats, nil
}

// AppendLog stores one progress line for a task.
func (s *MemoryStore) AppendLog(_ context.Context, taskID string, seq int, line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextLogID++
	s.logs[taskID] = append(s.logs[taskID], model.LogLine{
		ID:        s.nextLogID,
		TaskID:    taskID,
		Seq:       seq,
		Line:      line,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

// ListLogs returns the progress lines for a task in sequence order.
func (s *MemoryStore) ListLogs(_ context.Context, taskID string) ([]model.LogLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lines := s.logs[taskID]
	out := make([]model.LogLine, len(lines))
	copy(out, lines)
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}
