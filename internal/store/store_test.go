package store_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/tlane/browserpilot/internal/model"
	"github.com/tlane/browserpilot/internal/store"
)

// Both implementations must satisfy the same contract, so the suite runs
// against each through a factory.
func storeFactories(t *testing.T) map[string]func(t *testing.T) store.Store {
	t.Helper()
	return map[string]func(t *testing.T) store.Store{
		"memory": func(t *testing.T) store.Store {
			s := store.NewMemoryStore()
			t.Cleanup(func() { s.Close() })
			return s
		},
		"sqlite": func(t *testing.T) store.Store {
			s, err := store.NewSQLiteStore(":memory:")
			if err != nil {
				t.Fatalf("NewSQLiteStore: %v", err)
			}
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

func makeTask(startedAt time.Time) *model.Task {
	timeout := 60
	return &model.Task{
		ID:     model.NewID(),
		Status: model.StatusPending,
		Request: model.TaskRequest{
			Task:     "check the weather",
			TimeoutS: &timeout,
			Metadata: map[string]any{"caller": "test"},
		},
		StartedAt: startedAt,
	}
}

func TestCreateAndGet(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			task := makeTask(time.Now().UTC())
			if err := s.CreateTask(ctx, task); err != nil {
				t.Fatalf("CreateTask: %v", err)
			}

			got, err := s.GetTask(ctx, task.ID)
			if err != nil {
				t.Fatalf("GetTask: %v", err)
			}
			if got.ID != task.ID {
				t.Errorf("ID = %q, want %q", got.ID, task.ID)
			}
			if got.Status != model.StatusPending {
				t.Errorf("Status = %q, want pending", got.Status)
			}
			if got.Request.Task != "check the weather" {
				t.Errorf("Request.Task = %q, want original description", got.Request.Task)
			}
		})
	}
}

func TestGetNotFound(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			_, err := s.GetTask(context.Background(), "nonexistent")
			if !errors.Is(err, store.ErrNotFound) {
				t.Errorf("GetTask error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestGetReturnsCopy(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			task := makeTask(time.Now().UTC())
			if err := s.CreateTask(ctx, task); err != nil {
				t.Fatalf("CreateTask: %v", err)
			}

			first, _ := s.GetTask(ctx, task.ID)
			first.Status = model.StatusFailed
			first.Result = "corrupted"

			second, _ := s.GetTask(ctx, task.ID)
			if second.Status != model.StatusPending || second.Result != "" {
				t.Error("mutating a returned snapshot changed stored state")
			}
		})
	}
}

func TestUpdateTransitions(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			task := makeTask(time.Now().UTC())
			if err := s.CreateTask(ctx, task); err != nil {
				t.Fatalf("CreateTask: %v", err)
			}

			setStatus := func(status string) error {
				return s.UpdateTask(ctx, task.ID, func(t *model.Task) error {
					t.Status = status
					return nil
				})
			}

			if err := setStatus(model.StatusRunning); err != nil {
				t.Fatalf("pending -> running: %v", err)
			}
			if err := setStatus(model.StatusCompleted); err != nil {
				t.Fatalf("running -> completed: %v", err)
			}

			// Terminal records must stay terminal.
			if err := setStatus(model.StatusRunning); !errors.Is(err, store.ErrInvalidTransition) {
				t.Errorf("completed -> running error = %v, want ErrInvalidTransition", err)
			}
			if err := setStatus(model.StatusFailed); !errors.Is(err, store.ErrInvalidTransition) {
				t.Errorf("completed -> failed error = %v, want ErrInvalidTransition", err)
			}

			got, _ := s.GetTask(ctx, task.ID)
			if got.Status != model.StatusCompleted {
				t.Errorf("status after rejected updates = %q, want completed", got.Status)
			}
		})
	}
}

func TestUpdateAppliesAtomically(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			task := makeTask(time.Now().UTC())
			task.Status = model.StatusRunning
			if err := s.CreateTask(ctx, task); err != nil {
				t.Fatalf("CreateTask: %v", err)
			}

			now := time.Now().UTC()
			dur := 2.5
			err := s.UpdateTask(ctx, task.ID, func(t *model.Task) error {
				t.Status = model.StatusCompleted
				t.Result = "payload"
				t.CompletedAt = &now
				t.DurationSeconds = &dur
				return nil
			})
			if err != nil {
				t.Fatalf("UpdateTask: %v", err)
			}

			got, _ := s.GetTask(ctx, task.ID)
			if got.Status != model.StatusCompleted || got.Result != "payload" {
				t.Errorf("terminal fields not applied together: status=%q result=%q", got.Status, got.Result)
			}
			if got.CompletedAt == nil || got.DurationSeconds == nil {
				t.Error("completed_at/duration_seconds missing after terminal update")
			}
		})
	}
}

func TestUpdateMutatorErrorAborts(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			task := makeTask(time.Now().UTC())
			if err := s.CreateTask(ctx, task); err != nil {
				t.Fatalf("CreateTask: %v", err)
			}

			boom := errors.New("boom")
			err := s.UpdateTask(ctx, task.ID, func(t *model.Task) error {
				t.Result = "partial"
				return boom
			})
			if !errors.Is(err, boom) {
				t.Fatalf("UpdateTask error = %v, want mutator error", err)
			}

			got, _ := s.GetTask(ctx, task.ID)
			if got.Result != "" {
				t.Error("aborted update leaked a partial write")
			}
		})
	}
}

func TestDelete(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			if err := s.DeleteTask(ctx, "nonexistent"); !errors.Is(err, store.ErrNotFound) {
				t.Errorf("DeleteTask(unknown) error = %v, want ErrNotFound", err)
			}

			task := makeTask(time.Now().UTC())
			if err := s.CreateTask(ctx, task); err != nil {
				t.Fatalf("CreateTask: %v", err)
			}
			if err := s.DeleteTask(ctx, task.ID); err != nil {
				t.Fatalf("DeleteTask: %v", err)
			}
			if _, err := s.GetTask(ctx, task.ID); !errors.Is(err, store.ErrNotFound) {
				t.Errorf("GetTask after delete error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestListOrderFilterLimit(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			base := time.Now().UTC().Add(-time.Hour)
			var ids []string
			for i := 0; i < 5; i++ {
				task := makeTask(base.Add(time.Duration(i) * time.Minute))
				ids = append(ids, task.ID)
				if err := s.CreateTask(ctx, task); err != nil {
					t.Fatalf("CreateTask[%d]: %v", i, err)
				}
			}

			// Complete the two oldest.
			for _, id := range ids[:2] {
				for _, status := range []string{model.StatusRunning, model.StatusCompleted} {
					if err := s.UpdateTask(ctx, id, func(t *model.Task) error {
						t.Status = status
						return nil
					}); err != nil {
						t.Fatalf("UpdateTask(%s, %s): %v", id, status, err)
					}
				}
			}

			tasks, total, err := s.ListTasks(ctx, "", 0)
			if err != nil {
				t.Fatalf("ListTasks: %v", err)
			}
			if total != 5 || len(tasks) != 5 {
				t.Fatalf("total = %d, len = %d, want 5/5", total, len(tasks))
			}
			for i := 1; i < len(tasks); i++ {
				if tasks[i].StartedAt.After(tasks[i-1].StartedAt) {
					t.Error("tasks not ordered by started_at descending")
				}
			}

			// Filtered list still reports the unfiltered total.
			completed, total, err := s.ListTasks(ctx, model.StatusCompleted, 10)
			if err != nil {
				t.Fatalf("ListTasks(completed): %v", err)
			}
			if total != 5 {
				t.Errorf("filtered total = %d, want unfiltered count 5", total)
			}
			if len(completed) != 2 {
				t.Fatalf("completed count = %d, want 2", len(completed))
			}

			// Limit 1 returns the most recently started completed task.
			top, _, err := s.ListTasks(ctx, model.StatusCompleted, 1)
			if err != nil {
				t.Fatalf("ListTasks(completed, 1): %v", err)
			}
			if len(top) != 1 {
				t.Fatalf("limited count = %d, want 1", len(top))
			}
			if top[0].ID != ids[1] {
				t.Errorf("limited list returned %s, want most recent completed %s", top[0].ID, ids[1])
			}
		})
	}
}

func TestTaskStats(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			for i := 0; i < 3; i++ {
				task := makeTask(time.Now().UTC())
				if err := s.CreateTask(ctx, task); err != nil {
					t.Fatalf("CreateTask: %v", err)
				}
				if i == 0 {
					continue // leave one pending
				}
				dur := float64(i)
				now := time.Now().UTC()
				for _, status := range []string{model.StatusRunning, model.StatusCompleted} {
					if err := s.UpdateTask(ctx, task.ID, func(t *model.Task) error {
						t.Status = status
						if status == model.StatusCompleted {
							t.CompletedAt = &now
							t.DurationSeconds = &dur
						}
						return nil
					}); err != nil {
						t.Fatalf("UpdateTask: %v", err)
					}
				}
			}

			stats, err := s.TaskStats(ctx)
			if err != nil {
				t.Fatalf("TaskStats: %v", err)
			}
			if stats.Total != 3 {
				t.Errorf("total = %d, want 3", stats.Total)
			}
			if stats.CountByStatus[model.StatusPending] != 1 {
				t.Errorf("pending count = %d, want 1", stats.CountByStatus[model.StatusPending])
			}
			if stats.CountByStatus[model.StatusCompleted] != 2 {
				t.Errorf("completed count = %d, want 2", stats.CountByStatus[model.StatusCompleted])
			}
			if stats.AvgDurationSeconds != 1.5 {
				t.Errorf("avg duration = %v, want 1.5", stats.AvgDurationSeconds)
			}
		})
	}
}

func TestLogLines(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			task := makeTask(time.Now().UTC())
			if err := s.CreateTask(ctx, task); err != nil {
				t.Fatalf("CreateTask: %v", err)
			}

			for i := 0; i < 3; i++ {
				if err := s.AppendLog(ctx, task.ID, i, fmt.Sprintf("step %d", i)); err != nil {
					t.Fatalf("AppendLog(%d): %v", i, err)
				}
			}

			lines, err := s.ListLogs(ctx, task.ID)
			if err != nil {
				t.Fatalf("ListLogs: %v", err)
			}
			if len(lines) != 3 {
				t.Fatalf("line count = %d, want 3", len(lines))
			}
			for i, l := range lines {
				if l.Seq != i {
					t.Errorf("line[%d].Seq = %d, want %d", i, l.Seq, i)
				}
				if l.Line != fmt.Sprintf("step %d", i) {
					t.Errorf("line[%d] = %q, want %q", i, l.Line, fmt.Sprintf("step %d", i))
				}
			}
		})
	}
}

// Concurrency is exercised against the memory store only; concurrent write
// transactions on SQLite can surface busy errors that would make the
// assertions flaky without telling us anything about the contract.
func TestConcurrentUpdates(t *testing.T) {
	s := store.NewMemoryStore()
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()

	task := makeTask(time.Now().UTC())
	if err := s.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if err := s.UpdateTask(ctx, task.ID, func(t *model.Task) error {
		t.Status = model.StatusRunning
		return nil
	}); err != nil {
		t.Fatalf("to running: %v", err)
	}

	// Race many terminal updates; exactly one terminal status must win and
	// the losers must see ErrInvalidTransition, never a torn record.
	done := make(chan error, 10)
	for i := 0; i < 10; i++ {
		status := model.StatusCompleted
		if i%2 == 1 {
			status = model.StatusFailed
		}
		go func(status string) {
			done <- s.UpdateTask(ctx, task.ID, func(t *model.Task) error {
				t.Status = status
				if status == model.StatusCompleted {
					t.Result = "winner"
				} else {
					t.Error = "loser path"
				}
				return nil
			})
		}(status)
	}

	var succeeded int
	for i := 0; i < 10; i++ {
		err := <-done
		if err == nil {
			succeeded++
		} else if !errors.Is(err, store.ErrInvalidTransition) {
			t.Errorf("unexpected update error: %v", err)
		}
	}
	if succeeded == 0 {
		t.Error("no terminal update succeeded")
	}

	// Whichever status won, the record must be coherent: terminal, with
	// exactly one of result/error populated.
	got, _ := s.GetTask(ctx, task.ID)
	if !got.Terminal() {
		t.Errorf("status = %q, want terminal", got.Status)
	}
	if got.Status == model.StatusCompleted && (got.Result != "winner" || got.Error != "") {
		t.Errorf("completed record incoherent: result=%q error=%q", got.Result, got.Error)
	}
	if got.Status == model.StatusFailed && (got.Error == "" || got.Result != "") {
		t.Errorf("failed record incoherent: result=%q error=%q", got.Result, got.Error)
	}
}
