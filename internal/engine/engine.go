package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tlane/browserpilot/internal/agent"
	"github.com/tlane/browserpilot/internal/model"
	"github.com/tlane/browserpilot/internal/store"
)

// DefaultTimeoutS is the task timeout in seconds when none is specified.
const DefaultTimeoutS = 300

// ErrInvalidRequest is returned when a submission fails validation.
// No record is created in that case.
var ErrInvalidRequest = errors.New("invalid task request")

// ErrTaskFailed is returned by SubmitAndWait when the task reached the
// failed status; it wraps the recorded failure reason.
var ErrTaskFailed = errors.New("task failed")

// Engine orchestrates task execution.
type Engine struct {
	store   store.Store
	gateway *agent.Gateway
	logger  *slog.Logger
	wg      sync.WaitGroup
	broker  *LogBroker
}

// NewEngine creates a new execution engine.
func NewEngine(s store.Store, gw *agent.Gateway, logger *slog.Logger) *Engine {
	return &Engine{
		store:   s,
		gateway: gw,
		logger:  logger,
		broker:  NewLogBroker(),
	}
}

// Broker returns the engine's progress broker for SSE subscription.
func (e *Engine) Broker() *LogBroker {
	return e.broker
}

// Wait blocks until all in-flight task goroutines complete.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Submit validates the request, creates a pending record, and launches
// detached execution. It returns the initial snapshot immediately and never
// blocks on the automation engine; automation outcomes are observable only
// through later queries.
func (e *Engine) Submit(ctx context.Context, req model.TaskRequest) (*model.Task, error) {
	t, err := e.createTask(ctx, req)
	if err != nil {
		return nil, err
	}

	e.wg.Go(func() {
		e.run(t.ID, req)
	})

	e.logger.Info("task queued", "task_id", t.ID, "task", truncate(req.Task, 100))
	return t, nil
}

// SubmitAndWait validates the request, creates a pending record, and runs it
// inline through the same path as Submit, returning the terminal snapshot.
// When the task failed, the snapshot is returned alongside an error wrapping
// the recorded reason.
func (e *Engine) SubmitAndWait(ctx context.Context, req model.TaskRequest) (*model.Task, error) {
	t, err := e.createTask(ctx, req)
	if err != nil {
		return nil, err
	}

	e.run(t.ID, req)

	final, err := e.store.GetTask(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("reload task: %w", err)
	}
	if final.Status == model.StatusFailed {
		return final, fmt.Errorf("%w: %s", ErrTaskFailed, final.Error)
	}
	return final, nil
}

func (e *Engine) createTask(ctx context.Context, req model.TaskRequest) (*model.Task, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	t := &model.Task{
		ID:        model.NewID(),
		Status:    model.StatusPending,
		Request:   req,
		StartedAt: time.Now().UTC(),
	}
	if err := e.store.CreateTask(ctx, t); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return t, nil
}

// validateRequest rejects malformed submissions before any record exists.
// An absent timeout means "use the default"; an explicit zero or negative
// value is invalid.
func validateRequest(req model.TaskRequest) error {
	if strings.TrimSpace(req.Task) == "" {
		return fmt.Errorf("%w: task description is required", ErrInvalidRequest)
	}
	if req.TimeoutS != nil && *req.TimeoutS <= 0 {
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidRequest)
	}
	return nil
}

// run drives one task from pending to a terminal state. It is the single
// code path shared by detached and inline submission, and it never lets a
// failure escape: panics and internal errors are recorded as failed so no
// record is left running.
func (e *Engine) run(id string, req model.TaskRequest) {
	// Close the progress stream when execution finishes, regardless of outcome.
	defer e.broker.Close(id)
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("task run panicked", "task_id", id, "panic", r)
			e.finishFailed(id, nil, fmt.Sprintf("internal error: %v", r))
		}
	}()

	if err := e.store.UpdateTask(context.Background(), id, func(t *model.Task) error {
		t.Status = model.StatusRunning
		return nil
	}); err != nil {
		e.logger.Error("failed to transition to running", "task_id", id, "error", err)
		e.finishFailed(id, nil, fmt.Sprintf("failed to start: %v", err))
		return
	}

	// Duration is measured from the running transition, not from submission.
	start := time.Now()

	timeoutS := DefaultTimeoutS
	if req.TimeoutS != nil {
		timeoutS = *req.TimeoutS
	}
	timeout := time.Duration(timeoutS) * time.Second

	// Progress lines dual-write: persist to the store for historical viewing,
	// then publish to the broker for real-time SSE.
	var seq atomic.Int32
	logf := func(line string) {
		currentSeq := int(seq.Add(1) - 1)
		if err := e.store.AppendLog(context.Background(), id, currentSeq, line); err != nil {
			e.logger.Error("failed to persist progress line", "task_id", id, "seq", currentSeq, "error", err)
		}
		e.broker.Publish(id, line)
	}

	outcome := e.gateway.Execute(context.Background(), id, req, timeout, logf)
	elapsed := time.Since(start)

	switch outcome.Kind {
	case agent.OutcomeSuccess:
		e.finishCompleted(id, outcome, elapsed)
	case agent.OutcomeTimedOut:
		e.finishFailed(id, &start, fmt.Sprintf("task timed out after %d seconds", timeoutS))
	default:
		e.finishFailed(id, &start, outcome.Reason)
	}
}

// finishCompleted marks a task as completed with the outcome's payload.
func (e *Engine) finishCompleted(id string, out agent.Outcome, elapsed time.Duration) {
	now := time.Now().UTC()
	dur := elapsed.Seconds()

	err := e.store.UpdateTask(context.Background(), id, func(t *model.Task) error {
		t.Status = model.StatusCompleted
		t.Result = out.Payload
		t.ScreenshotPath = out.ScreenshotPath
		t.CompletedAt = &now
		t.DurationSeconds = &dur
		return nil
	})
	if err != nil {
		e.logger.Error("failed to update completed task", "task_id", id, "error", err)
		return
	}

	tasksTotal.WithLabelValues(model.StatusCompleted).Inc()
	taskDuration.Observe(dur)
	e.logger.Info("task completed", "task_id", id, "duration_seconds", dur)
}

// finishFailed marks a task as failed with the given error message.
// startedAt may be nil if execution never started.
func (e *Engine) finishFailed(id string, startedAt *time.Time, errMsg string) {
	now := time.Now().UTC()
	var dur float64
	if startedAt != nil {
		dur = time.Since(*startedAt).Seconds()
	}

	err := e.store.UpdateTask(context.Background(), id, func(t *model.Task) error {
		t.Status = model.StatusFailed
		t.Error = errMsg
		t.CompletedAt = &now
		if startedAt != nil {
			d := dur
			t.DurationSeconds = &d
		}
		return nil
	})
	if err != nil {
		e.logger.Error("failed to update failed task", "task_id", id, "error", err)
		return
	}

	tasksTotal.WithLabelValues(model.StatusFailed).Inc()
	if startedAt != nil {
		taskDuration.Observe(dur)
	}
	e.logger.Error("task failed", "task_id", id, "error", errMsg)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
