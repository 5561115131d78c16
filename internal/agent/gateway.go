package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tlane/browserpilot/internal/model"
)

// Gateway wraps a Driver with timeout enforcement and error translation.
// It is the only place driver errors are observed; everything past this
// boundary sees a closed Outcome, never a raw engine error.
type Gateway struct {
	driver Driver
	sink   Sink
	logger *slog.Logger
}

// NewGateway creates a gateway around the given driver and artifact sink.
func NewGateway(driver Driver, sink Sink, logger *slog.Logger) *Gateway {
	return &Gateway{
		driver: driver,
		sink:   sink,
		logger: logger,
	}
}

// Driver returns the wrapped driver.
func (g *Gateway) Driver() Driver {
	return g.driver
}

// Execute runs one automation attempt under the given timeout. The driver is
// raced against the deadline: when the deadline fires the gateway stops
// waiting and returns TimedOut even if the driver ignores cancellation. The
// launched goroutine drains into a buffered channel, so an uncooperative
// driver costs a leaked goroutine bounded by its own eventual return, never a
// blocked caller. logf receives coarse progress lines.
func (g *Gateway) Execute(ctx context.Context, taskID string, req model.TaskRequest, timeout time.Duration, logf func(string)) Outcome {
	instruction := BuildInstruction(req)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	logf(fmt.Sprintf("running instruction via %s", g.driver.Name()))

	type runResult struct {
		payload string
		err     error
	}
	resCh := make(chan runResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				resCh <- runResult{err: fmt.Errorf("driver panic: %v", r)}
			}
		}()
		payload, err := g.driver.Run(ctx, instruction)
		resCh <- runResult{payload: payload, err: err}
	}()

	select {
	case <-ctx.Done():
		g.logger.Warn("automation deadline elapsed", "task_id", taskID, "timeout", timeout)
		return TimedOut()
	case res := <-resCh:
		if res.err != nil {
			// A driver that honors cancellation reports the deadline as its
			// own error; normalize that to the timeout outcome.
			if ctx.Err() == context.DeadlineExceeded {
				return TimedOut()
			}
			return Failed(res.err.Error())
		}
		logf("instruction completed")

		var shotPath string
		if req.SaveScreenshot {
			shotPath = g.captureScreenshot(ctx, taskID, logf)
		}
		return Success(res.payload, shotPath)
	}
}

// captureScreenshot attempts to capture and persist a screenshot. Failure at
// any step degrades only the screenshot path, never the task outcome.
func (g *Gateway) captureScreenshot(ctx context.Context, taskID string, logf func(string)) string {
	sc, ok := g.driver.(Screenshotter)
	if !ok {
		g.logger.Warn("screenshot requested but driver cannot capture", "task_id", taskID, "driver", g.driver.Name())
		logf("screenshot unavailable for this driver")
		return ""
	}

	data, err := sc.Screenshot(ctx)
	if err != nil {
		g.logger.Warn("screenshot capture failed", "task_id", taskID, "error", err)
		logf("screenshot capture failed")
		return ""
	}

	path, err := g.sink.Save(taskID, data)
	if err != nil {
		g.logger.Warn("screenshot persist failed", "task_id", taskID, "error", err)
		logf("screenshot persist failed")
		return ""
	}

	logf("screenshot saved")
	return path
}
