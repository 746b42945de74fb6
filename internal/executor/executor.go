package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/scoobyjava/cherry-scheduler/internal/scheduler"
)

// DefaultTimeout bounds a single attempt when the task carries no timeout.
const DefaultTimeout = 5 * time.Minute

// Executor runs task actions with a wall-clock timeout. Timeouts, panics, and
// returned errors are all normalized into a single execution-failure outcome;
// the failure state machine makes no distinction between them.
type Executor struct {
	defaultTimeout time.Duration
	breakers       *BreakerRegistry
}

// New creates an Executor. breakers may be nil to disable circuit breaking.
func New(defaultTimeout time.Duration, breakers *BreakerRegistry) *Executor {
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultTimeout
	}
	return &Executor{
		defaultTimeout: defaultTimeout,
		breakers:       breakers,
	}
}

// Run executes the task's action and returns its outcome. It never returns
// an error itself: every failure is captured in the Result so a single bad
// task cannot crash a scheduling loop.
func (e *Executor) Run(ctx context.Context, task *scheduler.Task) scheduler.Result {
	start := time.Now()

	if task.Action == nil {
		return scheduler.Result{
			TaskID:        task.ID,
			Success:       false,
			Err:           fmt.Errorf("task %q has no action", task.ID),
			ExecutionTime: time.Since(start),
		}
	}

	timeout := task.Timeout
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	output, err := e.invoke(runCtx, task)
	elapsed := time.Since(start)

	if err != nil {
		// A timeout is treated identically to any other execution failure.
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("task %q exceeded timeout of %s: %w", task.ID, timeout, err)
		}
		return scheduler.Result{
			TaskID:        task.ID,
			Success:       false,
			Err:           err,
			ExecutionTime: elapsed,
		}
	}

	return scheduler.Result{
		TaskID:        task.ID,
		Success:       true,
		Output:        output,
		ExecutionTime: elapsed,
	}
}

// invoke runs the action in its own goroutine so a task that ignores its
// context cannot hold the caller past the deadline. A timed-out goroutine may
// linger; its eventual result is discarded via the buffered channel.
func (e *Executor) invoke(ctx context.Context, task *scheduler.Task) (any, error) {
	type outcome struct {
		output any
		err    error
	}

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("task %q panicked: %v", task.ID, r)}
			}
		}()
		out, err := e.execute(ctx, task)
		done <- outcome{output: out, err: err}
	}()

	select {
	case res := <-done:
		return res.output, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// execute routes the action through the target's circuit breaker when one is
// configured, so a flapping external service fails fast instead of burning
// task attempts on guaranteed losses.
func (e *Executor) execute(ctx context.Context, task *scheduler.Task) (any, error) {
	if e.breakers == nil || task.Target == "" {
		return task.Action.Execute(ctx)
	}

	cb := e.breakers.Get(task.Target)
	result, err := cb.Execute(func() (interface{}, error) {
		return task.Action.Execute(ctx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("target %q circuit open: %w", task.Target, err)
		}
		return nil, err
	}
	return result, nil
}
