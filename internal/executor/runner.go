package executor

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/scoobyjava/cherry-scheduler/internal/scheduler"
)

// RunnerConfig configures the execution discipline.
type RunnerConfig struct {
	MaxConcurrent int           // 1 runs sequentially; >1 uses a bounded worker pool (default 4)
	PollInterval  time.Duration // Idle wait when nothing is dispatchable (default 25ms)
}

// Runner drains a scheduler: it pulls dispatchable tasks, executes them, and
// reports outcomes back until every registered task is terminal.
//
// Dispatch and resource reservation happen inside the scheduler's critical
// section (NextTask), so workers can never jointly admit tasks whose combined
// demand exceeds availability.
type Runner struct {
	cfg   RunnerConfig
	sched *scheduler.Scheduler
	exec  *Executor

	mu      sync.Mutex
	results []scheduler.Result
}

// NewRunner creates a Runner over the given scheduler and executor.
func NewRunner(cfg RunnerConfig, sched *scheduler.Scheduler, exec *Executor) *Runner {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 25 * time.Millisecond
	}
	return &Runner{
		cfg:   cfg,
		sched: sched,
		exec:  exec,
	}
}

// RunAll executes tasks until the scheduler drains or the context is
// cancelled. Individual task failures are recorded in scheduler state, never
// returned as errors.
func (r *Runner) RunAll(ctx context.Context) ([]scheduler.Result, error) {
	if r.cfg.MaxConcurrent == 1 {
		return r.runSequential(ctx)
	}
	return r.runParallel(ctx)
}

// runSequential runs one task at a time, fully processing each result before
// looking for the next task.
func (r *Runner) runSequential(ctx context.Context) ([]scheduler.Result, error) {
	for {
		if err := ctx.Err(); err != nil {
			return r.snapshotResults(), err
		}
		if r.sched.Drained() {
			return r.snapshotResults(), nil
		}

		task, ok := r.sched.NextTask()
		if !ok {
			// Nothing dispatchable right now: resource deferral or retry
			// pacing. Wait a beat and ask again.
			if err := r.idle(ctx); err != nil {
				return r.snapshotResults(), err
			}
			continue
		}

		r.runOne(ctx, task)
	}
}

// runParallel executes waves of dispatchable tasks with a bounded pool.
// Dispatch order within a wave follows the scheduler's priority ordering;
// completion order is not guaranteed.
func (r *Runner) runParallel(ctx context.Context) ([]scheduler.Result, error) {
	for {
		if err := ctx.Err(); err != nil {
			return r.snapshotResults(), err
		}
		if r.sched.Drained() {
			return r.snapshotResults(), nil
		}

		// Gather the currently dispatchable tasks, at most one pool's worth.
		var wave []*scheduler.Task
		for len(wave) < r.cfg.MaxConcurrent {
			task, ok := r.sched.NextTask()
			if !ok {
				break
			}
			wave = append(wave, task)
		}

		if len(wave) == 0 {
			if err := r.idle(ctx); err != nil {
				return r.snapshotResults(), err
			}
			continue
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.cfg.MaxConcurrent)
		for _, task := range wave {
			t := task
			g.Go(func() error {
				r.runOne(gctx, t)
				return nil
			})
		}
		_ = g.Wait() // workers never return errors; outcomes live in the scheduler
	}
}

// runOne executes a single dispatched task and reports the result.
func (r *Runner) runOne(ctx context.Context, task *scheduler.Task) {
	res := r.exec.Run(ctx, task)
	if err := r.sched.Complete(task.ID, res); err != nil {
		log.Printf("ERROR: failed to record completion of task %q: %v", task.ID, err)
		return
	}
	r.record(res)
}

// idle sleeps one poll interval or until the context is cancelled.
func (r *Runner) idle(ctx context.Context) error {
	timer := time.NewTimer(r.cfg.PollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// record appends a task result in a thread-safe manner.
func (r *Runner) record(res scheduler.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func (r *Runner) snapshotResults() []scheduler.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]scheduler.Result(nil), r.results...)
}
