package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/scoobyjava/cherry-scheduler/internal/scheduler"
)

// WorkloadTask describes one task in a JSON workload file.
type WorkloadTask struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Priority     int                `json:"priority"`
	DependsOn    []string           `json:"depends_on"`
	Resources    map[string]float64 `json:"resources"`
	Target       string             `json:"target"`
	DurationMS   int                `json:"duration_ms"`    // Simulated work time
	FailAttempts int                `json:"fail_attempts"`  // First N attempts fail
	MaxAttempts  int                `json:"max_attempts"`
	TimeoutMS    int                `json:"timeout_ms"`
	DeadlineInS  int                `json:"deadline_in_sec"` // Deadline relative to load time
}

// Workload is a JSON task list for driving the scheduler from the CLI.
type Workload struct {
	Tasks []WorkloadTask `json:"tasks"`
}

// LoadWorkload parses a workload file.
func LoadWorkload(path string) (*Workload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading workload %s: %w", path, err)
	}

	var wl Workload
	if err := json.Unmarshal(data, &wl); err != nil {
		return nil, fmt.Errorf("parsing workload %s: %w", path, err)
	}
	if len(wl.Tasks) == 0 {
		return nil, fmt.Errorf("workload %s contains no tasks", path)
	}
	for i, task := range wl.Tasks {
		if task.ID == "" {
			return nil, fmt.Errorf("workload task %d has no id", i)
		}
	}

	return &wl, nil
}

// Register adds every workload task to the scheduler with a simulated action:
// it sleeps for the configured duration and fails its first FailAttempts runs.
func (wl *Workload) Register(sched *scheduler.Scheduler) error {
	for _, spec := range wl.Tasks {
		spec := spec
		var runs atomic.Int64

		action := scheduler.RunnableFunc(func(ctx context.Context) (any, error) {
			if spec.DurationMS > 0 {
				timer := time.NewTimer(time.Duration(spec.DurationMS) * time.Millisecond)
				defer timer.Stop()
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-timer.C:
				}
			}
			if n := runs.Add(1); n <= int64(spec.FailAttempts) {
				return nil, fmt.Errorf("simulated failure %d of %d", n, spec.FailAttempts)
			}
			return fmt.Sprintf("%s done", spec.ID), nil
		})

		var deadline *time.Time
		if spec.DeadlineInS > 0 {
			d := time.Now().Add(time.Duration(spec.DeadlineInS) * time.Second)
			deadline = &d
		}

		_, err := sched.AddTask(scheduler.TaskSpec{
			ID:           spec.ID,
			Name:         spec.Name,
			Action:       action,
			Target:       spec.Target,
			Dependencies: spec.DependsOn,
			Priority:     spec.Priority,
			Deadline:     deadline,
			Resources:    spec.Resources,
			Timeout:      time.Duration(spec.TimeoutMS) * time.Millisecond,
			MaxAttempts:  spec.MaxAttempts,
		})
		if err != nil {
			return fmt.Errorf("registering task %q: %w", spec.ID, err)
		}
	}
	return nil
}
