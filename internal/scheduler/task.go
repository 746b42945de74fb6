package scheduler

import (
	"context"
	"time"
)

// Status represents the current state of a task.
type Status int

const (
	StatusPending   Status = iota // Registered, not yet evaluated or awaiting retry
	StatusBlocked                 // Has at least one incomplete dependency
	StatusReady                   // Dependencies satisfied, eligible for dispatch
	StatusRunning                 // Currently executing
	StatusCompleted               // Finished successfully
	StatusFailed                  // Exhausted all attempts
	StatusSkipped                 // Never run because a transitive dependency failed
	StatusDeferred                // Ready but last dispatch attempt lacked resources
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusBlocked:
		return "blocked"
	case StatusReady:
		return "ready"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	case StatusDeferred:
		return "deferred"
	default:
		return "unknown"
	}
}

// Terminal reports whether a task in this status will never run again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusSkipped
}

// dispatchable reports whether a task in this status may be handed to a worker.
// Pending is included because retried tasks revert to Pending while queued.
func (s Status) dispatchable() bool {
	return s == StatusReady || s == StatusDeferred || s == StatusPending
}

// Runnable is the contract for a task's action. The scheduler never inspects
// the action; it only invokes Execute and interprets the error.
type Runnable interface {
	Execute(ctx context.Context) (any, error)
}

// RunnableFunc adapts a plain function to the Runnable interface.
type RunnableFunc func(ctx context.Context) (any, error)

func (f RunnableFunc) Execute(ctx context.Context) (any, error) { return f(ctx) }

// Task represents a unit of schedulable work.
type Task struct {
	ID              string             // Unique identifier, immutable after registration
	Name            string             // Human-readable name, for logging only
	Action          Runnable           // Work to perform (opaque to the scheduler)
	Target          string             // Label of the external service the action calls (keys circuit breakers)
	Dependencies    []string           // Task IDs that must complete before this task runs
	InitialPriority int                // Caller-supplied urgency, higher = more urgent
	CurrentPriority int                // InitialPriority plus deadline boost
	Deadline        *time.Time         // Optional; boosts priority as it approaches
	Resources       map[string]float64 // Resource type -> required amount (0-100)
	Timeout         time.Duration      // Wall-clock limit for a single attempt (0 = executor default)
	MaxAttempts     int                // Total attempts allowed before permanent failure
	Attempts        int                // Attempts made so far
	Status          Status
	Err             error // Last failure, if any

	CreatedAt      time.Time
	StartTime      time.Time // Most recent dispatch
	CompletionTime time.Time // Terminal transition
	NotBefore      time.Time // Retry pacing: not dispatchable before this instant

	EstimatedDuration time.Duration

	seq       uint64             // Registration order, final queue tie-break
	heapIndex int                // Position in the ready queue (-1 when not queued)
	reserved  map[string]float64 // Resources currently held; nil when none
}

// Result is the immutable outcome of a task attempt. The scheduler retains
// only the terminal result per task.
type Result struct {
	TaskID        string
	Success       bool
	Output        any
	Err           error
	ExecutionTime time.Duration
}

func cloneTask(task *Task) *Task {
	if task == nil {
		return nil
	}

	cp := *task
	if task.Dependencies != nil {
		cp.Dependencies = append([]string(nil), task.Dependencies...)
	}
	if task.Resources != nil {
		cp.Resources = make(map[string]float64, len(task.Resources))
		for k, v := range task.Resources {
			cp.Resources[k] = v
		}
	}
	if task.Deadline != nil {
		d := *task.Deadline
		cp.Deadline = &d
	}
	cp.reserved = nil
	return &cp
}
