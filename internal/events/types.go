package events

import (
	"time"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	TaskID() string
}

// Topic constants
const (
	TopicTask      = "task"
	TopicScheduler = "scheduler"
)

// Event type constants
const (
	EventTypeTaskQueued    = "task.queued"
	EventTypeTaskReady     = "task.ready"
	EventTypeTaskStarted   = "task.started"
	EventTypeTaskDeferred  = "task.deferred"
	EventTypeTaskRetried   = "task.retried"
	EventTypeTaskCompleted = "task.completed"
	EventTypeTaskFailed    = "task.failed"
	EventTypeTaskSkipped   = "task.skipped"
	EventTypeProgress      = "scheduler.progress"
)

// TaskQueuedEvent is published when a task is registered with the scheduler.
type TaskQueuedEvent struct {
	ID        string
	Name      string
	Priority  int
	Blocked   bool
	Timestamp time.Time
}

func (e TaskQueuedEvent) EventType() string { return EventTypeTaskQueued }
func (e TaskQueuedEvent) TaskID() string    { return e.ID }

// TaskReadyEvent is published when a blocked task's last dependency completes.
type TaskReadyEvent struct {
	ID        string
	Timestamp time.Time
}

func (e TaskReadyEvent) EventType() string { return EventTypeTaskReady }
func (e TaskReadyEvent) TaskID() string    { return e.ID }

// TaskStartedEvent is published when a task is dispatched.
type TaskStartedEvent struct {
	ID        string
	Name      string
	Attempt   int
	Timestamp time.Time
}

func (e TaskStartedEvent) EventType() string { return EventTypeTaskStarted }
func (e TaskStartedEvent) TaskID() string    { return e.ID }

// TaskDeferredEvent is published when a ready task is refused dispatch because
// the resource ledger cannot satisfy it.
type TaskDeferredEvent struct {
	ID        string
	Reason    string
	Timestamp time.Time
}

func (e TaskDeferredEvent) EventType() string { return EventTypeTaskDeferred }
func (e TaskDeferredEvent) TaskID() string    { return e.ID }

// TaskRetriedEvent is published when a failed attempt is requeued.
type TaskRetriedEvent struct {
	ID        string
	Attempt   int
	NotBefore time.Time
	Err       error
	Timestamp time.Time
}

func (e TaskRetriedEvent) EventType() string { return EventTypeTaskRetried }
func (e TaskRetriedEvent) TaskID() string    { return e.ID }

// TaskCompletedEvent is published when a task completes successfully.
type TaskCompletedEvent struct {
	ID        string
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskCompletedEvent) EventType() string { return EventTypeTaskCompleted }
func (e TaskCompletedEvent) TaskID() string    { return e.ID }

// TaskFailedEvent is published when a task exhausts its attempts.
type TaskFailedEvent struct {
	ID        string
	Err       error
	Attempts  int
	Timestamp time.Time
}

func (e TaskFailedEvent) EventType() string { return EventTypeTaskFailed }
func (e TaskFailedEvent) TaskID() string    { return e.ID }

// TaskSkippedEvent is published when a task is poisoned by a permanently
// failed transitive dependency.
type TaskSkippedEvent struct {
	ID        string
	FailedDep string
	Timestamp time.Time
}

func (e TaskSkippedEvent) EventType() string { return EventTypeTaskSkipped }
func (e TaskSkippedEvent) TaskID() string    { return e.ID }

// ProgressEvent summarizes scheduler state after a transition.
type ProgressEvent struct {
	Total     int
	Blocked   int
	Ready     int
	Running   int
	Completed int
	Failed    int
	Skipped   int
	Timestamp time.Time
}

func (e ProgressEvent) EventType() string { return EventTypeProgress }
func (e ProgressEvent) TaskID() string    { return "" }
