package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scoobyjava/cherry-scheduler/internal/events"
)

var (
	// ErrDuplicateTask is returned when a task ID is registered twice.
	ErrDuplicateTask = errors.New("task already registered")
	// ErrUnknownTask is returned for lookups of unregistered task IDs.
	ErrUnknownTask = errors.New("unknown task")
)

// DispatchPolicy controls how NextTask treats a resource-starved queue head.
type DispatchPolicy int

const (
	// PolicyHeadOfQueue examines at most one candidate per call: if the head
	// of the queue cannot be admitted, it is re-queued and the call returns
	// nothing. Lower-priority satisfiable tasks behind it wait.
	PolicyHeadOfQueue DispatchPolicy = iota
	// PolicyFirstFit scans the queue in priority order and dispatches the
	// first task whose resource needs can be satisfied.
	PolicyFirstFit
)

// ParsePolicy converts a config string into a DispatchPolicy.
func ParsePolicy(s string) (DispatchPolicy, error) {
	switch s {
	case "", "head":
		return PolicyHeadOfQueue, nil
	case "first_fit":
		return PolicyFirstFit, nil
	default:
		return PolicyHeadOfQueue, fmt.Errorf("unknown dispatch policy %q", s)
	}
}

// Journal persists task snapshots on state transitions.
type Journal interface {
	RecordTask(ctx context.Context, task *Task) error
	RecordResult(ctx context.Context, res Result) error
}

// Metrics receives counters for terminal and retry transitions.
type Metrics interface {
	TaskCompleted(d time.Duration)
	TaskFailed()
	TaskSkipped()
	TaskRetried()
}

// Defaults applied when Options leave fields zero.
const (
	DefaultMaxAttempts       = 3
	DefaultRecomputeInterval = 5 * time.Minute
)

// Options configures a Scheduler. The zero value is usable: head-of-queue
// dispatch, 5 minute recompute interval, 3 attempts, full resource pools,
// no bus, journal, or metrics.
type Options struct {
	Policy             DispatchPolicy
	RecomputeInterval  time.Duration
	DefaultMaxAttempts int
	Capacities         map[string]float64              // Initial resource pool sizes (0-100 each)
	Bus                *events.EventBus                // Optional lifecycle event sink
	Journal            Journal                         // Optional persistence hook
	Metrics            Metrics                         // Optional counters
	RetryDelay         func(attempt int) time.Duration // Requeue pacing after a failed attempt; nil = immediate
	Clock              func() time.Time                // Injectable for tests
}

// TaskSpec describes a task to register.
type TaskSpec struct {
	ID                string // Optional; generated when empty
	Name              string
	Action            Runnable
	Target            string
	Dependencies      []string
	Priority          int
	Deadline          *time.Time
	Resources         map[string]float64
	Timeout           time.Duration
	MaxAttempts       int // 0 = scheduler default
	EstimatedDuration time.Duration
}

// Stats is a point-in-time summary of scheduler state.
type Stats struct {
	Total            int
	ByStatus         map[Status]int
	Executed         int           // Successful completions
	AverageExecution time.Duration // Incremental mean over successful runs
	QueueLength      int
	Resources        map[string]float64 // Current availability per type
}

// Scheduler owns the dependency graph, ready queue, and resource ledger.
// Every bookkeeping operation runs inside a single critical section, so
// admission, completion handling, and priority recomputation are never
// concurrent with each other.
type Scheduler struct {
	mu      sync.Mutex
	tasks   map[string]*Task
	results map[string]Result
	graph   *depGraph
	queue   *readyQueue
	ledger  *Ledger
	counts  map[Status]int

	policy          DispatchPolicy
	recomputeEvery  time.Duration
	lastRecompute   time.Time
	defaultAttempts int
	retryDelay      func(attempt int) time.Duration
	now             func() time.Time
	seq             uint64

	execCount int
	execMean  time.Duration

	bus     *events.EventBus
	journal Journal
	metrics Metrics
}

// New creates a Scheduler from the given options.
func New(opts Options) *Scheduler {
	if opts.RecomputeInterval <= 0 {
		opts.RecomputeInterval = DefaultRecomputeInterval
	}
	if opts.DefaultMaxAttempts <= 0 {
		opts.DefaultMaxAttempts = DefaultMaxAttempts
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	s := &Scheduler{
		tasks:           make(map[string]*Task),
		results:         make(map[string]Result),
		graph:           newDepGraph(),
		queue:           newReadyQueue(),
		ledger:          NewLedger(opts.Capacities),
		counts:          make(map[Status]int),
		policy:          opts.Policy,
		recomputeEvery:  opts.RecomputeInterval,
		defaultAttempts: opts.DefaultMaxAttempts,
		retryDelay:      opts.RetryDelay,
		now:             opts.Clock,
		bus:             opts.Bus,
		journal:         opts.Journal,
		metrics:         opts.Metrics,
	}
	s.lastRecompute = s.now()
	return s
}

// AddTask registers a task and returns its ID.
// Unknown dependency IDs are logged and treated as already satisfied, an
// explicit policy to avoid deadlock on dangling references. Dependencies on
// already-failed or skipped tasks poison the new task immediately.
func (s *Scheduler) AddTask(spec TaskSpec) (string, error) {
	s.mu.Lock()

	id := spec.ID
	if id == "" {
		id = uuid.NewString()
	}
	if _, exists := s.tasks[id]; exists {
		s.mu.Unlock()
		return "", fmt.Errorf("%w: %q", ErrDuplicateTask, id)
	}

	maxAttempts := spec.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = s.defaultAttempts
	}

	now := s.now()
	task := &Task{
		ID:                id,
		Name:              spec.Name,
		Action:            spec.Action,
		Target:            spec.Target,
		Dependencies:      append([]string(nil), spec.Dependencies...),
		InitialPriority:   spec.Priority,
		Deadline:          spec.Deadline,
		Resources:         spec.Resources,
		Timeout:           spec.Timeout,
		MaxAttempts:       maxAttempts,
		EstimatedDuration: spec.EstimatedDuration,
		Status:            StatusPending,
		CreatedAt:         now,
		seq:               s.seq,
		heapIndex:         -1,
	}
	s.seq++
	recomputePriority(task, now)

	// Classify dependencies: unknown ones are satisfied by policy, completed
	// ones are satisfied by definition, failed or skipped ones poison the task.
	var unmet []string
	poisonedBy := ""
	for _, depID := range spec.Dependencies {
		dep, exists := s.tasks[depID]
		if !exists {
			log.Printf("WARNING: task %q depends on unknown task %q, treating as satisfied", id, depID)
			continue
		}
		switch dep.Status {
		case StatusCompleted:
		case StatusFailed, StatusSkipped:
			poisonedBy = depID
		default:
			unmet = append(unmet, depID)
		}
	}

	s.graph.add(id, unmet)
	s.tasks[id] = task
	s.counts[StatusPending]++

	switch {
	case poisonedBy != "":
		s.setStatus(task, StatusSkipped)
		task.CompletionTime = now
		if s.metrics != nil {
			s.metrics.TaskSkipped()
		}
		s.publish(events.TopicTask, events.TaskSkippedEvent{ID: id, FailedDep: poisonedBy, Timestamp: now})
	case len(unmet) == 0:
		s.setStatus(task, StatusReady)
		s.queue.push(task)
	default:
		s.setStatus(task, StatusBlocked)
	}

	s.publish(events.TopicTask, events.TaskQueuedEvent{
		ID:        id,
		Name:      task.Name,
		Priority:  task.CurrentPriority,
		Blocked:   task.Status == StatusBlocked,
		Timestamp: now,
	})
	s.publishProgress(now)

	snap := cloneTask(task)
	s.mu.Unlock()

	s.journalTasks(snap)
	return id, nil
}

// NextTask pops the highest-priority dispatchable task, reserves its
// resources, marks it running, and returns a copy of it. Returns false when
// no task can be dispatched on this call; resource-starved heads stay queued
// per the configured DispatchPolicy.
func (s *Scheduler) NextTask() (*Task, bool) {
	s.mu.Lock()

	now := s.now()
	s.maybeRecompute(now)

	var task *Task
	switch s.policy {
	case PolicyFirstFit:
		task = s.popFirstFit(now)
	default:
		task = s.popHead(now)
	}

	if task == nil {
		s.mu.Unlock()
		return nil, false
	}

	s.setStatus(task, StatusRunning)
	task.StartTime = now
	task.Attempts++
	task.reserved = make(map[string]float64, len(task.Resources))
	for typ, amount := range task.Resources {
		task.reserved[typ] = amount
	}

	s.publish(events.TopicTask, events.TaskStartedEvent{
		ID:        task.ID,
		Name:      task.Name,
		Attempt:   task.Attempts,
		Timestamp: now,
	})
	s.publishProgress(now)

	out := cloneTask(task)
	snap := cloneTask(task)
	s.mu.Unlock()

	s.journalTasks(snap)
	return out, true
}

// popHead examines at most one candidate (documented single-candidate policy).
func (s *Scheduler) popHead(now time.Time) *Task {
	for {
		task := s.queue.pop()
		if task == nil {
			return nil
		}
		if !task.Status.dispatchable() {
			// Stale entry (e.g. skipped while queued); drop and keep looking.
			continue
		}
		if now.Before(task.NotBefore) {
			s.queue.push(task)
			return nil
		}
		if !s.ledger.Reserve(task.Resources) {
			s.markDeferred(task, now)
			return nil
		}
		return task
	}
}

// popFirstFit scans candidates in priority order until one can be admitted.
func (s *Scheduler) popFirstFit(now time.Time) *Task {
	var passed []*Task
	var picked *Task
	for {
		task := s.queue.pop()
		if task == nil {
			break
		}
		if !task.Status.dispatchable() {
			continue
		}
		if now.Before(task.NotBefore) {
			passed = append(passed, task)
			continue
		}
		if !s.ledger.Reserve(task.Resources) {
			s.markDeferred(task, now)
			passed = append(passed, task)
			continue
		}
		picked = task
		break
	}
	for _, task := range passed {
		s.queue.push(task)
	}
	return picked
}

// markDeferred marks a resource-starved task deferred and re-queues it.
// Under PolicyFirstFit the caller re-queues, so only the head policy pushes.
func (s *Scheduler) markDeferred(task *Task, now time.Time) {
	if task.Status != StatusDeferred {
		s.setStatus(task, StatusDeferred)
	}
	if s.policy != PolicyFirstFit {
		s.queue.push(task)
	}
	s.publish(events.TopicTask, events.TaskDeferredEvent{
		ID:        task.ID,
		Reason:    "insufficient resources",
		Timestamp: now,
	})
}

// Complete records the outcome of a running task's attempt.
// On success, dependents whose last dependency this was become ready.
// On failure, the task is requeued until its attempts are exhausted, after
// which it fails permanently and all transitive dependents are skipped.
// Reserved resources are released on every path.
func (s *Scheduler) Complete(taskID string, res Result) error {
	s.mu.Lock()

	task, exists := s.tasks[taskID]
	if !exists {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownTask, taskID)
	}
	if task.Status != StatusRunning {
		s.mu.Unlock()
		return fmt.Errorf("task %q is not running (status %s)", taskID, task.Status)
	}

	// Release first so no outcome path can leak capacity. The reserved map is
	// cleared to make release idempotent per attempt.
	if task.reserved != nil {
		s.ledger.Release(task.reserved)
		task.reserved = nil
	}

	now := s.now()
	execTime := res.ExecutionTime
	if execTime <= 0 {
		execTime = now.Sub(task.StartTime)
	}

	var snaps []*Task
	if res.Success {
		snaps = s.completeOK(task, res, execTime, now)
	} else {
		snaps = s.completeFailed(task, res, execTime, now)
	}
	s.publishProgress(now)
	s.mu.Unlock()

	s.journalTasks(snaps...)
	return nil
}

func (s *Scheduler) completeOK(task *Task, res Result, execTime time.Duration, now time.Time) []*Task {
	s.setStatus(task, StatusCompleted)
	task.CompletionTime = now
	task.Err = nil
	s.results[task.ID] = Result{
		TaskID:        task.ID,
		Success:       true,
		Output:        res.Output,
		ExecutionTime: execTime,
	}

	// Incremental mean keeps memory bounded regardless of history length.
	s.execCount++
	s.execMean += (execTime - s.execMean) / time.Duration(s.execCount)

	if s.metrics != nil {
		s.metrics.TaskCompleted(execTime)
	}
	s.publish(events.TopicTask, events.TaskCompletedEvent{ID: task.ID, Duration: execTime, Timestamp: now})

	snaps := []*Task{cloneTask(task)}
	for _, depID := range s.graph.satisfy(task.ID) {
		dep := s.tasks[depID]
		if dep == nil || dep.Status != StatusBlocked {
			continue
		}
		s.setStatus(dep, StatusReady)
		recomputePriority(dep, now)
		s.queue.push(dep)
		s.publish(events.TopicTask, events.TaskReadyEvent{ID: depID, Timestamp: now})
		snaps = append(snaps, cloneTask(dep))
	}
	return snaps
}

func (s *Scheduler) completeFailed(task *Task, res Result, execTime time.Duration, now time.Time) []*Task {
	task.Err = res.Err
	if task.Err == nil {
		task.Err = errors.New("task failed")
	}

	if task.Attempts < task.MaxAttempts {
		s.setStatus(task, StatusPending)
		task.NotBefore = now
		if s.retryDelay != nil {
			task.NotBefore = now.Add(s.retryDelay(task.Attempts))
		}
		s.queue.push(task)
		if s.metrics != nil {
			s.metrics.TaskRetried()
		}
		s.publish(events.TopicTask, events.TaskRetriedEvent{
			ID:        task.ID,
			Attempt:   task.Attempts,
			NotBefore: task.NotBefore,
			Err:       task.Err,
			Timestamp: now,
		})
		return []*Task{cloneTask(task)}
	}

	s.setStatus(task, StatusFailed)
	task.CompletionTime = now
	s.results[task.ID] = Result{
		TaskID:        task.ID,
		Success:       false,
		Err:           task.Err,
		ExecutionTime: execTime,
	}
	if s.metrics != nil {
		s.metrics.TaskFailed()
	}
	s.publish(events.TopicTask, events.TaskFailedEvent{
		ID:        task.ID,
		Err:       task.Err,
		Attempts:  task.Attempts,
		Timestamp: now,
	})

	// Failure containment: a permanently failed task poisons every task that
	// directly or transitively depends on it.
	snaps := []*Task{cloneTask(task)}
	for _, depID := range s.graph.transitiveDependents(task.ID) {
		dep := s.tasks[depID]
		if dep == nil || dep.Status.Terminal() || dep.Status == StatusRunning {
			continue
		}
		s.queue.remove(dep)
		s.setStatus(dep, StatusSkipped)
		dep.CompletionTime = now
		if s.metrics != nil {
			s.metrics.TaskSkipped()
		}
		s.publish(events.TopicTask, events.TaskSkippedEvent{ID: depID, FailedDep: task.ID, Timestamp: now})
		snaps = append(snaps, cloneTask(dep))
	}
	return snaps
}

// TaskStatus returns the current status of a task.
func (s *Scheduler) TaskStatus(taskID string) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, exists := s.tasks[taskID]
	if !exists {
		return 0, fmt.Errorf("%w: %q", ErrUnknownTask, taskID)
	}
	return task.Status, nil
}

// GetTask returns a copy of a task.
func (s *Scheduler) GetTask(taskID string) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, exists := s.tasks[taskID]
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTask, taskID)
	}
	return cloneTask(task), nil
}

// ResultOf returns the terminal result of a task, if it has one.
func (s *Scheduler) ResultOf(taskID string) (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, ok := s.results[taskID]
	return res, ok
}

// Tasks returns copies of all registered tasks.
func (s *Scheduler) Tasks() []*Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		out = append(out, cloneTask(task))
	}
	return out
}

// Stats returns a snapshot of counts by status, the running average execution
// time, and resource availability.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	byStatus := make(map[Status]int, len(s.counts))
	for status, n := range s.counts {
		if n > 0 {
			byStatus[status] = n
		}
	}
	return Stats{
		Total:            len(s.tasks),
		ByStatus:         byStatus,
		Executed:         s.execCount,
		AverageExecution: s.execMean,
		QueueLength:      s.queue.Len(),
		Resources:        s.ledger.Snapshot(),
	}
}

// Drained reports whether every registered task has reached a terminal state.
func (s *Scheduler) Drained() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	terminal := s.counts[StatusCompleted] + s.counts[StatusFailed] + s.counts[StatusSkipped]
	return terminal == len(s.tasks)
}

// InFlight returns the number of currently running tasks.
func (s *Scheduler) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[StatusRunning]
}

// Validate topologically sorts the registered tasks and returns the order,
// or an error if the dependency graph contains a cycle.
func (s *Scheduler) Validate() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.validate(s.tasks)
}

// SetCapacity adjusts a resource pool at runtime.
func (s *Scheduler) SetCapacity(resourceType string, capacity float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.SetCapacity(resourceType, capacity)
}

// RecomputePriorities forces an immediate priority recompute for all queued
// tasks. Idempotent: calling it twice with no elapsed time produces identical
// priorities.
func (s *Scheduler) RecomputePriorities() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recompute(s.now())
}

// maybeRecompute runs the recompute step if the configured interval elapsed.
func (s *Scheduler) maybeRecompute(now time.Time) {
	if now.Sub(s.lastRecompute) < s.recomputeEvery {
		return
	}
	s.recompute(now)
}

func (s *Scheduler) recompute(now time.Time) {
	for _, task := range s.queue.items {
		recomputePriority(task, now)
	}
	s.queue.reheap()
	s.lastRecompute = now
}

func (s *Scheduler) setStatus(task *Task, status Status) {
	s.counts[task.Status]--
	task.Status = status
	s.counts[status]++
}

func (s *Scheduler) publish(topic string, event events.Event) {
	if s.bus != nil {
		s.bus.Publish(topic, event)
	}
}

func (s *Scheduler) publishProgress(now time.Time) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.TopicScheduler, events.ProgressEvent{
		Total:     len(s.tasks),
		Blocked:   s.counts[StatusBlocked],
		Ready:     s.counts[StatusReady] + s.counts[StatusDeferred] + s.counts[StatusPending],
		Running:   s.counts[StatusRunning],
		Completed: s.counts[StatusCompleted],
		Failed:    s.counts[StatusFailed],
		Skipped:   s.counts[StatusSkipped],
		Timestamp: now,
	})
}

func (s *Scheduler) journalTasks(tasks ...*Task) {
	if s.journal == nil {
		return
	}
	ctx := context.Background()
	for _, task := range tasks {
		if err := s.journal.RecordTask(ctx, task); err != nil {
			log.Printf("WARNING: failed to journal task %q: %v", task.ID, err)
			continue
		}
		if task.Status.Terminal() {
			s.mu.Lock()
			res, ok := s.results[task.ID]
			s.mu.Unlock()
			if ok {
				if err := s.journal.RecordResult(ctx, res); err != nil {
					log.Printf("WARNING: failed to journal result for task %q: %v", task.ID, err)
				}
			}
		}
	}
}
