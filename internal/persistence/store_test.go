package persistence

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/scoobyjava/cherry-scheduler/internal/scheduler"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewMemoryStore(context.Background())
	if err != nil {
		t.Fatalf("NewMemoryStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndGetTask(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	deadline := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	task := &scheduler.Task{
		ID:              "task-1",
		Name:            "Fetch dataset",
		Target:          "api.example.com",
		Dependencies:    []string{"task-0"},
		InitialPriority: 5,
		CurrentPriority: 10,
		Deadline:        &deadline,
		Resources:       map[string]float64{"cpu": 25, "api": 10},
		Timeout:         2 * time.Minute,
		MaxAttempts:     3,
		Attempts:        1,
		Status:          scheduler.StatusRunning,
		CreatedAt:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		StartTime:       time.Date(2026, 3, 1, 12, 1, 0, 0, time.UTC),
	}

	if err := store.RecordTask(ctx, task); err != nil {
		t.Fatalf("RecordTask: %v", err)
	}

	got, err := store.GetTask(ctx, "task-1")
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}

	if got.Name != task.Name || got.Target != task.Target {
		t.Errorf("got name/target %q/%q, want %q/%q", got.Name, got.Target, task.Name, task.Target)
	}
	if got.InitialPriority != 5 || got.CurrentPriority != 10 {
		t.Errorf("priorities = %d/%d, want 5/10", got.InitialPriority, got.CurrentPriority)
	}
	if got.Deadline == nil || !got.Deadline.Equal(deadline) {
		t.Errorf("deadline = %v, want %v", got.Deadline, deadline)
	}
	if got.Resources["cpu"] != 25 || got.Resources["api"] != 10 {
		t.Errorf("resources = %v, want cpu=25 api=10", got.Resources)
	}
	if got.Timeout != 2*time.Minute {
		t.Errorf("timeout = %s, want 2m", got.Timeout)
	}
	if got.Status != scheduler.StatusRunning {
		t.Errorf("status = %s, want %s", got.Status, scheduler.StatusRunning)
	}
	if len(got.Dependencies) != 1 || got.Dependencies[0] != "task-0" {
		t.Errorf("dependencies = %v, want [task-0]", got.Dependencies)
	}
	if !got.StartTime.Equal(task.StartTime) {
		t.Errorf("start time = %v, want %v", got.StartTime, task.StartTime)
	}
	if !got.CompletionTime.IsZero() {
		t.Errorf("completion time = %v, want zero", got.CompletionTime)
	}
}

func TestRecordTaskIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	task := &scheduler.Task{
		ID:          "task-1",
		Name:        "Build",
		MaxAttempts: 3,
		Status:      scheduler.StatusReady,
		CreatedAt:   time.Now().UTC(),
	}
	if err := store.RecordTask(ctx, task); err != nil {
		t.Fatalf("first RecordTask: %v", err)
	}

	// Journal the same task again after a transition.
	task.Status = scheduler.StatusFailed
	task.Attempts = 3
	task.Err = errors.New("boom")
	task.CompletionTime = time.Now().UTC()
	if err := store.RecordTask(ctx, task); err != nil {
		t.Fatalf("second RecordTask: %v", err)
	}

	got, err := store.GetTask(ctx, "task-1")
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.Status != scheduler.StatusFailed {
		t.Errorf("status = %s, want %s", got.Status, scheduler.StatusFailed)
	}
	if got.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", got.Attempts)
	}
	if got.Err == nil || got.Err.Error() != "boom" {
		t.Errorf("err = %v, want boom", got.Err)
	}
}

func TestGetTaskNotFound(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.GetTask(context.Background(), "ghost"); err == nil {
		t.Error("expected error for missing task")
	}
}

func TestListTasks(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		task := &scheduler.Task{
			ID:          id,
			Name:        "task " + id,
			MaxAttempts: 3,
			Status:      scheduler.StatusPending,
			CreatedAt:   base.Add(time.Duration(i) * time.Second),
		}
		if id == "c" {
			task.Dependencies = []string{"a", "b"}
		}
		if err := store.RecordTask(ctx, task); err != nil {
			t.Fatalf("RecordTask(%s): %v", id, err)
		}
	}

	tasks, err := store.ListTasks(ctx)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("got %d tasks, want 3", len(tasks))
	}
	for i, want := range []string{"a", "b", "c"} {
		if tasks[i].ID != want {
			t.Errorf("tasks[%d].ID = %q, want %q (creation order)", i, tasks[i].ID, want)
		}
	}
	if len(tasks[2].Dependencies) != 2 {
		t.Errorf("dependencies of c = %v, want [a b]", tasks[2].Dependencies)
	}
}

func TestRecordAndGetResult(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	task := &scheduler.Task{
		ID:          "task-1",
		Name:        "Deploy",
		MaxAttempts: 1,
		Status:      scheduler.StatusCompleted,
		CreatedAt:   time.Now().UTC(),
	}
	if err := store.RecordTask(ctx, task); err != nil {
		t.Fatalf("RecordTask: %v", err)
	}

	res := scheduler.Result{
		TaskID:        "task-1",
		Success:       true,
		ExecutionTime: 1500 * time.Millisecond,
	}
	if err := store.RecordResult(ctx, res); err != nil {
		t.Fatalf("RecordResult: %v", err)
	}

	got, err := store.GetResult(ctx, "task-1")
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if !got.Success {
		t.Error("result not marked successful")
	}
	if got.ExecutionTime != 1500*time.Millisecond {
		t.Errorf("execution time = %s, want 1.5s", got.ExecutionTime)
	}

	// Overwriting with a failure outcome keeps one row per task.
	res = scheduler.Result{
		TaskID:        "task-1",
		Success:       false,
		Err:           errors.New("rollback"),
		ExecutionTime: time.Second,
	}
	if err := store.RecordResult(ctx, res); err != nil {
		t.Fatalf("RecordResult (overwrite): %v", err)
	}
	got, err = store.GetResult(ctx, "task-1")
	if err != nil {
		t.Fatalf("GetResult after overwrite: %v", err)
	}
	if got.Success || got.Err == nil || got.Err.Error() != "rollback" {
		t.Errorf("overwritten result = %+v, want rollback failure", got)
	}
}

func TestGetResultNotFound(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.GetResult(context.Background(), "ghost"); err == nil {
		t.Error("expected error for missing result")
	}
}

func TestFileBackedStore(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "tasks.db")

	store, err := NewSQLiteStore(ctx, dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}

	task := &scheduler.Task{
		ID:          "task-1",
		Name:        "Persisted",
		MaxAttempts: 3,
		Status:      scheduler.StatusCompleted,
		CreatedAt:   time.Now().UTC(),
	}
	if err := store.RecordTask(ctx, task); err != nil {
		t.Fatalf("RecordTask: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopen and verify the row survived.
	store, err = NewSQLiteStore(ctx, dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()

	got, err := store.GetTask(ctx, "task-1")
	if err != nil {
		t.Fatalf("GetTask after reopen: %v", err)
	}
	if got.Name != "Persisted" {
		t.Errorf("name = %q, want Persisted", got.Name)
	}
}
