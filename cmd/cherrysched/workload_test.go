package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/scoobyjava/cherry-scheduler/internal/executor"
	"github.com/scoobyjava/cherry-scheduler/internal/scheduler"
)

func writeWorkload(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workload.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadWorkload(t *testing.T) {
	path := writeWorkload(t, `{
		"tasks": [
			{"id": "fetch", "priority": 5, "resources": {"api": 20}},
			{"id": "process", "depends_on": ["fetch"], "max_attempts": 2}
		]
	}`)

	wl, err := LoadWorkload(path)
	if err != nil {
		t.Fatalf("LoadWorkload: %v", err)
	}
	if len(wl.Tasks) != 2 {
		t.Fatalf("got %d tasks, want 2", len(wl.Tasks))
	}
	if wl.Tasks[0].ID != "fetch" || wl.Tasks[0].Resources["api"] != 20 {
		t.Errorf("first task = %+v", wl.Tasks[0])
	}
	if wl.Tasks[1].DependsOn[0] != "fetch" || wl.Tasks[1].MaxAttempts != 2 {
		t.Errorf("second task = %+v", wl.Tasks[1])
	}
}

func TestLoadWorkloadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty task list", `{"tasks": []}`},
		{"missing id", `{"tasks": [{"name": "anonymous"}]}`},
		{"malformed json", `{"tasks": [`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeWorkload(t, tt.content)
			if _, err := LoadWorkload(path); err == nil {
				t.Error("expected error")
			}
		})
	}

	if _, err := LoadWorkload("/nonexistent/workload.json"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestRegisterAndRun(t *testing.T) {
	path := writeWorkload(t, `{
		"tasks": [
			{"id": "fetch", "priority": 5},
			{"id": "flaky", "fail_attempts": 1, "max_attempts": 3},
			{"id": "process", "depends_on": ["fetch", "flaky"]}
		]
	}`)

	wl, err := LoadWorkload(path)
	if err != nil {
		t.Fatal(err)
	}

	sched := scheduler.New(scheduler.Options{})
	if err := wl.Register(sched); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := sched.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	runner := executor.NewRunner(
		executor.RunnerConfig{MaxConcurrent: 1, PollInterval: time.Millisecond},
		sched,
		executor.New(time.Second, nil),
	)
	if _, err := runner.RunAll(context.Background()); err != nil {
		t.Fatalf("RunAll: %v", err)
	}

	// The flaky task fails once, succeeds on retry, and unblocks process.
	for _, id := range []string{"fetch", "flaky", "process"} {
		status, err := sched.TaskStatus(id)
		if err != nil {
			t.Fatal(err)
		}
		if status != scheduler.StatusCompleted {
			t.Errorf("status of %q = %s, want %s", id, status, scheduler.StatusCompleted)
		}
	}
}

func TestRegisterDuplicateID(t *testing.T) {
	path := writeWorkload(t, `{
		"tasks": [
			{"id": "dup"},
			{"id": "dup"}
		]
	}`)

	wl, err := LoadWorkload(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := wl.Register(scheduler.New(scheduler.Options{})); err == nil {
		t.Error("expected error for duplicate task id")
	}
}
