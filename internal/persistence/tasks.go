package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/scoobyjava/cherry-scheduler/internal/scheduler"
)

// RecordTask saves or updates a task snapshot and its dependency edges.
// Uses ON CONFLICT to make saves idempotent, so the scheduler can journal the
// same task on every transition.
func (s *SQLiteStore) RecordTask(ctx context.Context, task *scheduler.Task) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	errorStr := ""
	if task.Err != nil {
		errorStr = task.Err.Error()
	}

	resources := ""
	if len(task.Resources) > 0 {
		data, err := json.Marshal(task.Resources)
		if err != nil {
			return fmt.Errorf("failed to encode resources: %w", err)
		}
		resources = string(data)
	}

	var deadline sql.NullTime
	if task.Deadline != nil {
		deadline = sql.NullTime{Time: *task.Deadline, Valid: true}
	}
	startTime := nullableTime(task.StartTime)
	completionTime := nullableTime(task.CompletionTime)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tasks (id, name, target, initial_priority, current_priority, deadline, resources,
			timeout_ns, max_attempts, attempts, status, error, created_at, start_time, completion_time, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			target = excluded.target,
			initial_priority = excluded.initial_priority,
			current_priority = excluded.current_priority,
			deadline = excluded.deadline,
			resources = excluded.resources,
			timeout_ns = excluded.timeout_ns,
			max_attempts = excluded.max_attempts,
			attempts = excluded.attempts,
			status = excluded.status,
			error = excluded.error,
			start_time = excluded.start_time,
			completion_time = excluded.completion_time,
			updated_at = CURRENT_TIMESTAMP
	`, task.ID, task.Name, task.Target, task.InitialPriority, task.CurrentPriority, deadline, resources,
		int64(task.Timeout), task.MaxAttempts, task.Attempts, task.Status, errorStr,
		task.CreatedAt, startTime, completionTime)
	if err != nil {
		return fmt.Errorf("failed to upsert task: %w", err)
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM task_dependencies WHERE task_id = ?`, task.ID)
	if err != nil {
		return fmt.Errorf("failed to delete old dependencies: %w", err)
	}

	for _, depID := range task.Dependencies {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO task_dependencies (task_id, depends_on_id)
			VALUES (?, ?)
		`, task.ID, depID)
		if err != nil {
			return fmt.Errorf("failed to insert dependency %s -> %s: %w", task.ID, depID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetTask retrieves a task snapshot by ID, including its dependencies.
// The Action field is not persisted and comes back nil.
func (s *SQLiteStore) GetTask(ctx context.Context, taskID string) (*scheduler.Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, target, initial_priority, current_priority, deadline, resources,
			timeout_ns, max_attempts, attempts, status, error, created_at, start_time, completion_time
		FROM tasks
		WHERE id = ?
	`, taskID)

	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task not found: %s", taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query task: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT depends_on_id
		FROM task_dependencies
		WHERE task_id = ?
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query dependencies: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var depID string
		if err := rows.Scan(&depID); err != nil {
			return nil, fmt.Errorf("failed to scan dependency: %w", err)
		}
		task.Dependencies = append(task.Dependencies, depID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate dependencies: %w", err)
	}

	return task, nil
}

// ListTasks returns snapshots of all persisted tasks ordered by creation time.
func (s *SQLiteStore) ListTasks(ctx context.Context) ([]*scheduler.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, target, initial_priority, current_priority, deadline, resources,
			timeout_ns, max_attempts, attempts, status, error, created_at, start_time, completion_time
		FROM tasks
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*scheduler.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}

	for _, task := range tasks {
		deps, err := s.taskDependencies(ctx, task.ID)
		if err != nil {
			return nil, err
		}
		task.Dependencies = deps
	}

	return tasks, nil
}

func (s *SQLiteStore) taskDependencies(ctx context.Context, taskID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT depends_on_id FROM task_dependencies WHERE task_id = ?
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query dependencies for %s: %w", taskID, err)
	}
	defer rows.Close()

	var deps []string
	for rows.Next() {
		var depID string
		if err := rows.Scan(&depID); err != nil {
			return nil, fmt.Errorf("failed to scan dependency: %w", err)
		}
		deps = append(deps, depID)
	}
	return deps, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*scheduler.Task, error) {
	task := &scheduler.Task{}
	var (
		deadline       sql.NullTime
		resources      string
		timeoutNS      int64
		errorStr       string
		startTime      sql.NullTime
		completionTime sql.NullTime
	)

	err := row.Scan(&task.ID, &task.Name, &task.Target, &task.InitialPriority, &task.CurrentPriority,
		&deadline, &resources, &timeoutNS, &task.MaxAttempts, &task.Attempts, &task.Status,
		&errorStr, &task.CreatedAt, &startTime, &completionTime)
	if err != nil {
		return nil, err
	}

	if deadline.Valid {
		d := deadline.Time
		task.Deadline = &d
	}
	if startTime.Valid {
		task.StartTime = startTime.Time
	}
	if completionTime.Valid {
		task.CompletionTime = completionTime.Time
	}
	task.Timeout = time.Duration(timeoutNS)
	if resources != "" {
		if err := json.Unmarshal([]byte(resources), &task.Resources); err != nil {
			return nil, fmt.Errorf("failed to decode resources: %w", err)
		}
	}
	if errorStr != "" {
		task.Err = fmt.Errorf("%s", errorStr)
	}

	return task, nil
}

func nullableTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
