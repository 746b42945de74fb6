package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/scoobyjava/cherry-scheduler/internal/scheduler"
)

// RecordResult saves the terminal result of a task. The opaque Output is not
// persisted; callers that need durable outputs should store them in the
// action itself.
func (s *SQLiteStore) RecordResult(ctx context.Context, res scheduler.Result) error {
	errorStr := ""
	if res.Err != nil {
		errorStr = res.Err.Error()
	}

	success := 0
	if res.Success {
		success = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO task_results (task_id, success, error, execution_time_ns)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(task_id) DO UPDATE SET
			success = excluded.success,
			error = excluded.error,
			execution_time_ns = excluded.execution_time_ns,
			recorded_at = CURRENT_TIMESTAMP
	`, res.TaskID, success, errorStr, int64(res.ExecutionTime))
	if err != nil {
		return fmt.Errorf("failed to upsert result for %s: %w", res.TaskID, err)
	}

	return nil
}

// GetResult retrieves the terminal result of a task.
func (s *SQLiteStore) GetResult(ctx context.Context, taskID string) (*scheduler.Result, error) {
	var (
		success int
		errStr  string
		execNS  int64
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT success, error, execution_time_ns
		FROM task_results
		WHERE task_id = ?
	`, taskID).Scan(&success, &errStr, &execNS)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no result for task: %s", taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query result: %w", err)
	}

	res := &scheduler.Result{
		TaskID:        taskID,
		Success:       success == 1,
		ExecutionTime: time.Duration(execNS),
	}
	if errStr != "" {
		res.Err = fmt.Errorf("%s", errStr)
	}

	return res, nil
}
