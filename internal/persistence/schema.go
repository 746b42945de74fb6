package persistence

import (
	"context"
)

// initSchema creates all required tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		target TEXT,
		initial_priority INTEGER NOT NULL,
		current_priority INTEGER NOT NULL,
		deadline DATETIME,
		resources TEXT,
		timeout_ns INTEGER NOT NULL DEFAULT 0,
		max_attempts INTEGER NOT NULL,
		attempts INTEGER NOT NULL,
		status INTEGER NOT NULL,
		error TEXT,
		created_at DATETIME NOT NULL,
		start_time DATETIME,
		completion_time DATETIME,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS task_dependencies (
		task_id TEXT NOT NULL,
		depends_on_id TEXT NOT NULL,
		PRIMARY KEY (task_id, depends_on_id),
		FOREIGN KEY (task_id) REFERENCES tasks(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_task_dependencies_task_id ON task_dependencies(task_id);

	CREATE TABLE IF NOT EXISTS task_results (
		task_id TEXT PRIMARY KEY,
		success INTEGER NOT NULL,
		error TEXT,
		execution_time_ns INTEGER NOT NULL,
		recorded_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (task_id) REFERENCES tasks(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}
