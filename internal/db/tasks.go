package db

import (
	"context"
	"fmt"

	"tasktimer/internal/db/models"
	"tasktimer/internal/store"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const taskColumns = `id, project_id, assigned_to, name, description, tags, status,
	started_at, completed_at, total_tracked_seconds, active_timer_started_at,
	last_paused_at, created_at, updated_at`

func scanTask(row scanner) (*models.Task, error) {
	task := &models.Task{}
	var assignee uuid.NullUUID
	err := row.Scan(
		&task.ID,
		&task.ProjectID,
		&assignee,
		&task.Name,
		&task.Description,
		&task.Tags,
		&task.Status,
		&task.StartedAt,
		&task.CompletedAt,
		&task.TotalTrackedSeconds,
		&task.ActiveTimerStartedAt,
		&task.LastPausedAt,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	if assignee.Valid {
		task.AssignedTo = &assignee.UUID
	}
	return task, nil
}

func scanTasks(rows rowsScanner) ([]*models.Task, error) {
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// CreateTask creates a new task in the database
func (db *DB) CreateTask(ctx context.Context, task *models.Task) error {
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	if task.Status == "" {
		task.Status = models.TaskPending
	}
	if task.Tags == nil {
		task.Tags = pq.StringArray{}
	}
	ts := now()
	task.CreatedAt = ts
	task.UpdatedAt = ts

	query := `
		INSERT INTO tasks (id, project_id, assigned_to, name, description, tags, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := db.Exec(ctx, query,
		task.ID,
		task.ProjectID,
		task.AssignedTo,
		task.Name,
		task.Description,
		task.Tags,
		string(task.Status),
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create task: %w", mapErr(err))
	}
	return nil
}

// GetTask retrieves a task by its ID without locking it
func (db *DB) GetTask(ctx context.Context, taskID uuid.UUID) (*models.Task, error) {
	task, err := scanTask(db.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, taskID))
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", taskID, err)
	}
	return task, nil
}

// ListAssignedTasks returns the tasks assigned to a user, newest first
func (db *DB) ListAssignedTasks(ctx context.Context, userID uuid.UUID) ([]*models.Task, error) {
	rows, err := db.Query(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE assigned_to = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list assigned tasks: %w", err)
	}
	return scanTasks(rows)
}

// ListRunningTasks returns the tasks assigned to a user with an active timer
func (db *DB) ListRunningTasks(ctx context.Context, assigneeID uuid.UUID) ([]*models.Task, error) {
	rows, err := db.Query(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE assigned_to = $1 AND active_timer_started_at IS NOT NULL
		ORDER BY active_timer_started_at`, assigneeID)
	if err != nil {
		return nil, fmt.Errorf("list running tasks: %w", err)
	}
	return scanTasks(rows)
}

// ListAllRunningTasks returns every task with an active timer
func (db *DB) ListAllRunningTasks(ctx context.Context) ([]*models.Task, error) {
	rows, err := db.Query(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE active_timer_started_at IS NOT NULL
		ORDER BY active_timer_started_at`)
	if err != nil {
		return nil, fmt.Errorf("list all running tasks: %w", err)
	}
	return scanTasks(rows)
}

// LockUserTimers takes a transaction-scoped advisory lock keyed on the user.
func (t *Tx) LockUserTimers(ctx context.Context, userID uuid.UUID) error {
	_, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, "timer:"+userID.String())
	if err != nil {
		return fmt.Errorf("lock user timers %s: %w", userID, err)
	}
	return nil
}

func (t *Tx) GetTaskForUpdate(ctx context.Context, taskID uuid.UUID) (*models.Task, error) {
	task, err := scanTask(t.tx.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1 FOR UPDATE`, taskID))
	if err != nil {
		return nil, fmt.Errorf("get task %s for update: %w", taskID, err)
	}
	return task, nil
}

func (t *Tx) FindRunningTask(ctx context.Context, userID, excludeTaskID uuid.UUID) (*models.Task, error) {
	task, err := scanTask(t.tx.QueryRow(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE assigned_to = $1 AND active_timer_started_at IS NOT NULL AND id <> $2
		LIMIT 1`, userID, excludeTaskID))
	if err != nil {
		return nil, fmt.Errorf("find running task for %s: %w", userID, err)
	}
	return task, nil
}

func (t *Tx) UpdateTaskTimer(ctx context.Context, task *models.Task) error {
	task.UpdatedAt = now()
	tag, err := t.tx.Exec(ctx, `
		UPDATE tasks
		SET status = $1,
			started_at = $2,
			completed_at = $3,
			total_tracked_seconds = $4,
			active_timer_started_at = $5,
			last_paused_at = $6,
			updated_at = $7
		WHERE id = $8`,
		string(task.Status),
		task.StartedAt,
		task.CompletedAt,
		task.TotalTrackedSeconds,
		task.ActiveTimerStartedAt,
		task.LastPausedAt,
		task.UpdatedAt,
		task.ID,
	)
	if err != nil {
		return fmt.Errorf("update task timer %s: %w", task.ID, mapErr(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update task timer %s: %w", task.ID, store.ErrNotFound)
	}
	return nil
}
