package db

import (
	"context"
	"fmt"
	"time"

	"tasktimer/internal/db/models"

	"github.com/google/uuid"
)

const timeLogColumns = `id, task_id, user_id, action, start_at, end_at, duration_seconds, note, created_at`

func scanTimeLog(row scanner) (*models.TimeLogEntry, error) {
	entry := &models.TimeLogEntry{}
	err := row.Scan(
		&entry.ID,
		&entry.TaskID,
		&entry.UserID,
		&entry.Action,
		&entry.StartAt,
		&entry.EndAt,
		&entry.DurationSeconds,
		&entry.Note,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	return entry, nil
}

func scanTimeLogs(rows rowsScanner) ([]*models.TimeLogEntry, error) {
	defer rows.Close()

	var entries []*models.TimeLogEntry
	for rows.Next() {
		entry, err := scanTimeLog(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// InsertTimeLog appends an entry to the time ledger.
func (t *Tx) InsertTimeLog(ctx context.Context, entry *models.TimeLogEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.Must(uuid.NewV7())
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now()
	}

	_, err := t.tx.Exec(ctx, `
		INSERT INTO task_time_logs (`+timeLogColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID,
		entry.TaskID,
		entry.UserID,
		string(entry.Action),
		entry.StartAt,
		entry.EndAt,
		entry.DurationSeconds,
		entry.Note,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert time log: %w", mapErr(err))
	}
	return nil
}

func (t *Tx) SumTimeLogSeconds(ctx context.Context, taskID, userID uuid.UUID, from, to time.Time) (int64, error) {
	var total int64
	err := t.tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(duration_seconds), 0)
		FROM task_time_logs
		WHERE task_id = $1 AND user_id = $2 AND end_at >= $3 AND end_at < $4`,
		taskID, userID, from, to,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum time logs: %w", err)
	}
	return total, nil
}

// ListTimeLogs returns the ledger of a task in write order.
func (db *DB) ListTimeLogs(ctx context.Context, taskID uuid.UUID) ([]*models.TimeLogEntry, error) {
	rows, err := db.Query(ctx, `
		SELECT `+timeLogColumns+`
		FROM task_time_logs
		WHERE task_id = $1
		ORDER BY created_at, id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list time logs: %w", err)
	}
	return scanTimeLogs(rows)
}

// ListUserTimeLogs returns the closing entries written by a user with EndAt in [from, to).
func (db *DB) ListUserTimeLogs(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*models.TimeLogEntry, error) {
	rows, err := db.Query(ctx, `
		SELECT `+timeLogColumns+`
		FROM task_time_logs
		WHERE user_id = $1 AND end_at >= $2 AND end_at < $3
		ORDER BY created_at, id`, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list user time logs: %w", err)
	}
	return scanTimeLogs(rows)
}
