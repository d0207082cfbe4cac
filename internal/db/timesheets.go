package db

import (
	"context"
	"fmt"
	"time"

	"tasktimer/internal/db/models"
	"tasktimer/internal/store"

	"github.com/google/uuid"
)

const timesheetColumns = `id, user_id, date, clock_in, clock_out, status, notes, created_at, updated_at`

const timesheetEntryColumns = `id, timesheet_id, project_id, task_id, minutes, is_billable,
	description, started_at, ended_at, created_at, updated_at`

func scanTimesheet(row scanner) (*models.Timesheet, error) {
	ts := &models.Timesheet{}
	err := row.Scan(
		&ts.ID,
		&ts.UserID,
		&ts.Date,
		&ts.ClockIn,
		&ts.ClockOut,
		&ts.Status,
		&ts.Notes,
		&ts.CreatedAt,
		&ts.UpdatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	ts.Date = models.DateOf(ts.Date)
	return ts, nil
}

func scanTimesheetEntry(row scanner) (*models.TimesheetEntry, error) {
	entry := &models.TimesheetEntry{}
	var taskID uuid.NullUUID
	err := row.Scan(
		&entry.ID,
		&entry.TimesheetID,
		&entry.ProjectID,
		&taskID,
		&entry.Minutes,
		&entry.IsBillable,
		&entry.Description,
		&entry.StartedAt,
		&entry.EndedAt,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	if taskID.Valid {
		entry.TaskID = &taskID.UUID
	}
	return entry, nil
}

func getTimesheet(ctx context.Context, q querier, userID uuid.UUID, date time.Time) (*models.Timesheet, error) {
	ts, err := scanTimesheet(q.QueryRow(ctx, `
		SELECT `+timesheetColumns+`
		FROM timesheets
		WHERE user_id = $1 AND date = $2`, userID, models.DateOf(date)))
	if err != nil {
		return nil, fmt.Errorf("get timesheet: %w", err)
	}
	return ts, nil
}

// GetTimesheet returns the record of a user for a date outside any transaction.
func (db *DB) GetTimesheet(ctx context.Context, userID uuid.UUID, date time.Time) (*models.Timesheet, error) {
	return getTimesheet(ctx, db.Pool, userID, date)
}

// ListTimesheetEntries returns the lines of a timesheet, oldest first.
func (db *DB) ListTimesheetEntries(ctx context.Context, timesheetID uuid.UUID) ([]*models.TimesheetEntry, error) {
	rows, err := db.Query(ctx, `
		SELECT `+timesheetEntryColumns+`
		FROM timesheet_entries
		WHERE timesheet_id = $1
		ORDER BY created_at, id`, timesheetID)
	if err != nil {
		return nil, fmt.Errorf("list timesheet entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.TimesheetEntry
	for rows.Next() {
		entry, err := scanTimesheetEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (t *Tx) GetTimesheet(ctx context.Context, userID uuid.UUID, date time.Time) (*models.Timesheet, error) {
	return getTimesheet(ctx, t.tx, userID, date)
}

// FindOrCreateTimesheet inserts a pending row when none exists and returns the
// row for (userID, date) either way.
func (t *Tx) FindOrCreateTimesheet(ctx context.Context, userID uuid.UUID, date time.Time) (*models.Timesheet, error) {
	ts := now()
	_, err := t.tx.Exec(ctx, `
		INSERT INTO timesheets (id, user_id, date, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (user_id, date) DO NOTHING`,
		uuid.New(), userID, models.DateOf(date), string(models.TimesheetPending), ts,
	)
	if err != nil {
		return nil, fmt.Errorf("create timesheet: %w", mapErr(err))
	}
	return getTimesheet(ctx, t.tx, userID, date)
}

func (t *Tx) SetClockIn(ctx context.Context, timesheetID uuid.UUID, at time.Time) error {
	return t.setClock(ctx, "clock_in", timesheetID, at)
}

func (t *Tx) SetClockOut(ctx context.Context, timesheetID uuid.UUID, at time.Time) error {
	return t.setClock(ctx, "clock_out", timesheetID, at)
}

func (t *Tx) setClock(ctx context.Context, column string, timesheetID uuid.UUID, at time.Time) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE timesheets SET `+column+` = $1, updated_at = $2 WHERE id = $3`,
		at, now(), timesheetID,
	)
	if err != nil {
		return fmt.Errorf("set %s: %w", column, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set %s: %w", column, store.ErrNotFound)
	}
	return nil
}

func (t *Tx) GetTimesheetEntry(ctx context.Context, timesheetID, taskID uuid.UUID) (*models.TimesheetEntry, error) {
	entry, err := scanTimesheetEntry(t.tx.QueryRow(ctx, `
		SELECT `+timesheetEntryColumns+`
		FROM timesheet_entries
		WHERE timesheet_id = $1 AND task_id = $2
		FOR UPDATE`, timesheetID, taskID))
	if err != nil {
		return nil, fmt.Errorf("get timesheet entry: %w", err)
	}
	return entry, nil
}

func (t *Tx) CreateTimesheetEntry(ctx context.Context, entry *models.TimesheetEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	ts := now()
	entry.CreatedAt = ts
	entry.UpdatedAt = ts

	_, err := t.tx.Exec(ctx, `
		INSERT INTO timesheet_entries (`+timesheetEntryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		entry.ID,
		entry.TimesheetID,
		entry.ProjectID,
		entry.TaskID,
		entry.Minutes,
		entry.IsBillable,
		entry.Description,
		entry.StartedAt,
		entry.EndedAt,
		entry.CreatedAt,
		entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create timesheet entry: %w", mapErr(err))
	}
	return nil
}

func (t *Tx) UpdateTimesheetEntryMinutes(ctx context.Context, entryID uuid.UUID, minutes int) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE timesheet_entries SET minutes = $1, updated_at = $2 WHERE id = $3`,
		minutes, now(), entryID,
	)
	if err != nil {
		return fmt.Errorf("update timesheet entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update timesheet entry: %w", store.ErrNotFound)
	}
	return nil
}
