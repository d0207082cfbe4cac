package memstore

import (
	"context"
	"fmt"
	"time"

	"tasktimer/internal/db/models"
	"tasktimer/internal/store"

	"github.com/google/uuid"
)

// Tx is a store.Tx over the working copy of one InTx call.
type Tx struct {
	state *state
	now   func() time.Time
}

var _ store.Tx = (*Tx)(nil)

// LockUserTimers is a no-op: InTx already holds the store mutex.
func (t *Tx) LockUserTimers(ctx context.Context, userID uuid.UUID) error {
	return ctx.Err()
}

func (t *Tx) GetTaskForUpdate(ctx context.Context, taskID uuid.UUID) (*models.Task, error) {
	task, ok := t.state.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("get task %s for update: %w", taskID, store.ErrNotFound)
	}
	return task.Clone(), nil
}

func (t *Tx) FindRunningTask(ctx context.Context, userID, excludeTaskID uuid.UUID) (*models.Task, error) {
	for _, task := range t.state.tasks {
		if task.ID != excludeTaskID && task.IsRunning() && task.IsAssignedTo(userID) {
			return task.Clone(), nil
		}
	}
	return nil, store.ErrNotFound
}

// UpdateTaskTimer rejects a write that would leave the assignee with two
// running timers, like the partial unique index of the SQL schema.
func (t *Tx) UpdateTaskTimer(ctx context.Context, task *models.Task) error {
	cur, ok := t.state.tasks[task.ID]
	if !ok {
		return fmt.Errorf("update task timer %s: %w", task.ID, store.ErrNotFound)
	}
	if task.IsRunning() {
		candidate := cur.Clone()
		candidate.ActiveTimerStartedAt = task.ActiveTimerStartedAt
		if other := runningFor(t.state, candidate); other != nil {
			return fmt.Errorf("update task timer %s: %w", task.ID, store.ErrTimerTaken)
		}
	}

	task.UpdatedAt = t.now()
	cur.Status = task.Status
	cur.StartedAt = task.StartedAt
	cur.CompletedAt = task.CompletedAt
	cur.TotalTrackedSeconds = task.TotalTrackedSeconds
	cur.ActiveTimerStartedAt = task.ActiveTimerStartedAt
	cur.LastPausedAt = task.LastPausedAt
	cur.UpdatedAt = task.UpdatedAt
	t.state.tasks[task.ID] = cur.Clone()
	return nil
}

func (t *Tx) InsertTimeLog(ctx context.Context, entry *models.TimeLogEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.Must(uuid.NewV7())
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = t.now()
	}
	t.state.timeLogs = append(t.state.timeLogs, entry.Clone())
	return nil
}

func (t *Tx) SumTimeLogSeconds(ctx context.Context, taskID, userID uuid.UUID, from, to time.Time) (int64, error) {
	var total int64
	for _, e := range t.state.timeLogs {
		if e.TaskID == taskID && e.UserID == userID && endsWithin(e, from, to) {
			total += e.DurationSeconds
		}
	}
	return total, nil
}

func (t *Tx) GetTimesheet(ctx context.Context, userID uuid.UUID, date time.Time) (*models.Timesheet, error) {
	ts := findTimesheet(t.state, userID, date)
	if ts == nil {
		return nil, store.ErrNotFound
	}
	return ts.Clone(), nil
}

func (t *Tx) FindOrCreateTimesheet(ctx context.Context, userID uuid.UUID, date time.Time) (*models.Timesheet, error) {
	if ts := findTimesheet(t.state, userID, date); ts != nil {
		return ts.Clone(), nil
	}
	now := t.now()
	ts := &models.Timesheet{
		ID:        uuid.New(),
		UserID:    userID,
		Date:      models.DateOf(date),
		Status:    models.TimesheetPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	t.state.timesheets[ts.ID] = ts
	return ts.Clone(), nil
}

func (t *Tx) SetClockIn(ctx context.Context, timesheetID uuid.UUID, at time.Time) error {
	ts, ok := t.state.timesheets[timesheetID]
	if !ok {
		return fmt.Errorf("set clock_in: %w", store.ErrNotFound)
	}
	ts.ClockIn = &at
	ts.UpdatedAt = t.now()
	return nil
}

func (t *Tx) SetClockOut(ctx context.Context, timesheetID uuid.UUID, at time.Time) error {
	ts, ok := t.state.timesheets[timesheetID]
	if !ok {
		return fmt.Errorf("set clock_out: %w", store.ErrNotFound)
	}
	ts.ClockOut = &at
	ts.UpdatedAt = t.now()
	return nil
}

func (t *Tx) GetTimesheetEntry(ctx context.Context, timesheetID, taskID uuid.UUID) (*models.TimesheetEntry, error) {
	for _, e := range t.state.entries {
		if e.TimesheetID == timesheetID && e.TaskID != nil && *e.TaskID == taskID {
			return e.Clone(), nil
		}
	}
	return nil, store.ErrNotFound
}

func (t *Tx) CreateTimesheetEntry(ctx context.Context, entry *models.TimesheetEntry) error {
	if entry.TaskID != nil {
		if _, err := t.GetTimesheetEntry(ctx, entry.TimesheetID, *entry.TaskID); err == nil {
			return fmt.Errorf("create timesheet entry: duplicate task %s", *entry.TaskID)
		}
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	now := t.now()
	entry.CreatedAt = now
	entry.UpdatedAt = now
	t.state.entries[entry.ID] = entry.Clone()
	return nil
}

func (t *Tx) UpdateTimesheetEntryMinutes(ctx context.Context, entryID uuid.UUID, minutes int) error {
	e, ok := t.state.entries[entryID]
	if !ok {
		return fmt.Errorf("update timesheet entry: %w", store.ErrNotFound)
	}
	e.Minutes = minutes
	e.UpdatedAt = t.now()
	return nil
}

func (t *Tx) IsProjectBillable(ctx context.Context, projectID uuid.UUID) (bool, error) {
	p, ok := t.state.projects[projectID]
	if !ok {
		return false, store.ErrNotFound
	}
	return p.IsBillable, nil
}
