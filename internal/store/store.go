// Package store declares the persistence contracts consumed by the timer core.
// internal/db implements them on PostgreSQL, internal/db/memstore in memory.
package store

import (
	"context"
	"errors"
	"time"

	"tasktimer/internal/db/models"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrTimerTaken is returned when a write would give an assignee a second
	// running timer.
	ErrTimerTaken = errors.New("assignee already has a running timer")
)

// TaskQueries are the task reads and writes performed inside a transaction.
type TaskQueries interface {
	// LockUserTimers serialises timer transitions of one user until the
	// transaction ends.
	LockUserTimers(ctx context.Context, userID uuid.UUID) error

	// GetTaskForUpdate loads a task and row-locks it for the rest of the
	// transaction.
	GetTaskForUpdate(ctx context.Context, taskID uuid.UUID) (*models.Task, error)

	// FindRunningTask returns a task assigned to userID with an active timer,
	// other than excludeTaskID. It returns ErrNotFound when there is none.
	FindRunningTask(ctx context.Context, userID, excludeTaskID uuid.UUID) (*models.Task, error)

	// UpdateTaskTimer persists the timer fields and status of a task.
	UpdateTaskTimer(ctx context.Context, task *models.Task) error
}

type TimeLogQueries interface {
	InsertTimeLog(ctx context.Context, entry *models.TimeLogEntry) error

	// SumTimeLogSeconds sums DurationSeconds of the entries of (taskID, userID)
	// whose EndAt lies in [from, to).
	SumTimeLogSeconds(ctx context.Context, taskID, userID uuid.UUID, from, to time.Time) (int64, error)
}

type TimesheetQueries interface {
	// GetTimesheet returns the record of userID for date, or ErrNotFound.
	GetTimesheet(ctx context.Context, userID uuid.UUID, date time.Time) (*models.Timesheet, error)

	// FindOrCreateTimesheet returns the record of userID for date, creating a
	// pending one when absent.
	FindOrCreateTimesheet(ctx context.Context, userID uuid.UUID, date time.Time) (*models.Timesheet, error)

	SetClockIn(ctx context.Context, timesheetID uuid.UUID, at time.Time) error
	SetClockOut(ctx context.Context, timesheetID uuid.UUID, at time.Time) error

	// GetTimesheetEntry returns the entry for (timesheetID, taskID), or ErrNotFound.
	GetTimesheetEntry(ctx context.Context, timesheetID, taskID uuid.UUID) (*models.TimesheetEntry, error)
	CreateTimesheetEntry(ctx context.Context, entry *models.TimesheetEntry) error
	UpdateTimesheetEntryMinutes(ctx context.Context, entryID uuid.UUID, minutes int) error
}

type ProjectQueries interface {
	// IsProjectBillable returns ErrNotFound when the project does not exist.
	IsProjectBillable(ctx context.Context, projectID uuid.UUID) (bool, error)
}

// Tx is one database transaction.
type Tx interface {
	TaskQueries
	TimeLogQueries
	TimesheetQueries
	ProjectQueries
}

// Store is the full persistence surface used by the engine and the front-ends.
type Store interface {
	// InTx runs fn in a transaction. The transaction commits when fn returns
	// nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	GetTask(ctx context.Context, taskID uuid.UUID) (*models.Task, error)
	CreateTask(ctx context.Context, task *models.Task) error
	ListAssignedTasks(ctx context.Context, userID uuid.UUID) ([]*models.Task, error)
	ListRunningTasks(ctx context.Context, assigneeID uuid.UUID) ([]*models.Task, error)
	ListAllRunningTasks(ctx context.Context) ([]*models.Task, error)

	ListTimeLogs(ctx context.Context, taskID uuid.UUID) ([]*models.TimeLogEntry, error)
	ListUserTimeLogs(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*models.TimeLogEntry, error)

	GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
	GetOrCreateUser(ctx context.Context, discordID, username string) (*models.User, error)
	GetOrCreateGuildProject(ctx context.Context, guildID, name string) (*models.Project, error)

	GetTimesheet(ctx context.Context, userID uuid.UUID, date time.Time) (*models.Timesheet, error)
	ListTimesheetEntries(ctx context.Context, timesheetID uuid.UUID) ([]*models.TimesheetEntry, error)

	Close()
}
