package models

import (
	"time"

	"github.com/google/uuid"
)

type TimesheetStatus string

const (
	TimesheetPending   TimesheetStatus = "pending"
	TimesheetSubmitted TimesheetStatus = "submitted"
	TimesheetApproved  TimesheetStatus = "approved"
	TimesheetRejected  TimesheetStatus = "rejected"
)

// Timesheet is the per user, per UTC date record. It carries the attendance
// clock-in/clock-out and acts as the header for that day's timesheet entries.
type Timesheet struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	UserID    uuid.UUID       `db:"user_id" json:"user_id"`
	Date      time.Time       `db:"date" json:"date"`
	ClockIn   *time.Time      `db:"clock_in" json:"clock_in,omitempty"`
	ClockOut  *time.Time      `db:"clock_out" json:"clock_out,omitempty"`
	Status    TimesheetStatus `db:"status" json:"status"`
	Notes     *string         `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// ClockedIn reports whether the user clocked in and has not clocked out yet.
func (t *Timesheet) ClockedIn() bool {
	return t.ClockIn != nil && t.ClockOut == nil
}

func (t *Timesheet) Clone() *Timesheet {
	cp := *t
	cp.ClockIn = cloneTime(t.ClockIn)
	cp.ClockOut = cloneTime(t.ClockOut)
	cp.Notes = cloneString(t.Notes)
	return &cp
}

type TimesheetEntry struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	TimesheetID uuid.UUID  `db:"timesheet_id" json:"timesheet_id"`
	ProjectID   uuid.UUID  `db:"project_id" json:"project_id"`
	TaskID      *uuid.UUID `db:"task_id" json:"task_id,omitempty"`
	Minutes     int        `db:"minutes" json:"minutes"`
	IsBillable  bool       `db:"is_billable" json:"is_billable"`
	Description *string    `db:"description" json:"description,omitempty"`
	StartedAt   *time.Time `db:"started_at" json:"started_at,omitempty"`
	EndedAt     *time.Time `db:"ended_at" json:"ended_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

func (e *TimesheetEntry) Clone() *TimesheetEntry {
	cp := *e
	cp.TaskID = cloneUUID(e.TaskID)
	cp.Description = cloneString(e.Description)
	cp.StartedAt = cloneTime(e.StartedAt)
	cp.EndedAt = cloneTime(e.EndedAt)
	return &cp
}

// DateOf truncates t to its UTC calendar date.
func DateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
