package models

import (
	"time"

	"github.com/google/uuid"
)

type TimeLogAction string

const (
	ActionStart    TimeLogAction = "start"
	ActionPause    TimeLogAction = "pause"
	ActionResume   TimeLogAction = "resume"
	ActionStop     TimeLogAction = "stop"
	ActionComplete TimeLogAction = "complete"
)

// TimeLogEntry is one immutable ledger row written per accepted timer transition.
type TimeLogEntry struct {
	ID     uuid.UUID     `db:"id" json:"id"`
	TaskID uuid.UUID     `db:"task_id" json:"task_id"`
	UserID uuid.UUID     `db:"user_id" json:"user_id"`
	Action TimeLogAction `db:"action" json:"action"`

	// StartAt is set for start and resume, EndAt for pause, stop and complete.
	StartAt *time.Time `db:"start_at" json:"start_at,omitempty"`
	EndAt   *time.Time `db:"end_at" json:"end_at,omitempty"`

	DurationSeconds int64     `db:"duration_seconds" json:"duration_seconds"`
	Note            *string   `db:"note" json:"note,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

func (e *TimeLogEntry) Clone() *TimeLogEntry {
	cp := *e
	cp.StartAt = cloneTime(e.StartAt)
	cp.EndAt = cloneTime(e.EndAt)
	cp.Note = cloneString(e.Note)
	return &cp
}
