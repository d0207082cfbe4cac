package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskPaused     TaskStatus = "paused"
	TaskCompleted  TaskStatus = "completed"
	TaskCancelled  TaskStatus = "cancelled"
)

type Task struct {
	ID          uuid.UUID      `db:"id" json:"id"`
	ProjectID   uuid.UUID      `db:"project_id" json:"project_id"`
	AssignedTo  *uuid.UUID     `db:"assigned_to" json:"assigned_to,omitempty"`
	Name        string         `db:"name" json:"name"`
	Description string         `db:"description" json:"description"`
	Tags        pq.StringArray `db:"tags" json:"tags"`
	Status      TaskStatus     `db:"status" json:"status"`

	// StartedAt is the first time the task entered in_progress. It is never cleared.
	StartedAt   *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`

	// TotalTrackedSeconds accumulates closed runs, each rounded to a whole minute.
	TotalTrackedSeconds int64 `db:"total_tracked_seconds" json:"total_tracked_seconds"`

	// ActiveTimerStartedAt is non-nil iff a timer is running on the task.
	ActiveTimerStartedAt *time.Time `db:"active_timer_started_at" json:"active_timer_started_at,omitempty"`
	LastPausedAt         *time.Time `db:"last_paused_at" json:"last_paused_at,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// IsRunning reports whether a timer is active on the task.
func (t *Task) IsRunning() bool {
	return t.ActiveTimerStartedAt != nil
}

// IsAssignedTo reports whether userID is the task's assignee.
func (t *Task) IsAssignedTo(userID uuid.UUID) bool {
	return t.AssignedTo != nil && *t.AssignedTo == userID
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	cp := *t
	cp.AssignedTo = cloneUUID(t.AssignedTo)
	cp.StartedAt = cloneTime(t.StartedAt)
	cp.CompletedAt = cloneTime(t.CompletedAt)
	cp.ActiveTimerStartedAt = cloneTime(t.ActiveTimerStartedAt)
	cp.LastPausedAt = cloneTime(t.LastPausedAt)
	if t.Tags != nil {
		cp.Tags = append(pq.StringArray(nil), t.Tags...)
	}
	return &cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
