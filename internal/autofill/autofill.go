// Package autofill copies the time tracked on a task today into the user's
// timesheet when the task is completed.
package autofill

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tasktimer/internal/db/models"
	"tasktimer/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Filler upserts timesheet entries from the time ledger.
type Filler struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Filler {
	return &Filler{log: log}
}

// UpsertFromTaskCompletion writes the minutes actorID tracked on task during
// the UTC day of now into that day's timesheet. It must run inside the
// completion transaction. It returns a nil entry when there is nothing to
// write: no whole minute tracked today, or the timesheet already submitted.
//
// Calling it again for the same day rewrites Minutes of the existing entry
// and leaves every other field alone.
func (f *Filler) UpsertFromTaskCompletion(ctx context.Context, tx store.Tx, task *models.Task, actorID uuid.UUID, now time.Time) (*models.TimesheetEntry, error) {
	if task == nil || actorID == uuid.Nil {
		return nil, nil
	}

	day := models.DateOf(now)
	seconds, err := tx.SumTimeLogSeconds(ctx, task.ID, actorID, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("autofill: %w", err)
	}
	minutes := int(seconds / 60)
	if minutes <= 0 {
		return nil, nil
	}

	header, err := tx.FindOrCreateTimesheet(ctx, actorID, day)
	if err != nil {
		return nil, fmt.Errorf("autofill: %w", err)
	}
	if header.Status == models.TimesheetSubmitted {
		f.log.Debug().
			Str("task_id", task.ID.String()).
			Str("timesheet_id", header.ID.String()).
			Msg("timesheet submitted, skipping autofill")
		return nil, nil
	}

	entry, err := tx.GetTimesheetEntry(ctx, header.ID, task.ID)
	switch {
	case err == nil:
		if err := tx.UpdateTimesheetEntryMinutes(ctx, entry.ID, minutes); err != nil {
			return nil, fmt.Errorf("autofill: %w", err)
		}
		entry.Minutes = minutes
		return entry, nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("autofill: %w", err)
	}

	billable, err := tx.IsProjectBillable(ctx, task.ProjectID)
	if errors.Is(err, store.ErrNotFound) {
		billable = true
	} else if err != nil {
		return nil, fmt.Errorf("autofill: %w", err)
	}

	taskID := task.ID
	entry = &models.TimesheetEntry{
		TimesheetID: header.ID,
		ProjectID:   task.ProjectID,
		TaskID:      &taskID,
		Minutes:     minutes,
		IsBillable:  billable,
	}
	if err := tx.CreateTimesheetEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("autofill: %w", err)
	}
	return entry, nil
}
