package autofill

import (
	"context"
	"testing"
	"time"

	"tasktimer/internal/db/memstore"
	"tasktimer/internal/db/models"
	"tasktimer/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var completedAt = time.Date(2024, 5, 6, 15, 0, 0, 0, time.UTC)

type fixture struct {
	store  *memstore.Store
	filler *Filler
	task   *models.Task
	userID uuid.UUID
}

func newFixture(t *testing.T, billable bool) *fixture {
	t.Helper()
	s := memstore.New()
	user := &models.User{Username: "ana", Role: models.RoleDeveloper}
	s.AddUser(user)
	project := &models.Project{Name: "site", IsBillable: billable}
	s.AddProject(project)
	task := &models.Task{ProjectID: project.ID, AssignedTo: &user.ID, Name: "landing page"}
	if err := s.CreateTask(context.Background(), task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	return &fixture{store: s, filler: New(zerolog.Nop()), task: task, userID: user.ID}
}

// logRun appends a closing ledger entry ending at end.
func (f *fixture) logRun(t *testing.T, end time.Time, seconds int64) {
	t.Helper()
	err := f.store.InTx(context.Background(), func(tx store.Tx) error {
		return tx.InsertTimeLog(context.Background(), &models.TimeLogEntry{
			TaskID:          f.task.ID,
			UserID:          f.userID,
			Action:          models.ActionPause,
			EndAt:           &end,
			DurationSeconds: seconds,
		})
	})
	if err != nil {
		t.Fatalf("InsertTimeLog: %v", err)
	}
}

func (f *fixture) upsert(t *testing.T) *models.TimesheetEntry {
	t.Helper()
	var entry *models.TimesheetEntry
	err := f.store.InTx(context.Background(), func(tx store.Tx) error {
		var err error
		entry, err = f.filler.UpsertFromTaskCompletion(context.Background(), tx, f.task, f.userID, completedAt)
		return err
	})
	if err != nil {
		t.Fatalf("UpsertFromTaskCompletion: %v", err)
	}
	return entry
}

func (f *fixture) entries(t *testing.T) []*models.TimesheetEntry {
	t.Helper()
	ts, err := f.store.GetTimesheet(context.Background(), f.userID, completedAt)
	if err != nil {
		return nil
	}
	entries, err := f.store.ListTimesheetEntries(context.Background(), ts.ID)
	if err != nil {
		t.Fatalf("ListTimesheetEntries: %v", err)
	}
	return entries
}

func TestUpsertCreatesEntry(t *testing.T) {
	f := newFixture(t, false)
	f.logRun(t, completedAt.Add(-2*time.Hour), 120)
	f.logRun(t, completedAt.Add(-time.Hour), 180)
	// Yesterday's run is not part of today's line.
	f.logRun(t, completedAt.AddDate(0, 0, -1), 3600)

	entry := f.upsert(t)
	if entry == nil {
		t.Fatal("no entry written")
	}
	if entry.Minutes != 5 {
		t.Errorf("minutes = %d, want 5", entry.Minutes)
	}
	if entry.IsBillable {
		t.Errorf("entry billable, project is not")
	}
	if entry.TaskID == nil || *entry.TaskID != f.task.ID {
		t.Errorf("entry task = %v, want %s", entry.TaskID, f.task.ID)
	}
	if entry.Description != nil || entry.StartedAt != nil || entry.EndedAt != nil {
		t.Errorf("entry has description or time window set: %+v", entry)
	}

	ts, err := f.store.GetTimesheet(context.Background(), f.userID, completedAt)
	if err != nil {
		t.Fatalf("GetTimesheet: %v", err)
	}
	if ts.Status != models.TimesheetPending {
		t.Errorf("header status = %s, want pending", ts.Status)
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	f := newFixture(t, true)
	f.logRun(t, completedAt.Add(-time.Hour), 300)

	first := f.upsert(t)
	second := f.upsert(t)
	if first == nil || second == nil {
		t.Fatal("entry missing")
	}
	if first.ID != second.ID {
		t.Errorf("second call created a new entry")
	}

	entries := f.entries(t)
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].Minutes != 5 {
		t.Errorf("minutes = %d, want 5", entries[0].Minutes)
	}

	f.logRun(t, completedAt.Add(-time.Minute), 150)
	f.upsert(t)
	entries = f.entries(t)
	if len(entries) != 1 {
		t.Fatalf("entries after more work = %d, want 1", len(entries))
	}
	if entries[0].Minutes != 7 {
		t.Errorf("minutes after more work = %d, want 7", entries[0].Minutes)
	}
}

func TestUpsertSkipsSubmittedTimesheet(t *testing.T) {
	f := newFixture(t, true)
	f.store.PutTimesheet(&models.Timesheet{UserID: f.userID, Date: completedAt, Status: models.TimesheetSubmitted})
	f.logRun(t, completedAt.Add(-time.Hour), 600)

	if entry := f.upsert(t); entry != nil {
		t.Errorf("entry written to submitted timesheet: %+v", entry)
	}
	if n := len(f.entries(t)); n != 0 {
		t.Errorf("entries = %d, want 0", n)
	}
}

func TestUpsertSkipsUnderAMinute(t *testing.T) {
	f := newFixture(t, true)
	f.logRun(t, completedAt.Add(-time.Hour), 59)

	if entry := f.upsert(t); entry != nil {
		t.Errorf("entry written for 59 seconds: %+v", entry)
	}
	if _, err := f.store.GetTimesheet(context.Background(), f.userID, completedAt); err == nil {
		t.Errorf("timesheet header created with nothing to fill")
	}
}

func TestUpsertMissingProjectIsBillable(t *testing.T) {
	f := newFixture(t, false)
	f.task.ProjectID = uuid.New()
	f.logRun(t, completedAt.Add(-time.Hour), 60)

	entry := f.upsert(t)
	if entry == nil {
		t.Fatal("no entry written")
	}
	if !entry.IsBillable {
		t.Errorf("entry for unknown project is not billable")
	}
}
