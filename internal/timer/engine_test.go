package timer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tasktimer/internal/attendance"
	"tasktimer/internal/autofill"
	"tasktimer/internal/db/memstore"
	"tasktimer/internal/db/models"
	"tasktimer/internal/notify"
	"tasktimer/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recorder) Publish(e notify.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) actions() []models.TimeLogAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.TimeLogAction
	for _, e := range r.events {
		out = append(out, e.Action)
	}
	return out
}

type testEnv struct {
	store   *memstore.Store
	engine  *Engine
	clock   *testClock
	events  *recorder
	project *models.Project
	dev     models.Actor
}

var day = time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	s := memstore.New()
	clock := &testClock{now: day}
	s.Now = clock.Now

	dev := &models.User{Username: "ana", Role: models.RoleDeveloper}
	s.AddUser(dev)
	project := &models.Project{Name: "site", IsBillable: true}
	s.AddProject(project)

	events := &recorder{}
	engine := NewEngine(s, attendance.Gate{}, autofill.New(zerolog.Nop()), events, zerolog.Nop()).WithClock(clock.Now)

	return &testEnv{
		store:   s,
		engine:  engine,
		clock:   clock,
		events:  events,
		project: project,
		dev:     models.Actor{UserID: dev.ID, Role: dev.Role, Name: dev.Username},
	}
}

func (env *testEnv) newTask(t *testing.T, assignee *uuid.UUID, status models.TaskStatus) *models.Task {
	t.Helper()
	task := &models.Task{ProjectID: env.project.ID, AssignedTo: assignee, Name: "task", Status: status}
	if err := env.store.CreateTask(context.Background(), task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	return task
}

func (env *testEnv) clockIn(userID uuid.UUID) {
	in := env.clock.Now().Add(-time.Minute)
	env.store.PutTimesheet(&models.Timesheet{UserID: userID, Date: in, ClockIn: &in})
}

func (env *testEnv) ledger(t *testing.T, taskID uuid.UUID) []*models.TimeLogEntry {
	t.Helper()
	logs, err := env.store.ListTimeLogs(context.Background(), taskID)
	if err != nil {
		t.Fatalf("ListTimeLogs: %v", err)
	}
	return logs
}

func mustRun(t *testing.T, name string, fn func() (*models.Task, error)) *models.Task {
	t.Helper()
	task, err := fn()
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	return task
}

func TestRoundToMinute(t *testing.T) {
	tests := []struct {
		in, want int64
	}{
		{0, 0},
		{-5, 0},
		{29, 0},
		{30, 0},
		{31, 60},
		{60, 60},
		{89, 60},
		{90, 60},
		{91, 120},
		{150, 120},
		{151, 180},
		{210, 180},
		{211, 240},
		{3599, 3600},
	}
	for _, tt := range tests {
		if got := RoundToMinute(tt.in); got != tt.want {
			t.Errorf("RoundToMinute(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestStartIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.clockIn(env.dev.UserID)
	task := env.newTask(t, &env.dev.UserID, models.TaskPending)

	first := mustRun(t, "first start", func() (*models.Task, error) { return env.engine.Start(ctx, task.ID, env.dev, nil) })
	env.clock.Advance(10 * time.Second)
	second := mustRun(t, "second start", func() (*models.Task, error) { return env.engine.Start(ctx, task.ID, env.dev, nil) })

	if !second.ActiveTimerStartedAt.Equal(*first.ActiveTimerStartedAt) {
		t.Errorf("second start moved the timer: %v != %v", second.ActiveTimerStartedAt, first.ActiveTimerStartedAt)
	}
	if first.StartedAt == nil || !first.StartedAt.Equal(day) {
		t.Errorf("StartedAt = %v, want %v", first.StartedAt, day)
	}
	if first.Status != models.TaskInProgress {
		t.Errorf("status = %s, want in_progress", first.Status)
	}
	if logs := env.ledger(t, task.ID); len(logs) != 1 {
		t.Errorf("ledger has %d entries, want 1", len(logs))
	}
	if n := len(env.events.actions()); n != 1 {
		t.Errorf("published %d events, want 1", n)
	}
}

func TestPauseNotRunningIsNoop(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	task := env.newTask(t, &env.dev.UserID, models.TaskPending)

	got := mustRun(t, "pause", func() (*models.Task, error) { return env.engine.Pause(ctx, task.ID, env.dev, nil) })
	if got.Status != models.TaskPending || got.LastPausedAt != nil {
		t.Errorf("pause changed an idle task: %+v", got)
	}
	if logs := env.ledger(t, task.ID); len(logs) != 0 {
		t.Errorf("ledger has %d entries, want 0", len(logs))
	}
	if n := len(env.events.actions()); n != 0 {
		t.Errorf("published %d events for a no-op", n)
	}
}

func TestRunsAccumulateRounded(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.clockIn(env.dev.UserID)
	task := env.newTask(t, &env.dev.UserID, models.TaskPending)
	note := "afternoon"

	mustRun(t, "start", func() (*models.Task, error) { return env.engine.Start(ctx, task.ID, env.dev, nil) })
	env.clock.Advance(90 * time.Second)
	paused := mustRun(t, "pause", func() (*models.Task, error) { return env.engine.Pause(ctx, task.ID, env.dev, nil) })
	if paused.TotalTrackedSeconds != 60 {
		t.Errorf("after 90s total = %d, want 60", paused.TotalTrackedSeconds)
	}
	if paused.Status != models.TaskPaused || paused.IsRunning() {
		t.Errorf("pause left task %s running=%v", paused.Status, paused.IsRunning())
	}

	env.clock.Advance(time.Hour)
	mustRun(t, "resume", func() (*models.Task, error) { return env.engine.Resume(ctx, task.ID, env.dev, &note) })
	env.clock.Advance(91 * time.Second)
	stopped := mustRun(t, "stop", func() (*models.Task, error) { return env.engine.Stop(ctx, task.ID, env.dev, nil) })
	if stopped.TotalTrackedSeconds != 180 {
		t.Errorf("after 91s more total = %d, want 180", stopped.TotalTrackedSeconds)
	}
	if stopped.Status != models.TaskPaused {
		t.Errorf("stop left status %s, want paused", stopped.Status)
	}

	logs := env.ledger(t, task.ID)
	wantActions := []models.TimeLogAction{models.ActionStart, models.ActionPause, models.ActionResume, models.ActionStop}
	wantSeconds := []int64{0, 60, 0, 120}
	if len(logs) != len(wantActions) {
		t.Fatalf("ledger has %d entries, want %d", len(logs), len(wantActions))
	}
	for i, l := range logs {
		if l.Action != wantActions[i] || l.DurationSeconds != wantSeconds[i] {
			t.Errorf("entry %d = %s/%d, want %s/%d", i, l.Action, l.DurationSeconds, wantActions[i], wantSeconds[i])
		}
		opens := l.Action == models.ActionStart || l.Action == models.ActionResume
		if opens && (l.StartAt == nil || l.EndAt != nil) {
			t.Errorf("entry %d (%s) window = %v..%v", i, l.Action, l.StartAt, l.EndAt)
		}
		if !opens && (l.EndAt == nil || l.StartAt != nil) {
			t.Errorf("entry %d (%s) window = %v..%v", i, l.Action, l.StartAt, l.EndAt)
		}
	}
	if logs[2].Note == nil || *logs[2].Note != note {
		t.Errorf("resume note = %v, want %q", logs[2].Note, note)
	}
}

func TestGateBlocksStartAndResume(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	task := env.newTask(t, &env.dev.UserID, models.TaskPending)

	if _, err := env.engine.Start(ctx, task.ID, env.dev, nil); !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("start without clock-in error = %v, want ErrPreconditionFailed", err)
	}

	paused := env.newTask(t, &env.dev.UserID, models.TaskPaused)
	in := day.Add(-time.Hour)
	out := day.Add(-time.Minute)
	env.store.PutTimesheet(&models.Timesheet{UserID: env.dev.UserID, Date: day, ClockIn: &in, ClockOut: &out})

	if _, err := env.engine.Resume(ctx, paused.ID, env.dev, nil); !errors.Is(err, ErrPreconditionFailed) {
		t.Errorf("resume after clock-out error = %v, want ErrPreconditionFailed", err)
	}
	if _, err := env.engine.Start(ctx, task.ID, env.dev, nil); !errors.Is(err, ErrPreconditionFailed) {
		t.Errorf("start after clock-out error = %v, want ErrPreconditionFailed", err)
	}
	if logs := env.ledger(t, task.ID); len(logs) != 0 {
		t.Errorf("rejected start wrote %d ledger entries", len(logs))
	}
}

func TestNineOClockScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.clockIn(env.dev.UserID)
	task := env.newTask(t, &env.dev.UserID, models.TaskPending)

	mustRun(t, "start", func() (*models.Task, error) { return env.engine.Start(ctx, task.ID, env.dev, nil) })
	env.clock.Set(day.Add(2 * time.Minute))
	p := mustRun(t, "pause", func() (*models.Task, error) { return env.engine.Pause(ctx, task.ID, env.dev, nil) })
	if p.TotalTrackedSeconds != 120 {
		t.Errorf("09:02 total = %d, want 120", p.TotalTrackedSeconds)
	}

	env.clock.Set(day.Add(10 * time.Minute))
	mustRun(t, "resume", func() (*models.Task, error) { return env.engine.Resume(ctx, task.ID, env.dev, nil) })
	env.clock.Set(day.Add(13 * time.Minute))
	done := mustRun(t, "complete", func() (*models.Task, error) { return env.engine.Complete(ctx, task.ID, env.dev, nil) })

	if done.TotalTrackedSeconds != 300 {
		t.Errorf("total = %d, want 300", done.TotalTrackedSeconds)
	}
	if done.Status != models.TaskCompleted || done.CompletedAt == nil || done.IsRunning() {
		t.Errorf("task not completed: %+v", done)
	}

	got := env.events.actions()
	want := []models.TimeLogAction{models.ActionStart, models.ActionPause, models.ActionResume, models.ActionPause, models.ActionComplete}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, got[i], want[i])
		}
	}

	ts, err := env.store.GetTimesheet(ctx, env.dev.UserID, day)
	if err != nil {
		t.Fatalf("GetTimesheet: %v", err)
	}
	entries, err := env.store.ListTimesheetEntries(ctx, ts.ID)
	if err != nil {
		t.Fatalf("ListTimesheetEntries: %v", err)
	}
	if len(entries) != 1 || entries[0].Minutes != 5 {
		t.Fatalf("timesheet entries = %+v, want one entry of 5 minutes", entries)
	}
	if !entries[0].IsBillable {
		t.Errorf("entry not billable, project is")
	}

	// Completing again changes nothing.
	mustRun(t, "second complete", func() (*models.Task, error) { return env.engine.Complete(ctx, task.ID, env.dev, nil) })
	if n := len(env.ledger(t, task.ID)); n != 5 {
		t.Errorf("ledger has %d entries after second complete, want 5", n)
	}
	entries, _ = env.store.ListTimesheetEntries(ctx, ts.ID)
	if len(entries) != 1 || entries[0].Minutes != 5 {
		t.Errorf("second complete changed timesheet: %+v", entries)
	}
}

func TestSecondTaskConflicts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.clockIn(env.dev.UserID)
	a := env.newTask(t, &env.dev.UserID, models.TaskPending)
	b := env.newTask(t, &env.dev.UserID, models.TaskPaused)

	mustRun(t, "start A", func() (*models.Task, error) { return env.engine.Start(ctx, a.ID, env.dev, nil) })

	if _, err := env.engine.Start(ctx, b.ID, env.dev, nil); !errors.Is(err, ErrConflict) {
		t.Errorf("start B error = %v, want ErrConflict", err)
	}
	if _, err := env.engine.Resume(ctx, b.ID, env.dev, nil); !errors.Is(err, ErrConflict) {
		t.Errorf("resume B error = %v, want ErrConflict", err)
	}

	got, err := env.store.GetTask(ctx, b.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.Status != models.TaskPaused || got.IsRunning() {
		t.Errorf("B changed after conflict: %s running=%v", got.Status, got.IsRunning())
	}
	if n := len(env.ledger(t, b.ID)); n != 0 {
		t.Errorf("B ledger has %d entries, want 0", n)
	}
}

func TestConcurrentStartsKeepOneTimer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.clockIn(env.dev.UserID)

	const n = 8
	var tasks []*models.Task
	for i := 0; i < n; i++ {
		tasks = append(tasks, env.newTask(t, &env.dev.UserID, models.TaskPending))
	}

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for _, task := range tasks {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, err := env.engine.Start(ctx, id, env.dev, nil)
			errs <- err
		}(task.ID)
	}
	wg.Wait()
	close(errs)

	var ok, conflicts int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrConflict):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 || conflicts != n-1 {
		t.Errorf("ok = %d, conflicts = %d; want 1 and %d", ok, conflicts, n-1)
	}

	running, err := env.store.ListRunningTasks(ctx, env.dev.UserID)
	if err != nil {
		t.Fatalf("ListRunningTasks: %v", err)
	}
	if len(running) != 1 {
		t.Errorf("%d running timers, want 1", len(running))
	}
}

func TestConcurrentStartAndResumeKeepOneTimer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.clockIn(env.dev.UserID)

	for round := 0; round < 5; round++ {
		var pending, paused []*models.Task
		for i := 0; i < 3; i++ {
			pending = append(pending, env.newTask(t, &env.dev.UserID, models.TaskPending))
			paused = append(paused, env.newTask(t, &env.dev.UserID, models.TaskPaused))
		}

		var wg sync.WaitGroup
		errs := make(chan error, len(pending)+len(paused))
		for i := range pending {
			wg.Add(2)
			go func(id uuid.UUID) {
				defer wg.Done()
				_, err := env.engine.Start(ctx, id, env.dev, nil)
				errs <- err
			}(pending[i].ID)
			go func(id uuid.UUID) {
				defer wg.Done()
				_, err := env.engine.Resume(ctx, id, env.dev, nil)
				errs <- err
			}(paused[i].ID)
		}
		wg.Wait()
		close(errs)

		var ok int
		for err := range errs {
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrConflict):
			default:
				t.Errorf("round %d: unexpected error: %v", round, err)
			}
		}
		if ok != 1 {
			t.Errorf("round %d: %d transitions succeeded, want 1", round, ok)
		}

		running, err := env.store.ListRunningTasks(ctx, env.dev.UserID)
		if err != nil {
			t.Fatalf("ListRunningTasks: %v", err)
		}
		if len(running) != 1 {
			t.Fatalf("round %d: %d running timers, want 1", round, len(running))
		}

		env.clock.Advance(time.Minute)
		if _, err := env.engine.Pause(ctx, running[0].ID, env.dev, nil); err != nil {
			t.Fatalf("round %d: Pause: %v", round, err)
		}
	}
}

func TestPolicy(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	other := models.Actor{UserID: uuid.New(), Role: models.RoleDeveloper}
	lead := models.Actor{UserID: uuid.New(), Role: models.RoleTeamLead}
	env.clockIn(other.UserID)
	env.clockIn(lead.UserID)

	task := env.newTask(t, &env.dev.UserID, models.TaskPending)
	unassigned := env.newTask(t, nil, models.TaskPending)

	if _, err := env.engine.Start(ctx, task.ID, other, nil); !errors.Is(err, ErrForbidden) {
		t.Errorf("other developer start error = %v, want ErrForbidden", err)
	}
	if _, err := env.engine.Pause(ctx, task.ID, other, nil); !errors.Is(err, ErrForbidden) {
		t.Errorf("other developer pause error = %v, want ErrForbidden", err)
	}
	if _, err := env.engine.Start(ctx, unassigned.ID, other, nil); !errors.Is(err, ErrForbidden) {
		t.Errorf("developer start on unassigned task error = %v, want ErrForbidden", err)
	}

	started := mustRun(t, "lead start", func() (*models.Task, error) { return env.engine.Start(ctx, task.ID, lead, nil) })
	if !started.IsRunning() {
		t.Errorf("team lead could not start the developer's task")
	}
	logs := env.ledger(t, task.ID)
	if len(logs) != 1 || logs[0].UserID != lead.UserID {
		t.Errorf("ledger entry not attributed to the acting user: %+v", logs)
	}

	// The assignee already has a running timer now, so a second one is refused
	// even though the lead has none.
	second := env.newTask(t, &env.dev.UserID, models.TaskPending)
	if _, err := env.engine.Start(ctx, second.ID, lead, nil); !errors.Is(err, ErrConflict) {
		t.Errorf("second timer for assignee error = %v, want ErrConflict", err)
	}
}

func TestInvalidStates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.clockIn(env.dev.UserID)

	pending := env.newTask(t, &env.dev.UserID, models.TaskPending)
	completed := env.newTask(t, &env.dev.UserID, models.TaskCompleted)
	cancelled := env.newTask(t, &env.dev.UserID, models.TaskCancelled)

	if _, err := env.engine.Resume(ctx, pending.ID, env.dev, nil); !errors.Is(err, ErrInvalidState) {
		t.Errorf("resume pending error = %v, want ErrInvalidState", err)
	}
	if _, err := env.engine.Start(ctx, completed.ID, env.dev, nil); !errors.Is(err, ErrInvalidState) {
		t.Errorf("start completed error = %v, want ErrInvalidState", err)
	}
	if _, err := env.engine.Start(ctx, cancelled.ID, env.dev, nil); !errors.Is(err, ErrInvalidState) {
		t.Errorf("start cancelled error = %v, want ErrInvalidState", err)
	}
	if _, err := env.engine.Complete(ctx, cancelled.ID, env.dev, nil); !errors.Is(err, ErrInvalidState) {
		t.Errorf("complete cancelled error = %v, want ErrInvalidState", err)
	}
	if _, err := env.engine.Start(ctx, uuid.New(), env.dev, nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("start missing task error = %v, want ErrNotFound", err)
	}
}

type failingFiller struct{}

func (failingFiller) UpsertFromTaskCompletion(ctx context.Context, tx store.Tx, task *models.Task, actorID uuid.UUID, now time.Time) (*models.TimesheetEntry, error) {
	return nil, errors.New("timesheet unavailable")
}

func TestCompleteRollsBackWhenAutofillFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.clockIn(env.dev.UserID)
	task := env.newTask(t, &env.dev.UserID, models.TaskPending)

	mustRun(t, "start", func() (*models.Task, error) { return env.engine.Start(ctx, task.ID, env.dev, nil) })
	env.clock.Advance(5 * time.Minute)

	env.engine.filler = failingFiller{}
	if _, err := env.engine.Complete(ctx, task.ID, env.dev, nil); err == nil {
		t.Fatal("complete succeeded with a failing autofill")
	}

	got, err := env.store.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.Status != models.TaskInProgress || !got.IsRunning() || got.TotalTrackedSeconds != 0 {
		t.Errorf("task changed after rollback: %+v", got)
	}
	if n := len(env.ledger(t, task.ID)); n != 1 {
		t.Errorf("ledger has %d entries after rollback, want 1", n)
	}
	if got := env.events.actions(); len(got) != 1 {
		t.Errorf("events after rollback = %v, want only the start", got)
	}
}
