// Package timer drives the start/pause/resume/stop/complete state machine of
// task timers and writes the time ledger.
package timer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"tasktimer/internal/attendance"
	"tasktimer/internal/db/models"
	"tasktimer/internal/notify"
	"tasktimer/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Gate decides whether a user may start or resume a timer.
type Gate interface {
	IsUserEligibleToRunTimer(ctx context.Context, r attendance.TimesheetReader, userID uuid.UUID, now time.Time) (bool, error)
}

// Filler propagates tracked time into the timesheet on completion.
type Filler interface {
	UpsertFromTaskCompletion(ctx context.Context, tx store.Tx, task *models.Task, actorID uuid.UUID, now time.Time) (*models.TimesheetEntry, error)
}

// Engine runs each timer transition in one store transaction.
type Engine struct {
	store  store.Store
	gate   Gate
	filler Filler
	events notify.Publisher
	log    zerolog.Logger
	now    func() time.Time
}

func NewEngine(s store.Store, gate Gate, filler Filler, events notify.Publisher, log zerolog.Logger) *Engine {
	if events == nil {
		events = notify.Discard{}
	}
	return &Engine{
		store:  s,
		gate:   gate,
		filler: filler,
		events: events,
		log:    log,
		now:    func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// WithClock replaces the engine clock.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// op is the state of one transition while its transaction is open.
type op struct {
	ctx    context.Context
	tx     store.Tx
	task   *models.Task
	actor  models.Actor
	note   *string
	now    time.Time
	events []notify.Event
}

// Start begins the first run of a pending task, or a new run of a paused one.
func (e *Engine) Start(ctx context.Context, taskID uuid.UUID, actor models.Actor, note *string) (*models.Task, error) {
	return e.run(ctx, "start", taskID, actor, note, func(o *op) error {
		if err := e.checkCanRun(o); err != nil {
			return err
		}
		if o.task.IsRunning() {
			return nil
		}

		switch o.task.Status {
		case models.TaskPending, models.TaskPaused:
		default:
			return fmt.Errorf("%w: cannot start task from status %s", ErrInvalidState, o.task.Status)
		}

		if o.task.StartedAt == nil {
			o.task.StartedAt = timePtr(o.now)
		}
		return e.openRun(o, models.ActionStart)
	})
}

// Pause closes the running run of a task. A task that is not running is
// returned unchanged.
func (e *Engine) Pause(ctx context.Context, taskID uuid.UUID, actor models.Actor, note *string) (*models.Task, error) {
	return e.endRun(ctx, "pause", models.ActionPause, taskID, actor, note)
}

// Stop is Pause recorded under the stop action.
func (e *Engine) Stop(ctx context.Context, taskID uuid.UUID, actor models.Actor, note *string) (*models.Task, error) {
	return e.endRun(ctx, "stop", models.ActionStop, taskID, actor, note)
}

func (e *Engine) endRun(ctx context.Context, name string, action models.TimeLogAction, taskID uuid.UUID, actor models.Actor, note *string) (*models.Task, error) {
	return e.run(ctx, name, taskID, actor, note, func(o *op) error {
		if !o.task.IsRunning() || o.task.Status != models.TaskInProgress {
			return nil
		}
		return e.closeRun(o, action)
	})
}

// Resume opens a new run on a paused task.
func (e *Engine) Resume(ctx context.Context, taskID uuid.UUID, actor models.Actor, note *string) (*models.Task, error) {
	return e.run(ctx, "resume", taskID, actor, note, func(o *op) error {
		if o.task.Status != models.TaskPaused {
			if o.task.Status == models.TaskInProgress && o.task.IsRunning() {
				return nil
			}
			return fmt.Errorf("%w: task must be paused to resume, is %s", ErrInvalidState, o.task.Status)
		}
		if err := e.checkCanRun(o); err != nil {
			return err
		}
		return e.openRun(o, models.ActionResume)
	})
}

// Complete closes a running run, marks the task completed and fills today's
// timesheet line. The whole sequence commits or rolls back together.
func (e *Engine) Complete(ctx context.Context, taskID uuid.UUID, actor models.Actor, note *string) (*models.Task, error) {
	return e.run(ctx, "complete", taskID, actor, note, func(o *op) error {
		if o.task.IsRunning() {
			if err := e.closeRun(o, models.ActionPause); err != nil {
				return err
			}
		}

		switch o.task.Status {
		case models.TaskCompleted:
			return nil
		case models.TaskCancelled:
			return fmt.Errorf("%w: cannot complete a cancelled task", ErrInvalidState)
		}

		o.task.Status = models.TaskCompleted
		o.task.CompletedAt = timePtr(o.now)
		if err := o.tx.UpdateTaskTimer(o.ctx, o.task); err != nil {
			return err
		}
		if err := e.appendLog(o, models.ActionComplete, nil, timePtr(o.now), 0); err != nil {
			return err
		}

		if _, err := e.filler.UpsertFromTaskCompletion(o.ctx, o.tx, o.task, o.actor.UserID, o.now); err != nil {
			return err
		}
		return nil
	})
}

func (e *Engine) run(ctx context.Context, name string, taskID uuid.UUID, actor models.Actor, note *string, apply func(o *op) error) (*models.Task, error) {
	now := e.now()
	var done *op

	err := e.store.InTx(ctx, func(tx store.Tx) error {
		task, err := tx.GetTaskForUpdate(ctx, taskID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if !CanOperate(actor, task) {
			return ErrForbidden
		}
		if err := lockTimers(ctx, tx, actor, task); err != nil {
			return err
		}

		o := &op{ctx: ctx, tx: tx, task: task, actor: actor, note: note, now: now}
		if err := apply(o); err != nil {
			return err
		}
		done = o
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrTimerTaken) {
			err = fmt.Errorf("%w: %v", ErrConflict, err)
		}
		e.log.Debug().Err(err).Str("op", name).Str("task_id", taskID.String()).Msg("timer transition rejected")
		return nil, fmt.Errorf("%s task %s: %w", name, taskID, err)
	}

	if len(done.events) == 0 {
		e.log.Debug().Str("op", name).Str("task_id", taskID.String()).Msg("timer transition is a no-op")
	}
	for _, ev := range done.events {
		e.log.Info().
			Str("action", string(ev.Action)).
			Str("task_id", taskID.String()).
			Str("actor_id", actor.UserID.String()).
			Int64("duration_seconds", ev.DurationSeconds).
			Msg("timer transition")
		e.events.Publish(ev)
	}
	return done.task, nil
}

// lockTimers serialises timer writes of the actor and of the assignee. Locks
// are taken in a fixed order so two transactions cannot wait on each other.
func lockTimers(ctx context.Context, tx store.Tx, actor models.Actor, task *models.Task) error {
	users := []uuid.UUID{actor.UserID}
	if task.AssignedTo != nil && *task.AssignedTo != actor.UserID {
		users = append(users, *task.AssignedTo)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].String() < users[j].String() })
	for _, id := range users {
		if err := tx.LockUserTimers(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// checkCanRun applies the attendance gate and the single running timer rule.
func (e *Engine) checkCanRun(o *op) error {
	ok, err := e.gate.IsUserEligibleToRunTimer(o.ctx, o.tx, o.actor.UserID, o.now)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPreconditionFailed
	}

	other, err := o.tx.FindRunningTask(o.ctx, o.actor.UserID, o.task.ID)
	if err == nil {
		return fmt.Errorf("%w: task %s", ErrConflict, other.ID)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}

func (e *Engine) openRun(o *op, action models.TimeLogAction) error {
	o.task.Status = models.TaskInProgress
	o.task.ActiveTimerStartedAt = timePtr(o.now)
	if err := o.tx.UpdateTaskTimer(o.ctx, o.task); err != nil {
		return err
	}
	return e.appendLog(o, action, timePtr(o.now), nil, 0)
}

func (e *Engine) closeRun(o *op, action models.TimeLogAction) error {
	rounded := RoundToMinute(elapsedSeconds(*o.task.ActiveTimerStartedAt, o.now))

	o.task.TotalTrackedSeconds += rounded
	o.task.LastPausedAt = timePtr(o.now)
	o.task.ActiveTimerStartedAt = nil
	o.task.Status = models.TaskPaused
	if err := o.tx.UpdateTaskTimer(o.ctx, o.task); err != nil {
		return err
	}
	return e.appendLog(o, action, nil, timePtr(o.now), rounded)
}

func (e *Engine) appendLog(o *op, action models.TimeLogAction, startAt, endAt *time.Time, seconds int64) error {
	entry := &models.TimeLogEntry{
		ID:              uuid.Must(uuid.NewV7()),
		TaskID:          o.task.ID,
		UserID:          o.actor.UserID,
		Action:          action,
		StartAt:         startAt,
		EndAt:           endAt,
		DurationSeconds: seconds,
		Note:            o.note,
	}
	if err := o.tx.InsertTimeLog(o.ctx, entry); err != nil {
		return err
	}
	o.events = append(o.events, notify.Event{
		Action:          action,
		Task:            o.task.Clone(),
		Actor:           o.actor,
		DurationSeconds: seconds,
		Note:            o.note,
		At:              o.now,
	})
	return nil
}

func timePtr(t time.Time) *time.Time {
	return &t
}
