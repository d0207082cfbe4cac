package attendance

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

var (
	ErrAlreadyClockedIn  = errors.New("already clocked in today")
	ErrNotClockedIn      = errors.New("cannot clock out before clocking in")
	ErrAlreadyClockedOut = errors.New("already clocked out today")
)

type State string

const (
	StateNotClockedIn State = "not_clocked_in"
	StateClockedIn    State = "clocked_in"
	StateClockedOut   State = "clocked_out"
)

// QuiesceResult reports the outcome of a forced pause sweep.
type QuiesceResult struct {
	Paused []uuid.UUID
	Failed map[uuid.UUID]error
}

// Quiescer pauses every running timer of a user. It never fails as a whole.
type Quiescer interface {
	ForceQuiesceRunningTimers(ctx context.Context, userID uuid.UUID, actor models.Actor) QuiesceResult
}

// Service records clock-in and clock-out.
type Service struct {
	store    store.Store
	quiescer Quiescer
	log      zerolog.Logger
	now      func() time.Time
}

func NewService(s store.Store, q Quiescer, log zerolog.Logger) *Service {
	return &Service{
		store:    s,
		quiescer: q,
		log:      log,
		now:      func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// WithClock replaces the service clock.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ClockIn opens today's attendance record of userID.
func (s *Service) ClockIn(ctx context.Context, userID uuid.UUID) (*models.Timesheet, error) {
	now := s.now()
	var out *models.Timesheet
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		ts, err := tx.FindOrCreateTimesheet(ctx, userID, now)
		if err != nil {
			return err
		}
		if ts.ClockIn != nil {
			return ErrAlreadyClockedIn
		}
		if err := tx.SetClockIn(ctx, ts.ID, now); err != nil {
			return err
		}
		ts.ClockIn = &now
		out = ts
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("clock in: %w", err)
	}

	s.log.Info().Str("user_id", userID.String()).Time("at", now).Msg("clocked in")
	return out, nil
}

// ClockOut closes today's record and then pauses the actor's running timers.
// The record is closed under the actor's timer lock, so a start or resume
// either commits before it and is swept, or runs after it and fails the gate.
// The sweep is best-effort: a timer that failed to pause does not block
// clock-out.
func (s *Service) ClockOut(ctx context.Context, actor models.Actor) (*models.Timesheet, QuiesceResult, error) {
	now := s.now()

	var ts *models.Timesheet
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if err := tx.LockUserTimers(ctx, actor.UserID); err != nil {
			return err
		}
		cur, err := tx.GetTimesheet(ctx, actor.UserID, now)
		switch {
		case errors.Is(err, store.ErrNotFound):
			return ErrNotClockedIn
		case err != nil:
			return err
		case cur.ClockIn == nil:
			return ErrNotClockedIn
		case cur.ClockOut != nil:
			return ErrAlreadyClockedOut
		}
		if err := tx.SetClockOut(ctx, cur.ID, now); err != nil {
			return err
		}
		cur.ClockOut = &now
		ts = cur
		return nil
	})
	if err != nil {
		return nil, QuiesceResult{}, fmt.Errorf("clock out: %w", err)
	}

	var swept QuiesceResult
	if s.quiescer != nil {
		swept = s.quiescer.ForceQuiesceRunningTimers(ctx, actor.UserID, actor)
	}

	s.log.Info().
		Str("user_id", actor.UserID.String()).
		Time("at", now).
		Int("paused", len(swept.Paused)).
		Int("failed", len(swept.Failed)).
		Msg("clocked out")
	return ts, swept, nil
}

// Status returns the attendance state of userID for today and the record
// when there is one.
func (s *Service) Status(ctx context.Context, userID uuid.UUID) (State, *models.Timesheet, error) {
	ts, err := s.store.GetTimesheet(ctx, userID, s.now())
	if errors.Is(err, store.ErrNotFound) {
		return StateNotClockedIn, nil, nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("attendance status: %w", err)
	}
	switch {
	case ts.ClockIn == nil:
		return StateNotClockedIn, ts, nil
	case ts.ClockOut == nil:
		return StateClockedIn, ts, nil
	default:
		return StateClockedOut, ts, nil
	}
}
