// Package attendance implements the daily clock-in/clock-out record and the
// gate that only lets clocked-in users run timers.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tasktimer/internal/db/models"
	"tasktimer/internal/store"

	"github.com/google/uuid"
)

// TimesheetReader reads the attendance record of a user for a date.
// store.Tx and store.Store satisfy it.
type TimesheetReader interface {
	GetTimesheet(ctx context.Context, userID uuid.UUID, date time.Time) (*models.Timesheet, error)
}

// Gate answers whether a user may start or resume a timer.
type Gate struct{}

// IsUserEligibleToRunTimer reports whether userID has clocked in and not yet
// clocked out on the UTC date of now.
func (Gate) IsUserEligibleToRunTimer(ctx context.Context, r TimesheetReader, userID uuid.UUID, now time.Time) (bool, error) {
	ts, err := r.GetTimesheet(ctx, userID, models.DateOf(now))
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read attendance: %w", err)
	}
	return ts.ClockedIn(), nil
}
