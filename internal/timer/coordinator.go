package timer

import (
	"context"

	"tasktimer/internal/attendance"
	"tasktimer/internal/db/models"
	"tasktimer/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ForcedPauseNote marks ledger entries written by a clock-out sweep.
const ForcedPauseNote = "system: auto-pause due to clock out"

// Coordinator pauses every running timer of a user on clock-out.
type Coordinator struct {
	engine *Engine
	store  store.Store
	log    zerolog.Logger
}

var _ attendance.Quiescer = (*Coordinator)(nil)

func NewCoordinator(engine *Engine, s store.Store, log zerolog.Logger) *Coordinator {
	return &Coordinator{engine: engine, store: s, log: log}
}

// ForceQuiesceRunningTimers pauses each running task assigned to userID in its
// own transaction. Failures are logged and reported, never returned.
func (c *Coordinator) ForceQuiesceRunningTimers(ctx context.Context, userID uuid.UUID, actor models.Actor) attendance.QuiesceResult {
	result := attendance.QuiesceResult{Failed: make(map[uuid.UUID]error)}

	tasks, err := c.store.ListRunningTasks(ctx, userID)
	if err != nil {
		c.log.Warn().Err(err).Str("user_id", userID.String()).Msg("list running tasks for forced pause")
		return result
	}

	note := ForcedPauseNote
	for _, task := range tasks {
		if _, err := c.engine.Pause(ctx, task.ID, actor, &note); err != nil {
			c.log.Warn().
				Err(err).
				Str("user_id", userID.String()).
				Str("task_id", task.ID.String()).
				Msg("forced pause failed")
			result.Failed[task.ID] = err
			continue
		}
		result.Paused = append(result.Paused, task.ID)
	}
	return result
}
