package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// LogNotifier writes events to a logger.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(ctx context.Context, e Event) error {
	ev := n.log.Info().
		Str("action", string(e.Action)).
		Str("task_id", e.Task.ID.String()).
		Str("task", e.Task.Name).
		Str("status", string(e.Task.Status)).
		Str("actor_id", e.Actor.UserID.String()).
		Int64("duration_seconds", e.DurationSeconds).
		Int64("total_tracked_seconds", e.Task.TotalTrackedSeconds).
		Time("at", e.At)
	if e.Note != nil {
		ev = ev.Str("note", *e.Note)
	}
	ev.Msg("timer transition")
	return nil
}
