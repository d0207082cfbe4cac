// Package notify delivers timer notifications after the transition that
// produced them has committed.
package notify

import (
	"context"
	"time"

	"tasktimer/internal/db/models"

	"github.com/rs/zerolog"
)

// Event describes one accepted timer transition.
type Event struct {
	Action          models.TimeLogAction
	Task            *models.Task
	Actor           models.Actor
	DurationSeconds int64
	Note            *string
	At              time.Time
}

// Notifier delivers one event. Errors are logged by the dispatcher.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// Publisher accepts events without blocking.
type Publisher interface {
	Publish(e Event)
}

// Dispatcher queues events and hands them to every notifier from a single
// worker goroutine.
type Dispatcher struct {
	queue     chan Event
	notifiers []Notifier
	log       zerolog.Logger
}

func NewDispatcher(buffer int, log zerolog.Logger, notifiers ...Notifier) *Dispatcher {
	if buffer <= 0 {
		buffer = 64
	}
	return &Dispatcher{
		queue:     make(chan Event, buffer),
		notifiers: notifiers,
		log:       log,
	}
}

// AddNotifier registers n. It must be called before Run.
func (d *Dispatcher) AddNotifier(n Notifier) {
	d.notifiers = append(d.notifiers, n)
}

// Publish queues e. It drops e when the queue is full.
func (d *Dispatcher) Publish(e Event) {
	select {
	case d.queue <- e:
	default:
		d.log.Warn().
			Str("action", string(e.Action)).
			Str("task_id", e.Task.ID.String()).
			Msg("notification queue full, dropping event")
	}
}

// Run delivers queued events until ctx is done, then drains what is left.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case e := <-d.queue:
			d.deliver(ctx, e)
		case <-ctx.Done():
			d.drain()
			return
		}
	}
}

func (d *Dispatcher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		select {
		case e := <-d.queue:
			d.deliver(ctx, e)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, e Event) {
	for _, n := range d.notifiers {
		if err := n.Notify(ctx, e); err != nil {
			d.log.Warn().
				Err(err).
				Str("action", string(e.Action)).
				Str("task_id", e.Task.ID.String()).
				Msg("notification failed")
		}
	}
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(Event) {}
