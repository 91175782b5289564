package engine

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roach88/pledge/internal/model"
)

// EventSink receives events after their command has committed.
type EventSink interface {
	Publish(ctx context.Context, ev model.Event) error
}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(ctx context.Context, ev model.Event) error

// Publish calls f.
func (f SinkFunc) Publish(ctx context.Context, ev model.Event) error {
	return f(ctx, ev)
}

// LogSink logs every event at Info through slog.
type LogSink struct{}

// Publish logs ev.
func (LogSink) Publish(_ context.Context, ev model.Event) error {
	slog.Info("event",
		"seq", ev.Seq,
		"kind", ev.Kind,
		"habit", ev.Habit,
		"request_id", ev.RequestID,
		"at", ev.At,
		"payload", ev.Payload,
	)
	return nil
}

// Recorder keeps published events in memory. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []model.Event
}

// Publish appends ev.
func (r *Recorder) Publish(_ context.Context, ev model.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Event, len(r.events))
	copy(out, r.events)
	return out
}

// publish fans ev out to every sink. The command has already committed, so
// sink errors are logged and otherwise ignored.
func (e *Engine) publish(ctx context.Context, ev model.Event) {
	for i, sink := range e.sinks {
		if err := sink.Publish(ctx, ev); err != nil {
			slog.Warn("event sink failed",
				"sink", i,
				"seq", ev.Seq,
				"kind", ev.Kind,
				"error", err,
			)
		}
	}
}
