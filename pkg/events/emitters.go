package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// LogEmitter writes every event to a logger. It is the default backend
// when no broker is configured.
type LogEmitter struct {
	logger *slog.Logger
}

// NewLogEmitter creates a LogEmitter.
func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEmitter{logger: logger.With("component", "events.log")}
}

// Emit logs the event.
func (l *LogEmitter) Emit(ctx context.Context, evt Event) error {
	l.logger.InfoContext(ctx, "event",
		"name", evt.Name,
		"source", evt.Source,
		"detail", string(evt.Detail),
	)
	return nil
}

// MemoryEmitter records events in memory.
type MemoryEmitter struct {
	mu     sync.Mutex
	events []Event
	err    error
}

// NewMemoryEmitter creates an empty MemoryEmitter.
func NewMemoryEmitter() *MemoryEmitter {
	return &MemoryEmitter{}
}

// Emit records the event, or returns the configured failure.
func (m *MemoryEmitter) Emit(ctx context.Context, evt Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, evt)
	return nil
}

// FailWith makes every later Emit return err. A nil err restores delivery.
func (m *MemoryEmitter) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Events returns a copy of the recorded events.
func (m *MemoryEmitter) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

// Named returns the recorded events with the given name.
func (m *MemoryEmitter) Named(name string) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, e := range m.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// FanOut delivers every event to all of its emitters.
type FanOut []Emitter

// Emit delivers evt to each emitter and joins their errors.
func (f FanOut) Emit(ctx context.Context, evt Event) error {
	var errs []error
	for _, e := range f {
		if e == nil {
			continue
		}
		if err := e.Emit(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
