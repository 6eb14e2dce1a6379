package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrBusClosed is returned by Emit after Close.
var ErrBusClosed = errors.New("event bus closed")

// Handler consumes one event.
type Handler func(ctx context.Context, evt Event)

// BusConfig configures a Bus.
type BusConfig struct {
	// Workers is the number of goroutines dispatching events.
	Workers int

	// Buffer is the capacity of the event queue.
	Buffer int

	// EnqueueTimeout bounds how long Emit waits on a full queue.
	EnqueueTimeout time.Duration
}

// DefaultBusConfig returns the default bus settings.
func DefaultBusConfig() BusConfig {
	return BusConfig{
		Workers:        4,
		Buffer:         64,
		EnqueueTimeout: 5 * time.Second,
	}
}

// Bus is an in-process event dispatcher. Emit enqueues and returns at once;
// worker goroutines call the handlers subscribed to the event name. Handlers
// may emit further events.
type Bus struct {
	config BusConfig
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[string][]Handler

	queue   chan queued
	done    chan struct{}
	workers sync.WaitGroup
	pending sync.WaitGroup

	// closeMu orders enqueues before Close: Emit holds it shared while
	// sending, Close exclusively while marking the bus closed.
	closeMu sync.RWMutex
	closing bool
}

type queued struct {
	ctx context.Context
	evt Event
}

// NewBus creates a Bus and starts its workers.
func NewBus(cfg BusConfig, logger *slog.Logger) *Bus {
	def := DefaultBusConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = def.Buffer
	}
	if cfg.EnqueueTimeout <= 0 {
		cfg.EnqueueTimeout = def.EnqueueTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	b := &Bus{
		config:   cfg,
		logger:   logger.With("component", "events.bus"),
		handlers: make(map[string][]Handler),
		queue:    make(chan queued, cfg.Buffer),
		done:     make(chan struct{}),
	}
	for i := 0; i < cfg.Workers; i++ {
		b.workers.Add(1)
		go b.worker()
	}
	return b
}

// Subscribe registers h for events named name.
func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], h)
}

// Emit enqueues evt for dispatch. The handler context keeps the values of
// ctx but not its cancellation, since dispatch outlives the caller.
func (b *Bus) Emit(ctx context.Context, evt Event) error {
	b.closeMu.RLock()
	defer b.closeMu.RUnlock()
	if b.closing {
		return ErrBusClosed
	}

	b.pending.Add(1)
	timer := time.NewTimer(b.config.EnqueueTimeout)
	defer timer.Stop()

	select {
	case b.queue <- queued{ctx: context.WithoutCancel(ctx), evt: evt}:
		return nil
	case <-timer.C:
		b.pending.Done()
		b.logger.ErrorContext(ctx, "event queue full, dropping event",
			"event", evt.Name, "capacity", b.config.Buffer)
		return context.DeadlineExceeded
	}
}

// Wait blocks until every enqueued event, including events emitted by
// handlers, has been dispatched.
func (b *Bus) Wait() {
	b.pending.Wait()
}

// Close stops accepting events, drains the queue and waits for the workers.
func (b *Bus) Close() error {
	b.closeMu.Lock()
	if !b.closing {
		b.closing = true
		close(b.done)
	}
	b.closeMu.Unlock()
	b.workers.Wait()
	return nil
}

func (b *Bus) worker() {
	defer b.workers.Done()
	for {
		select {
		case q := <-b.queue:
			b.dispatch(q)
		case <-b.done:
			for {
				select {
				case q := <-b.queue:
					b.dispatch(q)
				default:
					return
				}
			}
		}
	}
}

func (b *Bus) dispatch(q queued) {
	defer b.pending.Done()

	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[q.evt.Name]...)
	b.mu.RUnlock()

	if len(handlers) == 0 {
		b.logger.DebugContext(q.ctx, "no subscribers", "event", q.evt.Name)
		return
	}
	for _, h := range handlers {
		b.call(q.ctx, h, q.evt)
	}
}

// call runs one handler, recovering panics so one bad handler cannot stop
// a worker.
func (b *Bus) call(ctx context.Context, h Handler, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.ErrorContext(ctx, "event handler panicked", "event", evt.Name, "panic", r)
		}
	}()
	h(ctx, evt)
}
