// Package dispatcher routes host commands to handlers, optionally through
// per-command queues so slow commands do not hold up fast ones.
package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	// ErrQueueFull is returned when a non-blocking buffered handler drops an event.
	ErrQueueFull = errors.New("queue full")
	// ErrBusy is returned when an exclusive handler drops an event because
	// the previous one is still running.
	ErrBusy = errors.New("handler busy")
	// ErrClosed is returned by Dispatch after Close.
	ErrClosed = errors.New("dispatcher closed")
)

// Event is one command received from the host.
type Event struct {
	Command   string
	Payload   json.RawMessage
	Timestamp time.Time
}

// HandlerFunc processes an event.
type HandlerFunc func(context.Context, Event) error

// Logger interface for pluggable logging. *slog.Logger implements it.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*config)

type config struct {
	bufferSize int
	blocking   bool
	exclusive  bool
	group      string
	logged     bool
}

// Buffered makes the handler async with a queue of the given size.
func Buffered(size int) Option {
	return func(c *config) {
		c.bufferSize = size
	}
}

// Blocking makes a buffered handler block when the queue is full instead of dropping.
func Blocking() Option {
	return func(c *config) {
		c.blocking = true
	}
}

// Exclusive runs the handler asynchronously, one event at a time, and drops
// events that arrive while one is running.
func Exclusive() Option {
	return func(c *config) {
		c.exclusive = true
	}
}

// ExclusiveGroup is Exclusive with one busy state shared by every handler
// registered under the same group: while any of them runs, events for all of
// them are dropped.
func ExclusiveGroup(group string) Option {
	return func(c *config) {
		c.exclusive = true
		c.group = group
	}
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

// Dispatcher routes events to registered handlers.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	logger   Logger

	// OTEL metrics
	queueSize metric.Int64ObservableGauge
	processed metric.Int64Counter
	dropped   metric.Int64Counter

	// Track buffers for gauge callback
	mu      sync.RWMutex
	buffers map[string]chan queued
	groups  map[string]*atomic.Bool
	closed  bool
	workers sync.WaitGroup
}

type queued struct {
	ctx context.Context
	e   Event
}

// New creates a new Dispatcher with the given logger.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		buffers:  make(map[string]chan queued),
		groups:   make(map[string]*atomic.Bool),
		logger:   logger,
	}

	// Get meter from global OTel provider (returns no-op if not configured)
	m := meter()

	var err error

	d.queueSize, err = m.Int64ObservableGauge(
		"dispatcher.queue.size",
		metric.WithDescription("Current number of events in queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			d.mu.RLock()
			defer d.mu.RUnlock()
			for cmd, buf := range d.buffers {
				o.ObserveInt64(d.queueSize, int64(len(buf)),
					metric.WithAttributes(attribute.String("command", cmd)))
			}
			return nil
		},
		d.queueSize,
	)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	d.processed, err = m.Int64Counter(
		"dispatcher.events.processed",
		metric.WithDescription("Total events processed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	d.dropped, err = m.Int64Counter(
		"dispatcher.events.dropped",
		metric.WithDescription("Total events dropped due to full queue or busy handler"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	return d, nil
}

// Register adds a handler for the given command with optional configuration.
// Register all handlers before the first Dispatch.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := h

	if cfg.logged {
		handler = d.withLogging(command, handler)
	}

	switch {
	case cfg.exclusive:
		handler = d.withExclusive(command, d.busyFlag(cfg.group), handler)
	case cfg.bufferSize > 0:
		handler = d.withBuffer(command, cfg.bufferSize, cfg.blocking, handler)
	}

	d.handlers[command] = handler
}

// Dispatch routes an event to its registered handler. Async handlers run
// detached from ctx cancellation but keep its values.
func (d *Dispatcher) Dispatch(ctx context.Context, e Event) error {
	d.mu.RLock()
	closed := d.closed
	d.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	h, ok := d.handlers[e.Command]
	if !ok {
		return fmt.Errorf("unknown command: %s", e.Command)
	}
	return h(ctx, e)
}

// HasHandler returns true if a handler is registered for the command.
func (d *Dispatcher) HasHandler(command string) bool {
	_, ok := d.handlers[command]
	return ok
}

// Close stops accepting events and waits for queued and running async
// handlers to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		for _, buf := range d.buffers {
			close(buf)
		}
	}
	d.mu.Unlock()
	d.workers.Wait()
}

func (d *Dispatcher) withBuffer(command string, size int, blocking bool, h HandlerFunc) HandlerFunc {
	buffer := make(chan queued, size)

	d.mu.Lock()
	d.buffers[command] = buffer
	d.mu.Unlock()

	cmdAttr := metric.WithAttributes(attribute.String("command", command))

	d.workers.Add(1)
	go func() {
		defer d.workers.Done()
		for q := range buffer {
			_ = h(q.ctx, q.e)
			d.processed.Add(context.Background(), 1, cmdAttr)
		}
	}()

	// the read lock keeps Close from closing the buffer mid-send
	if blocking {
		return func(ctx context.Context, e Event) error {
			d.mu.RLock()
			defer d.mu.RUnlock()
			if d.closed {
				return ErrClosed
			}
			buffer <- queued{ctx: context.WithoutCancel(ctx), e: e}
			return nil
		}
	}

	return func(ctx context.Context, e Event) error {
		d.mu.RLock()
		defer d.mu.RUnlock()
		if d.closed {
			return ErrClosed
		}
		select {
		case buffer <- queued{ctx: context.WithoutCancel(ctx), e: e}:
			return nil
		default:
			d.dropped.Add(context.Background(), 1, cmdAttr)
			return fmt.Errorf("%w: %s", ErrQueueFull, command)
		}
	}
}

// busyFlag returns the busy state of group, or a fresh one for no group.
func (d *Dispatcher) busyFlag(group string) *atomic.Bool {
	if group == "" {
		return new(atomic.Bool)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	busy, ok := d.groups[group]
	if !ok {
		busy = new(atomic.Bool)
		d.groups[group] = busy
	}
	return busy
}

func (d *Dispatcher) withExclusive(command string, busy *atomic.Bool, h HandlerFunc) HandlerFunc {
	cmdAttr := metric.WithAttributes(attribute.String("command", command))

	return func(ctx context.Context, e Event) error {
		d.mu.RLock()
		defer d.mu.RUnlock()
		if d.closed {
			return ErrClosed
		}
		if !busy.CompareAndSwap(false, true) {
			d.dropped.Add(context.Background(), 1, cmdAttr)
			return fmt.Errorf("%w: %s", ErrBusy, command)
		}

		d.workers.Add(1)
		go func() {
			defer d.workers.Done()
			defer busy.Store(false)
			_ = h(context.WithoutCancel(ctx), e)
			d.processed.Add(context.Background(), 1, cmdAttr)
		}()
		return nil
	}
}

func (d *Dispatcher) withLogging(command string, h HandlerFunc) HandlerFunc {
	return func(ctx context.Context, e Event) error {
		start := time.Now()
		d.logger.Debug("handling event", "command", command, "payload", len(e.Payload))

		err := h(ctx, e)

		if err != nil {
			d.logger.Error("event failed", "command", command, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("event complete", "command", command, "duration", time.Since(start))
		}

		return err
	}
}
