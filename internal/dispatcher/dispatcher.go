// Package dispatcher routes file events to handlers, optionally through a
// bounded queue drained by a worker goroutine.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Event kinds produced by the directory watcher.
const (
	KindScan = "scan"
)

// ErrClosed is returned by Dispatch after Close.
var ErrClosed = errors.New("dispatcher closed")

// Event is a unit of work for a handler, usually a file that appeared in the
// watched directory.
type Event struct {
	Kind      string
	Path      string
	Timestamp time.Time
}

// HandlerFunc handles one event. Buffered handlers have their result
// discarded.
type HandlerFunc func(Event) (any, error)

// Logger is satisfied by *slog.Logger.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type Option func(*options)

type options struct {
	queue    int
	blocking bool
	logged   bool
}

// Buffered queues up to size events for a dedicated worker. Dispatch returns
// "queued" without waiting for the handler.
func Buffered(size int) Option {
	return func(o *options) { o.queue = size }
}

// Blocking makes Dispatch wait for room in a full queue instead of failing.
func Blocking() Option {
	return func(o *options) { o.blocking = true }
}

// Logged logs the start and outcome of every event at debug level, and
// failures at error level.
func Logged() Option {
	return func(o *options) { o.logged = true }
}

type instruments struct {
	depth        metric.Int64ObservableGauge
	processed    metric.Int64Counter
	dropped      metric.Int64Counter
	registration metric.Registration
}

// Dispatcher maps event kinds to handlers.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	logger   Logger
	metrics  instruments

	// senders hold the read lock so Close cannot race a send
	mu      sync.RWMutex
	queues  map[string]chan Event
	closed  bool
	workers sync.WaitGroup
}

// New creates a Dispatcher. Queue metrics go to meter, or to the global
// meter when meter is nil.
func New(logger Logger, meter metric.Meter) (*Dispatcher, error) {
	if meter == nil {
		meter = globalMeter()
	}
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		queues:   make(map[string]chan Event),
		logger:   logger,
	}
	if err := d.instrument(meter); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dispatcher) instrument(meter metric.Meter) error {
	var err error
	m := &d.metrics

	if m.depth, err = meter.Int64ObservableGauge("pudscan.watch.queue.size",
		metric.WithDescription("File events waiting for a worker")); err != nil {
		return fmt.Errorf("creating queue size gauge: %w", err)
	}
	if m.processed, err = meter.Int64Counter("pudscan.watch.events.processed",
		metric.WithDescription("File events handled by a worker")); err != nil {
		return fmt.Errorf("creating processed counter: %w", err)
	}
	if m.dropped, err = meter.Int64Counter("pudscan.watch.events.dropped",
		metric.WithDescription("File events rejected because the queue was full")); err != nil {
		return fmt.Errorf("creating dropped counter: %w", err)
	}

	m.registration, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		d.mu.RLock()
		defer d.mu.RUnlock()
		for kind, q := range d.queues {
			o.ObserveInt64(m.depth, int64(len(q)), metric.WithAttributes(attribute.String("kind", kind)))
		}
		return nil
	}, m.depth)
	if err != nil {
		return fmt.Errorf("registering queue callback: %w", err)
	}
	return nil
}

// Register installs h for kind. All handlers must be registered before the
// first Dispatch.
func (d *Dispatcher) Register(kind string, h HandlerFunc, opts ...Option) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logged {
		h = d.logged(kind, h)
	}
	if o.queue > 0 {
		h = d.queued(kind, o.queue, o.blocking, h)
	}
	d.handlers[kind] = h
}

// Dispatch hands e to the handler registered for e.Kind.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	h, ok := d.handlers[e.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown event kind: %s", e.Kind)
	}
	return h(e)
}

// HasHandler reports whether kind has a handler.
func (d *Dispatcher) HasHandler(kind string) bool {
	_, ok := d.handlers[kind]
	return ok
}

// Close rejects further events, waits for every queued event to be handled
// and unregisters the metric callback. It is idempotent.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	for _, q := range d.queues {
		close(q)
	}
	d.mu.Unlock()

	d.workers.Wait()
	if d.metrics.registration == nil {
		return nil
	}
	return d.metrics.registration.Unregister()
}

func (d *Dispatcher) queued(kind string, size int, blocking bool, h HandlerFunc) HandlerFunc {
	q := make(chan Event, size)
	attrs := metric.WithAttributes(attribute.String("kind", kind))

	d.mu.Lock()
	d.queues[kind] = q
	d.mu.Unlock()

	d.workers.Add(1)
	go func() {
		defer d.workers.Done()
		for e := range q {
			_, _ = h(e)
			d.metrics.processed.Add(context.Background(), 1, attrs)
		}
	}()

	return func(e Event) (any, error) {
		d.mu.RLock()
		defer d.mu.RUnlock()
		if d.closed {
			return nil, ErrClosed
		}
		if blocking {
			q <- e
			return "queued", nil
		}
		select {
		case q <- e:
			return "queued", nil
		default:
			d.metrics.dropped.Add(context.Background(), 1, attrs)
			return nil, fmt.Errorf("queue full: %s", kind)
		}
	}
}

func (d *Dispatcher) logged(kind string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		start := time.Now()
		d.logger.Debug("Handling event", "kind", kind, "path", e.Path)

		result, err := h(e)
		if err != nil {
			d.logger.Error("Event failed", "kind", kind, "path", e.Path, "duration", time.Since(start), "error", err)
			return result, err
		}
		d.logger.Debug("Event handled", "kind", kind, "path", e.Path, "duration", time.Since(start))
		return result, nil
	}
}
