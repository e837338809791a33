package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrUnknownEvent is returned when no handler is registered for an event type.
	ErrUnknownEvent = errors.New("unknown event")
	// ErrQueueFull is returned when a non-blocking buffered handler drops an event.
	ErrQueueFull = errors.New("queue full")
	// ErrClosed is returned by buffered handlers after Close.
	ErrClosed = errors.New("dispatcher closed")
)

// Queued is the result of a dispatch accepted by a buffered handler.
const Queued = "queued"

// Event is a discrete input to the map: a click, a geolocation answer, a button press.
type Event struct {
	Type      string
	Payload   any
	Timestamp time.Time
}

// HandlerFunc processes an event and returns a result.
type HandlerFunc func(Event) (any, error)

// Logger is the key/value logging surface the dispatcher writes to.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*options)

type options struct {
	bufferSize int
	blocking   bool
	logged     bool
}

// Buffered runs the handler on its own goroutine behind a queue of the given
// size. Such handlers must not touch state owned by the event loop.
func Buffered(size int) Option {
	return func(o *options) { o.bufferSize = size }
}

// Blocking makes a buffered handler wait for room instead of dropping.
func Blocking() Option {
	return func(o *options) { o.blocking = true }
}

// Logged emits debug lines around each run and an error line on failure.
func Logged() Option {
	return func(o *options) { o.logged = true }
}

// Dispatcher routes events to registered handlers.
type Dispatcher struct {
	logger Logger
	ins    *instruments

	hmu      sync.RWMutex
	handlers map[string]HandlerFunc

	qmu    sync.RWMutex
	queues map[string]chan Event
	closed bool
	wg     sync.WaitGroup
}

// New creates a Dispatcher. Metrics go to the global OTel meter provider.
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		logger:   logger,
		handlers: make(map[string]HandlerFunc),
		queues:   make(map[string]chan Event),
	}
	ins, err := newInstruments(d.queueDepths)
	if err != nil {
		return nil, err
	}
	d.ins = ins
	return d, nil
}

// Register installs h for eventType, replacing any previous handler.
func (d *Dispatcher) Register(eventType string, h HandlerFunc, opts ...Option) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	handler := d.timed(eventType, h)
	if o.bufferSize > 0 {
		handler = d.enqueue(eventType, d.startQueue(eventType, o.bufferSize, handler), o.blocking)
	}
	if o.logged {
		handler = d.logged(eventType, handler)
	}

	d.hmu.Lock()
	d.handlers[eventType] = handler
	d.hmu.Unlock()
}

// Dispatch routes an event to its handler, stamping Timestamp when unset.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	d.hmu.RLock()
	h, ok := d.handlers[e.Type]
	d.hmu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEvent, e.Type)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	d.ins.dispatched.Add(context.Background(), 1, eventAttr(e.Type))
	return h(e)
}

func (d *Dispatcher) HasHandler(eventType string) bool {
	d.hmu.RLock()
	defer d.hmu.RUnlock()
	_, ok := d.handlers[eventType]
	return ok
}

// Close stops accepting buffered events and waits for queued ones to drain.
// Calling it more than once is harmless.
func (d *Dispatcher) Close() {
	d.qmu.Lock()
	if d.closed {
		d.qmu.Unlock()
		return
	}
	d.closed = true
	for _, q := range d.queues {
		close(q)
	}
	d.qmu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) queueDepths() map[string]int {
	d.qmu.RLock()
	defer d.qmu.RUnlock()
	depths := make(map[string]int, len(d.queues))
	for typ, q := range d.queues {
		depths[typ] = len(q)
	}
	return depths
}

func (d *Dispatcher) startQueue(eventType string, size int, h HandlerFunc) chan Event {
	q := make(chan Event, size)

	d.qmu.Lock()
	d.queues[eventType] = q
	d.qmu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for e := range q {
			if _, err := h(e); err != nil {
				d.logger.Error("buffered handler failed", "event", eventType, "error", err)
			}
			d.ins.processed.Add(context.Background(), 1, eventAttr(eventType))
		}
	}()
	return q
}

func (d *Dispatcher) enqueue(eventType string, q chan Event, blocking bool) HandlerFunc {
	return func(e Event) (any, error) {
		d.qmu.RLock()
		defer d.qmu.RUnlock()
		if d.closed {
			return nil, fmt.Errorf("%w: %s", ErrClosed, eventType)
		}
		if blocking {
			q <- e
			return Queued, nil
		}
		select {
		case q <- e:
			return Queued, nil
		default:
			d.ins.dropped.Add(context.Background(), 1, eventAttr(eventType))
			d.logger.Warn("event dropped", "event", eventType, "capacity", cap(q))
			return nil, fmt.Errorf("%w: %s", ErrQueueFull, eventType)
		}
	}
}

func (d *Dispatcher) timed(eventType string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		start := time.Now()
		defer func() { d.ins.observeRun(eventType, time.Since(start)) }()
		return h(e)
	}
}

func (d *Dispatcher) logged(eventType string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		start := time.Now()
		d.logger.Debug("handling event", "event", eventType)

		result, err := h(e)
		if err != nil {
			d.logger.Error("event failed", "event", eventType, "duration", time.Since(start), "error", err)
			return result, err
		}
		d.logger.Debug("event complete", "event", eventType, "duration", time.Since(start))
		return result, nil
	}
}
