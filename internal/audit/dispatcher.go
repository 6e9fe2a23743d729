package audit

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Config controls dispatcher buffering. DropIfFull trades completeness
// for latency: the worker's queue loop must never block on a slow sink.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// Dispatcher decouples the worker loop from audit sinks. Emit enqueues
// and returns; a single goroutine forwards events to the sink in order.
// A nil *Dispatcher is valid and ignores every call, so auditing can be
// switched off without guarding call sites.
type Dispatcher struct {
	sink       Sink
	logger     *slog.Logger
	dropIfFull bool

	events chan Event
	quit   chan struct{}
	wg     sync.WaitGroup

	dropped  atomic.Uint64
	dropOnce sync.Once
	closed   atomic.Bool
	stopOnce sync.Once
}

// NewDispatcher starts the forwarding goroutine. Returns nil when
// auditing is disabled.
func NewDispatcher(cfg Config, sink Sink, logger *slog.Logger) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	d := &Dispatcher{
		sink:       sink,
		logger:     logger,
		dropIfFull: cfg.DropIfFull,
		events:     make(chan Event, cfg.BufferSize),
		quit:       make(chan struct{}),
	}

	d.wg.Add(1)
	go d.forward()

	return d
}

func (d *Dispatcher) forward() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.events:
			d.sink.Emit(context.Background(), event)
		case <-d.quit:
			// Drain whatever made it into the buffer before Close.
			for {
				select {
				case event := <-d.events:
					d.sink.Emit(context.Background(), event)
				default:
					return
				}
			}
		}
	}
}

// Emit enqueues one event. With DropIfFull set a full buffer discards
// the event and counts it; otherwise Emit blocks until there is room or
// ctx is done.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.dropIfFull {
		select {
		case d.events <- event:
		case <-d.quit:
		default:
			d.dropped.Add(1)
			d.dropOnce.Do(func() {
				d.logger.Warn("audit buffer full, dropping events",
					"event_type", event.EventType,
					"buffer", cap(d.events),
				)
			})
		}
		return
	}

	select {
	case d.events <- event:
	case <-ctx.Done():
	case <-d.quit:
	}
}

// Close stops the dispatcher after draining buffered events. Safe to
// call more than once and on a nil receiver.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.stopOnce.Do(func() {
		d.closed.Store(true)
		close(d.quit)
		d.wg.Wait()
		if n := d.dropped.Load(); n > 0 {
			d.logger.Warn("audit events were dropped", "count", n)
		}
	})
}

// Dropped reports how many events were discarded under backpressure.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
