package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull makes Emit non-blocking: events that do not fit are counted
	// and handed to OnDrop instead of waiting for the sink.
	DropIfFull bool
	// OnDrop, when set, is called synchronously from Emit for each dropped event.
	OnDrop func(Event)
}

// Dispatcher moves audit events off the request path. One goroutine feeds the
// sink, so sinks see events in acceptance order and never concurrently.
type Dispatcher struct {
	sink   Sink
	queue  chan Event
	stop   chan struct{}
	onDrop func(Event)
	block  bool

	dropped  atomic.Uint64
	stopped  atomic.Bool
	stopOnce sync.Once
	exited   sync.WaitGroup
}

// NewDispatcher starts the delivery goroutine. Disabled configs return nil; every
// method is safe on a nil Dispatcher.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		sink:   sink,
		queue:  make(chan Event, max(cfg.BufferSize, 1)),
		stop:   make(chan struct{}),
		onDrop: cfg.OnDrop,
		block:  !cfg.DropIfFull,
	}
	d.exited.Add(1)
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	defer d.exited.Done()
	for {
		select {
		case event := <-d.queue:
			d.deliver(event)
		case <-d.stop:
			d.flush()
			return
		}
	}
}

// flush delivers whatever was accepted before Close.
func (d *Dispatcher) flush() {
	for {
		select {
		case event := <-d.queue:
			d.deliver(event)
		default:
			return
		}
	}
}

// deliver detaches the sink from request contexts, which are usually cancelled
// by the time the event is written.
func (d *Dispatcher) deliver(event Event) {
	d.sink.Emit(context.Background(), event)
}

// Emit queues event. In blocking mode it waits for room until ctx ends or the
// dispatcher closes; events abandoned that way are not counted as drops.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.stopped.Load() {
		return
	}

	if !d.block {
		select {
		case d.queue <- event:
		case <-d.stop:
		default:
			d.drop(event)
		}
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.queue <- event:
	case <-ctx.Done():
	case <-d.stop:
	}
}

func (d *Dispatcher) drop(event Event) {
	d.dropped.Add(1)
	if d.onDrop != nil {
		d.onDrop(event)
	}
}

// Close stops accepting events and waits until the queued ones reach the sink.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.stopOnce.Do(func() {
		d.stopped.Store(true)
		close(d.stop)
		d.exited.Wait()
	})
}

// Dropped returns how many events were discarded under backpressure.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
