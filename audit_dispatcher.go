package medconfirm

import (
	"context"
	"sync"
	"sync/atomic"
)

// auditDropKinds are the event types dropped events are counted under. The
// last entry collects anything else.
var auditDropKinds = [...]string{
	auditEventConfirmation,
	auditEventConfirmationRateLimited,
	auditEventConfirmationDuplicate,
	"other",
}

func auditDropIndex(eventType string) int {
	for i, kind := range auditDropKinds[:len(auditDropKinds)-1] {
		if kind == eventType {
			return i
		}
	}
	return len(auditDropKinds) - 1
}

// auditDispatcher delivers confirmation audit events to the sink from a single
// goroutine so Flow.Run never waits on sink I/O.
type auditDispatcher struct {
	cfg       AuditConfig
	sink      AuditSink
	queue     chan AuditEvent
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   [len(auditDropKinds)]atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &auditDispatcher{
		cfg:   cfg,
		sink:  sink,
		queue: make(chan AuditEvent, cfg.BufferSize),
		done:  make(chan struct{}),
	}

	d.wg.Add(1)
	go d.deliver()

	return d
}

func (d *auditDispatcher) deliver() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.queue:
			d.sink.Emit(context.Background(), event)
		case <-d.done:
			d.drain()
			return
		}
	}
}

// drain flushes events queued before Close.
func (d *auditDispatcher) drain() {
	for {
		select {
		case event := <-d.queue:
			d.sink.Emit(context.Background(), event)
		default:
			return
		}
	}
}

// Emit queues event. With DropIfFull a full buffer drops the event and
// counts it under its event type; otherwise Emit blocks until there is
// room, ctx ends or the dispatcher closes.
func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if !d.cfg.DropIfFull {
		select {
		case d.queue <- event:
		case <-ctx.Done():
		case <-d.done:
		}
		return
	}

	select {
	case d.queue <- event:
	case <-d.done:
	default:
		d.dropped[auditDropIndex(event.EventType)].Add(1)
	}
}

// Close drains queued events and stops the dispatcher. Safe to call twice.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

// Dropped returns the total number of dropped events.
func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	var total uint64
	for i := range d.dropped {
		total += d.dropped[i].Load()
	}
	return total
}

// DroppedByEvent returns drop counts for every event kind, zeros included.
func (d *auditDispatcher) DroppedByEvent() map[string]uint64 {
	out := make(map[string]uint64, len(auditDropKinds))
	for i, kind := range auditDropKinds {
		if d != nil {
			out[kind] = d.dropped[i].Load()
		} else {
			out[kind] = 0
		}
	}
	return out
}
