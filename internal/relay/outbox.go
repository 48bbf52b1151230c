package relay

import (
	"context"
	"errors"
	"sync"

	"github.com/eapache/queue"
)

// ErrChannelClosed is returned by Push once the consumer has gone or the
// sending side has been closed.
var ErrChannelClosed = errors.New("outbox closed")

// Outbox is an unbounded multi-producer, single-consumer FIFO of frames.
// Push never blocks. There is no capacity bound: a stalled consumer grows the
// queue until teardown.
type Outbox struct {
	mu      sync.Mutex
	items   *queue.Queue
	ready   chan struct{}
	closed  bool
	dropped bool
}

// NewOutbox returns an empty, open Outbox.
func NewOutbox() *Outbox {
	return &Outbox{
		items: queue.New(),
		ready: make(chan struct{}, 1),
	}
}

// Push enqueues f.
func (o *Outbox) Push(f Frame) error {
	o.mu.Lock()
	if o.closed || o.dropped {
		o.mu.Unlock()
		return ErrChannelClosed
	}
	o.items.Add(f)
	o.mu.Unlock()

	o.signal()
	return nil
}

// Pop blocks until a frame is available. It returns false once the outbox is
// closed and drained, after Drop, or when ctx is done.
func (o *Outbox) Pop(ctx context.Context) (Frame, bool) {
	for {
		o.mu.Lock()
		if o.dropped {
			o.mu.Unlock()
			return Frame{}, false
		}
		if o.items.Length() > 0 {
			f := o.items.Remove().(Frame)
			o.mu.Unlock()
			return f, true
		}
		if o.closed {
			o.mu.Unlock()
			return Frame{}, false
		}
		o.mu.Unlock()

		select {
		case <-o.ready:
		case <-ctx.Done():
			return Frame{}, false
		}
	}
}

// Close drops the sending side. Queued frames can still be popped.
func (o *Outbox) Close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	o.signal()
}

// Drop marks the consumer as gone and discards anything still queued.
func (o *Outbox) Drop() {
	o.mu.Lock()
	o.dropped = true
	o.items = queue.New()
	o.mu.Unlock()
	o.signal()
}

// Len returns the number of queued frames.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.items.Length()
}

func (o *Outbox) signal() {
	select {
	case o.ready <- struct{}{}:
	default:
	}
}
