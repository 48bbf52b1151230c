package relay

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/relay/internal/adapter/metrics"
)

// forwarder drains one outbox onto its connection, in order.
type forwarder struct {
	conn         Conn
	outbox       *Outbox
	clock        clockwork.Clock
	writeTimeout time.Duration
	metrics      *metrics.RelayMetrics
}

// run returns nil when the outbox is closed and drained or ctx is done, and a
// *StreamError on the first failed write. Writes are never retried.
func (f *forwarder) run(ctx context.Context) error {
	for {
		frame, ok := f.outbox.Pop(ctx)
		if !ok {
			return nil
		}

		start := f.clock.Now()
		f.updateWriteDeadline()
		if err := f.conn.WriteMessage(frame.Type, frame.Data); err != nil {
			return &StreamError{Op: "write", Err: err}
		}
		f.metrics.WriteDuration.Observe(f.clock.Since(start).Seconds())
	}
}

// keepalive pings the peer every interval until ctx is done. Control frames
// may be written concurrently with run.
func (f *forwarder) keepalive(ctx context.Context, interval time.Duration) error {
	ticker := f.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			if err := f.conn.WriteControl(websocket.PingMessage, nil, f.deadline()); err != nil {
				return &StreamError{Op: "ping", Err: err}
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func (f *forwarder) updateWriteDeadline() {
	_ = f.conn.SetWriteDeadline(f.deadline())
}

// deadline returns the zero time (no deadline) when writeTimeout is unset.
func (f *forwarder) deadline() time.Time {
	if f.writeTimeout <= 0 {
		return time.Time{}
	}
	return f.clock.Now().Add(f.writeTimeout)
}
