package relay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/relay/internal/adapter/metrics"
)

const (
	shutdownReason    = "Server shutting down"
	closeFrameTimeout = time.Second
)

// Options tunes per-connection behaviour. Zero values disable the feature.
type Options struct {
	// WriteTimeout bounds every frame write.
	WriteTimeout time.Duration
	// PingInterval is the keepalive period.
	PingInterval time.Duration
	// MaxMessageSize caps inbound frames; larger frames end the connection.
	MaxMessageSize int64
	// StreamLinkBaseURL prefixes issued stream links.
	StreamLinkBaseURL string
	// NewID generates connection identities and stream session ids.
	// Defaults to random UUIDs.
	NewID func() string
}

// Relay admits connections and tears them down. It owns the Registry.
type Relay struct {
	registry *Registry
	metrics  *metrics.RelayMetrics
	clock    clockwork.Clock
	opts     Options
	links    linkIssuer

	mu   sync.Mutex
	live map[ConnID]*Connection
}

// New creates a Relay with its own Registry. opts.NewID defaults to random UUIDs.
func New(m *metrics.RelayMetrics, clock clockwork.Clock, opts Options) *Relay {
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Relay{
		registry: NewRegistry(),
		metrics:  m,
		clock:    clock,
		opts:     opts,
		links:    newLinkIssuer(opts.StreamLinkBaseURL, opts.NewID),
		live:     make(map[ConnID]*Connection),
	}
}

// Admit registers conn under a fresh identity and starts its dispatcher and
// forwarder. ctx only contributes values (correlation id); cancelling it does
// not end the connection. A duplicate identity is a programming error and panics.
func (r *Relay) Admit(ctx context.Context, conn Conn) *Connection {
	id := ConnID(r.opts.NewID())
	outbox := NewOutbox()
	if err := r.registry.Admit(id, outbox); err != nil {
		panic(fmt.Sprintf("relay: admit %s: %v", id, err))
	}
	r.metrics.ConnectionsTotal.Inc()
	r.metrics.ActiveConnections.Inc()

	connCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	logger := slog.Default().With("conn_id", string(id))
	c := &Connection{
		id:       id,
		conn:     conn,
		outbox:   outbox,
		relay:    r,
		logger:   logger,
		ctx:      connCtx,
		cancel:   cancel,
		admitted: r.clock.Now(),
		done:     make(chan struct{}),
	}

	r.mu.Lock()
	r.live[id] = c
	r.mu.Unlock()

	logger.DebugContext(connCtx, "Connection admitted", "total_connections", r.registry.Len())

	if r.opts.MaxMessageSize > 0 {
		conn.SetReadLimit(r.opts.MaxMessageSize)
	}
	c.start()
	return c
}

// ConnectionCount returns the number of registered connections.
func (r *Relay) ConnectionCount() int {
	return r.registry.Len()
}

// Shutdown sends a close frame to every connection, tears them down and waits
// until their goroutines exit or ctx is done.
func (r *Relay) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	conns := make([]*Connection, 0, len(r.live))
	for _, c := range r.live {
		conns = append(conns, c)
	}
	r.mu.Unlock()

	slog.Info("Relay shutting down", "connections", len(conns))

	for _, c := range conns {
		c.closeGraceful(shutdownReason)
	}
	for _, c := range conns {
		select {
		case <-c.Done():
		case <-ctx.Done():
			return fmt.Errorf("relay shutdown: %w", ctx.Err())
		}
	}

	slog.Info("Relay shutdown complete", "disconnected", len(conns))
	return nil
}

func (r *Relay) forget(c *Connection) {
	r.mu.Lock()
	if r.live[c.id] == c {
		delete(r.live, c.id)
	}
	r.mu.Unlock()
}

// Connection is one admitted connection.
type Connection struct {
	id       ConnID
	conn     Conn
	outbox   *Outbox
	relay    *Relay
	logger   *slog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	admitted time.Time

	teardownOnce sync.Once
	wg           sync.WaitGroup
	done         chan struct{}
}

// ID returns the connection's identity.
func (c *Connection) ID() ConnID { return c.id }

// Done is closed once the dispatcher and forwarder have both exited.
func (c *Connection) Done() <-chan struct{} { return c.done }

// Wait blocks until Done is closed.
func (c *Connection) Wait() { <-c.done }

func (c *Connection) start() {
	r := c.relay
	d := &dispatcher{
		id:       c.id,
		conn:     c.conn,
		registry: r.registry,
		links:    r.links,
		metrics:  r.metrics,
		logger:   c.logger,
	}
	f := &forwarder{
		conn:         c.conn,
		outbox:       c.outbox,
		clock:        r.clock,
		writeTimeout: r.opts.WriteTimeout,
		metrics:      r.metrics,
	}

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		c.teardown(d.run(c.ctx))
	}()
	go func() {
		defer c.wg.Done()
		err := f.run(c.ctx)
		c.outbox.Drop()
		c.teardown(err)
	}()

	if r.opts.PingInterval > 0 {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			if err := f.keepalive(c.ctx, r.opts.PingInterval); err != nil {
				c.teardown(err)
			}
		}()
	}

	go func() {
		c.wg.Wait()
		close(c.done)
	}()
}

// teardown removes the connection from the registry and closes the stream.
// Only the first call has any effect; it never waits for the other goroutines.
func (c *Connection) teardown(reason error) {
	c.teardownOnce.Do(func() {
		r := c.relay
		r.metrics.ActiveConnections.Dec()
		r.metrics.ConnectionDuration.Observe(r.clock.Since(c.admitted).Seconds())

		r.registry.Remove(c.id)
		r.forget(c)
		c.cancel()
		_ = c.conn.Close()

		if isExpectedClose(reason) {
			c.logger.DebugContext(c.ctx, "Connection closed", "remaining_connections", r.registry.Len())
		} else {
			c.logger.WarnContext(c.ctx, "Connection terminated", "error", reason, "remaining_connections", r.registry.Len())
		}
	})
}

// closeGraceful sends a close frame with reason, then tears the connection down.
func (c *Connection) closeGraceful(reason string) {
	closeMsg := websocket.FormatCloseMessage(websocket.CloseGoingAway, reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, closeMsg, c.relay.clock.Now().Add(closeFrameTimeout))
	c.teardown(nil)
}
