package relay

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/relay/internal/adapter/metrics"
	"github.com/stretchr/testify/require"
)

func newTestMetrics(t *testing.T) *metrics.RelayMetrics {
	t.Helper()
	return metrics.NewRelayMetrics(prometheus.NewRegistry())
}

// sequentialIDs returns an id generator yielding ids in order, then "id-N".
func sequentialIDs(ids ...string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		if n <= len(ids) {
			return ids[n-1]
		}
		return fmt.Sprintf("id-%d", n)
	}
}

// testRelay starts a Relay behind an httptest server and returns a dialer
// that waits until the new connection is registered.
func testRelay(t *testing.T, opts Options) (*Relay, func() *ws.Conn) {
	t.Helper()

	relay := New(newTestMetrics(t), clockwork.NewRealClock(), opts)
	upgrader := ws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		relay.Admit(r.Context(), conn)
	}))
	t.Cleanup(func() { server.Close() })

	dial := func() *ws.Conn {
		t.Helper()
		before := relay.ConnectionCount()
		url := "ws" + strings.TrimPrefix(server.URL, "http")
		conn, _, err := ws.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		require.True(t, waitForConnectionCount(relay, before+1), "connection was not admitted")
		return conn
	}

	return relay, dial
}

func waitForConnectionCount(r *Relay, expected int) bool {
	for range 200 {
		if r.ConnectionCount() == expected {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func sendJSON(t *testing.T, conn *ws.Conn, raw string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(ws.TextMessage, []byte(raw)))
}

func readFrame(t *testing.T, conn *ws.Conn) (int, []byte) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	messageType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	return messageType, data
}

func readJSON(t *testing.T, conn *ws.Conn) map[string]any {
	t.Helper()
	messageType, data := readFrame(t, conn)
	require.Equal(t, ws.TextMessage, messageType)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

type inboundFrame struct {
	messageType int
	data        []byte
}

type controlFrame struct {
	messageType int
	data        []byte
}

// fakeConn is an in-memory Conn. Frames pushed with deliver are returned by
// ReadMessage; writes are recorded.
type fakeConn struct {
	inbound   chan inboundFrame
	readErrs  chan error
	closed    chan struct{}
	closeOnce sync.Once

	mu        sync.Mutex
	written   []Frame
	controls  []controlFrame
	writeErr  error
	pingErr   error
	readLimit int64
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound:  make(chan inboundFrame, 64),
		readErrs: make(chan error, 1),
		closed:   make(chan struct{}),
	}
}

func (c *fakeConn) deliver(messageType int, data string) {
	c.inbound <- inboundFrame{messageType: messageType, data: []byte(data)}
}

func (c *fakeConn) failRead(err error) {
	c.readErrs <- err
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case f := <-c.inbound:
		return f.messageType, f.data, nil
	case err := <-c.readErrs:
		return 0, nil, err
	case <-c.closed:
		return 0, nil, net.ErrClosed
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	if c.isClosed() {
		return net.ErrClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.written = append(c.written, Frame{Type: messageType, Data: data})
	return nil
}

func (c *fakeConn) WriteControl(messageType int, data []byte, _ time.Time) error {
	if c.isClosed() {
		return net.ErrClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if messageType == ws.PingMessage && c.pingErr != nil {
		return c.pingErr
	}
	c.controls = append(c.controls, controlFrame{messageType: messageType, data: data})
	return nil
}

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) SetReadLimit(limit int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readLimit = limit
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) writtenFrames() []Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Frame(nil), c.written...)
}

func (c *fakeConn) controlFrames() []controlFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]controlFrame(nil), c.controls...)
}
