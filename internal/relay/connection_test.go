package relay

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitDone(t *testing.T, c *Connection) {
	t.Helper()
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("connection did not finish")
	}
}

func TestConnection_DuplicateIdentityPanics(t *testing.T) {
	relay := New(newTestMetrics(t), clockwork.NewRealClock(), Options{NewID: sequentialIDs("same", "same")})

	first := newFakeConn()
	t.Cleanup(func() { first.Close() })
	relay.Admit(context.Background(), first)

	assert.Panics(t, func() {
		relay.Admit(context.Background(), newFakeConn())
	})
	assert.Equal(t, 1, relay.ConnectionCount())
}

func TestConnection_ReadErrorTearsDown(t *testing.T) {
	m := newTestMetrics(t)
	relay := New(m, clockwork.NewRealClock(), Options{})

	fc := newFakeConn()
	c := relay.Admit(context.Background(), fc)
	require.Equal(t, 1, relay.ConnectionCount())

	fc.failRead(io.ErrUnexpectedEOF)
	waitDone(t, c)

	assert.Equal(t, 0, relay.ConnectionCount())
	assert.True(t, fc.isClosed())
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ActiveConnections))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConnectionsTotal))
}

func TestConnection_PeerCloseTearsDown(t *testing.T) {
	relay := New(newTestMetrics(t), clockwork.NewRealClock(), Options{})

	fc := newFakeConn()
	c := relay.Admit(context.Background(), fc)

	fc.failRead(&ws.CloseError{Code: ws.CloseNormalClosure})
	waitDone(t, c)

	assert.Equal(t, 0, relay.ConnectionCount())
}

func TestConnection_WriteFailureTearsDown(t *testing.T) {
	relay := New(newTestMetrics(t), clockwork.NewRealClock(), Options{NewID: sequentialIDs("sender", "broken")})

	sender := newFakeConn()
	t.Cleanup(func() { sender.Close() })
	relay.Admit(context.Background(), sender)

	broken := newFakeConn()
	broken.writeErr = errors.New("broken pipe")
	c := relay.Admit(context.Background(), broken)

	sender.deliver(ws.TextMessage, `{"type":"Chat","text":"hi"}`)
	waitDone(t, c)

	assert.Equal(t, 1, relay.ConnectionCount())
	assert.False(t, relay.registry.Contains("broken"))
	assert.True(t, broken.isClosed())
}

func TestConnection_IdentityReusableAfterTeardown(t *testing.T) {
	relay := New(newTestMetrics(t), clockwork.NewRealClock(), Options{NewID: sequentialIDs("x", "x")})

	old := newFakeConn()
	first := relay.Admit(context.Background(), old)
	old.failRead(io.EOF)
	waitDone(t, first)

	fresh := newFakeConn()
	second := relay.Admit(context.Background(), fresh)
	assert.Equal(t, ConnID("x"), second.ID())
	assert.Equal(t, 1, relay.ConnectionCount())

	// the stale connection must not evict its successor from shutdown tracking
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, relay.Shutdown(ctx))

	controls := fresh.controlFrames()
	require.Len(t, controls, 1)
	assert.Equal(t, ws.CloseMessage, controls[0].messageType)
}

func TestConnection_AppliesReadLimit(t *testing.T) {
	relay := New(newTestMetrics(t), clockwork.NewRealClock(), Options{MaxMessageSize: 1024})

	fc := newFakeConn()
	t.Cleanup(func() { fc.Close() })
	relay.Admit(context.Background(), fc)

	fc.mu.Lock()
	defer fc.mu.Unlock()
	assert.Equal(t, int64(1024), fc.readLimit)
}

func TestConnection_KeepalivePings(t *testing.T) {
	clock := clockwork.NewFakeClock()
	relay := New(newTestMetrics(t), clock, Options{PingInterval: 30 * time.Second})

	fc := newFakeConn()
	t.Cleanup(func() { fc.Close() })
	relay.Admit(context.Background(), fc)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	clock.Advance(30 * time.Second)
	require.Eventually(t, func() bool {
		return len(fc.controlFrames()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, ws.PingMessage, fc.controlFrames()[0].messageType)

	clock.Advance(30 * time.Second)
	require.Eventually(t, func() bool {
		return len(fc.controlFrames()) == 2
	}, time.Second, 5*time.Millisecond)
}

func TestConnection_PingFailureTearsDown(t *testing.T) {
	clock := clockwork.NewFakeClock()
	relay := New(newTestMetrics(t), clock, Options{PingInterval: time.Second})

	fc := newFakeConn()
	fc.pingErr = errors.New("connection reset")
	c := relay.Admit(context.Background(), fc)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	clock.Advance(time.Second)
	waitDone(t, c)

	assert.Equal(t, 0, relay.ConnectionCount())
	assert.True(t, fc.isClosed())
}

func TestConnection_NoKeepaliveWhenDisabled(t *testing.T) {
	clock := clockwork.NewFakeClock()
	relay := New(newTestMetrics(t), clock, Options{})

	fc := newFakeConn()
	t.Cleanup(func() { fc.Close() })
	relay.Admit(context.Background(), fc)

	clock.Advance(time.Hour)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, fc.controlFrames())
	assert.Equal(t, 1, relay.ConnectionCount())
}

func TestConnection_AdmitContextCancelDoesNotClose(t *testing.T) {
	relay := New(newTestMetrics(t), clockwork.NewRealClock(), Options{})

	ctx, cancel := context.WithCancel(context.Background())
	fc := newFakeConn()
	t.Cleanup(func() { fc.Close() })
	c := relay.Admit(ctx, fc)
	cancel()

	select {
	case <-c.Done():
		t.Fatal("connection ended with its admission context")
	case <-time.After(20 * time.Millisecond):
	}
	assert.Equal(t, 1, relay.ConnectionCount())
}

func TestConnection_ReplyWrittenToFakeConn(t *testing.T) {
	relay := New(newTestMetrics(t), clockwork.NewRealClock(), Options{NewID: sequentialIDs("me", "session-7")})

	fc := newFakeConn()
	t.Cleanup(func() { fc.Close() })
	relay.Admit(context.Background(), fc)

	fc.deliver(ws.TextMessage, `{"type":"GenerateStream"}`)
	require.Eventually(t, func() bool {
		return len(fc.writtenFrames()) == 1
	}, time.Second, 5*time.Millisecond)

	frame := fc.writtenFrames()[0]
	assert.Equal(t, ws.TextMessage, frame.Type)
	assert.JSONEq(t, `{"type":"StreamLink","url":"/sender?session=session-7","session_id":"session-7"}`, string(frame.Data))
}
