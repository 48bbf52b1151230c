package relay

import (
	"errors"
	"net"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the duplex stream handed over after the upgrade. *websocket.Conn
// satisfies it. Only the forwarder calls WriteMessage; WriteControl and Close
// may be called from any goroutine.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	Close() error
}

var _ Conn = (*websocket.Conn)(nil)

// StreamError is a read or write failure on a connection. It is fatal to that
// connection only.
type StreamError struct {
	Op  string
	Err error
}

func (e *StreamError) Error() string {
	return "websocket " + e.Op + ": " + e.Err.Error()
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// isExpectedClose reports whether err is an orderly end of the stream.
func isExpectedClose(err error) bool {
	if err == nil {
		return true
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		return true
	}
	return errors.Is(err, net.ErrClosed) || errors.Is(err, websocket.ErrCloseSent)
}
