package relay

import "github.com/gorilla/websocket"

// Frame is one outbound unit: a websocket message type and its payload.
type Frame struct {
	Type int
	Data []byte
}

// TextFrame wraps an encoded message.
func TextFrame(data []byte) Frame {
	return Frame{Type: websocket.TextMessage, Data: data}
}

// BinaryFrame wraps an opaque binary payload.
func BinaryFrame(data []byte) Frame {
	return Frame{Type: websocket.BinaryMessage, Data: data}
}
