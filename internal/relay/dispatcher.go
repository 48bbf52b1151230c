package relay

import (
	"context"
	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/pscheid92/relay/internal/adapter/metrics"
	"github.com/pscheid92/relay/internal/message"
)

const kindBinary = "binary"

// dispatcher reads frames from one connection and routes them through the registry.
type dispatcher struct {
	id       ConnID
	conn     Conn
	registry *Registry
	links    linkIssuer
	metrics  *metrics.RelayMetrics
	logger   *slog.Logger
}

// run blocks until the stream fails or the peer closes it.
func (d *dispatcher) run(ctx context.Context) error {
	for {
		messageType, data, err := d.conn.ReadMessage()
		if err != nil {
			return &StreamError{Op: "read", Err: err}
		}

		switch messageType {
		case websocket.BinaryMessage:
			d.metrics.FramesReceived.WithLabelValues(kindBinary).Inc()
			d.fanOut(ctx, BinaryFrame(data), kindBinary)
		case websocket.TextMessage:
			d.handleText(ctx, data)
		}
	}
}

func (d *dispatcher) handleText(ctx context.Context, data []byte) {
	msg, err := message.Decode(data)
	if err != nil {
		d.metrics.DecodeErrors.Inc()
		d.logger.DebugContext(ctx, "Dropping undecodable text frame", "size", len(data), "error", err)
		return
	}

	kind := string(msg.Kind())
	d.metrics.FramesReceived.WithLabelValues(kind).Inc()

	switch msg.(type) {
	case message.StreamRequest:
		d.replyStreamLink(ctx)
	case message.StreamLink:
		// only ever produced by the relay
	case message.Video, message.Chat, message.Location:
		encoded, err := message.Encode(msg)
		if err != nil {
			d.logger.ErrorContext(ctx, "Failed to encode message", "kind", kind, "error", err)
			return
		}
		d.fanOut(ctx, TextFrame(encoded), kind)
	}
}

func (d *dispatcher) replyStreamLink(ctx context.Context) {
	link := d.links.issue()
	encoded, err := message.Encode(link)
	if err != nil {
		d.logger.ErrorContext(ctx, "Failed to encode stream link", "error", err)
		return
	}

	delivered, err := d.registry.SendTo(d.id, TextFrame(encoded))
	switch {
	case err != nil:
		d.metrics.DroppedDeliveries.Inc()
		d.logger.WarnContext(ctx, "Failed to deliver stream link", "error", err)
	case delivered:
		d.metrics.StreamLinksIssued.Inc()
		d.metrics.Deliveries.WithLabelValues(string(message.KindStreamLink)).Inc()
		d.logger.DebugContext(ctx, "Stream link issued", "session_id", link.SessionID)
	}
}

// fanOut queues f for every registered connection except the sender.
func (d *dispatcher) fanOut(ctx context.Context, f Frame, kind string) {
	d.registry.ForEachExcept(d.id, func(recipient ConnID, outbox *Outbox) {
		if err := outbox.Push(f); err != nil {
			d.metrics.DroppedDeliveries.Inc()
			d.logger.WarnContext(ctx, "Dropped delivery", "recipient", string(recipient), "kind", kind, "error", err)
			return
		}
		d.metrics.Deliveries.WithLabelValues(kind).Inc()
	})
}
