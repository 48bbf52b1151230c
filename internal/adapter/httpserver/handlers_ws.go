package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	apperrors "github.com/pscheid92/relay/internal/platform/errors"
	"github.com/pscheid92/relay/internal/relay"
)

const internalCloseTimeout = time.Second

// handleWebSocket admits one client into the relay and holds the request
// until the connection ends, so the admission slots are released with it.
func (s *Server) handleWebSocket(c echo.Context) error {
	req := c.Request()
	ctx := req.Context()

	if s.draining.Load() {
		s.reject(LimitReasonDrain)
		return apperrors.UnavailableError("server is shutting down")
	}
	if !websocket.IsWebSocketUpgrade(req) {
		return apperrors.ValidationError("websocket upgrade required")
	}
	if !s.checkOrigin(req) {
		s.reject(LimitReasonOrigin)
		return apperrors.ForbiddenError("origin not allowed").
			WithContext("origin", req.Header.Get("Origin"))
	}

	ip := c.RealIP()
	if ok, reason := s.limits.Acquire(ip); !ok {
		s.reject(reason)
		return limitError(reason)
	}
	defer func() {
		s.limits.Release(ip)
		s.admission.Capacity.Set(s.limits.Global().CapacityPct())
	}()
	s.admission.Capacity.Set(s.limits.Global().CapacityPct())

	conn, err := s.upgrader.Upgrade(c.Response(), req, nil)
	if err != nil {
		// the upgrader has already written the HTTP error response
		s.admission.Attempts.WithLabelValues("error").Inc()
		slog.WarnContext(ctx, "WebSocket upgrade failed", "remote_ip", ip, "error", err)
		return nil
	}

	connection, err := s.admit(ctx, conn)
	if err != nil {
		s.admission.Attempts.WithLabelValues("error").Inc()
		slog.ErrorContext(ctx, "WebSocket admission failed", "remote_ip", ip, "error", err)
		return nil
	}
	s.admission.Attempts.WithLabelValues("success").Inc()
	slog.DebugContext(ctx, "WebSocket admitted", "conn_id", string(connection.ID()), "remote_ip", ip)
	connection.Wait()
	return nil
}

// admit hands conn to the relay. The socket is already hijacked, so a relay
// panic cannot become an HTTP 500: the client gets a 1011 close frame and the
// socket is closed.
func (s *Server) admit(ctx context.Context, conn *websocket.Conn) (connection *relay.Connection, err error) {
	defer func() {
		if r := recover(); r != nil {
			msg := websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "internal error")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(internalCloseTimeout))
			_ = conn.Close()
			connection, err = nil, fmt.Errorf("relay admit: %v", r)
		}
	}()
	return s.relay.Admit(ctx, conn), nil
}

func (s *Server) reject(reason LimitReason) {
	s.admission.Attempts.WithLabelValues("rejected").Inc()
	s.admission.Rejected.WithLabelValues(string(reason)).Inc()
}

func limitError(reason LimitReason) *apperrors.Error {
	if reason == LimitReasonGlobal {
		return apperrors.UnavailableError("relay is at connection capacity").
			WithContext("reason", string(reason))
	}
	return apperrors.RateLimitedError("too many connections from this address").
		WithContext("reason", string(reason))
}
