package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/relay/internal/adapter/metrics"
	"github.com/pscheid92/relay/internal/platform/config"
	"github.com/pscheid92/relay/internal/relay"
)

// relayService is the part of *relay.Relay the server needs.
type relayService interface {
	Admit(ctx context.Context, conn relay.Conn) *relay.Connection
	ConnectionCount() int
}

type Server struct {
	echo   *echo.Echo
	config *config.Config
	clock  clockwork.Clock

	relay       relayService
	limits      *ConnectionLimits
	upgrader    websocket.Upgrader
	checkOrigin func(*http.Request) bool

	metrics     *metrics.Metrics
	admission   *metrics.AdmissionMetrics
	httpMetrics *metrics.HTTPMetrics

	healthChecks []healthCheck
	startTime    time.Time
	draining     atomic.Bool
}

// NewServer wires the HTTP surface around rel and serves m at /metrics.
func NewServer(cfg *config.Config, rel relayService, m *metrics.Metrics, clock clockwork.Clock) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	if cfg.TrustProxy {
		e.IPExtractor = echo.ExtractIPFromXFFHeader()
	} else {
		e.IPExtractor = echo.ExtractIPDirect()
	}

	srv := &Server{
		echo:   e,
		config: cfg,
		clock:  clock,
		relay:  rel,
		limits: NewConnectionLimits(int64(cfg.MaxWebSocketConnections), cfg.MaxConnectionsPerIP),
		upgrader: websocket.Upgrader{
			// origin is checked before upgrading so the rejection gets a JSON body
			CheckOrigin: func(*http.Request) bool { return true },
		},
		checkOrigin:  newCheckOrigin(cfg.AppURL, cfg.IsDevelopment()),
		metrics:     m,
		admission:   m.Admission,
		httpMetrics: m.HTTP,
		startTime:   clock.Now(),
	}
	srv.healthChecks = []healthCheck{
		{Name: "draining", Check: srv.checkNotDraining},
		{Name: "capacity", Check: srv.checkCapacity},
	}

	srv.registerRoutes()

	return srv
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port, "ws_path", s.config.WSPath)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown stops accepting upgrades and closes the listener. Upgraded
// connections are hijacked and left to the relay's own shutdown.
func (s *Server) Shutdown(ctx context.Context) error {
	s.draining.Store(true)
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
