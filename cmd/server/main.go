package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/relay/internal/adapter/httpserver"
	"github.com/pscheid92/relay/internal/adapter/metrics"
	"github.com/pscheid92/relay/internal/platform/config"
	"github.com/pscheid92/relay/internal/platform/logging"
	"github.com/pscheid92/relay/internal/platform/version"
	"github.com/pscheid92/relay/internal/relay"
)

func runGracefulShutdown(cfg *config.Config, srv *httpserver.Server, rel *relay.Relay) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
		if err := rel.Shutdown(shutdownCtx); err != nil {
			slog.Error("Relay shutdown error", "error", err)
		}

		close(done)
	}()

	return done
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", version.Get().String())

	m := metrics.New()
	rel := relay.New(m.Relay, clock, relay.Options{
		WriteTimeout:      cfg.WriteTimeout,
		PingInterval:      cfg.PingInterval,
		MaxMessageSize:    cfg.MaxMessageSize,
		StreamLinkBaseURL: cfg.StreamLinkBaseURL,
	})

	srv := httpserver.NewServer(cfg, rel, m, clock)

	done := runGracefulShutdown(cfg, srv, rel)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
	slog.Info("Shutdown complete")
}
