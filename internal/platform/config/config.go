package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv            string `env:"APP_ENV" default:"development"`
	Port              string `env:"PORT" default:"8080"`
	AppURL            string `env:"APP_URL"`
	WSPath            string `env:"WS_PATH" default:"/ws"`
	StreamLinkBaseURL string `env:"STREAM_LINK_BASE_URL"`
	LogLevel          string `env:"LOG_LEVEL" default:"info"`
	LogFormat         string `env:"LOG_FORMAT" default:"text"`
	TrustProxy        bool   `env:"TRUST_PROXY" default:"false"` // take client IPs from X-Forwarded-For

	WriteTimeout   time.Duration `env:"WRITE_TIMEOUT" default:"10s"`
	PingInterval   time.Duration `env:"PING_INTERVAL" default:"30s"` // 0 disables keepalive
	MaxMessageSize int64         `env:"MAX_MESSAGE_SIZE" default:"67108864"`

	MaxWebSocketConnections int     `env:"MAX_WEBSOCKET_CONNECTIONS" default:"10000"`
	MaxConnectionsPerIP     int     `env:"MAX_CONNECTIONS_PER_IP" default:"100"`
	ConnectionRate          float64 `env:"CONNECTION_RATE" default:"10"`
	ConnectionBurst         int     `env:"CONNECTION_BURST" default:"20"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// IsDevelopment reports whether the relay runs in the development environment.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if !strings.HasPrefix(cfg.WSPath, "/") {
		return fmt.Errorf("WS_PATH must start with /, got %q", cfg.WSPath)
	}

	for name, raw := range map[string]string{
		"APP_URL":              cfg.AppURL,
		"STREAM_LINK_BASE_URL": cfg.StreamLinkBaseURL,
	} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("%s is not a valid URL: %w", name, err)
		}
		if u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", name, raw)
		}
	}

	if cfg.WriteTimeout < 0 {
		return errors.New("WRITE_TIMEOUT must not be negative")
	}
	if cfg.PingInterval < 0 {
		return errors.New("PING_INTERVAL must not be negative")
	}
	if cfg.ShutdownTimeout <= 0 {
		return errors.New("SHUTDOWN_TIMEOUT must be positive")
	}

	positive := map[string]float64{
		"MAX_MESSAGE_SIZE":          float64(cfg.MaxMessageSize),
		"MAX_WEBSOCKET_CONNECTIONS": float64(cfg.MaxWebSocketConnections),
		"MAX_CONNECTIONS_PER_IP":    float64(cfg.MaxConnectionsPerIP),
		"CONNECTION_RATE":           cfg.ConnectionRate,
		"CONNECTION_BURST":          float64(cfg.ConnectionBurst),
	}
	for name, value := range positive {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	return nil
}
