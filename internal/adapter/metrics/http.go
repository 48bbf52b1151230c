package metrics

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

// unmatchedRoute labels requests that hit no registered route, keeping the
// route label bounded.
const unmatchedRoute = "unmatched"

// HTTPMetrics tracks short-lived HTTP requests. Upgrades are excluded; the
// relay metrics cover connections once admitted.
type HTTPMetrics struct {
	RequestDuration *prometheus.HistogramVec
	RequestsTotal   *prometheus.CounterVec
	InFlightGauge   prometheus.Gauge
}

// NewHTTPMetrics creates and registers HTTP metrics on the given registry.
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of non-upgrade HTTP requests in seconds.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1},
		}, []string{"method", "route", "status_code"}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Non-upgrade HTTP requests by method, route and status.",
		}, []string{"method", "route", "status_code"}),
		InFlightGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Non-upgrade HTTP requests currently being served.",
		}),
	}

	reg.MustRegister(m.RequestDuration, m.RequestsTotal, m.InFlightGauge)
	return m
}

// Middleware records every request except /metrics, /health/* and the
// long-lived upgrade route.
func (m *HTTPMetrics) Middleware(upgradePath string) echo.MiddlewareFunc {
	skip := func(route string) bool {
		return route == "/metrics" || route == upgradePath || strings.HasPrefix(route, "/health/")
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			route := c.Path()
			if skip(route) {
				return next(c)
			}
			if route == "" {
				route = unmatchedRoute
			}

			m.InFlightGauge.Inc()
			defer m.InFlightGauge.Dec()

			timer := prometheus.NewTimer(prometheus.ObserverFunc(func(v float64) {
				labels := []string{c.Request().Method, route, strconv.Itoa(c.Response().Status)}
				m.RequestDuration.WithLabelValues(labels...).Observe(v)
				m.RequestsTotal.WithLabelValues(labels...).Inc()
			}))

			err := next(c)
			timer.ObserveDuration()
			return err
		}
	}
}
