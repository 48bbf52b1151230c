package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "relay"

// Metrics bundles every subsystem's collectors on one private registry.
type Metrics struct {
	Registry  *prometheus.Registry
	Relay     *RelayMetrics
	Admission *AdmissionMetrics
	HTTP      *HTTPMetrics
}

// New creates a registry with the Go and process collectors and registers
// the relay, admission and HTTP metrics on it.
func New() *Metrics {
	reg := NewRegistry()
	return &Metrics{
		Registry:  reg,
		Relay:     NewRelayMetrics(reg),
		Admission: NewAdmissionMetrics(reg),
		HTTP:      NewHTTPMetrics(reg),
	}
}

// Handler serves the bundled registry.
func (m *Metrics) Handler() http.Handler {
	return Handler(m.Registry)
}

// NewRegistry creates a Prometheus registry with Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler returns an http.Handler that serves Prometheus metrics.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
