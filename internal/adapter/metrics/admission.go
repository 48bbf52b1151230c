package metrics

import "github.com/prometheus/client_golang/prometheus"

// AdmissionMetrics tracks WebSocket upgrade attempts before they reach the relay.
type AdmissionMetrics struct {
	Attempts *prometheus.CounterVec
	Rejected *prometheus.CounterVec
	Capacity prometheus.Gauge
}

// NewAdmissionMetrics creates and registers admission metrics on the given registry.
func NewAdmissionMetrics(reg prometheus.Registerer) *AdmissionMetrics {
	m := &AdmissionMetrics{
		Attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "admission",
			Name:      "attempts_total",
			Help:      "Upgrade attempts by result (success/error/rejected).",
		}, []string{"result"}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "admission",
			Name:      "rejected_total",
			Help:      "Upgrade attempts rejected by reason (rate_limit/per_ip_limit/global_limit/origin).",
		}, []string{"reason"}),
		Capacity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "admission",
			Name:      "capacity_percent",
			Help:      "Share of the global connection cap in use (0-100).",
		}),
	}

	reg.MustRegister(m.Attempts, m.Rejected, m.Capacity)
	return m
}
