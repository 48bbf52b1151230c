package metrics

import "github.com/prometheus/client_golang/prometheus"

// RelayMetrics holds Prometheus metrics for the connection registry and fan-out.
type RelayMetrics struct {
	ActiveConnections  prometheus.Gauge
	ConnectionsTotal   prometheus.Counter
	ConnectionDuration prometheus.Histogram
	FramesReceived     *prometheus.CounterVec
	Deliveries         *prometheus.CounterVec
	DroppedDeliveries  prometheus.Counter
	DecodeErrors       prometheus.Counter
	StreamLinksIssued  prometheus.Counter
	WriteDuration      prometheus.Histogram
}

// NewRelayMetrics creates and registers relay metrics on the given registry.
func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	m := &RelayMetrics{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "active_connections",
			Help:      "Number of connections currently in the registry.",
		}),
		ConnectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "connections_total",
			Help:      "Total number of admitted connections.",
		}),
		ConnectionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "connection_duration_seconds",
			Help:      "Lifetime of connections from admission to teardown.",
			Buckets:   []float64{1, 10, 60, 300, 900, 1800, 3600, 7200},
		}),
		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "frames_received_total",
			Help:      "Inbound frames by message kind (binary frames use kind \"binary\").",
		}, []string{"kind"}),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "deliveries_total",
			Help:      "Frames enqueued for a recipient, by message kind.",
		}, []string{"kind"}),
		DroppedDeliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "dropped_deliveries_total",
			Help:      "Frames not enqueued because the recipient's forwarder had exited.",
		}),
		DecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "decode_errors_total",
			Help:      "Text frames dropped because they were not a valid message.",
		}),
		StreamLinksIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "stream_links_issued_total",
			Help:      "Stream links generated in reply to GenerateStream requests.",
		}),
		WriteDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "write_duration_seconds",
			Help:      "Time spent writing one frame to a connection.",
			Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .5, 1, 5},
		}),
	}

	reg.MustRegister(
		m.ActiveConnections,
		m.ConnectionsTotal,
		m.ConnectionDuration,
		m.FramesReceived,
		m.Deliveries,
		m.DroppedDeliveries,
		m.DecodeErrors,
		m.StreamLinksIssued,
		m.WriteDuration,
	)
	return m
}
