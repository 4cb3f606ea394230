package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Request outcome label values.
const (
	outcomeCompleted = "completed"
	outcomeCancelled = "cancelled"
	outcomeFailed    = "failed"
	outcomeRejected  = "rejected"
)

// metrics holds the server's Prometheus instruments.
type metrics struct {
	activeConnections  prometheus.Gauge
	requests           *prometheus.CounterVec
	fragments          prometheus.Counter
	compactionFailures prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		activeConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "wirechat_active_connections",
			Help: "Open client connections.",
		}),
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wirechat_requests_total",
			Help: "Client requests by outcome.",
		}, []string{"outcome"}),
		fragments: factory.NewCounter(prometheus.CounterOpts{
			Name: "wirechat_fragments_total",
			Help: "Text fragments forwarded to clients.",
		}),
		compactionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "wirechat_compaction_failures_total",
			Help: "Non-fatal memory compaction failures.",
		}),
	}
}
