package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HandshakeResults records realtime handshake outcomes by result (accepted|no_token|rate_limited|invalid_token|expired_token|user_not_found|error).
	HandshakeResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinic_realtime_handshakes_total",
			Help: "Total number of realtime handshake attempts by result",
		},
		[]string{"result"},
	)

	// ActiveSessions tracks live realtime sessions.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clinic_realtime_active_sessions",
			Help: "Number of connected realtime sessions",
		},
	)

	// Deliveries counts frames enqueued to sessions, labelled by channel kind.
	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinic_realtime_deliveries_total",
			Help: "Frames enqueued for delivery by channel kind",
		},
		[]string{"kind"},
	)

	SlowConsumers = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clinic_realtime_slow_consumers_total",
			Help: "Sessions disconnected because their send buffer was full",
		},
	)

	// AckReceipts counts client acknowledgments by sink result (ok|error).
	AckReceipts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinic_ack_receipts_total",
			Help: "Acknowledgment receipts handed to the ack sink",
		},
		[]string{"result"},
	)

	// SubscriptionChecks counts ad hoc subscribe decisions (allow|deny).
	SubscriptionChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinic_realtime_subscription_checks_total",
			Help: "Ad hoc channel subscription decisions",
		},
		[]string{"result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clinic_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

var (
	// MaintenanceRuns counts maintenance job executions by job and result.
	MaintenanceRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinic_maintenance_runs_total",
			Help: "Maintenance job executions by result",
		},
		[]string{"job", "result"},
	)

	MaintenanceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clinic_maintenance_duration_seconds",
			Help:    "Maintenance job run time",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)
)
