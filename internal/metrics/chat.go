package metrics

import "github.com/prometheus/client_golang/prometheus"

// Chat turn, session and audit metrics.
var (
	ChatTurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_turns_total",
			Help:      "Chat turns by persona and outcome",
		},
		[]string{"persona", "outcome"},
	)

	ChatTurnDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chat_turn_duration_seconds",
			Help:      "End-to-end chat turn duration in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60},
		},
		[]string{"persona"},
	)

	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Chat sessions currently held in memory",
		},
	)

	AuditWritesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_log_writes_total",
			Help:      "Chat log entries written successfully",
		},
	)

	AuditFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_log_failures_total",
			Help:      "Chat log entries that could not be written",
		},
		[]string{"reason"}, // "write" / "dropped"
	)
)
