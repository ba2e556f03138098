// Package metrics provides Prometheus metrics for timeline-service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "timeline"

var (
	// StateTransitions counts feed state changes by screen and resulting state.
	StateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Total number of feed state transitions",
		},
		[]string{"screen", "state"},
	)

	// FetchDuration measures transport fetches issued by feeds.
	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of page fetches in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"screen", "operation"},
	)

	// TransientFailures counts failures surfaced without a state transition.
	TransientFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transient_failures_total",
			Help:      "Total number of transient failures surfaced to screens",
		},
		[]string{"screen", "operation"},
	)

	// ReconciledEvents counts events folded into held pages.
	ReconciledEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciled_events_total",
			Help:      "Total number of events applied to held pages",
		},
		[]string{"screen", "kind"},
	)

	// Rollbacks counts optimistic updates undone after a failed mutation.
	Rollbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rollbacks_total",
			Help:      "Total number of optimistic updates rolled back",
		},
		[]string{"action"},
	)

	// BridgeMessages counts events moved across process boundaries.
	BridgeMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bridge_messages_total",
			Help:      "Total number of events sent or received by bridges",
		},
		[]string{"bridge", "direction", "status"},
	)
)

func RecordTransition(screen, state string) {
	StateTransitions.WithLabelValues(screen, state).Inc()
}

func RecordFetch(screen, operation string, seconds float64) {
	FetchDuration.WithLabelValues(screen, operation).Observe(seconds)
}

func RecordTransient(screen, operation string) {
	TransientFailures.WithLabelValues(screen, operation).Inc()
}

func RecordReconciled(screen, kind string) {
	ReconciledEvents.WithLabelValues(screen, kind).Inc()
}

func RecordRollback(action string) {
	Rollbacks.WithLabelValues(action).Inc()
}

func RecordBridge(bridge, direction, status string) {
	BridgeMessages.WithLabelValues(bridge, direction, status).Inc()
}
