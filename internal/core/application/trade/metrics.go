package trade

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "peertrade",
			Subsystem: "engine",
			Name:      "transitions_total",
			Help:      "Committed trade transitions by event type and actor role.",
		},
		[]string{"event", "actor_role"},
	)

	transitionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "peertrade",
			Subsystem: "engine",
			Name:      "transitions_rejected_total",
			Help:      "Rejected trade transitions by event type and cause.",
		},
		[]string{"event", "cause"},
	)

	escrowCallSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "peertrade",
			Subsystem: "engine",
			Name:      "escrow_call_seconds",
			Help:      "Latency of escrow adapter calls, retries included.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)
