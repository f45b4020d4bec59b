package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activeTimers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "peertrade",
			Subsystem: "scheduler",
			Name:      "active_timers",
			Help:      "Number of armed deadline timers.",
		},
	)

	expiriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "peertrade",
			Subsystem: "scheduler",
			Name:      "expiries_total",
			Help:      "Applied deadline expiries by reason.",
		},
		[]string{"reason"},
	)
)
