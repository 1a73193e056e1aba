package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "alan",
			Subsystem: "notify",
			Name:      "runs_total",
			Help:      "Notification runs by terminal outcome.",
		},
		[]string{"outcome"},
	)
	sendsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "alan",
			Subsystem: "notify",
			Name:      "sends_total",
			Help:      "Per-recipient send attempts by status.",
		},
		[]string{"status"}, // ok | failed
	)
	runDurationHist = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "alan",
			Subsystem: "notify",
			Name:      "run_duration_seconds",
			Help:      "Duration of a full notification run.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)
