package agent

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pontual"

var (
	queuePending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "queue_pending",
			Help:      "Number of punches waiting in the offline queue",
		},
	)

	drainCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "drain_cycles_total",
			Help:      "Drain cycles by trigger",
		},
		[]string{"trigger"},
	)

	itemsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "items_total",
			Help:      "Queued punches by drain outcome",
		},
		[]string{"outcome"},
	)

	itemsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "items_evicted_total",
			Help:      "Queued punches evicted because the store was at capacity",
		},
	)
)

func recordDrain(trigger string, processed, failed int) {
	drainCycles.WithLabelValues(trigger).Inc()
	itemsProcessed.WithLabelValues("processed").Add(float64(processed))
	itemsProcessed.WithLabelValues("failed").Add(float64(failed))
}
