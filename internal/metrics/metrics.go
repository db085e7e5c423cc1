// Package metrics holds the Prometheus instruments shared by the builder,
// the queue and the property sync. Collectors register with the default
// registry, so serving promhttp.Handler() exposes them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "agentsites"

var (
	BuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "builds_total",
			Help:      "Builds that reached a terminal state, by result.",
		}, []string{"result"})

	BuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Wall time from claim to terminal state.",
			Buckets:   []float64{5, 15, 30, 60, 120, 180, 300, 600},
		})

	BuildsEnqueuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "builds_enqueued_total",
			Help:      "Build requests written to the queue, by priority.",
		}, []string{"priority"})

	BuildsSuppressedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "builds_suppressed_total",
			Help:      "Enqueue attempts dropped by the duplicate window.",
		})

	PropertySyncEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "property_sync_events_total",
			Help:      "Listing events handled, by action and outcome.",
		}, []string{"action", "outcome"})
)

func init() {
	prometheus.MustRegister(
		BuildsTotal,
		BuildDuration,
		BuildsEnqueuedTotal,
		BuildsSuppressedTotal,
		PropertySyncEventsTotal,
	)
}
