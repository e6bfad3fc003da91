// Package metrics holds the prometheus collectors tree builds report to.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	NodesGrown = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bdtree_nodes_grown_total",
			Help: "Total number of tree nodes grown",
		}, []string{"criterion", "kind"},
	)

	CandidatesEvaluated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bdtree_candidates_evaluated_total",
			Help: "Total number of candidate questions evaluated",
		}, []string{"criterion", "outcome"},
	)

	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bdtree_cache_lookups_total",
			Help: "Total number of partition cache lookups",
		}, []string{"result"},
	)

	BuildDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bdtree_build_duration_seconds",
			Help:    "Duration of tree builds in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 12), // 1ms to ~70min
		}, []string{"criterion", "success"},
	)
)

func init() {
	prometheus.MustRegister(
		NodesGrown,
		CandidatesEvaluated,
		CacheLookups,
		BuildDuration,
	)
}
