package tree

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Traversal metrics
var (
	traversalDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "referral_tree_traversal_duration_seconds",
		Help:    "Time to load a subtree or answer a membership query",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"op"})

	traversalNodes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "referral_tree_traversal_nodes",
		Help:    "Nodes visited per traversal",
		Buckets: []float64{1, 10, 100, 1000, 10000, 100000},
	}, []string{"op"})

	traversalRounds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "referral_tree_traversal_rounds",
		Help:    "Batched storage round-trips per traversal",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 1000},
	}, []string{"op"})

	anomaliesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "referral_tree_anomalies_total",
		Help: "Edges skipped because of data integrity anomalies",
	}, []string{"kind"})

	limitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "referral_tree_limit_rejections_total",
		Help: "Traversals rejected for exceeding node or depth limits",
	}, []string{"op", "limit"})
)
