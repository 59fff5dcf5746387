package runtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// evaluationDuration tracks successful graph evaluation latency
	evaluationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "evolver_evaluation_duration_seconds",
		Help:    "Graph evaluation duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.00001, 2, 16), // 10µs to ~330ms
	})

	// evaluationsTotal counts evaluations by result ("ok" or the error kind)
	evaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evolver_evaluations_total",
		Help: "Total graph evaluations by result",
	}, []string{"result"})

	nodeOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evolver_node_ops_total",
		Help: "Total evaluated nodes by operator",
	}, []string{"op"})

	embedDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "evolver_embed_duration_seconds",
		Help:    "Leaf embedding duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.00001, 2, 16),
	})
)
