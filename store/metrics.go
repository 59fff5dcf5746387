package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	storeOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evolver_store_operations_total",
		Help: "Layer store operations by backend, operation and result",
	}, []string{"backend", "op", "result"})

	storeBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "evolver_store_layer_bytes",
		Help:    "Encoded size of saved layers",
		Buckets: prometheus.ExponentialBuckets(64, 4, 10),
	})
)
