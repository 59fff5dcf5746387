package train

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evolver_train_steps_total",
		Help: "Training steps by update mode",
	}, []string{"mode"})

	finalLoss = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "evolver_train_final_loss",
		Help:    "Squared error after a training step",
		Buckets: prometheus.ExponentialBuckets(1e-12, 10, 14),
	})

	lipschitzWarnings = promauto.NewCounter(prometheus.CounterOpts{
		Name: "evolver_train_lipschitz_exceeded_total",
		Help: "Steps that left the linear part above the Lipschitz bound",
	})
)
