package oracle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// verifyTotal counts consistency verdicts (match, mismatch, dimension, overflow).
	verifyTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evolver_oracle_verify_total",
		Help: "Total consistency checks by verdict",
	}, []string{"verdict"})

	// verifyDistance tracks the distance of accepted states to their coordinate.
	verifyDistance = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "evolver_oracle_verify_distance",
		Help:    "Distance from accepted states to the matched coordinate",
		Buckets: prometheus.ExponentialBuckets(1e-8, 10, 8),
	})

	// solveTotal counts solver outcomes (ok, singular, overflow).
	solveTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evolver_oracle_solve_total",
		Help: "Total analytic corrections by outcome",
	}, []string{"outcome"})

	correctionNorm = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "evolver_oracle_correction_norm",
		Help:    "Frobenius norm of computed corrections",
		Buckets: prometheus.ExponentialBuckets(1e-6, 10, 9),
	})
)
