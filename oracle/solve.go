package oracle

import (
	"math"

	"github.com/sbl8/evolver/algebra"
	"github.com/sbl8/evolver/core"
)

// Correction is an additive update to a linear part.
type Correction[F core.Float] struct {
	// Delta is outer(Error, input) / Denom.
	Delta core.Matrix[F]
	// Error is target - observed.
	Error core.Vector[F]
	// Denom is ||input||² + λ.
	Denom float64
}

// SolveCorrection computes the damped least-squares correction that moves
// observed toward target for the given input.
//
// lambda must be non-negative. A negative or NaN lambda, or a zero input with
// zero damping, is reported as SingularInput so the caller can fall back to
// gradient descent.
func SolveCorrection[F core.Float](input, observed, target core.Vector[F], lambda F) (Correction[F], error) {
	if observed.Len() != target.Len() {
		return Correction[F]{}, core.NewDimensionError("observed/target", target.Len(), observed.Len())
	}
	if input.Len() == 0 || target.Len() == 0 || input.Len() != target.Len() {
		return Correction[F]{}, core.NewDimensionError("solver input", target.Len(), input.Len())
	}
	l := float64(lambda)
	if math.IsNaN(l) || l < 0 {
		solveTotal.WithLabelValues("singular").Inc()
		return Correction[F]{}, &core.SingularError{Reason: "damping must be a non-negative number"}
	}
	if !input.IsFinite() || !observed.IsFinite() || !target.IsFinite() {
		solveTotal.WithLabelValues("overflow").Inc()
		return Correction[F]{}, &core.OverflowError{Op: "solve correction"}
	}

	denom := input.NormSquared() + lambda
	if denom == 0 {
		solveTotal.WithLabelValues("singular").Inc()
		return Correction[F]{}, &core.SingularError{Reason: "zero input with zero damping"}
	}
	e, err := target.Sub(observed)
	if err != nil {
		return Correction[F]{}, err
	}
	delta := core.OuterProduct(e, input, 1/denom)
	if !delta.IsFinite() {
		solveTotal.WithLabelValues("overflow").Inc()
		return Correction[F]{}, &core.OverflowError{Op: "solve correction"}
	}

	solveTotal.WithLabelValues("ok").Inc()
	correctionNorm.Observe(delta.FrobeniusNorm())
	return Correction[F]{Delta: delta, Error: e, Denom: float64(denom)}, nil
}

// ApplyCorrection returns t with c.Delta added to its linear part.
func ApplyCorrection[F core.Float](t algebra.Tuple[F], c Correction[F]) (algebra.Tuple[F], error) {
	linear, err := t.Linear().Add(c.Delta)
	if err != nil {
		return algebra.Tuple[F]{}, err
	}
	if !linear.IsFinite() {
		return algebra.Tuple[F]{}, &core.OverflowError{Op: "apply correction"}
	}
	return algebra.New(linear, t.Translation())
}
