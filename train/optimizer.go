package train

import (
	"github.com/sbl8/evolver/core"
)

// Optimizer performs plain gradient descent.
type Optimizer[F core.Float] struct {
	LearningRate F
}

// ApplyGradient returns w - lr·grad.
func (o Optimizer[F]) ApplyGradient(w, grad core.Matrix[F]) (core.Matrix[F], error) {
	next, err := w.Add(grad.Scale(-o.LearningRate))
	if err != nil {
		return core.Matrix[F]{}, err
	}
	if !next.IsFinite() {
		return core.Matrix[F]{}, &core.OverflowError{Op: "gradient step"}
	}
	return next, nil
}

// ApplyBiasGradient returns b - lr·grad.
func (o Optimizer[F]) ApplyBiasGradient(b, grad core.Vector[F]) (core.Vector[F], error) {
	next, err := b.Add(grad.Scale(-o.LearningRate))
	if err != nil {
		return core.Vector[F]{}, err
	}
	if !next.IsFinite() {
		return core.Vector[F]{}, &core.OverflowError{Op: "bias gradient step"}
	}
	return next, nil
}

// Gradient returns the gradient of ½‖W·input + b - target‖² with respect to
// W, which is (observed - target)·inputᵀ.
func Gradient[F core.Float](input, observed, target core.Vector[F]) (core.Matrix[F], error) {
	diff, err := observed.Sub(target)
	if err != nil {
		return core.Matrix[F]{}, err
	}
	return core.OuterProduct(diff, input, 1), nil
}

// BiasGradient returns the gradient of ½‖W·input + b - target‖² with respect
// to b, which is observed - target.
func BiasGradient[F core.Float](observed, target core.Vector[F]) (core.Vector[F], error) {
	return observed.Sub(target)
}
