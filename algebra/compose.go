package algebra

import (
	"github.com/sbl8/evolver/core"
	"github.com/sbl8/evolver/kernels"
)

// Compose combines first (earlier) and second (later):
//
//	L = second.L · first.L
//	t = second.L · first.t + second.t
//
// A result containing NaN or Inf is reported as NumericOverflow.
func Compose[F core.Float](first, second Tuple[F]) (Tuple[F], error) {
	d := first.Dim()
	if second.Dim() != d {
		return Tuple[F]{}, core.NewDimensionError("compose", d, second.Dim())
	}
	l2 := second.linear.Values()
	linear := kernels.MatMul(l2, d, d, first.linear.Values(), d)
	translation := second.translation.Values()
	kernels.Gemv(1, l2, d, d, first.translation.Values(), 1, translation)

	if !kernels.AllFinite(linear) || !kernels.AllFinite(translation) {
		return Tuple[F]{}, &core.OverflowError{Op: "compose"}
	}
	m, err := core.NewMatrix(d, d, linear)
	if err != nil {
		return Tuple[F]{}, err
	}
	return Tuple[F]{linear: m, translation: core.NewVector(translation...)}, nil
}

// ComposeAll left-folds seq in temporal order. It calls Compose for every
// step, so ComposeAll(a, b, c) is bit-identical to
// Compose(Compose(a, b), c). A single tuple is returned unchanged.
func ComposeAll[F core.Float](seq ...Tuple[F]) (Tuple[F], error) {
	if len(seq) == 0 {
		return Tuple[F]{}, &core.EmptyFoldError{Stage: "time composition"}
	}
	acc := seq[0]
	for _, next := range seq[1:] {
		var err error
		if acc, err = Compose(acc, next); err != nil {
			return Tuple[F]{}, err
		}
	}
	return acc, nil
}
