// Package algebra implements the affine tuple and its two operators.
//
// A Tuple represents f(x) = L·x + t over a fixed dimension D. Tuples are
// immutable values, so any number of goroutines may read the same tuple.
//
//   - Compose (time): sequential, non-commutative, associative.
//   - Fold (space): commutative and associative; sums every operand and
//     divides by the count exactly once.
//
// Space folding is carried through Partial values (un-normalized sums plus a
// count) so that nested groups can be merged without losing associativity.
package algebra

import (
	"github.com/sbl8/evolver/core"
)

// Tuple is an affine operator (linear, translation).
type Tuple[F core.Float] struct {
	linear      core.Matrix[F]
	translation core.Vector[F]
}

// New validates the shapes and returns the tuple (linear, translation).
// The linear part must be square and match the translation length.
func New[F core.Float](linear core.Matrix[F], translation core.Vector[F]) (Tuple[F], error) {
	if !linear.IsSquare() {
		return Tuple[F]{}, core.NewDimensionError("linear part must be square", linear.Rows(), linear.Cols())
	}
	if translation.Len() != linear.Rows() {
		return Tuple[F]{}, core.NewDimensionError("translation length", linear.Rows(), translation.Len())
	}
	return Tuple[F]{linear: linear, translation: translation}, nil
}

// FromSlices builds a tuple from a row-major d×d linear part and a length-d
// translation.
func FromSlices[F core.Float](linear, translation []F) (Tuple[F], error) {
	d := len(translation)
	m, err := core.NewMatrix(d, d, linear)
	if err != nil {
		return Tuple[F]{}, err
	}
	return New(m, core.NewVector(translation...))
}

// Identity returns (I, 0), the neutral element of Compose.
func Identity[F core.Float](d int) Tuple[F] {
	return Tuple[F]{linear: core.IdentityMatrix[F](d), translation: core.Zeros[F](d)}
}

// Embedding returns the pure state embedding (I, v).
func Embedding[F core.Float](v core.Vector[F]) Tuple[F] {
	return Tuple[F]{linear: core.IdentityMatrix[F](v.Len()), translation: v}
}

func (t Tuple[F]) Dim() int                    { return t.translation.Len() }
func (t Tuple[F]) Linear() core.Matrix[F]      { return t.linear }
func (t Tuple[F]) Translation() core.Vector[F] { return t.translation }

// IsFinite reports whether both components are free of NaN and Inf.
func (t Tuple[F]) IsFinite() bool {
	return t.linear.IsFinite() && t.translation.IsFinite()
}

// Apply evaluates L·state + t.
func (t Tuple[F]) Apply(state core.Vector[F]) (core.Vector[F], error) {
	if state.Len() != t.Dim() {
		return core.Vector[F]{}, core.NewDimensionError("apply state", t.Dim(), state.Len())
	}
	lx, err := t.linear.MulVec(state)
	if err != nil {
		return core.Vector[F]{}, err
	}
	out, err := lx.Add(t.translation)
	if err != nil {
		return core.Vector[F]{}, err
	}
	if !out.IsFinite() {
		return core.Vector[F]{}, &core.OverflowError{Op: "apply"}
	}
	return out, nil
}

// Compose returns the tuple "apply t, then later".
func (t Tuple[F]) Compose(later Tuple[F]) (Tuple[F], error) {
	return Compose(t, later)
}

// FoldPair returns the un-normalized two-element group {t, other}.
func (t Tuple[F]) FoldPair(other Tuple[F]) (Partial[F], error) {
	return FoldPartial(t, other)
}

// Equal reports whether both components agree within tol.
func (t Tuple[F]) Equal(other Tuple[F], tol float64) bool {
	return t.linear.Equal(other.linear, tol) && t.translation.Equal(other.translation, tol)
}
