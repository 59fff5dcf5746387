package algebra

import (
	"github.com/sbl8/evolver/core"
	"github.com/sbl8/evolver/kernels"
)

// Partial is an immutable, un-normalized space group: the element-wise sums
// of the members' linear and translation parts together with their count.
//
// The zero Partial is the empty group and is neutral under Merge.
type Partial[F core.Float] struct {
	dim         int
	count       int
	linear      []F
	translation []F
}

// Count returns the number of tuples summed into p.
func (p Partial[F]) Count() int { return p.count }

// Dim returns the dimension of the members, or 0 for the empty group.
func (p Partial[F]) Dim() int { return p.dim }

// IsEmpty reports whether p holds no tuples.
func (p Partial[F]) IsEmpty() bool { return p.count == 0 }

// Sums returns copies of the accumulated linear and translation sums.
func (p Partial[F]) Sums() (linear, translation []F) {
	linear = make([]F, len(p.linear))
	copy(linear, p.linear)
	translation = make([]F, len(p.translation))
	copy(translation, p.translation)
	return linear, translation
}

// Finalize divides the sums by the count and returns the folded tuple.
func (p Partial[F]) Finalize() (Tuple[F], error) {
	if p.count == 0 {
		return Tuple[F]{}, &core.EmptyFoldError{Stage: "space fold"}
	}
	inv := 1 / F(p.count)
	linear := p.linear
	translation := p.translation
	if p.count > 1 {
		linear = kernels.Scale(p.linear, inv)
		translation = kernels.Scale(p.translation, inv)
	}
	if !kernels.AllFinite(linear) || !kernels.AllFinite(translation) {
		return Tuple[F]{}, &core.OverflowError{Op: "space fold"}
	}
	m, err := core.NewMatrix(p.dim, p.dim, linear)
	if err != nil {
		return Tuple[F]{}, err
	}
	return Tuple[F]{linear: m, translation: core.NewVector(translation...)}, nil
}

// Accumulator collects tuples into running sums. It has exactly one owner:
// it is not safe for concurrent use and should not outlive the fold that
// created it. Hand results to other goroutines through Snapshot or Finalize.
type Accumulator[F core.Float] struct {
	dim         int
	count       int
	linear      []F
	translation []F
}

// NewAccumulator returns an empty accumulator for dimension d.
func NewAccumulator[F core.Float](d int) *Accumulator[F] {
	return &Accumulator[F]{
		dim:         d,
		linear:      make([]F, d*d),
		translation: make([]F, d),
	}
}

// Count returns the number of tuples added so far.
func (a *Accumulator[F]) Count() int { return a.count }

// Add sums t into the accumulator.
func (a *Accumulator[F]) Add(t Tuple[F]) error {
	if t.Dim() != a.dim {
		return core.NewDimensionError("space fold", a.dim, t.Dim())
	}
	t.linear.AddTo(a.linear)
	t.translation.AddTo(a.translation)
	a.count++
	return nil
}

// AddPartial merges a group into the accumulator. Empty groups are ignored.
func (a *Accumulator[F]) AddPartial(p Partial[F]) error {
	if p.count == 0 {
		return nil
	}
	if p.dim != a.dim {
		return core.NewDimensionError("space merge", a.dim, p.dim)
	}
	kernels.AddInPlace(a.linear, p.linear)
	kernels.AddInPlace(a.translation, p.translation)
	a.count += p.count
	return nil
}

// Snapshot returns the current sums as an immutable Partial.
func (a *Accumulator[F]) Snapshot() Partial[F] {
	if a.count == 0 {
		return Partial[F]{}
	}
	p := Partial[F]{
		dim:         a.dim,
		count:       a.count,
		linear:      make([]F, len(a.linear)),
		translation: make([]F, len(a.translation)),
	}
	copy(p.linear, a.linear)
	copy(p.translation, a.translation)
	return p
}

// Finalize normalizes the sums once and returns the folded tuple.
func (a *Accumulator[F]) Finalize() (Tuple[F], error) {
	return a.Snapshot().Finalize()
}

// FoldPartial sums tuples into a Partial without normalizing. No tuples
// yields the empty group.
func FoldPartial[F core.Float](tuples ...Tuple[F]) (Partial[F], error) {
	if len(tuples) == 0 {
		return Partial[F]{}, nil
	}
	acc := NewAccumulator[F](tuples[0].Dim())
	for _, t := range tuples {
		if err := acc.Add(t); err != nil {
			return Partial[F]{}, err
		}
	}
	return acc.Snapshot(), nil
}

// Merge sums groups. Merge is commutative and associative up to floating
// point rounding, and the empty group is its neutral element.
func Merge[F core.Float](parts ...Partial[F]) (Partial[F], error) {
	dim := -1
	for _, p := range parts {
		if p.count > 0 {
			dim = p.dim
			break
		}
	}
	if dim < 0 {
		return Partial[F]{}, nil
	}
	acc := NewAccumulator[F](dim)
	for _, p := range parts {
		if err := acc.AddPartial(p); err != nil {
			return Partial[F]{}, err
		}
	}
	return acc.Snapshot(), nil
}

// Fold merges tuples representing independent parallel context:
//
//	fold(tuples) = (Σ L_i, Σ t_i) / count
//
// Zero tuples is an EmptyFold error and a single tuple is returned as is.
func Fold[F core.Float](tuples ...Tuple[F]) (Tuple[F], error) {
	switch len(tuples) {
	case 0:
		return Tuple[F]{}, &core.EmptyFoldError{Stage: "space fold"}
	case 1:
		return tuples[0], nil
	}
	p, err := FoldPartial(tuples...)
	if err != nil {
		return Tuple[F]{}, err
	}
	return p.Finalize()
}
