// Package oracle checks derived states against known coordinates and
// computes analytic weight corrections.
//
// Verify is the gate every output must pass before it is considered valid.
// A state that lands away from every known coordinate fails with a
// *core.CoordinateMismatchError so callers can abstain instead of emitting an
// unjustified result.
//
// SolveCorrection computes a damped least-squares update
//
//	e  = target - observed
//	ΔW = outer(e, input) / (||input||² + λ)
//
// which reproduces the target exactly as λ → 0 and shrinks smoothly toward
// zero as the input vanishes.
package oracle

import (
	"math"

	"github.com/sbl8/evolver/core"
)

// Match is the result of locating a state in a Region.
type Match[F core.Float] struct {
	// Token identifies the matched coordinate, if the region has identities.
	Token uint32
	// Coordinate is the nearest recognised coordinate.
	Coordinate core.Vector[F]
	// Distance is the Euclidean distance from the state to Coordinate.
	Distance float64
	// Known is false when the region has no coordinate to offer.
	Known bool
}

// Region supplies the recognised coordinates a state is checked against.
type Region[F core.Float] interface {
	Locate(state core.Vector[F]) Match[F]
}

// Dimensioned is implemented by regions whose coordinates share one
// dimension. Verify rejects states of any other dimension with a
// DimensionMismatch instead of a CoordinateMismatch.
type Dimensioned interface {
	Dim() int
}

// RegionFunc adapts a function to the Region interface.
type RegionFunc[F core.Float] func(state core.Vector[F]) Match[F]

func (f RegionFunc[F]) Locate(state core.Vector[F]) Match[F] { return f(state) }

// Point is a region made of a single expected coordinate.
type Point[F core.Float] struct {
	Token      uint32
	Coordinate core.Vector[F]
}

func (p Point[F]) Dim() int { return p.Coordinate.Len() }

func (p Point[F]) Locate(state core.Vector[F]) Match[F] {
	d, err := core.Distance(state, p.Coordinate)
	if err != nil {
		return Match[F]{}
	}
	return Match[F]{Token: p.Token, Coordinate: p.Coordinate, Distance: d, Known: true}
}

// Verify succeeds iff region knows a coordinate within Euclidean distance eps
// of state. Otherwise it returns a *core.CoordinateMismatchError carrying the
// measured distance and the nearest coordinate when one is known. A state
// whose dimension differs from a Dimensioned region is a DimensionMismatch.
func Verify[F core.Float](state core.Vector[F], region Region[F], eps float64) (Match[F], error) {
	if !state.IsFinite() {
		verifyTotal.WithLabelValues("overflow").Inc()
		return Match[F]{}, &core.OverflowError{Op: "verify"}
	}
	if r, ok := region.(Dimensioned); ok && r.Dim() != state.Len() {
		verifyTotal.WithLabelValues("dimension").Inc()
		return Match[F]{}, core.NewDimensionError("verify state", r.Dim(), state.Len())
	}
	m := region.Locate(state)
	if !m.Known || math.IsNaN(m.Distance) || m.Distance > eps {
		verifyTotal.WithLabelValues("mismatch").Inc()
		err := &core.CoordinateMismatchError{
			Distance:   m.Distance,
			Epsilon:    eps,
			Token:      m.Token,
			HasNearest: m.Known,
		}
		if m.Known {
			err.Nearest = m.Coordinate.Float64s()
		} else {
			err.Distance = math.Inf(1)
		}
		return m, err
	}
	verifyTotal.WithLabelValues("match").Inc()
	verifyDistance.Observe(m.Distance)
	return m, nil
}

// Distance returns the Euclidean distance between two states.
func Distance[F core.Float](a, b core.Vector[F]) (float64, error) {
	return core.Distance(a, b)
}

// Loss returns the squared Euclidean distance between two states.
func Loss[F core.Float](a, b core.Vector[F]) (float64, error) {
	d, err := core.Distance(a, b)
	if err != nil {
		return 0, err
	}
	return d * d, nil
}
