// Package core provides the value primitives of the affine engine.
//
// Vector and Matrix are immutable: their backing arrays are unexported, every
// constructor copies its input and every accessor that hands out a slice hands
// out a copy. Values can therefore be shared freely between goroutines without
// locking.
//
// The package also defines the five error kinds reported by the engine:
//   - DimensionMismatch: operands of different dimension (construction time)
//   - EmptyFold: a fold over zero elements
//   - CoordinateMismatch: a state outside every recognised coordinate
//   - SingularInput: degenerate input to the analytic solver
//   - NumericOverflow: NaN or Inf produced by an operation
package core

import (
	"math"

	"github.com/sbl8/evolver/kernels"
)

// Float is the element type constraint shared by all engine values.
type Float = kernels.Float

// Vector is an immutable point or displacement in a D-dimensional space.
type Vector[F Float] struct {
	data []F
}

// NewVector copies values into a new Vector.
func NewVector[F Float](values ...F) Vector[F] {
	data := make([]F, len(values))
	copy(data, values)
	return Vector[F]{data: data}
}

// Zeros returns the origin of a d-dimensional space.
func Zeros[F Float](d int) Vector[F] {
	return Vector[F]{data: make([]F, d)}
}

// Len returns the dimension of v.
func (v Vector[F]) Len() int { return len(v.data) }

// At returns the i-th component.
func (v Vector[F]) At(i int) F { return v.data[i] }

// Values returns a copy of the components.
func (v Vector[F]) Values() []F {
	out := make([]F, len(v.data))
	copy(out, v.data)
	return out
}

// Float64s returns the components widened to float64.
func (v Vector[F]) Float64s() []float64 {
	out := make([]float64, len(v.data))
	for i, x := range v.data {
		out[i] = float64(x)
	}
	return out
}

// AddTo accumulates v into dst without modifying v.
func (v Vector[F]) AddTo(dst []F) {
	kernels.AddInPlace(dst, v.data)
}

// Add returns v + u.
func (v Vector[F]) Add(u Vector[F]) (Vector[F], error) {
	if len(v.data) != len(u.data) {
		return Vector[F]{}, NewDimensionError("vector add", len(v.data), len(u.data))
	}
	return Vector[F]{data: kernels.Add(v.data, u.data)}, nil
}

// Sub returns v - u.
func (v Vector[F]) Sub(u Vector[F]) (Vector[F], error) {
	if len(v.data) != len(u.data) {
		return Vector[F]{}, NewDimensionError("vector sub", len(v.data), len(u.data))
	}
	return Vector[F]{data: kernels.Sub(v.data, u.data)}, nil
}

// Scale returns s·v.
func (v Vector[F]) Scale(s F) Vector[F] {
	return Vector[F]{data: kernels.Scale(v.data, s)}
}

// Dot returns the inner product of v and u.
func (v Vector[F]) Dot(u Vector[F]) (F, error) {
	if len(v.data) != len(u.data) {
		return 0, NewDimensionError("vector dot", len(v.data), len(u.data))
	}
	return kernels.Dot(v.data, u.data), nil
}

// NormSquared returns ||v||².
func (v Vector[F]) NormSquared() F {
	return kernels.SumSquares(v.data)
}

// Norm returns the Euclidean length of v.
func (v Vector[F]) Norm() float64 {
	return math.Sqrt(float64(v.NormSquared()))
}

// IsFinite reports whether every component is finite.
func (v Vector[F]) IsFinite() bool {
	return kernels.AllFinite(v.data)
}

// Equal reports whether v and u have the same dimension and every component
// differs by at most tol.
func (v Vector[F]) Equal(u Vector[F], tol float64) bool {
	if len(v.data) != len(u.data) {
		return false
	}
	for i := range v.data {
		if math.Abs(float64(v.data[i])-float64(u.data[i])) > tol {
			return false
		}
	}
	return true
}

// Distance returns the Euclidean distance between v and u.
func Distance[F Float](v, u Vector[F]) (float64, error) {
	if len(v.data) != len(u.data) {
		return 0, NewDimensionError("distance", len(v.data), len(u.data))
	}
	var sum float64
	for i := range v.data {
		d := float64(v.data[i]) - float64(u.data[i])
		sum += d * d
	}
	return math.Sqrt(sum), nil
}
