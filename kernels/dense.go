// Package kernels provides the dense numeric operations behind the affine algebra.
//
// Every kernel works on flat row-major slices of a single floating type and is
// generic over float32 and float64. Kernels never retain their inputs and either
// return a freshly allocated result or write into a destination owned by the
// caller, which keeps higher layers free to treat their values as immutable.
//
// Available operations:
//   - Element-wise: Add, Sub, Scale, AddInPlace, Axpy
//   - Reductions: Dot, SumSquares, AllFinite
//   - Linear algebra: MatMul, MatVec, Gemv, Outer, Identity
//
// Summation order inside each kernel is fixed (ascending index), so identical
// inputs always produce bit-identical outputs.
package kernels

import "math"

// Float is the set of floating types the engine can be instantiated with.
type Float interface {
	~float32 | ~float64
}

// Identity returns a d×d identity matrix in row-major order.
func Identity[F Float](d int) []F {
	out := make([]F, d*d)
	for i := 0; i < d; i++ {
		out[i*d+i] = 1
	}
	return out
}

// Add returns a + b.
func Add[F Float](a, b []F) []F {
	if len(a) != len(b) {
		panic("vector length mismatch")
	}
	out := make([]F, len(a))
	for i := range a {
		out[i] = a[i] + b[i]
	}
	return out
}

// Sub returns a - b.
func Sub[F Float](a, b []F) []F {
	if len(a) != len(b) {
		panic("vector length mismatch")
	}
	out := make([]F, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}

// Scale returns s·a.
func Scale[F Float](a []F, s F) []F {
	out := make([]F, len(a))
	for i := range a {
		out[i] = a[i] * s
	}
	return out
}

// AddInPlace performs dst += src.
func AddInPlace[F Float](dst, src []F) {
	if len(dst) != len(src) {
		panic("vector length mismatch")
	}
	for i := range src {
		dst[i] += src[i]
	}
}

// Axpy performs y = alpha*x + y.
func Axpy[F Float](alpha F, x, y []F) {
	if len(x) != len(y) {
		panic("vector length mismatch")
	}
	for i := range x {
		y[i] = alpha*x[i] + y[i]
	}
}

// Dot returns the inner product of a and b.
func Dot[F Float](a, b []F) F {
	if len(a) != len(b) {
		panic("vector length mismatch")
	}
	var sum F
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// SumSquares returns ||a||².
func SumSquares[F Float](a []F) F {
	var sum F
	for _, v := range a {
		sum += v * v
	}
	return sum
}

// AllFinite reports whether no element is NaN or ±Inf.
func AllFinite[F Float](a []F) bool {
	for _, v := range a {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// MatMul returns the aRows×bCols product of a (aRows×aCols) and b (aCols×bCols).
func MatMul[F Float](a []F, aRows, aCols int, b []F, bCols int) []F {
	if len(a) < aRows*aCols || len(b) < aCols*bCols {
		panic("matrix data insufficient")
	}
	out := make([]F, aRows*bCols)
	for i := 0; i < aRows; i++ {
		row := a[i*aCols : (i+1)*aCols]
		for j := 0; j < bCols; j++ {
			var sum F
			for k := 0; k < aCols; k++ {
				sum += row[k] * b[k*bCols+j]
			}
			out[i*bCols+j] = sum
		}
	}
	return out
}

// MatVec returns a·x for a rows×cols matrix.
func MatVec[F Float](a []F, rows, cols int, x []F) []F {
	y := make([]F, rows)
	Gemv(1, a, rows, cols, x, 0, y)
	return y
}

// Gemv performs y = alpha*A*x + beta*y.
func Gemv[F Float](alpha F, a []F, rows, cols int, x []F, beta F, y []F) {
	if len(a) < rows*cols {
		panic("matrix data insufficient")
	}
	if len(x) != cols {
		panic("vector x length mismatch")
	}
	if len(y) != rows {
		panic("vector y length mismatch")
	}
	for i := 0; i < rows; i++ {
		var sum F
		row := a[i*cols : (i+1)*cols]
		for j := 0; j < cols; j++ {
			sum += row[j] * x[j]
		}
		y[i] = alpha*sum + beta*y[i]
	}
}

// Outer returns the len(x)×len(y) matrix scale·x·yᵀ.
func Outer[F Float](x, y []F, scale F) []F {
	out := make([]F, len(x)*len(y))
	for i, xi := range x {
		f := xi * scale
		for j, yj := range y {
			out[i*len(y)+j] = f * yj
		}
	}
	return out
}
