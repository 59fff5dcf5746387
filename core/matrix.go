package core

import (
	"math"

	"github.com/sbl8/evolver/kernels"
)

// Matrix is an immutable row-major Rows×Cols matrix.
type Matrix[F Float] struct {
	rows, cols int
	data       []F
}

// NewMatrix copies data into a rows×cols matrix. len(data) must equal
// rows*cols.
func NewMatrix[F Float](rows, cols int, data []F) (Matrix[F], error) {
	if rows < 0 || cols < 0 {
		return Matrix[F]{}, NewDimensionError("matrix shape", 0, min(rows, cols))
	}
	if len(data) != rows*cols {
		return Matrix[F]{}, NewDimensionError("matrix data", rows*cols, len(data))
	}
	buf := make([]F, len(data))
	copy(buf, data)
	return Matrix[F]{rows: rows, cols: cols, data: buf}, nil
}

// MatrixFromRows builds a matrix from equally long rows.
func MatrixFromRows[F Float](rows ...[]F) (Matrix[F], error) {
	if len(rows) == 0 {
		return Matrix[F]{}, nil
	}
	cols := len(rows[0])
	data := make([]F, 0, len(rows)*cols)
	for _, r := range rows {
		if len(r) != cols {
			return Matrix[F]{}, NewDimensionError("matrix row", cols, len(r))
		}
		data = append(data, r...)
	}
	return Matrix[F]{rows: len(rows), cols: cols, data: data}, nil
}

// IdentityMatrix returns the d×d identity.
func IdentityMatrix[F Float](d int) Matrix[F] {
	return Matrix[F]{rows: d, cols: d, data: kernels.Identity[F](d)}
}

// ZeroMatrix returns a rows×cols matrix of zeros.
func ZeroMatrix[F Float](rows, cols int) Matrix[F] {
	return Matrix[F]{rows: rows, cols: cols, data: make([]F, rows*cols)}
}

// OuterProduct returns scale·x·yᵀ.
func OuterProduct[F Float](x, y Vector[F], scale F) Matrix[F] {
	return Matrix[F]{rows: x.Len(), cols: y.Len(), data: kernels.Outer(x.data, y.data, scale)}
}

func (m Matrix[F]) Rows() int { return m.rows }
func (m Matrix[F]) Cols() int { return m.cols }

// IsSquare reports whether m is square.
func (m Matrix[F]) IsSquare() bool { return m.rows == m.cols }

// At returns the element at row i, column j.
func (m Matrix[F]) At(i, j int) F { return m.data[i*m.cols+j] }

// Values returns a row-major copy of the elements.
func (m Matrix[F]) Values() []F {
	out := make([]F, len(m.data))
	copy(out, m.data)
	return out
}

// Row returns a copy of row i.
func (m Matrix[F]) Row(i int) []F {
	out := make([]F, m.cols)
	copy(out, m.data[i*m.cols:(i+1)*m.cols])
	return out
}

// AddTo accumulates m into dst, which must hold Rows*Cols elements.
func (m Matrix[F]) AddTo(dst []F) {
	kernels.AddInPlace(dst, m.data)
}

// MulVec returns m·x.
func (m Matrix[F]) MulVec(x Vector[F]) (Vector[F], error) {
	if x.Len() != m.cols {
		return Vector[F]{}, NewDimensionError("matrix-vector product", m.cols, x.Len())
	}
	return Vector[F]{data: kernels.MatVec(m.data, m.rows, m.cols, x.data)}, nil
}

// Mul returns the product m·n.
func (m Matrix[F]) Mul(n Matrix[F]) (Matrix[F], error) {
	if m.cols != n.rows {
		return Matrix[F]{}, NewDimensionError("matrix product", m.cols, n.rows)
	}
	return Matrix[F]{
		rows: m.rows,
		cols: n.cols,
		data: kernels.MatMul(m.data, m.rows, m.cols, n.data, n.cols),
	}, nil
}

// Add returns m + n.
func (m Matrix[F]) Add(n Matrix[F]) (Matrix[F], error) {
	if m.rows != n.rows || m.cols != n.cols {
		return Matrix[F]{}, NewDimensionError("matrix add", m.rows*m.cols, n.rows*n.cols)
	}
	return Matrix[F]{rows: m.rows, cols: m.cols, data: kernels.Add(m.data, n.data)}, nil
}

// Scale returns s·m.
func (m Matrix[F]) Scale(s F) Matrix[F] {
	return Matrix[F]{rows: m.rows, cols: m.cols, data: kernels.Scale(m.data, s)}
}

// FrobeniusNorm returns sqrt(Σ m_ij²).
func (m Matrix[F]) FrobeniusNorm() float64 {
	return math.Sqrt(float64(kernels.SumSquares(m.data)))
}

// IsFinite reports whether every element is finite.
func (m Matrix[F]) IsFinite() bool {
	return kernels.AllFinite(m.data)
}

// Equal reports whether m and n share a shape and agree element-wise
// within tol.
func (m Matrix[F]) Equal(n Matrix[F], tol float64) bool {
	if m.rows != n.rows || m.cols != n.cols {
		return false
	}
	for i := range m.data {
		if math.Abs(float64(m.data[i])-float64(n.data[i])) > tol {
			return false
		}
	}
	return true
}
