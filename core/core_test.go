package core

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorImmutability(t *testing.T) {
	t.Parallel()
	src := []float64{1, 2}
	v := NewVector(src...)
	src[0] = 99
	assert.Equal(t, 1.0, v.At(0), "constructor must copy its input")

	vals := v.Values()
	vals[1] = 99
	assert.Equal(t, 2.0, v.At(1), "Values must return a copy")

	dst := []float64{0, 0}
	v.AddTo(dst)
	v.AddTo(dst)
	assert.Equal(t, []float64{2, 4}, dst)
	assert.Equal(t, []float64{1, 2}, v.Values())
}

func TestVectorOps(t *testing.T) {
	t.Parallel()
	a := NewVector(1.0, 2.0, 3.0)
	b := NewVector(0.5, -1.0, 4.0)

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, 1, 7}, sum.Values())

	diff, err := a.Sub(b)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 3, -1}, diff.Values())

	dot, err := a.Dot(b)
	require.NoError(t, err)
	assert.InDelta(t, 10.5, dot, 1e-12)

	assert.Equal(t, []float64{2, 4, 6}, a.Scale(2).Values())
	assert.InDelta(t, 5.0, NewVector(3.0, 4.0).Norm(), 1e-12)

	d, err := Distance(NewVector(0.9, 0.5), NewVector(0.9, 0.8))
	require.NoError(t, err)
	assert.InDelta(t, 0.3, d, 1e-12)
}

func TestVectorDimensionMismatch(t *testing.T) {
	t.Parallel()
	a := NewVector[float32](1, 2)
	b := NewVector[float32](1, 2, 3)

	_, err := a.Add(b)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	var dimErr *DimensionError
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 2, dimErr.Want)
	assert.Equal(t, 3, dimErr.Got)

	_, err = Distance(a, b)
	assert.Equal(t, KindDimensionMismatch, KindOf(err))
	assert.False(t, a.Equal(b, 1))
}

func TestVectorFinite(t *testing.T) {
	t.Parallel()
	assert.True(t, NewVector(1.0, 2.0).IsFinite())
	assert.False(t, NewVector(1.0, math.NaN()).IsFinite())
	assert.False(t, NewVector(math.Inf(-1)).IsFinite())
}

func TestMatrixConstruction(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		rows, cols int
		data       []float64
		wantErr    bool
	}{
		{"square", 2, 2, []float64{1, 0, 0, 1}, false},
		{"rectangular", 2, 3, []float64{1, 2, 3, 4, 5, 6}, false},
		{"short data", 2, 2, []float64{1, 2, 3}, true},
		{"long data", 1, 1, []float64{1, 2}, true},
		{"negative shape", -1, 2, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMatrix(tt.rows, tt.cols, tt.data)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrDimensionMismatch)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.rows, m.Rows())
			assert.Equal(t, tt.cols, m.Cols())
			assert.Equal(t, tt.data, m.Values())
		})
	}

	_, err := MatrixFromRows([]float64{1, 2}, []float64{3})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestMatrixProducts(t *testing.T) {
	t.Parallel()
	w1, err := MatrixFromRows([]float64{1, 0.2}, []float64{0, 0.9})
	require.NoError(t, err)
	w2, err := MatrixFromRows([]float64{0.95, 0}, []float64{0.1, 1})
	require.NoError(t, err)

	y, err := w1.MulVec(NewVector(2.0/3, 2.0/3))
	require.NoError(t, err)
	assert.True(t, y.Equal(NewVector(0.8, 0.6), 1e-12), "got %v", y.Values())

	ab, err := w2.Mul(w1)
	require.NoError(t, err)
	ba, err := w1.Mul(w2)
	require.NoError(t, err)
	assert.False(t, ab.Equal(ba, 1e-9), "matrix product should not commute here")
	assert.InDelta(t, 0.95, ab.At(0, 0), 1e-12)
	assert.InDelta(t, 0.19, ab.At(0, 1), 1e-12)

	id := IdentityMatrix[float64](2)
	same, err := id.Mul(w1)
	require.NoError(t, err)
	assert.True(t, same.Equal(w1, 0))

	_, err = w1.MulVec(NewVector(1.0))
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	rect := ZeroMatrix[float64](3, 1)
	_, err = w1.Mul(rect)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestOuterAndNorm(t *testing.T) {
	t.Parallel()
	o := OuterProduct(NewVector(1.0, 2.0), NewVector(3.0, 4.0), 0.5)
	assert.Equal(t, []float64{1.5, 2, 3, 4}, o.Values())
	assert.Equal(t, []float64{3, 4}, o.Row(1))

	m, err := NewMatrix(2, 2, []float64{3, 0, 0, 4})
	require.NoError(t, err)
	assert.InDelta(t, 5.0, m.FrobeniusNorm(), 1e-12)
	assert.True(t, m.IsFinite())
	assert.False(t, m.Scale(math.Inf(1)).IsFinite())
}

func TestKindOf(t *testing.T) {
	t.Parallel()
	tests := []struct {
		err  error
		want Kind
	}{
		{nil, KindUnknown},
		{errors.New("other"), KindUnknown},
		{NewDimensionError("x", 1, 2), KindDimensionMismatch},
		{&EmptyFoldError{Stage: "leaves"}, KindEmptyFold},
		{&CoordinateMismatchError{Distance: 1, Epsilon: 0.1}, KindCoordinateMismatch},
		{&SingularError{Reason: "zero input"}, KindSingularInput},
		{&OverflowError{Op: "compose"}, KindNumericOverflow},
		{fmt.Errorf("wrapped: %w", ErrEmptyFold), KindEmptyFold},
	}

	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	t.Parallel()
	err := &CoordinateMismatchError{Distance: 0.3, Epsilon: 1e-4, Token: 7, HasNearest: true}
	assert.Contains(t, err.Error(), "nearest token 7")
	assert.Contains(t, (&CoordinateMismatchError{Epsilon: 1e-4}).Error(), "no recognised coordinate")
	assert.Equal(t, "empty fold", (&EmptyFoldError{}).Error())
	assert.Equal(t, "singular input: zero input", (&SingularError{Reason: "zero input"}).Error())
}
