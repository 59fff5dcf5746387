package oracle

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbl8/evolver/algebra"
	"github.com/sbl8/evolver/core"
)

func vec(values ...float64) core.Vector[float64] { return core.NewVector(values...) }

func TestVerify(t *testing.T) {
	t.Parallel()
	region := Point[float64]{Token: 3, Coordinate: vec(0.855, 0.80)}

	tests := []struct {
		name     string
		state    core.Vector[float64]
		eps      float64
		wantKind core.Kind
	}{
		{"exact", vec(0.855, 0.80), 1e-4, core.KindUnknown},
		{"inside ball", vec(0.855, 0.80005), 1e-4, core.KindUnknown},
		{"outside ball", vec(0.855, 0.64), 1e-4, core.KindCoordinateMismatch},
		{"non-finite", vec(math.NaN(), 0), 1, core.KindNumericOverflow},
		{"wrong dimension", vec(0.855), 1, core.KindDimensionMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Verify(tt.state, region, tt.eps)
			if tt.wantKind == core.KindUnknown {
				require.NoError(t, err)
				assert.Equal(t, uint32(3), m.Token)
				assert.LessOrEqual(t, m.Distance, tt.eps)
				return
			}
			assert.Equal(t, tt.wantKind, core.KindOf(err))
		})
	}
}

func TestVerifyMismatchDetails(t *testing.T) {
	t.Parallel()
	region := Point[float64]{Token: 9, Coordinate: vec(0.855, 0.80)}

	_, err := Verify(vec(0.855, 0.64), region, 1e-4)
	var mismatch *core.CoordinateMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.InDelta(t, 0.16, mismatch.Distance, 1e-12)
	assert.Equal(t, 1e-4, mismatch.Epsilon)
	assert.True(t, mismatch.HasNearest)
	assert.Equal(t, uint32(9), mismatch.Token)
	assert.InDeltaSlice(t, []float64{0.855, 0.80}, mismatch.Nearest, 1e-12)

	unknown := RegionFunc[float64](func(core.Vector[float64]) Match[float64] { return Match[float64]{} })
	_, err = Verify(vec(1, 2), unknown, 10)
	require.True(t, errors.As(err, &mismatch))
	assert.False(t, mismatch.HasNearest)
	assert.Nil(t, mismatch.Nearest)
	assert.True(t, math.IsInf(mismatch.Distance, 1))
}

func TestSolveCorrectionScenario(t *testing.T) {
	t.Parallel()
	w2, err := algebra.FromSlices([]float64{0.95, 0, 0.1, 1}, []float64{0, 0.05})
	require.NoError(t, err)
	input := vec(0.9, 0.5)

	observed, err := w2.Apply(input)
	require.NoError(t, err)
	require.True(t, observed.Equal(vec(0.855, 0.64), 1e-12), "observed %v", observed.Values())

	target := vec(0.855, 0.80)
	c, err := SolveCorrection(input, observed, target, 1e-6)
	require.NoError(t, err)

	assert.InDeltaSlice(t, []float64{0, 0.16}, c.Error.Values(), 1e-12)
	assert.InDelta(t, 1.060001, c.Denom, 1e-12)
	assert.InDeltaSlice(t, []float64{0, 0, 0.1358, 0.0755}, c.Delta.Values(), 1e-4)

	corrected, err := ApplyCorrection(w2, c)
	require.NoError(t, err)
	got, err := corrected.Apply(input)
	require.NoError(t, err)
	assert.True(t, got.Equal(target, 1e-4), "corrected state %v", got.Values())

	_, err = Verify(got, Point[float64]{Coordinate: target}, 1e-4)
	assert.NoError(t, err)
}

func TestSolveCorrectionExactAsDampingVanishes(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 25; i++ {
		d := 2 + r.Intn(6)
		linear := make([]float64, d*d)
		for j := range linear {
			linear[j] = r.NormFloat64()
		}
		translation := make([]float64, d)
		input := make([]float64, d)
		target := make([]float64, d)
		for j := 0; j < d; j++ {
			translation[j] = r.NormFloat64()
			input[j] = r.NormFloat64()
			target[j] = r.NormFloat64()
		}
		tup, err := algebra.FromSlices(linear, translation)
		require.NoError(t, err)
		x := vec(input...)
		observed, err := tup.Apply(x)
		require.NoError(t, err)

		c, err := SolveCorrection(x, observed, vec(target...), 0)
		require.NoError(t, err)
		corrected, err := ApplyCorrection(tup, c)
		require.NoError(t, err)
		got, err := corrected.Apply(x)
		require.NoError(t, err)
		assert.True(t, got.Equal(vec(target...), 1e-9), "case %d: got %v want %v", i, got.Values(), target)
	}
}

func TestSolveCorrectionDecaysWithInput(t *testing.T) {
	t.Parallel()
	observed := vec(0, 0)
	target := vec(1, -1)
	const lambda = 1e-3

	prev := math.Inf(1)
	for _, scale := range []float64{1e-2, 1e-4, 1e-6, 1e-8, 0} {
		c, err := SolveCorrection(vec(scale, scale), observed, target, lambda)
		require.NoError(t, err)
		norm := c.Delta.FrobeniusNorm()
		assert.False(t, math.IsNaN(norm) || math.IsInf(norm, 0))
		assert.Less(t, norm, prev, "scale %g", scale)
		prev = norm
	}
	assert.Zero(t, prev)
}

func TestSolveCorrectionErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		input    core.Vector[float64]
		observed core.Vector[float64]
		target   core.Vector[float64]
		lambda   float64
		want     core.Kind
	}{
		{"zero input, zero damping", vec(0, 0), vec(0, 0), vec(1, 1), 0, core.KindSingularInput},
		{"negative damping", vec(1, 0), vec(0, 0), vec(1, 1), -1, core.KindSingularInput},
		{"NaN damping", vec(1, 0), vec(0, 0), vec(1, 1), math.NaN(), core.KindSingularInput},
		{"observed/target mismatch", vec(1, 0), vec(0), vec(1, 1), 1, core.KindDimensionMismatch},
		{"input/target mismatch", vec(1, 2, 3), vec(0, 0), vec(1, 1), 1e-6, core.KindDimensionMismatch},
		{"empty input", vec(), vec(0, 0), vec(1, 1), 1, core.KindDimensionMismatch},
		{"non-finite target", vec(1, 0), vec(0, 0), vec(math.Inf(1), 1), 1, core.KindNumericOverflow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SolveCorrection(tt.input, tt.observed, tt.target, tt.lambda)
			assert.Equal(t, tt.want, core.KindOf(err), "err = %v", err)
		})
	}
}

func TestLossAndDistance(t *testing.T) {
	t.Parallel()
	l, err := Loss(vec(0.855, 0.64), vec(0.855, 0.80))
	require.NoError(t, err)
	assert.InDelta(t, 0.0256, l, 1e-12)

	d, err := Distance(vec(0, 0), vec(3, 4))
	require.NoError(t, err)
	assert.InDelta(t, 5.0, d, 1e-12)

	_, err = Loss(vec(1), vec(1, 2))
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
}
