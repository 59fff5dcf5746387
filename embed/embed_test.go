package embed

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbl8/evolver/core"
	"github.com/sbl8/evolver/oracle"
)

func TestHashEmbedderDeterministicUnitNorm(t *testing.T) {
	t.Parallel()
	h, err := NewHashEmbedder[float64](16)
	require.NoError(t, err)

	for _, tok := range []uint32{0, 1, 42, math.MaxUint32} {
		a := h.Vector(tok)
		b := h.Vector(tok)
		if diff := cmp.Diff(a.Values(), b.Values()); diff != "" {
			t.Fatalf("token %d not deterministic:\n%s", tok, diff)
		}
		assert.InDelta(t, 1.0, a.Norm(), 1e-12, "token %d", tok)
		for _, v := range a.Values() {
			assert.LessOrEqual(t, math.Abs(v), 1.0)
		}
	}
	assert.False(t, h.Vector(1).Equal(h.Vector(2), 1e-6), "distinct tokens should embed apart")

	leaf, err := h.Embed(7)
	require.NoError(t, err)
	assert.True(t, leaf.Linear().Equal(core.IdentityMatrix[float64](16), 0))
	assert.True(t, leaf.Translation().Equal(h.Vector(7), 0))

	_, err = NewHashEmbedder[float32](0)
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
}

func TestHashEmbedderPrecisions(t *testing.T) {
	t.Parallel()
	h64, err := NewHashEmbedder[float64](8)
	require.NoError(t, err)
	h32, err := NewHashEmbedder[float32](8)
	require.NoError(t, err)

	v64 := h64.Vector(99).Values()
	v32 := h32.Vector(99).Values()
	for i := range v64 {
		assert.InDelta(t, v64[i], float64(v32[i]), 1e-6)
	}
}

func TestCodebook(t *testing.T) {
	t.Parallel()
	cb := NewCodebook[float64](2)
	require.NoError(t, cb.Put(1, core.NewVector(1.0, 0)))
	require.NoError(t, cb.Put(2, core.NewVector(0, 1.0)))
	require.NoError(t, cb.Put(3, core.NewVector(0.855, 0.80)))
	assert.Equal(t, 3, cb.Len())

	err := cb.Put(4, core.NewVector(1.0))
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)

	leaf, err := cb.Embed(2)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, leaf.Translation().Values())

	_, err = cb.Embed(99)
	assert.True(t, errors.Is(err, ErrUnknownToken))

	m := cb.Locate(core.NewVector(0.85, 0.79))
	assert.True(t, m.Known)
	assert.Equal(t, uint32(3), m.Token)

	_, err = oracle.Verify[float64](core.NewVector(0.855, 0.80), cb, 1e-4)
	assert.NoError(t, err)

	_, err = oracle.Verify[float64](core.NewVector(0.5, 0.5), cb, 1e-4)
	var mismatch *core.CoordinateMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.True(t, mismatch.HasNearest)

	_, err = oracle.Verify[float64](core.NewVector(0.855, 0.80, 0), cb, 1e-4)
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
	assert.NotErrorAs(t, err, &mismatch)

	empty := NewCodebook[float64](2)
	assert.False(t, empty.Locate(core.NewVector(0.0, 0)).Known)

	require.NoError(t, cb.Put(1, core.NewVector(0.5, 0.5)))
	assert.Equal(t, []uint32{1, 2, 3}, cb.Tokens())
	v, ok := cb.Lookup(1)
	require.True(t, ok)
	assert.Equal(t, []float64{0.5, 0.5}, v.Values())
}

func TestCodebookConcurrentAccess(t *testing.T) {
	t.Parallel()
	h, err := NewHashEmbedder[float64](4)
	require.NoError(t, err)
	cb := NewCodebook[float64](4)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				tok := uint32(w*50 + i)
				_ = cb.Put(tok, h.Vector(tok))
				cb.Locate(h.Vector(tok))
			}
		}(w)
	}
	wg.Wait()
	assert.Equal(t, 400, cb.Len())

	m := cb.Locate(h.Vector(123))
	assert.Equal(t, uint32(123), m.Token)
	assert.InDelta(t, 0, m.Distance, 1e-12)
}

func TestProjectorRank(t *testing.T) {
	t.Parallel()
	h, err := NewHashEmbedder[float64](8)
	require.NoError(t, err)
	cb, err := CodebookFrom[float64](h, []uint32{10, 11, 12, 13, 14})
	require.NoError(t, err)
	pr, err := ProjectorFrom(cb)
	require.NoError(t, err)

	ranked, err := pr.Rank(h.Vector(12), 3)
	require.NoError(t, err)
	require.Len(t, ranked, 3)
	assert.Equal(t, uint32(12), ranked[0].Token, "a unit vector scores highest against itself")
	assert.InDelta(t, 1.0, ranked[0].Score, 1e-12)
	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, ranked[i-1].Score, ranked[i].Score)
	}

	all, err := pr.Rank(h.Vector(12), 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	_, err = pr.Rank(core.NewVector(1.0), 1)
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
}

func TestProjectorTiesKeepVocabularyOrder(t *testing.T) {
	t.Parallel()
	p, err := core.MatrixFromRows([]float64{1, 0}, []float64{1, 0}, []float64{0, 1})
	require.NoError(t, err)
	pr, err := NewProjector([]uint32{5, 6, 7}, p)
	require.NoError(t, err)

	ranked, err := pr.Rank(core.NewVector(1.0, 0), 2)
	require.NoError(t, err)
	assert.Equal(t, []Score{{Token: 5, Score: 1}, {Token: 6, Score: 1}}, ranked)

	_, err = NewProjector([]uint32{1}, p)
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
}

func TestXavier(t *testing.T) {
	t.Parallel()
	m := XavierMatrix[float64](4, 6, 42)
	limit := math.Sqrt(6.0 / 10.0)
	for _, v := range m.Values() {
		assert.LessOrEqual(t, math.Abs(v), limit)
	}
	assert.True(t, m.Equal(XavierMatrix[float64](4, 6, 42), 0), "same seed, same matrix")
	assert.False(t, m.Equal(XavierMatrix[float64](4, 6, 43), 1e-9))

	tup := XavierTuple[float32](3, 1)
	assert.Equal(t, 3, tup.Dim())
	assert.Equal(t, []float32{0, 0, 0}, tup.Translation().Values())
}
