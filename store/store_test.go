package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbl8/evolver/algebra"
	"github.com/sbl8/evolver/core"
)

func sampleTuple(t *testing.T, scale float64) algebra.Tuple[float64] {
	t.Helper()
	tu, err := algebra.FromSlices(
		[]float64{0.5 * scale, 0.1, -0.2, 0.8 * scale},
		[]float64{0.3, -0.4 * scale},
	)
	require.NoError(t, err)
	return tu
}

func backends(t *testing.T) map[string]Store[float64] {
	t.Helper()
	badgerStore, err := NewBadgerStore[float64](InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = badgerStore.Close() })
	return map[string]Store[float64]{
		"memory": NewMemoryStore[float64](),
		"badger": badgerStore,
	}
}

func TestStoreContract(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			want := sampleTuple(t, 1)
			require.NoError(t, s.Save(ctx, "w1", want))
			require.NoError(t, s.Save(ctx, "w0", sampleTuple(t, 2)))

			got, err := s.Load(ctx, "w1")
			require.NoError(t, err)
			assert.True(t, got.Equal(want, 0), "stored layers load bit-identical")

			names, err := s.Layers(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"w0", "w1"}, names)

			require.NoError(t, s.Delete(ctx, "w0"))
			_, err = s.Load(ctx, "w0")
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, s.Delete(ctx, "w0"), ErrNotFound)

			assert.Error(t, s.Save(ctx, "", want))
		})
	}
}

func TestStackOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			var layers []algebra.Tuple[float64]
			for i := range 12 {
				layers = append(layers, sampleTuple(t, float64(i+1)))
			}
			require.NoError(t, SaveStack(ctx, s, "model", layers))
			require.NoError(t, s.Save(ctx, "other", sampleTuple(t, 9)))

			got, err := LoadStack(ctx, s, "model")
			require.NoError(t, err)
			require.Len(t, got, len(layers))
			for i := range layers {
				assert.True(t, got[i].Equal(layers[i], 0), "layer %d", i)
			}
		})
	}
}

func TestStackOrderPastThreeDigits(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for _, i := range []int{1000, 2, 999} {
				require.NoError(t, s.Save(ctx, LayerName("deep", i), sampleTuple(t, float64(i))))
			}
			require.NoError(t, s.Save(ctx, "deep/x/000", sampleTuple(t, 7)))
			require.NoError(t, s.Save(ctx, "deep/01a", sampleTuple(t, 8)))
			require.NoError(t, s.Save(ctx, "deeper/000", sampleTuple(t, 9)))

			got, err := LoadStack(ctx, s, "deep")
			require.NoError(t, err)
			require.Len(t, got, 3)
			for i, want := range []float64{2, 999, 1000} {
				assert.True(t, got[i].Equal(sampleTuple(t, want), 0), "layer %d", i)
			}
		})
	}
}

func TestStackIndex(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		index int
		ok    bool
	}{
		{"model/000", 0, true},
		{"model/1000", 1000, true},
		{"model/", 0, false},
		{"model/x/000", 0, false},
		{"model/-1", 0, false},
		{"modelx/001", 0, false},
	}
	for _, tt := range tests {
		i, ok := stackIndex("model", tt.name)
		assert.Equal(t, tt.ok, ok, tt.name)
		assert.Equal(t, tt.index, i, tt.name)
	}
}

func TestBadgerPersists(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.GCInterval = 0

	s, err := NewBadgerStore[float64](cfg)
	require.NoError(t, err)
	want := sampleTuple(t, 3)
	require.NoError(t, s.Save(ctx, "persisted", want))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	reopened, err := NewBadgerStore[float64](cfg)
	require.NoError(t, err)
	defer reopened.Close()
	got, err := reopened.Load(ctx, "persisted")
	require.NoError(t, err)
	assert.True(t, got.Equal(want, 0))
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestCodec(t *testing.T) {
	t.Parallel()
	data := []float64{1, -2.5, 3e-9, 4}
	b, err := EncodeArray(2, 2, data)
	require.NoError(t, err)
	assert.Len(t, b, HeaderSize+len(data)*8)

	rows, cols, got, err := DecodeArray[float64](b)
	require.NoError(t, err)
	assert.Equal(t, 2, rows)
	assert.Equal(t, 2, cols)
	assert.Equal(t, data, got)

	f32, err := EncodeArray(1, 3, []float32{1, 2, 3})
	require.NoError(t, err)
	assert.Len(t, f32, HeaderSize+12)
	_, _, _, err = DecodeArray[float64](f32)
	assert.ErrorIs(t, err, ErrPrecisionMismatch)

	_, err = EncodeArray(2, 3, data)
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
}

func TestCodecRejectsDamage(t *testing.T) {
	t.Parallel()
	good, err := EncodeArray(2, 1, []float64{1, 2})
	require.NoError(t, err)

	flip := func(i int) []byte {
		b := append([]byte(nil), good...)
		b[i] ^= 0xFF
		return b
	}
	tests := []struct {
		name string
		data []byte
	}{
		{"short", good[:HeaderSize-1]},
		{"magic", flip(0)},
		{"version", flip(4)},
		{"payload", flip(HeaderSize + 3)},
		{"truncated payload", good[:len(good)-1]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, _, _, err := DecodeArray[float64](tt.data)
			assert.Error(t, err)
		})
	}

	_, _, _, err = DecodeArray[float64](flip(HeaderSize + 3))
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestLoadRejectsCorruptLayer(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemoryStore[float64]()
	require.NoError(t, s.Save(ctx, "w", sampleTuple(t, 1)))

	raw, ok := s.Raw(Key("w", KindTranslation))
	require.True(t, ok)
	damaged := append([]byte(nil), raw...)
	damaged[len(damaged)-1] ^= 0x01
	s.PutRaw(Key("w", KindTranslation), damaged)

	_, err := s.Load(ctx, "w")
	assert.ErrorIs(t, err, ErrCorrupt)

	wide, err := EncodeArray(3, 1, []float64{1, 2, 3})
	require.NoError(t, err)
	s.PutRaw(Key("w", KindTranslation), wide)
	_, err = s.Load(ctx, "w")
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
}

func TestLoadAtOtherPrecision(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s64 := NewMemoryStore[float64]()
	require.NoError(t, s64.Save(ctx, "w", sampleTuple(t, 1)))

	s32 := NewMemoryStore[float32]()
	for _, kind := range []string{KindLinear, KindTranslation} {
		raw, ok := s64.Raw(Key("w", kind))
		require.True(t, ok)
		s32.PutRaw(Key("w", kind), raw)
	}
	_, err := s32.Load(ctx, "w")
	assert.ErrorIs(t, err, ErrPrecisionMismatch)
}
