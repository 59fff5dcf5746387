package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbl8/evolver/core"
	"github.com/sbl8/evolver/embed"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute(), out.String())
	return out.String()
}

func TestTokenOf(t *testing.T) {
	assert.Equal(t, uint32(42), tokenOf("42"))
	assert.Equal(t, tokenOf("apple"), tokenOf("apple"))
	assert.NotEqual(t, tokenOf("apple"), tokenOf("pear"))
	assert.NotEqual(t, uint32(0), tokenOf("-1"))
}

func TestReadTokens(t *testing.T) {
	got, err := readTokens([]string{"1", "2"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 2}, got)

	got, err = readTokens(nil, strings.NewReader("3 4\n5\n"))
	require.NoError(t, err)
	assert.Equal(t, []uint32{3, 4, 5}, got)

	_, err = readTokens(nil, strings.NewReader("  \n"))
	assert.Error(t, err)
}

func TestParseState(t *testing.T) {
	e, err := embed.NewHashEmbedder[float64](3)
	require.NoError(t, err)

	v, err := parseState("1, 2,3", e)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, v.Values())

	v, err = parseState("7", e)
	require.NoError(t, err)
	assert.True(t, v.Equal(e.Vector(7), 0))

	_, err = parseState("1,2", e)
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
	_, err = parseState("1,x,3", e)
	assert.Error(t, err)
}

func TestCommands(t *testing.T) {
	t.Setenv("EVOLVER_DIMENSION", "8")

	out := execute(t, "params", "--preset", "fast-inference")
	assert.Contains(t, out, "dimension: 8")
	assert.Contains(t, out, "depth: 6")

	out = execute(t, "run", "--preset", "fast-inference", "-k", "3", "the", "quick", "brown", "fox")
	assert.Contains(t, out, "evaluation")
	assert.Contains(t, out, "abstain: state is")
	assert.NotContains(t, out, "#1 token", "no ranking without a verified state")

	out = execute(t, "run", "--preset", "fast-inference", "-k", "3", "--eps", "1e9", "the", "quick", "brown", "fox")
	assert.NotContains(t, out, "abstain")
	assert.Contains(t, out, "#3 token")

	out = execute(t, "solve", "--preset", "fast-inference", "--input", "1", "--target", "2")
	assert.Contains(t, out, "mode=solver")

	out = execute(t, "layers", "--preset", "fast-inference")
	assert.Contains(t, out, "no layers stored", "each command opens a fresh in-memory store")

	out = execute(t, "perf", "--test", "fold", "--iter", "100")
	assert.Contains(t, out, "Fold 16 tuples")
}
