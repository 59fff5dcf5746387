// Package embed maps tokens onto the state space and back.
//
//   - HashEmbedder: deterministic token → unit vector projection
//   - Codebook: explicit token table; also an oracle.Region for nearest lookup
//   - Projector: state → ranked token scores
//   - XavierMatrix / XavierTuple: operator initialisation
package embed

import (
	"errors"
	"fmt"
	"math"

	"github.com/sbl8/evolver/algebra"
	"github.com/sbl8/evolver/core"
)

// ErrUnknownToken is returned by embedders that have no entry for a token.
var ErrUnknownToken = errors.New("unknown token")

// Embedder maps a token to its leaf tuple (I, embedding).
type Embedder[F core.Float] interface {
	Embed(token uint32) (algebra.Tuple[F], error)
	Dim() int
}

// HashEmbedder derives a fixed unit vector for every token by SplitMix64
// mixing of the token id. It needs no table and is safe for concurrent use.
type HashEmbedder[F core.Float] struct {
	dim int
}

// NewHashEmbedder returns an embedder for dimension dim.
func NewHashEmbedder[F core.Float](dim int) (*HashEmbedder[F], error) {
	if dim < 1 {
		return nil, core.NewDimensionError("embedding dimension", 1, dim)
	}
	return &HashEmbedder[F]{dim: dim}, nil
}

func (h *HashEmbedder[F]) Dim() int { return h.dim }

// Vector returns the unit-norm coordinate of token.
func (h *HashEmbedder[F]) Vector(token uint32) core.Vector[F] {
	data := make([]float64, h.dim)
	state := uint64(token)
	var norm float64
	for i := range data {
		state += 0x9e3779b97f4a7c15
		z := state
		z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
		z = (z ^ (z >> 27)) * 0x94d049bb133111eb
		z ^= z >> 31
		data[i] = float64(z)/math.MaxUint64*2 - 1
		norm += data[i] * data[i]
	}
	norm = math.Sqrt(norm)
	out := make([]F, h.dim)
	for i, v := range data {
		if norm > 0 {
			v /= norm
		}
		out[i] = F(v)
	}
	return core.NewVector(out...)
}

// Embed returns (I, Vector(token)).
func (h *HashEmbedder[F]) Embed(token uint32) (algebra.Tuple[F], error) {
	return algebra.Embedding(h.Vector(token)), nil
}

func (h *HashEmbedder[F]) String() string {
	return fmt.Sprintf("hash(dim=%d)", h.dim)
}
