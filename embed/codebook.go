package embed

import (
	"fmt"
	"math"
	"sync"

	"github.com/sbl8/evolver/algebra"
	"github.com/sbl8/evolver/core"
	"github.com/sbl8/evolver/oracle"
)

// Codebook is a table of known token coordinates. It embeds tokens by lookup
// and, as an oracle.Region, reports the nearest known coordinate of a state.
// It is safe for concurrent use.
type Codebook[F core.Float] struct {
	dim    int
	mu     sync.RWMutex
	tokens []uint32
	coords []core.Vector[F]
	index  map[uint32]int
}

// NewCodebook returns an empty codebook for dimension dim.
func NewCodebook[F core.Float](dim int) *Codebook[F] {
	return &Codebook[F]{dim: dim, index: make(map[uint32]int)}
}

// CodebookFrom fills a codebook with the embeddings of tokens.
func CodebookFrom[F core.Float](e Embedder[F], tokens []uint32) (*Codebook[F], error) {
	cb := NewCodebook[F](e.Dim())
	for _, tok := range tokens {
		t, err := e.Embed(tok)
		if err != nil {
			return nil, fmt.Errorf("embed token %d: %w", tok, err)
		}
		if err := cb.Put(tok, t.Translation()); err != nil {
			return nil, err
		}
	}
	return cb, nil
}

func (c *Codebook[F]) Dim() int { return c.dim }

// Len returns the number of known tokens.
func (c *Codebook[F]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tokens)
}

// Put records or replaces the coordinate of token.
func (c *Codebook[F]) Put(token uint32, coord core.Vector[F]) error {
	if coord.Len() != c.dim {
		return core.NewDimensionError(fmt.Sprintf("coordinate of token %d", token), c.dim, coord.Len())
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if i, ok := c.index[token]; ok {
		c.coords[i] = coord
		return nil
	}
	c.index[token] = len(c.tokens)
	c.tokens = append(c.tokens, token)
	c.coords = append(c.coords, coord)
	return nil
}

// Lookup returns the coordinate of token.
func (c *Codebook[F]) Lookup(token uint32) (core.Vector[F], bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.index[token]
	if !ok {
		return core.Vector[F]{}, false
	}
	return c.coords[i], true
}

// Embed returns (I, coordinate) or ErrUnknownToken.
func (c *Codebook[F]) Embed(token uint32) (algebra.Tuple[F], error) {
	v, ok := c.Lookup(token)
	if !ok {
		return algebra.Tuple[F]{}, fmt.Errorf("token %d: %w", token, ErrUnknownToken)
	}
	return algebra.Embedding(v), nil
}

// Locate finds the known coordinate nearest to state. Ties resolve to the
// token inserted first. An empty codebook or a state of the wrong dimension
// yields an unknown match.
func (c *Codebook[F]) Locate(state core.Vector[F]) oracle.Match[F] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	best := oracle.Match[F]{Distance: math.Inf(1)}
	for i, coord := range c.coords {
		d, err := core.Distance(state, coord)
		if err != nil {
			return oracle.Match[F]{}
		}
		if d < best.Distance {
			best = oracle.Match[F]{Token: c.tokens[i], Coordinate: coord, Distance: d, Known: true}
		}
	}
	return best
}

// Tokens returns the known tokens in insertion order.
func (c *Codebook[F]) Tokens() []uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]uint32, len(c.tokens))
	copy(out, c.tokens)
	return out
}
