package embed

import (
	"math"
	"math/rand"
	"sort"

	"github.com/sbl8/evolver/algebra"
	"github.com/sbl8/evolver/core"
)

// Score is one ranked vocabulary entry.
type Score struct {
	Token uint32
	Score float64
}

// Projector scores a state against a vocabulary: scores = P·state, one row
// of P per token.
type Projector[F core.Float] struct {
	tokens []uint32
	p      core.Matrix[F]
}

// NewProjector pairs each row of p with the token at the same index.
func NewProjector[F core.Float](tokens []uint32, p core.Matrix[F]) (*Projector[F], error) {
	if len(tokens) != p.Rows() {
		return nil, core.NewDimensionError("projector rows", len(tokens), p.Rows())
	}
	t := make([]uint32, len(tokens))
	copy(t, tokens)
	return &Projector[F]{tokens: t, p: p}, nil
}

// ProjectorFrom builds a projector whose rows are the codebook coordinates,
// so the score of a token is its inner product with the state.
func ProjectorFrom[F core.Float](cb *Codebook[F]) (*Projector[F], error) {
	tokens := cb.Tokens()
	rows := make([][]F, 0, len(tokens))
	for _, tok := range tokens {
		v, _ := cb.Lookup(tok)
		rows = append(rows, v.Values())
	}
	if len(rows) == 0 {
		return &Projector[F]{p: core.ZeroMatrix[F](0, cb.Dim())}, nil
	}
	m, err := core.MatrixFromRows(rows...)
	if err != nil {
		return nil, err
	}
	return NewProjector(tokens, m)
}

// Scores returns P·state in token order.
func (pr *Projector[F]) Scores(state core.Vector[F]) ([]Score, error) {
	s, err := pr.p.MulVec(state)
	if err != nil {
		return nil, err
	}
	out := make([]Score, len(pr.tokens))
	for i, tok := range pr.tokens {
		out[i] = Score{Token: tok, Score: float64(s.At(i))}
	}
	return out, nil
}

// Rank returns the k highest scoring tokens, best first. Equal scores keep
// vocabulary order. k <= 0 or k > vocabulary size returns every token.
func (pr *Projector[F]) Rank(state core.Vector[F], k int) ([]Score, error) {
	scores, err := pr.Scores(state)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	if k > 0 && k < len(scores) {
		scores = scores[:k]
	}
	return scores, nil
}

// XavierMatrix returns a rows×cols matrix drawn uniformly from
// [-limit, limit] with limit = sqrt(6/(rows+cols)). Equal seeds give equal
// matrices.
func XavierMatrix[F core.Float](rows, cols int, seed int64) core.Matrix[F] {
	r := rand.New(rand.NewSource(seed))
	limit := 0.0
	if rows+cols > 0 {
		limit = math.Sqrt(6 / float64(rows+cols))
	}
	data := make([]F, rows*cols)
	for i := range data {
		data[i] = F((r.Float64()*2 - 1) * limit)
	}
	m, _ := core.NewMatrix(rows, cols, data)
	return m
}

// XavierTuple returns a d×d Xavier operator with a zero translation.
func XavierTuple[F core.Float](d int, seed int64) algebra.Tuple[F] {
	t, _ := algebra.New(XavierMatrix[F](d, d, seed), core.Zeros[F](d))
	return t
}
