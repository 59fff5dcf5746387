package model

import (
	"fmt"
	"strings"

	"github.com/sbl8/evolver/algebra"
	"github.com/sbl8/evolver/core"
)

// Grouping selects the shape of the space subtree built over one window.
// Every grouping folds to the same tuple; they differ only in how much of
// the window can be reduced in parallel.
type Grouping uint8

const (
	// GroupFlat folds the whole window in one N-ary space node.
	GroupFlat Grouping = iota
	// GroupBinary builds a balanced binary tree of space nodes.
	GroupBinary
	// GroupSliding folds consecutive chunks, then merges the chunk results.
	GroupSliding
)

// Causal selects the shape of the time chain over windows and layers.
type Causal uint8

const (
	// CausalChain composes the whole sequence in a single time node.
	CausalChain Causal = iota
	// CausalTree composes adjacent pairs in a balanced binary tree.
	CausalTree
)

var groupingNames = map[Grouping]string{
	GroupFlat:    "flat",
	GroupBinary:  "binary",
	GroupSliding: "sliding",
}

var causalNames = map[Causal]string{
	CausalChain: "chain",
	CausalTree:  "tree",
}

func (g Grouping) String() string {
	if s, ok := groupingNames[g]; ok {
		return s
	}
	return fmt.Sprintf("grouping(%d)", uint8(g))
}

func (c Causal) String() string {
	if s, ok := causalNames[c]; ok {
		return s
	}
	return fmt.Sprintf("causal(%d)", uint8(c))
}

// ParseGrouping parses "flat", "binary" or "sliding".
func ParseGrouping(s string) (Grouping, error) {
	for g, name := range groupingNames {
		if strings.EqualFold(s, name) {
			return g, nil
		}
	}
	return 0, fmt.Errorf("unknown grouping %q", s)
}

// ParseCausal parses "chain" or "tree".
func ParseCausal(s string) (Causal, error) {
	for c, name := range causalNames {
		if strings.EqualFold(s, name) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown causal shape %q", s)
}

// Layout parameterizes Build.
type Layout struct {
	// Window is the number of consecutive leaves folded into one context.
	Window   int
	Grouping Grouping
	// Chunk is the sliding group size; only used by GroupSliding.
	Chunk  int
	Causal Causal
}

// DefaultLayout folds every window of 8 leaves flat and chains the results.
func DefaultLayout() Layout {
	return Layout{Window: 8, Grouping: GroupFlat, Chunk: 4, Causal: CausalChain}
}

// Validate rejects layouts that declare an empty window or chunk.
func (l Layout) Validate() error {
	if l.Window < 1 {
		return &core.EmptyFoldError{Stage: fmt.Sprintf("window of %d leaves", l.Window)}
	}
	if l.Grouping == GroupSliding && l.Chunk < 1 {
		return &core.EmptyFoldError{Stage: fmt.Sprintf("sliding chunk of %d leaves", l.Chunk)}
	}
	if _, ok := groupingNames[l.Grouping]; !ok {
		return fmt.Errorf("unknown grouping %d", l.Grouping)
	}
	if _, ok := causalNames[l.Causal]; !ok {
		return fmt.Errorf("unknown causal shape %d", l.Causal)
	}
	return nil
}

type builder[F core.Float] struct {
	nodes []Node[F]
}

func (b *builder[F]) add(op Op, value algebra.Tuple[F], children ...int) int {
	id := len(b.nodes)
	b.nodes = append(b.nodes, Node[F]{ID: id, Op: op, Children: children, Value: value})
	return id
}

func (b *builder[F]) leaf(t algebra.Tuple[F]) int {
	return b.add(OpLeaf, t)
}

func (b *builder[F]) neutral() int {
	return b.add(OpNeutral, algebra.Tuple[F]{})
}

// balanced combines ids pairwise with op until one node remains, padding odd
// levels with neutral nodes so every internal node is binary.
func (b *builder[F]) balanced(op Op, ids []int) int {
	for len(ids) > 1 {
		if len(ids)%2 == 1 {
			ids = append(ids, b.neutral())
		}
		next := make([]int, 0, len(ids)/2)
		for i := 0; i < len(ids); i += 2 {
			next = append(next, b.add(op, algebra.Tuple[F]{}, ids[i], ids[i+1]))
		}
		ids = next
	}
	return ids[0]
}

func (b *builder[F]) window(leaves []algebra.Tuple[F], layout Layout) int {
	ids := make([]int, len(leaves))
	switch layout.Grouping {
	case GroupBinary:
		for i, t := range leaves {
			ids[i] = b.leaf(t)
		}
		if len(ids) == 1 {
			return b.add(OpSpace, algebra.Tuple[F]{}, ids[0])
		}
		return b.balanced(OpSpace, ids)
	case GroupSliding:
		var chunks []int
		for start := 0; start < len(leaves); start += layout.Chunk {
			end := min(start+layout.Chunk, len(leaves))
			members := make([]int, 0, end-start)
			for _, t := range leaves[start:end] {
				members = append(members, b.leaf(t))
			}
			chunks = append(chunks, b.add(OpSpace, algebra.Tuple[F]{}, members...))
		}
		return b.add(OpSpace, algebra.Tuple[F]{}, chunks...)
	default:
		for i, t := range leaves {
			ids[i] = b.leaf(t)
		}
		return b.add(OpSpace, algebra.Tuple[F]{}, ids...)
	}
}

// Build lays out the folding topology for one batch.
//
// Leaves are split into consecutive windows of layout.Window tuples (the last
// window may be shorter). Each window becomes a space subtree shaped by
// layout.Grouping. The window results, followed by layers, are then composed
// in strict temporal order by time nodes shaped by layout.Causal.
//
// An empty leaf list or an empty window is an EmptyFold error. Tuples of
// mixed dimension are rejected with DimensionMismatch.
func Build[F core.Float](leaves, layers []algebra.Tuple[F], layout Layout) (*Graph[F], error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	if len(leaves) == 0 {
		return nil, &core.EmptyFoldError{Stage: "leaf stage"}
	}
	dim := leaves[0].Dim()
	for i, t := range leaves {
		if t.Dim() != dim {
			return nil, core.NewDimensionError(fmt.Sprintf("leaf %d", i), dim, t.Dim())
		}
	}
	for i, t := range layers {
		if t.Dim() != dim {
			return nil, core.NewDimensionError(fmt.Sprintf("layer %d", i), dim, t.Dim())
		}
	}

	b := &builder[F]{nodes: make([]Node[F], 0, 2*(len(leaves)+len(layers))+1)}
	var sequence []int
	for start := 0; start < len(leaves); start += layout.Window {
		end := min(start+layout.Window, len(leaves))
		sequence = append(sequence, b.window(leaves[start:end], layout))
	}
	for _, t := range layers {
		sequence = append(sequence, b.leaf(t))
	}

	var root int
	if layout.Causal == CausalTree && len(sequence) > 1 {
		root = b.balanced(OpTime, sequence)
	} else {
		root = b.add(OpTime, algebra.Tuple[F]{}, sequence...)
	}

	return &Graph[F]{Nodes: b.nodes, Root: root, Dim: dim}, nil
}
