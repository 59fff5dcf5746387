// Package model defines the folding topology evaluated by the runtime.
//
// A Graph is a tree of tagged nodes listed in post-order (every child precedes
// its parent). Leaves carry affine tuples; internal nodes name the operator
// that combines their children:
//   - OpSpace: commutative fold of the children (sum, normalize once)
//   - OpTime: ordered composition of the children, earliest first
//   - OpNeutral: padding, evaluated as the neutral element of its parent's
//     operator (identity under time, the empty group under space)
//
// Graphs are built per input batch by Build, evaluated once and discarded.
// They are never mutated after Build returns.
package model

import (
	"fmt"

	"github.com/sbl8/evolver/algebra"
	"github.com/sbl8/evolver/core"
)

// Op tags a node with the operator used to evaluate it.
type Op uint8

const (
	OpLeaf Op = iota
	OpNeutral
	OpTime
	OpSpace
)

func (o Op) String() string {
	switch o {
	case OpLeaf:
		return "leaf"
	case OpNeutral:
		return "neutral"
	case OpTime:
		return "time"
	case OpSpace:
		return "space"
	default:
		return fmt.Sprintf("op(%d)", uint8(o))
	}
}

// Node is one vertex of the folding topology. Value is only set for leaves.
type Node[F core.Float] struct {
	ID       int
	Op       Op
	Children []int
	Value    algebra.Tuple[F]
}

// IsInternal reports whether n combines children.
func (n *Node[F]) IsInternal() bool {
	return n.Op == OpTime || n.Op == OpSpace
}

// Graph is an immutable folding tree with nodes in post-order.
type Graph[F core.Float] struct {
	Nodes []Node[F]
	Root  int
	Dim   int
}

// NodeCount returns the number of nodes in the graph
func (g *Graph[F]) NodeCount() int {
	return len(g.Nodes)
}

// Count returns the number of nodes tagged op.
func (g *Graph[F]) Count(op Op) int {
	n := 0
	for i := range g.Nodes {
		if g.Nodes[i].Op == op {
			n++
		}
	}
	return n
}

// Validate checks graph consistency
func (g *Graph[F]) Validate() error {
	if len(g.Nodes) == 0 {
		return fmt.Errorf("graph has no nodes")
	}
	if g.Root != len(g.Nodes)-1 {
		return fmt.Errorf("root %d is not the last node of %d", g.Root, len(g.Nodes))
	}
	parents := make([]int, len(g.Nodes))
	for i := range parents {
		parents[i] = -1
	}
	for i := range g.Nodes {
		node := &g.Nodes[i]
		if node.ID != i {
			return fmt.Errorf("node at index %d has ID %d", i, node.ID)
		}
		switch node.Op {
		case OpLeaf:
			if len(node.Children) != 0 {
				return fmt.Errorf("leaf %d has children", i)
			}
			if node.Value.Dim() != g.Dim {
				return core.NewDimensionError(fmt.Sprintf("leaf %d", i), g.Dim, node.Value.Dim())
			}
		case OpNeutral:
			if len(node.Children) != 0 {
				return fmt.Errorf("neutral node %d has children", i)
			}
		case OpTime, OpSpace:
			if len(node.Children) == 0 {
				return &core.EmptyFoldError{Stage: fmt.Sprintf("%s node %d", node.Op, i)}
			}
		default:
			return fmt.Errorf("node %d has unknown op %d", i, node.Op)
		}
		for _, c := range node.Children {
			if c < 0 || c >= i {
				return fmt.Errorf("node %d references child %d out of post-order", i, c)
			}
			if parents[c] >= 0 {
				return fmt.Errorf("node %d has two parents (%d, %d)", c, parents[c], i)
			}
			parents[c] = i
		}
	}
	for i := 0; i < len(g.Nodes)-1; i++ {
		if parents[i] < 0 {
			return fmt.Errorf("node %d is unreachable from the root", i)
		}
	}
	return nil
}

// Levels groups node IDs by height: leaves and padding at level 0, every
// internal node one above its highest child. Nodes of one level never depend
// on each other. IDs within a level are ascending.
func (g *Graph[F]) Levels() [][]int {
	height := make([]int, len(g.Nodes))
	maxHeight := 0
	for i := range g.Nodes {
		h := 0
		for _, c := range g.Nodes[i].Children {
			if height[c]+1 > h {
				h = height[c] + 1
			}
		}
		height[i] = h
		if h > maxHeight {
			maxHeight = h
		}
	}
	levels := make([][]int, maxHeight+1)
	for i, h := range height {
		levels[h] = append(levels[h], i)
	}
	return levels
}

// Depth returns the number of levels in the graph.
func (g *Graph[F]) Depth() int {
	if len(g.Nodes) == 0 {
		return 0
	}
	return len(g.Levels())
}
