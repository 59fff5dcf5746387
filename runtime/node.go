package runtime

import (
	"fmt"

	"github.com/sbl8/evolver/algebra"
	"github.com/sbl8/evolver/core"
	"github.com/sbl8/evolver/model"
)

type valueKind uint8

const (
	kindNeutral valueKind = iota
	kindTuple
	kindPartial
)

// value is the evaluated result of one node. Space nodes stay un-normalized
// partials until a time node or the root consumes them.
type value[F core.Float] struct {
	kind    valueKind
	tuple   algebra.Tuple[F]
	partial algebra.Partial[F]
}

func leafValue[F core.Float](n *model.Node[F]) value[F] {
	if n.Op == model.OpLeaf {
		return value[F]{kind: kindTuple, tuple: n.Value}
	}
	return value[F]{kind: kindNeutral}
}

// asTuple materializes v. A neutral value has no tuple of its own.
func (v value[F]) asTuple(id int) (algebra.Tuple[F], error) {
	switch v.kind {
	case kindTuple:
		return v.tuple, nil
	case kindPartial:
		return v.partial.Finalize()
	default:
		return algebra.Tuple[F]{}, &core.EmptyFoldError{Stage: fmt.Sprintf("neutral node %d", id)}
	}
}

// asPartial views v as a space group; neutral is the empty group.
func (v value[F]) asPartial() (algebra.Partial[F], error) {
	switch v.kind {
	case kindTuple:
		return algebra.FoldPartial(v.tuple)
	case kindPartial:
		return v.partial, nil
	default:
		return algebra.Partial[F]{}, nil
	}
}

func evalNode[F core.Float](g *model.Graph[F], id int, results []value[F]) (value[F], error) {
	n := &g.Nodes[id]
	switch n.Op {
	case model.OpSpace:
		parts := make([]algebra.Partial[F], 0, len(n.Children))
		for _, c := range n.Children {
			p, err := results[c].asPartial()
			if err != nil {
				return value[F]{}, err
			}
			parts = append(parts, p)
		}
		merged, err := algebra.Merge(parts...)
		if err != nil {
			return value[F]{}, err
		}
		if merged.IsEmpty() {
			return value[F]{}, &core.EmptyFoldError{Stage: fmt.Sprintf("space node %d", id)}
		}
		return value[F]{kind: kindPartial, partial: merged}, nil

	case model.OpTime:
		seq := make([]algebra.Tuple[F], 0, len(n.Children))
		for _, c := range n.Children {
			if results[c].kind == kindNeutral {
				continue
			}
			t, err := results[c].asTuple(c)
			if err != nil {
				return value[F]{}, err
			}
			seq = append(seq, t)
		}
		if len(seq) == 0 {
			return value[F]{}, &core.EmptyFoldError{Stage: fmt.Sprintf("time node %d", id)}
		}
		t, err := algebra.ComposeAll(seq...)
		if err != nil {
			return value[F]{}, err
		}
		return value[F]{kind: kindTuple, tuple: t}, nil

	default:
		return leafValue(n), nil
	}
}

func buildTrace[F core.Float](g *model.Graph[F], results []value[F]) []TraceEntry[F] {
	out := make([]TraceEntry[F], 0, len(g.Nodes))
	for i := range g.Nodes {
		n := &g.Nodes[i]
		entry := TraceEntry[F]{ID: n.ID, Op: n.Op, Children: append([]int(nil), n.Children...)}
		switch results[i].kind {
		case kindTuple:
			entry.Value = results[i].tuple
			entry.Count = 1
		case kindPartial:
			entry.Count = results[i].partial.Count()
			if t, err := results[i].partial.Finalize(); err == nil {
				entry.Value = t
			}
		}
		out = append(out, entry)
	}
	return out
}
