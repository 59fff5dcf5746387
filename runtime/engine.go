// Package runtime evaluates folding topologies.
//
// The Engine turns token batches into leaf tuples and evaluates model graphs
// level by level: every node of one level runs in parallel on a bounded
// worker pool, and a level starts only after the previous one finished.
// Within a node the combination order is fixed (space nodes merge their
// children in child order, time nodes compose earliest first on a single
// goroutine), so an evaluation is deterministic for any worker count.
//
// Key components:
//   - Engine: stateless evaluator with execution statistics
//   - Evaluation: result of one graph, optionally with its causal trace
//   - EmbedTokens / Infer: leaf stage and the end-to-end convenience path
package runtime

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sbl8/evolver/algebra"
	"github.com/sbl8/evolver/core"
	"github.com/sbl8/evolver/embed"
	"github.com/sbl8/evolver/model"
)

var tracer = otel.Tracer("evolver.runtime")

// EngineOptions configures engine behavior
type EngineOptions struct {
	Workers     int
	EnableStats bool
	// RecordTrace attaches every node's value to the Evaluation.
	RecordTrace bool
	Logger      *zap.Logger
}

// DefaultEngineOptions provides sensible runtime defaults
func DefaultEngineOptions() EngineOptions {
	return EngineOptions{
		Workers:     runtime.NumCPU(),
		EnableStats: false,
		RecordTrace: false,
		Logger:      zap.NewNop(),
	}
}

// ExecutionStats tracks runtime performance metrics
type ExecutionStats struct {
	TotalExecutions  int64
	FailedExecutions int64
	AverageLatency   time.Duration
	OpExecutions     map[model.Op]int64
}

// TraceEntry records the value of one node. Count is the number of tuples
// folded into a space node.
type TraceEntry[F core.Float] struct {
	ID       int
	Op       model.Op
	Children []int
	Value    algebra.Tuple[F]
	Count    int
}

// Evaluation is the outcome of evaluating one graph.
type Evaluation[F core.Float] struct {
	ID    uuid.UUID
	Root  algebra.Tuple[F]
	State core.Vector[F]
	Trace []TraceEntry[F]
}

// Engine evaluates folding topologies. It holds no per-batch state and may
// be shared by concurrent callers.
type Engine[F core.Float] struct {
	workers int
	opts    EngineOptions
	logger  *zap.Logger
	stats   ExecutionStats
	mu      sync.RWMutex
}

// NewEngine creates an engine. A nil opts uses DefaultEngineOptions.
func NewEngine[F core.Float](opts *EngineOptions) *Engine[F] {
	engineOpts := DefaultEngineOptions()
	if opts != nil {
		engineOpts = *opts
		if opts.Workers <= 0 {
			engineOpts.Workers = DefaultEngineOptions().Workers
		}
		if opts.Logger == nil {
			engineOpts.Logger = zap.NewNop()
		}
	}
	return &Engine[F]{
		workers: engineOpts.Workers,
		opts:    engineOpts,
		logger:  engineOpts.Logger,
		stats:   ExecutionStats{OpExecutions: make(map[model.Op]int64)},
	}
}

// Workers returns the size of the worker pool.
func (e *Engine[F]) Workers() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.workers
}

// SetWorkers configures the number of worker goroutines for parallel execution
func (e *Engine[F]) SetWorkers(n int) {
	if n > 0 {
		e.mu.Lock()
		e.workers = n
		e.mu.Unlock()
	}
}

// EmbedTokens maps tokens to leaf tuples in parallel, preserving order.
func (e *Engine[F]) EmbedTokens(ctx context.Context, embedder embed.Embedder[F], tokens []uint32) ([]algebra.Tuple[F], error) {
	ctx, span := tracer.Start(ctx, "Engine.EmbedTokens",
		trace.WithAttributes(attribute.Int("embed.tokens", len(tokens))),
	)
	defer span.End()
	start := time.Now()

	leaves := make([]algebra.Tuple[F], len(tokens))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.Workers())
	for i, tok := range tokens {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			t, err := embedder.Embed(tok)
			if err != nil {
				return fmt.Errorf("embed token %d at position %d: %w", tok, i, err)
			}
			if t.Dim() != embedder.Dim() {
				return core.NewDimensionError(fmt.Sprintf("embedding of token %d", tok), embedder.Dim(), t.Dim())
			}
			leaves[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	embedDuration.Observe(time.Since(start).Seconds())
	return leaves, nil
}

// Infer embeds tokens, builds the topology with layers and evaluates it
// against base.
func (e *Engine[F]) Infer(ctx context.Context, embedder embed.Embedder[F], tokens []uint32,
	layers []algebra.Tuple[F], layout model.Layout, base core.Vector[F]) (*Evaluation[F], error) {
	leaves, err := e.EmbedTokens(ctx, embedder, tokens)
	if err != nil {
		return nil, err
	}
	g, err := model.Build(leaves, layers, layout)
	if err != nil {
		return nil, err
	}
	return e.Evaluate(ctx, g, base)
}

// Evaluate computes every node of g and applies the root tuple to base.
func (e *Engine[F]) Evaluate(ctx context.Context, g *model.Graph[F], base core.Vector[F]) (*Evaluation[F], error) {
	if g == nil {
		return nil, errors.New("graph cannot be nil")
	}
	ctx, span := tracer.Start(ctx, "Engine.Evaluate",
		trace.WithAttributes(
			attribute.Int("graph.nodes", g.NodeCount()),
			attribute.Int("graph.dim", g.Dim),
		),
	)
	defer span.End()

	start := time.Now()
	id := uuid.New()
	fail := func(err error) (*Evaluation[F], error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		evaluationsTotal.WithLabelValues(core.KindOf(err).String()).Inc()
		e.recordFailure()
		e.logger.Warn("evaluation failed",
			zap.String("evaluation_id", id.String()),
			zap.String("kind", core.KindOf(err).String()),
			zap.Error(err),
		)
		return nil, err
	}

	if err := g.Validate(); err != nil {
		return fail(err)
	}
	if base.Len() != g.Dim {
		return fail(core.NewDimensionError("base state", g.Dim, base.Len()))
	}

	results := make([]value[F], len(g.Nodes))
	levels := g.Levels()
	for depth, level := range levels {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		if depth == 0 {
			for _, nid := range level {
				results[nid] = leafValue(&g.Nodes[nid])
			}
			continue
		}
		if err := e.evalLevel(ctx, g, level, results); err != nil {
			return fail(err)
		}
	}

	root, err := results[g.Root].asTuple(g.Root)
	if err != nil {
		return fail(err)
	}
	state, err := root.Apply(base)
	if err != nil {
		return fail(err)
	}

	ev := &Evaluation[F]{ID: id, Root: root, State: state}
	if e.opts.RecordTrace {
		ev.Trace = buildTrace(g, results)
	}

	duration := time.Since(start)
	evaluationDuration.Observe(duration.Seconds())
	evaluationsTotal.WithLabelValues("ok").Inc()
	for _, op := range []model.Op{model.OpLeaf, model.OpNeutral, model.OpTime, model.OpSpace} {
		if n := g.Count(op); n > 0 {
			nodeOpsTotal.WithLabelValues(op.String()).Add(float64(n))
		}
	}
	e.recordSuccess(g, duration)

	span.SetAttributes(attribute.Int("graph.levels", len(levels)))
	span.SetStatus(codes.Ok, "")
	e.logger.Debug("evaluation completed",
		zap.String("evaluation_id", id.String()),
		zap.Int("nodes", g.NodeCount()),
		zap.Int("levels", len(levels)),
		zap.Duration("duration", duration),
	)
	return ev, nil
}

// evalLevel evaluates independent nodes of one level on the worker pool.
// Each goroutine writes only its own slot of results.
func (e *Engine[F]) evalLevel(ctx context.Context, g *model.Graph[F], level []int, results []value[F]) error {
	workers := e.Workers()
	if workers == 1 || len(level) == 1 {
		for _, nid := range level {
			v, err := evalNode(g, nid, results)
			if err != nil {
				return err
			}
			results[nid] = v
		}
		return nil
	}

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for _, nid := range level {
		eg.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			v, err := evalNode(g, nid, results)
			if err != nil {
				return err
			}
			results[nid] = v
			return nil
		})
	}
	return eg.Wait()
}

// Stats returns current execution statistics
func (e *Engine[F]) Stats() ExecutionStats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	// Return a copy to avoid races
	stats := e.stats
	stats.OpExecutions = make(map[model.Op]int64)
	for k, v := range e.stats.OpExecutions {
		stats.OpExecutions[k] = v
	}

	return stats
}

func (e *Engine[F]) recordSuccess(g *model.Graph[F], duration time.Duration) {
	if !e.opts.EnableStats {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stats.TotalExecutions++
	n := e.stats.TotalExecutions
	e.stats.AverageLatency += (duration - e.stats.AverageLatency) / time.Duration(n)
	for i := range g.Nodes {
		e.stats.OpExecutions[g.Nodes[i].Op]++
	}
}

func (e *Engine[F]) recordFailure() {
	if !e.opts.EnableStats {
		return
	}
	e.mu.Lock()
	e.stats.FailedExecutions++
	e.mu.Unlock()
}
