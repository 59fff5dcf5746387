// Package evolver implements a dual-operator algebra over affine maps.
//
// Every token, window and layer is an affine tuple (W, b) acting on a state
// vector as x ↦ W·x + b. Two operators combine tuples:
//
//   - Time composition is ordered and associative: applying A then B equals
//     applying Compose(A, B), and Compose(A, B) differs from Compose(B, A)
//     in general.
//   - Space folding is commutative: the fold of a group of tuples is their
//     arithmetic mean, computed by summing first and normalizing once, so
//     any grouping or partitioning of the same multiset gives the same result
//     within floating-point rounding.
//
// A folding topology arranges leaf tuples in windows that are folded in
// space, then chains the windows and the model's layers in time. The root
// tuple is applied to a base state and the consistency oracle checks that
// the result lands on a known coordinate. When it does not, the oracle
// computes a damped least-squares correction of the linear part.
//
// # Package Structure
//
//   - kernels: generic dense float kernels (matrix products, axpy, outer)
//   - core: immutable Vector and Matrix values and the error kinds
//   - algebra: Tuple, Compose/ComposeAll, Partial/Accumulator/Fold
//   - model: the folding graph and the layouts that build it
//   - runtime: the level-parallel evaluation engine
//   - oracle: coordinate verification and the correction solver
//   - embed: token embedders, codebooks and vocabulary projection
//   - store: binary codec and memory/BadgerDB layer stores
//   - train: neurons, the solver-first trainer and gradient fallback
//   - config: presets, YAML loading and validation
//   - cmd/evolver: command-line interface (run, solve, layers, perf, params)
//
// # Basic Usage
//
//	embedder, _ := embed.NewHashEmbedder[float64](64)
//	engine := runtime.NewEngine[float64](nil)
//	eval, err := engine.Infer(ctx, embedder, tokens, layers, model.DefaultLayout(), core.Zeros[float64](64))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	_, err = oracle.Verify(eval.State, codebook, 1e-4)
package evolver
