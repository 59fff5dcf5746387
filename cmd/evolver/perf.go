package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	goruntime "runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/sbl8/evolver/algebra"
	"github.com/sbl8/evolver/core"
	"github.com/sbl8/evolver/embed"
	"github.com/sbl8/evolver/kernels"
	"github.com/sbl8/evolver/model"
	"github.com/sbl8/evolver/runtime"
)

var (
	perfTest string
	perfSize int
	perfIter int
)

var perfCmd = &cobra.Command{
	Use:   "perf",
	Short: "Measure kernel, fold and evaluation throughput",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		return withPrecision(
			func() error { return runPerf[float32](ctx, cmd.OutOrStdout()) },
			func() error { return runPerf[float64](ctx, cmd.OutOrStdout()) },
		)
	},
}

func init() {
	perfCmd.Flags().StringVar(&perfTest, "test", "all", "Test type: all, vector, matrix, fold, engine")
	perfCmd.Flags().IntVar(&perfSize, "size", 1024, "Vector length for vector tests")
	perfCmd.Flags().IntVar(&perfIter, "iter", 1000, "Number of iterations")
}

func runPerf[F core.Float](ctx context.Context, out io.Writer) error {
	fmt.Fprintf(out, "Evolver Performance Analysis\n")
	fmt.Fprintf(out, "============================\n")
	fmt.Fprintf(out, "Go Version: %s\n", goruntime.Version())
	fmt.Fprintf(out, "OS/Arch: %s/%s\n", goruntime.GOOS, goruntime.GOARCH)
	fmt.Fprintf(out, "CPUs: %d\n", goruntime.NumCPU())
	fmt.Fprintf(out, "Precision: %s\n", params.Precision)
	fmt.Fprintf(out, "Iterations: %d\n\n", perfIter)

	switch perfTest {
	case "all":
		perfVector[F](out)
		perfMatrix[F](out)
		if err := perfFold[F](out); err != nil {
			return err
		}
		return perfEngine[F](ctx, out)
	case "vector":
		perfVector[F](out)
	case "matrix":
		perfMatrix[F](out)
	case "fold":
		return perfFold[F](out)
	case "engine":
		return perfEngine[F](ctx, out)
	default:
		return fmt.Errorf("unknown test type: %s", perfTest)
	}
	return nil
}

func perfVector[F core.Float](out io.Writer) {
	fmt.Fprintf(out, "Vector Operations\n")
	fmt.Fprintf(out, "-----------------\n")

	a := generate[F](perfSize)
	b := generate[F](perfSize)
	mops := func(d time.Duration) float64 {
		return float64(perfSize*perfIter) / d.Seconds() / 1e6
	}

	start := time.Now()
	for i := 0; i < perfIter; i++ {
		_ = kernels.Add(a, b)
	}
	add := time.Since(start)

	dst := make([]F, len(a))
	start = time.Now()
	for i := 0; i < perfIter; i++ {
		copy(dst, a)
		kernels.AddInPlace(dst, b)
	}
	addInPlace := time.Since(start)

	start = time.Now()
	for i := 0; i < perfIter; i++ {
		kernels.Axpy(0.5, a, dst)
	}
	axpy := time.Since(start)

	start = time.Now()
	for i := 0; i < perfIter; i++ {
		_ = kernels.Dot(a, b)
	}
	dot := time.Since(start)

	fmt.Fprintf(out, "Vector Add (allocating):     %v (%.2f Mops/s)\n", add, mops(add))
	fmt.Fprintf(out, "Vector Add (in-place):       %v (%.2f Mops/s)\n", addInPlace, mops(addInPlace))
	fmt.Fprintf(out, "Axpy:                        %v (%.2f Mops/s)\n", axpy, mops(axpy))
	fmt.Fprintf(out, "Dot Product:                 %v (%.2f Mops/s)\n\n", dot, mops(dot))
}

func perfMatrix[F core.Float](out io.Writer) {
	fmt.Fprintf(out, "Matrix Operations\n")
	fmt.Fprintf(out, "-----------------\n")

	iters := max(perfIter/10, 1)
	for _, n := range []int{32, 64, 128} {
		a := generate[F](n * n)
		b := generate[F](n * n)

		start := time.Now()
		for i := 0; i < iters; i++ {
			_ = kernels.MatMul(a, n, n, b, n)
		}
		d := time.Since(start)
		ops := int64(n) * int64(n) * int64(n) * 2 * int64(iters)
		fmt.Fprintf(out, "Matrix Multiply %dx%d:       %v (%.2f GFLOPS)\n", n, n, d, float64(ops)/d.Seconds()/1e9)
	}
	fmt.Fprintln(out)
}

func perfFold[F core.Float](out io.Writer) error {
	fmt.Fprintf(out, "Fold and Compose (dim %d)\n", params.Dimension)
	fmt.Fprintf(out, "-------------------------\n")

	iters := max(perfIter/100, 1)
	tuples := make([]algebra.Tuple[F], 16)
	for i := range tuples {
		tuples[i] = embed.XavierTuple[F](params.Dimension, int64(i))
	}

	start := time.Now()
	for i := 0; i < iters; i++ {
		if _, err := algebra.Fold(tuples...); err != nil {
			return err
		}
	}
	fold := time.Since(start)

	start = time.Now()
	for i := 0; i < iters; i++ {
		if _, err := algebra.ComposeAll(tuples[:4]...); err != nil {
			return err
		}
	}
	compose := time.Since(start)

	fmt.Fprintf(out, "Fold 16 tuples:              %v per fold\n", fold/time.Duration(iters))
	fmt.Fprintf(out, "Compose 4 tuples:            %v per chain\n\n", compose/time.Duration(iters))
	return nil
}

func perfEngine[F core.Float](ctx context.Context, out io.Writer) error {
	fmt.Fprintf(out, "Engine Evaluation\n")
	fmt.Fprintf(out, "-----------------\n")

	embedder, err := embed.NewHashEmbedder[F](params.Dimension)
	if err != nil {
		return err
	}
	tokens := make([]uint32, 4*params.Window)
	for i := range tokens {
		tokens[i] = uint32(i)
	}
	layers := []algebra.Tuple[F]{embed.XavierTuple[F](params.Dimension, params.Seed)}
	base := core.Zeros[F](params.Dimension)
	iters := max(perfIter/100, 1)

	for _, layout := range []model.Layout{
		params.Layout(),
		{Window: params.Window, Grouping: model.GroupBinary, Chunk: params.Chunk, Causal: model.CausalTree},
	} {
		opts := params.EngineOptions(logger)
		engine := runtime.NewEngine[F](&opts)
		start := time.Now()
		for i := 0; i < iters; i++ {
			if _, err := engine.Infer(ctx, embedder, tokens, layers, layout, base); err != nil {
				return err
			}
		}
		d := time.Since(start)
		fmt.Fprintf(out, "%-8s/%-6s %d tokens:  %v per evaluation (%d workers)\n",
			layout.Grouping, layout.Causal, len(tokens), d/time.Duration(iters), engine.Workers())
	}
	fmt.Fprintln(out)
	return nil
}

func generate[F core.Float](n int) []F {
	data := make([]F, n)
	for i := range data {
		data[i] = F(rand.Float64()*200 - 100)
	}
	return data
}
