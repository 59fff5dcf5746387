package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sbl8/evolver/core"
	"github.com/sbl8/evolver/embed"
	"github.com/sbl8/evolver/oracle"
	"github.com/sbl8/evolver/runtime"
)

var (
	runVocab  int
	runTopK   int
	runExpect string
	runTrace  bool
	runEps    float64
)

var runCmd = &cobra.Command{
	Use:   "run [tokens...]",
	Short: "Evaluate a token sequence through the stored layer stack",
	Long: `run embeds each token, folds the tokens window by window, composes the
windows and the layer stack in order and applies the result to the zero state.

The state is verified against the vocabulary codebook before anything is
ranked. When it lands farther than the verify tolerance from every known
token, run abstains and reports the nearest token instead of a ranking.

Tokens are unsigned integers; any other word is hashed to a token. Without
arguments, tokens are read from standard input.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		tokens, err := readTokens(args, cmd.InOrStdin())
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()
		return withPrecision(
			func() error { return runInfer[float32](ctx, cmd, tokens) },
			func() error { return runInfer[float64](ctx, cmd, tokens) },
		)
	},
}

func init() {
	runCmd.Flags().IntVar(&runVocab, "vocab", 32, "Size of the token vocabulary ranked against the state")
	runCmd.Flags().IntVarP(&runTopK, "top", "k", 5, "Number of ranked tokens to print")
	runCmd.Flags().StringVar(&runExpect, "expect", "", "Token the state must land on")
	runCmd.Flags().BoolVar(&runTrace, "trace", false, "Print every node of the evaluation")
	runCmd.Flags().Float64Var(&runEps, "eps", 0, "Verify tolerance (0 uses the configured tolerance)")
}

// tokenOf parses an unsigned integer token or hashes the word with FNV-1a.
func tokenOf(word string) uint32 {
	if v, err := strconv.ParseUint(word, 10, 32); err == nil {
		return uint32(v)
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(word))
	return h.Sum32()
}

func readTokens(args []string, stdin io.Reader) ([]uint32, error) {
	var words []string
	if len(args) > 0 {
		words = args
	} else {
		scanner := bufio.NewScanner(stdin)
		scanner.Split(bufio.ScanWords)
		for scanner.Scan() {
			words = append(words, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read tokens: %w", err)
		}
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("no tokens given")
	}
	tokens := make([]uint32, len(words))
	for i, w := range words {
		tokens[i] = tokenOf(strings.TrimSpace(w))
	}
	return tokens, nil
}

func runInfer[F core.Float](ctx context.Context, cmd *cobra.Command, tokens []uint32) error {
	s, err := openStore[F]()
	if err != nil {
		return err
	}
	defer s.Close()

	layers, err := loadOrInitLayers(ctx, s)
	if err != nil {
		return err
	}
	embedder, err := embed.NewHashEmbedder[F](params.Dimension)
	if err != nil {
		return err
	}

	opts := params.EngineOptions(logger)
	opts.RecordTrace = runTrace
	engine := runtime.NewEngine[F](&opts)

	eval, err := engine.Infer(ctx, embedder, tokens, layers, params.Layout(), core.Zeros[F](params.Dimension))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "evaluation %s: %d tokens, %d layers, |state|=%.6f\n",
		eval.ID, len(tokens), len(layers), eval.State.Norm())

	if runTrace {
		for _, e := range eval.Trace {
			fmt.Fprintf(out, "  node %-4d %-7s children=%v count=%d |W|=%.6f\n",
				e.ID, e.Op, e.Children, e.Count, e.Value.Linear().FrobeniusNorm())
		}
	}

	eps := params.Tolerances.Verify
	if runEps > 0 {
		eps = runEps
	}
	if runExpect != "" {
		want := tokenOf(runExpect)
		region := oracle.Point[F]{Token: want, Coordinate: embedder.Vector(want)}
		m, err := oracle.Verify(eval.State, region, eps)
		if err != nil {
			logger.Warn("state off the expected coordinate", zap.Uint32("token", want), zap.Error(err))
			return err
		}
		fmt.Fprintf(out, "verified token %d at distance %.3g\n", m.Token, m.Distance)
	}

	vocab := make([]uint32, runVocab)
	for i := range vocab {
		vocab[i] = uint32(i)
	}
	vocab = append(vocab, tokens...)
	cb, err := embed.CodebookFrom[F](embedder, vocab)
	if err != nil {
		return err
	}
	if _, err := oracle.Verify(eval.State, cb, eps); err != nil {
		var mismatch *core.CoordinateMismatchError
		if !errors.As(err, &mismatch) {
			return err
		}
		logger.Info("abstaining", zap.Float64("distance", mismatch.Distance), zap.Float64("eps", eps))
		if mismatch.HasNearest {
			fmt.Fprintf(out, "abstain: state is %.6g from nearest token %d (eps %.3g)\n",
				mismatch.Distance, mismatch.Token, eps)
		} else {
			fmt.Fprintf(out, "abstain: no known token (eps %.3g)\n", eps)
		}
		return nil
	}

	proj, err := embed.ProjectorFrom(cb)
	if err != nil {
		return err
	}
	ranked, err := proj.Rank(eval.State, runTopK)
	if err != nil {
		return err
	}
	for i, sc := range ranked {
		fmt.Fprintf(out, "  #%d token %-10d score %.6f\n", i+1, sc.Token, sc.Score)
	}
	return nil
}
