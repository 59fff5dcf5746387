package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sbl8/evolver/config"
	"github.com/sbl8/evolver/core"
	"github.com/sbl8/evolver/embed"
	"github.com/sbl8/evolver/store"
	"github.com/sbl8/evolver/train"
)

var (
	solveLayer  string
	solveInput  string
	solveTarget string
	solveDryRun bool
)

var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Correct a stored layer so that an input maps onto a target",
	Long: `solve runs one training step on a stored layer: the damped least-squares
correction of the linear part followed by an exact re-solve of the
translation. When the correction is singular a gradient step is taken.

--input and --target take either comma-separated values or a single token,
which is replaced by its embedding.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if solveInput == "" || solveTarget == "" {
			return fmt.Errorf("--input and --target are required")
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()
		return withPrecision(
			func() error { return runSolve[float32](ctx, cmd) },
			func() error { return runSolve[float64](ctx, cmd) },
		)
	},
}

func init() {
	solveCmd.Flags().StringVar(&solveLayer, "layer", "", "Layer to correct (default: last layer of the stack)")
	solveCmd.Flags().StringVar(&solveInput, "input", "", "Input state or token")
	solveCmd.Flags().StringVar(&solveTarget, "target", "", "Target state or token")
	solveCmd.Flags().BoolVar(&solveDryRun, "dry-run", false, "Report without saving the corrected layer")
}

// parseState reads comma-separated values, or embeds a single token.
func parseState[F core.Float](s string, e *embed.HashEmbedder[F]) (core.Vector[F], error) {
	if !strings.Contains(s, ",") {
		return e.Vector(tokenOf(strings.TrimSpace(s))), nil
	}
	fields := strings.Split(s, ",")
	values := make([]F, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return core.Vector[F]{}, fmt.Errorf("value %d: %w", i, err)
		}
		values[i] = F(v)
	}
	if len(values) != e.Dim() {
		return core.Vector[F]{}, core.NewDimensionError("state", e.Dim(), len(values))
	}
	return core.NewVector(values...), nil
}

func runSolve[F core.Float](ctx context.Context, cmd *cobra.Command) error {
	embedder, err := embed.NewHashEmbedder[F](params.Dimension)
	if err != nil {
		return err
	}
	input, err := parseState(solveInput, embedder)
	if err != nil {
		return fmt.Errorf("input: %w", err)
	}
	target, err := parseState(solveTarget, embedder)
	if err != nil {
		return fmt.Errorf("target: %w", err)
	}

	s, err := openStore[F]()
	if err != nil {
		return err
	}
	defer s.Close()

	layer := solveLayer
	if layer == "" {
		layers, err := loadOrInitLayers(ctx, s)
		if err != nil {
			return err
		}
		if len(layers) == 0 {
			return fmt.Errorf("stack %s has no layers", stackName)
		}
		layer = store.LayerName(stackName, len(layers)-1)
	}
	gate, err := s.Load(ctx, layer)
	if err != nil {
		return err
	}

	trainer, err := train.NewTrainer(config.TrainOptions[F](params, logger))
	if err != nil {
		return err
	}
	n := train.NeuronWith(gate)
	rep, err := trainer.Step(ctx, n, input, target)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "step %s on %s: mode=%s loss %.6g -> %.6g |W|=%.6f\n",
		rep.ID, layer, rep.Mode, rep.InitialLoss, rep.FinalLoss, rep.Norm)
	if rep.LipschitzExceeded {
		fmt.Fprintf(cmd.OutOrStdout(), "warning: |W| above Lipschitz bound %.3f\n", params.LipschitzBound)
	}

	if solveDryRun || rep.Mode == train.ModeSkipped {
		return nil
	}
	if err := s.Save(ctx, layer, n.Gate); err != nil {
		return err
	}
	logger.Info("layer corrected", zap.String("layer", layer), zap.Stringer("mode", rep.Mode))
	return nil
}
