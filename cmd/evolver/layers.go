package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sbl8/evolver/algebra"
	"github.com/sbl8/evolver/core"
	"github.com/sbl8/evolver/embed"
	"github.com/sbl8/evolver/store"
)

var stackName string

var layersCmd = &cobra.Command{
	Use:   "layers",
	Short: "List stored operator layers",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		return withPrecision(
			func() error { return listLayers[float32](ctx, cmd) },
			func() error { return listLayers[float64](ctx, cmd) },
		)
	},
}

func init() {
	for _, c := range []*cobra.Command{runCmd, solveCmd, layersCmd} {
		c.Flags().StringVar(&stackName, "stack", "model", "Name of the layer stack in the store")
	}
}

func openStore[F core.Float]() (*store.BadgerStore[F], error) {
	return store.NewBadgerStore[F](params.StoreConfig(logger))
}

// loadOrInitLayers returns the stored stack, creating params.Depth
// Xavier-initialised layers first if the stack is empty.
func loadOrInitLayers[F core.Float](ctx context.Context, s store.Store[F]) ([]algebra.Tuple[F], error) {
	layers, err := store.LoadStack(ctx, s, stackName)
	if err != nil {
		return nil, err
	}
	if len(layers) > 0 {
		if layers[0].Dim() != params.Dimension {
			return nil, core.NewDimensionError("stored stack "+stackName, params.Dimension, layers[0].Dim())
		}
		return layers, nil
	}

	layers = make([]algebra.Tuple[F], params.Depth)
	for i := range layers {
		layers[i] = embed.XavierTuple[F](params.Dimension, params.Seed+int64(i))
	}
	if err := store.SaveStack(ctx, s, stackName, layers); err != nil {
		return nil, err
	}
	logger.Info("initialised layer stack",
		zap.String("stack", stackName),
		zap.Int("depth", len(layers)),
		zap.Int("dimension", params.Dimension))
	return layers, nil
}

func listLayers[F core.Float](ctx context.Context, cmd *cobra.Command) error {
	s, err := openStore[F]()
	if err != nil {
		return err
	}
	defer s.Close()

	names, err := s.Layers(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, name := range names {
		t, err := s.Load(ctx, name)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%-24s dim=%-5d |W|=%.6f |b|=%.6f\n",
			name, t.Dim(), t.Linear().FrobeniusNorm(), t.Translation().Norm())
	}
	if len(names) == 0 {
		fmt.Fprintln(out, "no layers stored")
	}
	return nil
}

var paramsCmd = &cobra.Command{
	Use:   "params",
	Short: "Print the effective parameters as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := params.Marshal()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}
