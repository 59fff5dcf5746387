// Command evolver evaluates folding topologies over token sequences, fits
// stored operator layers to targets and measures kernel throughput.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sbl8/evolver/config"
)

var (
	configPath string
	presetName string
	verbose    bool
	dev        bool
	timeout    time.Duration

	logger *zap.Logger
	params config.Params
)

var rootCmd = &cobra.Command{
	Use:   "evolver",
	Short: "Dual-operator affine algebra engine",
	Long: `evolver folds token embeddings with the commutative space operator,
chains the results and stored layers with the ordered time operator, and
checks the resulting state against known coordinates.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var zcfg zap.Config
		if dev {
			zcfg = zap.NewDevelopmentConfig()
		} else {
			zcfg = zap.NewProductionConfig()
		}
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		if logger, err = zcfg.Build(); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		base, err := config.Preset(presetName)
		if err != nil {
			return err
		}
		if params, err = config.Load(configPath, base); err != nil {
			return err
		}
		logger.Debug("configuration loaded",
			zap.String("preset", presetName),
			zap.Int("dimension", params.Dimension),
			zap.String("precision", params.Precision))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML parameter file")
	rootCmd.PersistentFlags().StringVar(&presetName, "preset", "default", "Parameter preset: default, high-fidelity, fast-inference")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&dev, "dev", false, "Human-readable development logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Operation timeout")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(solveCmd)
	rootCmd.AddCommand(layersCmd)
	rootCmd.AddCommand(perfCmd)
	rootCmd.AddCommand(paramsCmd)
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}

// withPrecision runs the instantiation matching params.Precision.
func withPrecision(f32, f64 func() error) error {
	if params.Precision == "float32" {
		return f32()
	}
	return f64()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
