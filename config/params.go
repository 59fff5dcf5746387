// Package config holds the tunable parameters of the engine: dimension,
// topology layout, tolerances and training hyper-parameters.
//
// Params are loaded from YAML on top of a preset, overridden from EVOLVER_*
// environment variables and validated with struct tags.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sbl8/evolver/core"
	"github.com/sbl8/evolver/model"
	rt "github.com/sbl8/evolver/runtime"
	"github.com/sbl8/evolver/store"
	"github.com/sbl8/evolver/train"
)

// DefaultDimension is the state dimension used by every preset.
const DefaultDimension = 512

// Params is the complete engine configuration.
type Params struct {
	Dimension int    `yaml:"dimension" validate:"gte=1,lte=8192"`
	Precision string `yaml:"precision" validate:"oneof=float32 float64"`
	// Depth is the number of operator layers appended after the windows.
	Depth int `yaml:"depth" validate:"gte=0,lte=1024"`

	Window   int    `yaml:"window" validate:"gte=1"`
	Grouping string `yaml:"grouping" validate:"grouping"`
	Chunk    int    `yaml:"chunk" validate:"gte=1"`
	Causal   string `yaml:"causal" validate:"causal"`
	// Workers bounds evaluation parallelism. Zero means one per CPU.
	Workers int `yaml:"workers" validate:"gte=0"`

	Tolerances Tolerances `yaml:"tolerances"`

	Damping        float64 `yaml:"damping" validate:"gte=0"`
	LearningRate   float64 `yaml:"learning_rate" validate:"gt=0,lte=1"`
	LipschitzBound float64 `yaml:"lipschitz_bound" validate:"gte=0.9,lte=2"`

	// StorePath is the layer database directory. Empty keeps layers in memory.
	StorePath string `yaml:"store_path"`
	Seed      int64  `yaml:"seed"`
}

// Tolerances are the numeric acceptance thresholds.
type Tolerances struct {
	Fold   float64 `yaml:"fold" validate:"gt=0"`
	Assoc  float64 `yaml:"assoc" validate:"gt=0"`
	Solve  float64 `yaml:"solve" validate:"gte=0"`
	Verify float64 `yaml:"verify" validate:"gt=0"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("grouping", func(fl validator.FieldLevel) bool {
		_, err := model.ParseGrouping(fl.Field().String())
		return err == nil
	})
	_ = validate.RegisterValidation("causal", func(fl validator.FieldLevel) bool {
		_, err := model.ParseCausal(fl.Field().String())
		return err == nil
	})
}

func preset(depth int, lr, lipschitz, eps float64) Params {
	return Params{
		Dimension: DefaultDimension,
		Precision: "float64",
		Depth:     depth,
		Window:    8,
		Grouping:  "flat",
		Chunk:     4,
		Causal:    "chain",
		Tolerances: Tolerances{
			Fold:   1e-12,
			Assoc:  1e-9,
			Solve:  eps,
			Verify: eps,
		},
		Damping:        1e-6,
		LearningRate:   lr,
		LipschitzBound: lipschitz,
	}
}

// Default is the balanced preset.
func Default() Params { return preset(12, 1e-3, 1.05, 1e-4) }

// HighFidelity trades speed for tighter tolerances and a near-isometric bound.
func HighFidelity() Params { return preset(24, 5e-4, 1.01, 1e-6) }

// FastInference uses a shallow stack and loose tolerances.
func FastInference() Params { return preset(6, 1e-2, 1.10, 1e-3) }

// Preset returns the named preset: "default", "high-fidelity" or
// "fast-inference".
func Preset(name string) (Params, error) {
	switch strings.ToLower(name) {
	case "", "default":
		return Default(), nil
	case "high-fidelity":
		return HighFidelity(), nil
	case "fast-inference":
		return FastInference(), nil
	}
	return Params{}, fmt.Errorf("unknown preset %q", name)
}

// Validate checks every field against its constraints.
func (p Params) Validate() error {
	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			f := verrs[0]
			return fmt.Errorf("invalid %s: %v fails %q", f.Namespace(), f.Value(), f.Tag())
		}
		return err
	}
	return nil
}

// Load reads a YAML file over base, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string, base Params) (Params, error) {
	p := base
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return p, fmt.Errorf("load config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &p); err != nil {
			return p, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(&p)
	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("invalid config: %w", err)
	}
	return p, nil
}

func applyEnv(p *Params) {
	if v := os.Getenv("EVOLVER_DIMENSION"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			p.Dimension = i
		}
	}
	if v := os.Getenv("EVOLVER_PRECISION"); v != "" {
		p.Precision = v
	}
	if v := os.Getenv("EVOLVER_WORKERS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			p.Workers = i
		}
	}
	if v := os.Getenv("EVOLVER_STORE_PATH"); v != "" {
		p.StorePath = v
	}
}

// Marshal renders p as YAML.
func (p Params) Marshal() ([]byte, error) {
	return yaml.Marshal(p)
}

// Layout returns the topology layout. p must be valid.
func (p Params) Layout() model.Layout {
	g, _ := model.ParseGrouping(p.Grouping)
	c, _ := model.ParseCausal(p.Causal)
	return model.Layout{Window: p.Window, Grouping: g, Chunk: p.Chunk, Causal: c}
}

// EngineOptions returns runtime options with p's worker count.
func (p Params) EngineOptions(logger *zap.Logger) rt.EngineOptions {
	opts := rt.DefaultEngineOptions()
	if p.Workers > 0 {
		opts.Workers = p.Workers
	} else {
		opts.Workers = runtime.NumCPU()
	}
	opts.EnableStats = true
	if logger != nil {
		opts.Logger = logger
	}
	return opts
}

// StoreConfig returns the layer store settings. An empty StorePath yields an
// in-memory database.
func (p Params) StoreConfig(logger *zap.Logger) store.Config {
	var cfg store.Config
	if p.StorePath == "" {
		cfg = store.InMemoryConfig()
	} else {
		cfg = store.DefaultConfig(p.StorePath)
	}
	cfg.Logger = logger
	return cfg
}

// TrainOptions converts the training fields to trainer options.
func TrainOptions[F core.Float](p Params, logger *zap.Logger) train.Options[F] {
	return train.Options[F]{
		Damping:        F(p.Damping),
		Tolerance:      p.Tolerances.Solve,
		LearningRate:   F(p.LearningRate),
		LipschitzBound: p.LipschitzBound,
		Logger:         logger,
	}
}
