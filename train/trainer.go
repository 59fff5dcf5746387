package train

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sbl8/evolver/algebra"
	"github.com/sbl8/evolver/core"
	"github.com/sbl8/evolver/oracle"
)

var tracer = otel.Tracer("evolver.train")

// Mode is the update a training step applied.
type Mode uint8

const (
	ModeSkipped  Mode = iota // loss already under tolerance
	ModeSolver               // analytic correction plus bias fix
	ModeGradient             // gradient-descent fallback
)

func (m Mode) String() string {
	switch m {
	case ModeSkipped:
		return "skipped"
	case ModeSolver:
		return "solver"
	case ModeGradient:
		return "gradient"
	default:
		return "unknown"
	}
}

// Options configures a Trainer.
type Options[F core.Float] struct {
	// Damping is the λ passed to the solver.
	Damping F
	// Tolerance is the loss below which a step does nothing.
	Tolerance float64
	// LearningRate drives the gradient fallback.
	LearningRate F
	// LipschitzBound is the Frobenius norm above which a warning is logged.
	// Zero disables the check.
	LipschitzBound float64
	Logger         *zap.Logger
}

// Report describes one training step.
type Report struct {
	ID                uuid.UUID
	Mode              Mode
	InitialLoss       float64
	FinalLoss         float64
	Norm              float64 // Frobenius norm of the linear part after the step
	LipschitzExceeded bool
}

// Sample is an input and the state it should map to.
type Sample[F core.Float] struct {
	Input  core.Vector[F]
	Target core.Vector[F]
}

// Trainer applies solver or gradient steps to neurons.
type Trainer[F core.Float] struct {
	opts      Options[F]
	optimizer Optimizer[F]
	logger    *zap.Logger
}

// NewTrainer validates opts and returns a trainer.
func NewTrainer[F core.Float](opts Options[F]) (*Trainer[F], error) {
	if d := float64(opts.Damping); math.IsNaN(d) || d < 0 {
		return nil, fmt.Errorf("damping must be non-negative, got %v", opts.Damping)
	}
	if lr := float64(opts.LearningRate); math.IsNaN(lr) || lr <= 0 {
		return nil, fmt.Errorf("learning rate must be positive, got %v", opts.LearningRate)
	}
	if opts.Tolerance < 0 || opts.LipschitzBound < 0 {
		return nil, errors.New("tolerance and Lipschitz bound must be non-negative")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trainer[F]{
		opts:      opts,
		optimizer: Optimizer[F]{LearningRate: opts.LearningRate},
		logger:    logger,
	}, nil
}

// Step moves n so that input maps closer to target.
//
// When the loss is already below the tolerance the neuron is left alone.
// Otherwise the oracle's correction is added to the linear part and the
// translation is re-solved, which makes the output exact up to rounding. If
// the oracle reports SingularInput, one gradient step on both the linear
// part and the translation is taken instead.
// On error n may hold a partially updated state but its gate is unchanged.
func (t *Trainer[F]) Step(ctx context.Context, n *Neuron[F], input, target core.Vector[F]) (rep Report, err error) {
	rep.ID = uuid.New()
	_, span := tracer.Start(ctx, "Trainer.Step", trace.WithAttributes(
		attribute.String("step.id", rep.ID.String()),
		attribute.Int("dim", input.Len()),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			stepsTotal.WithLabelValues("error").Inc()
		} else {
			span.SetAttributes(attribute.String("mode", rep.Mode.String()))
			stepsTotal.WithLabelValues(rep.Mode.String()).Inc()
			finalLoss.Observe(rep.FinalLoss)
		}
		span.End()
	}()

	observed, err := n.Absorb(input)
	if err != nil {
		return rep, fmt.Errorf("forward pass: %w", err)
	}
	if rep.InitialLoss, err = oracle.Loss(observed, target); err != nil {
		return rep, err
	}
	if rep.InitialLoss < t.opts.Tolerance {
		rep.Mode = ModeSkipped
		rep.FinalLoss = rep.InitialLoss
		rep.Norm = n.Gate.Linear().FrobeniusNorm()
		return rep, nil
	}

	gate, mode, err := t.update(n.Gate, input, observed, target)
	if err != nil {
		return rep, err
	}
	prev := n.Gate
	n.Gate = gate
	if mode == ModeSolver {
		if err := n.ForceLearnBias(input, target); err != nil {
			n.Gate = prev
			return rep, err
		}
	}
	rep.Mode = mode

	out, err := n.Absorb(input)
	if err != nil {
		n.Gate = prev
		return rep, err
	}
	if err := n.VerifyIntegrity(); err != nil {
		n.Gate = prev
		return rep, err
	}
	if rep.FinalLoss, err = oracle.Loss(out, target); err != nil {
		return rep, err
	}

	rep.Norm = n.Gate.Linear().FrobeniusNorm()
	if t.opts.LipschitzBound > 0 && rep.Norm > t.opts.LipschitzBound {
		rep.LipschitzExceeded = true
		lipschitzWarnings.Inc()
		t.logger.Warn("linear part exceeds Lipschitz bound",
			zap.String("step", rep.ID.String()),
			zap.Float64("norm", rep.Norm),
			zap.Float64("bound", t.opts.LipschitzBound))
	}

	t.logger.Debug("training step",
		zap.String("step", rep.ID.String()),
		zap.Stringer("mode", rep.Mode),
		zap.Float64("initial_loss", rep.InitialLoss),
		zap.Float64("final_loss", rep.FinalLoss))
	return rep, nil
}

func (t *Trainer[F]) update(gate algebra.Tuple[F], input, observed, target core.Vector[F]) (algebra.Tuple[F], Mode, error) {
	c, err := oracle.SolveCorrection(input, observed, target, t.opts.Damping)
	if err == nil {
		next, err := oracle.ApplyCorrection(gate, c)
		return next, ModeSolver, err
	}
	if !errors.Is(err, core.ErrSingularInput) {
		return algebra.Tuple[F]{}, ModeSolver, err
	}

	t.logger.Debug("solver singular, taking gradient step", zap.Error(err))
	grad, err := Gradient(input, observed, target)
	if err != nil {
		return algebra.Tuple[F]{}, ModeGradient, err
	}
	w, err := t.optimizer.ApplyGradient(gate.Linear(), grad)
	if err != nil {
		return algebra.Tuple[F]{}, ModeGradient, err
	}
	// A zero input has a zero weight gradient, so only the bias moves.
	biasGrad, err := BiasGradient(observed, target)
	if err != nil {
		return algebra.Tuple[F]{}, ModeGradient, err
	}
	b, err := t.optimizer.ApplyBiasGradient(gate.Translation(), biasGrad)
	if err != nil {
		return algebra.Tuple[F]{}, ModeGradient, err
	}
	next, err := algebra.New(w, b)
	return next, ModeGradient, err
}

// Fit runs one Step per sample in order and stops at the first error.
func (t *Trainer[F]) Fit(ctx context.Context, n *Neuron[F], samples []Sample[F]) ([]Report, error) {
	reports := make([]Report, 0, len(samples))
	for i, s := range samples {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		rep, err := t.Step(ctx, n, s.Input, s.Target)
		if err != nil {
			return reports, fmt.Errorf("sample %d: %w", i, err)
		}
		reports = append(reports, rep)
	}
	return reports, nil
}
