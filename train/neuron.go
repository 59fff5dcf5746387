// Package train adjusts affine operators so that a known input maps onto a
// known target.
//
// Two update modes are available. The analytic mode asks the oracle for the
// damped least-squares correction of the linear part and then re-solves the
// translation exactly. When the oracle reports SingularInput the trainer
// falls back to a single gradient-descent step on the linear part.
package train

import (
	"github.com/sbl8/evolver/algebra"
	"github.com/sbl8/evolver/core"
)

// Neuron holds a state vector and the affine gate applied to its input.
// A Neuron is not safe for concurrent use.
type Neuron[F core.Float] struct {
	State core.Vector[F]
	Gate  algebra.Tuple[F]
}

// NewNeuron returns a neuron at the origin with an identity gate.
func NewNeuron[F core.Float](d int) *Neuron[F] {
	return &Neuron[F]{State: core.Zeros[F](d), Gate: algebra.Identity[F](d)}
}

// NeuronWith returns a neuron at the origin with the given gate.
func NeuronWith[F core.Float](gate algebra.Tuple[F]) *Neuron[F] {
	return &Neuron[F]{State: core.Zeros[F](gate.Dim()), Gate: gate}
}

// Absorb applies the gate to input, stores the result as the new state and
// returns it.
func (n *Neuron[F]) Absorb(input core.Vector[F]) (core.Vector[F], error) {
	out, err := n.Gate.Apply(input)
	if err != nil {
		return core.Vector[F]{}, err
	}
	n.State = out
	return out, nil
}

// ForceLearnBias sets the translation to target - W·input, so that the gate
// maps input exactly onto target.
func (n *Neuron[F]) ForceLearnBias(input, target core.Vector[F]) error {
	predicted, err := n.Gate.Linear().MulVec(input)
	if err != nil {
		return err
	}
	bias, err := target.Sub(predicted)
	if err != nil {
		return err
	}
	if !bias.IsFinite() {
		return &core.OverflowError{Op: "force bias"}
	}
	gate, err := algebra.New(n.Gate.Linear(), bias)
	if err != nil {
		return err
	}
	n.Gate = gate
	return nil
}

// VerifyIntegrity reports NumericOverflow if the state or gate holds NaN or Inf.
func (n *Neuron[F]) VerifyIntegrity() error {
	if !n.State.IsFinite() {
		return &core.OverflowError{Op: "neuron state"}
	}
	if !n.Gate.IsFinite() {
		return &core.OverflowError{Op: "neuron gate"}
	}
	return nil
}
