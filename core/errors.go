package core

import (
	"errors"
	"fmt"
)

// Kind classifies engine failures. Callers branch on the kind: a mismatch
// leads to abstention, a singular input to a gradient fallback, and so on.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindDimensionMismatch
	KindEmptyFold
	KindCoordinateMismatch
	KindSingularInput
	KindNumericOverflow
)

func (k Kind) String() string {
	switch k {
	case KindDimensionMismatch:
		return "dimension_mismatch"
	case KindEmptyFold:
		return "empty_fold"
	case KindCoordinateMismatch:
		return "coordinate_mismatch"
	case KindSingularInput:
		return "singular_input"
	case KindNumericOverflow:
		return "numeric_overflow"
	default:
		return "unknown"
	}
}

// Sentinel errors, one per kind. Detail errors below unwrap to these.
var (
	ErrDimensionMismatch  = errors.New("dimension mismatch")
	ErrEmptyFold          = errors.New("empty fold")
	ErrCoordinateMismatch = errors.New("coordinate mismatch")
	ErrSingularInput      = errors.New("singular input")
	ErrNumericOverflow    = errors.New("numeric overflow")
)

// KindOf reports the kind of err, looking through wrapped errors.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrDimensionMismatch):
		return KindDimensionMismatch
	case errors.Is(err, ErrEmptyFold):
		return KindEmptyFold
	case errors.Is(err, ErrCoordinateMismatch):
		return KindCoordinateMismatch
	case errors.Is(err, ErrSingularInput):
		return KindSingularInput
	case errors.Is(err, ErrNumericOverflow):
		return KindNumericOverflow
	default:
		return KindUnknown
	}
}

// DimensionError describes operands whose shapes disagree.
type DimensionError struct {
	What string
	Want int
	Got  int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("dimension mismatch: %s: want %d, got %d", e.What, e.Want, e.Got)
}

func (e *DimensionError) Unwrap() error { return ErrDimensionMismatch }

// NewDimensionError returns a DimensionError for the named operand.
func NewDimensionError(what string, want, got int) error {
	return &DimensionError{What: what, Want: want, Got: got}
}

// OverflowError reports a NaN or Inf produced by the named operation.
type OverflowError struct {
	Op string
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("numeric overflow in %s: result is not finite", e.Op)
}

func (e *OverflowError) Unwrap() error { return ErrNumericOverflow }

// CoordinateMismatchError is returned when a derived state lies outside the
// tolerance ball of every recognised coordinate. Nearest is only meaningful
// when HasNearest is set.
type CoordinateMismatchError struct {
	Distance   float64
	Epsilon    float64
	Nearest    []float64
	Token      uint32
	HasNearest bool
}

func (e *CoordinateMismatchError) Error() string {
	if e.HasNearest {
		return fmt.Sprintf("coordinate mismatch: distance %.6g exceeds epsilon %.6g (nearest token %d)",
			e.Distance, e.Epsilon, e.Token)
	}
	return fmt.Sprintf("coordinate mismatch: no recognised coordinate within epsilon %.6g", e.Epsilon)
}

func (e *CoordinateMismatchError) Unwrap() error { return ErrCoordinateMismatch }

// SingularError explains why the analytic solver refused its input.
type SingularError struct {
	Reason string
}

func (e *SingularError) Error() string {
	return "singular input: " + e.Reason
}

func (e *SingularError) Unwrap() error { return ErrSingularInput }

// EmptyFoldError names the stage that had nothing to fold.
type EmptyFoldError struct {
	Stage string
}

func (e *EmptyFoldError) Error() string {
	if e.Stage == "" {
		return ErrEmptyFold.Error()
	}
	return "empty fold: " + e.Stage
}

func (e *EmptyFoldError) Unwrap() error { return ErrEmptyFold }
