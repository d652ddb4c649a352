package integrators

import (
	"fmt"

	"github.com/san-kum/qshpost/internal/equil"
)

// Solver failures. All of them wrap equil.ErrNonConvergence.
var (
	ErrInvalidState = fmt.Errorf("integrators: invalid state (NaN or Inf detected): %w", equil.ErrNonConvergence)
	ErrStepTooSmall = fmt.Errorf("integrators: adaptive step below minimum: %w", equil.ErrNonConvergence)
	ErrMaxSteps     = fmt.Errorf("integrators: step limit reached: %w", equil.ErrNonConvergence)
)

// StepError records where the solver gave up.
type StepError struct {
	T       float64
	H       float64
	Wrapped error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("t=%.6g h=%.3g: %v", e.T, e.H, e.Wrapped)
}

func (e *StepError) Unwrap() error {
	return e.Wrapped
}
