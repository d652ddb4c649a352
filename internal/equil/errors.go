package equil

import (
	"errors"
	"fmt"
)

// Error taxonomy for post-processing operations.
var (
	// ErrPrecondition indicates invalid input: mismatched shapes, too few
	// samples, an inverted bracket.
	ErrPrecondition = errors.New("qshpost: precondition violated")

	// ErrNonConvergence indicates an ODE or least-squares solve that gave up.
	ErrNonConvergence = errors.New("qshpost: solver did not converge")

	// ErrTopology indicates a traced orbit outside the expected bracket.
	ErrTopology = errors.New("qshpost: topology violation")
)

// Preconditionf returns an error wrapping ErrPrecondition.
func Preconditionf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPrecondition, fmt.Sprintf(format, args...))
}

// TraceError wraps a tracing failure with the location it happened at.
type TraceError struct {
	Line    int
	Period  int
	Step    int
	Point   Point3
	Wrapped error
}

func (e *TraceError) Error() string {
	return fmt.Sprintf("line %d period %d step %d at %v: %v", e.Line, e.Period, e.Step, e.Point, e.Wrapped)
}

func (e *TraceError) Unwrap() error {
	return e.Wrapped
}
