package bifurcation

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/qshpost/internal/equil"
	"github.com/san-kum/qshpost/internal/tracing"
)

// Reference is a magnetic axis the search is anchored on.
type Reference interface {
	RZ(zeta float64) (r, z float64)
	Start() equil.Point3
}

// LineTracer is satisfied by *tracing.Tracer.
type LineTracer interface {
	Trace(ctx context.Context, pts equil.Points, opts tracing.Options) ([]*tracing.FieldLine, error)
}

type Bracket struct {
	Left  float64
	Right float64
}

func (b Bracket) Width() float64 { return b.Right - b.Left }

func (b Bracket) Mid() float64 { return (b.Left + b.Right) / 2 }

func (b Bracket) String() string {
	return fmt.Sprintf("[%.10g, %.10g]", b.Left, b.Right)
}

// Step records one bisection iteration.
type Step struct {
	MidS    float64
	MidR    float64
	Bracket Bracket
}

type Result struct {
	Bracket Bracket
	FirstR  float64
	SecondR float64
	Steps   []Step
}

type Options struct {
	// Niter is the number of bisection steps.
	Niter int
	// IterLine is the number of field periods traced per midpoint.
	IterLine int
	// Nstep is the number of sub-steps per period.
	Nstep int
	// Trace supplies the solver and field mode; its Niter and Nstep are
	// overridden.
	Trace    tracing.Options
	Observer func(Step)
}

func DefaultOptions() Options {
	trace := tracing.DefaultOptions()
	trace.Solver.RTol = 1e-9
	trace.Solver.ATol = 1e-9
	return Options{Niter: 10, IterLine: 6, Nstep: 4, Trace: trace}
}

// TopologyError reports a midpoint whose orbit does not fit between the
// two references.
type TopologyError struct {
	Iteration int
	MidS      float64
	MidR      float64
	FirstR    float64
}

func (e *TopologyError) Error() string {
	return fmt.Sprintf("bifurcation step %d: orbit from s=%.10g reaches R=%.6g, inside the first axis at R=%.6g: %v",
		e.Iteration, e.MidS, e.MidR, e.FirstR, equil.ErrTopology)
}

func (e *TopologyError) Unwrap() error {
	return equil.ErrTopology
}

// Locate bisects between first and second.
func Locate(ctx context.Context, first, second Reference, tracer LineTracer, opts Options) (*Result, error) {
	if first == nil || second == nil || tracer == nil {
		return nil, equil.Preconditionf("bifurcation needs two references and a tracer")
	}
	if opts.Niter < 1 || opts.IterLine < 1 || opts.Nstep < 1 {
		return nil, equil.Preconditionf("bifurcation needs positive niter, iterLine and nstep, got %d, %d, %d",
			opts.Niter, opts.IterLine, opts.Nstep)
	}
	firstR, _ := first.RZ(0)
	secondR, _ := second.RZ(0)
	if !(firstR < secondR) {
		return nil, equil.Preconditionf("first axis R=%g must be inside second axis R=%g", firstR, secondR)
	}
	b := Bracket{Left: first.Start().S, Right: second.Start().S}
	if !(b.Left < b.Right) {
		return nil, equil.Preconditionf("first axis s=%g must be below second axis s=%g", b.Left, b.Right)
	}

	trace := opts.Trace
	trace.Niter = opts.IterLine
	trace.Nstep = opts.Nstep
	trace.Workers = 1

	res := &Result{FirstR: firstR, SecondR: secondR, Steps: make([]Step, 0, opts.Niter)}
	for i := 0; i < opts.Niter; i++ {
		midS := b.Mid()
		lines, err := tracer.Trace(ctx, equil.Points{{S: midS}}, trace)
		if err != nil {
			return nil, fmt.Errorf("bifurcation step %d at s=%.10g: %w", i, midS, err)
		}
		sec := lines[0].Poincare()
		rs := make([]float64, len(sec))
		for j, smp := range sec {
			rs[j] = smp.R
		}
		midR := floats.Max(rs)
		if floats.HasNaN(rs) {
			midR = math.NaN()
		}
		if math.IsNaN(midR) || math.IsInf(midR, 0) || midR < firstR {
			return nil, &TopologyError{Iteration: i, MidS: midS, MidR: midR, FirstR: firstR}
		}
		if midR < secondR {
			b.Left = midS
		} else {
			b.Right = midS
		}
		step := Step{MidS: midS, MidR: midR, Bracket: b}
		res.Steps = append(res.Steps, step)
		if opts.Observer != nil {
			opts.Observer(step)
		}
	}
	res.Bracket = b
	return res, nil
}
