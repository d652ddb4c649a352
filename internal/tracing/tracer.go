// Package tracing integrates magnetic field lines through a field in flux
// coordinates.
//
// A line started at (s0, θ0, ζ0) is advanced either in the toroidal angle,
//
//	ds/dζ = B^s/B^ζ,  dθ/dζ = B^θ/B^ζ,
//
// in Niter·Nstep sub-steps of 2π/(NFP·Nstep), or in arc length,
//
//	d(s, θ, ζ)/dl = (B^s, B^θ, B^ζ)/|B|,
//
// in sub-steps of OneLength/Nstep. Each sub-step is a separate ODE solve.
package tracing

import (
	"context"
	"errors"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/qshpost/internal/equil"
	"github.com/san-kum/qshpost/internal/field"
	"github.com/san-kum/qshpost/internal/integrators"
)

type Parametrization int

const (
	Toroidal Parametrization = iota
	ArcLength
)

func (p Parametrization) String() string {
	if p == ArcLength {
		return "length"
	}
	return "zeta"
}

func ParseParametrization(name string) (Parametrization, error) {
	switch name {
	case "", "zeta", "toroidal":
		return Toroidal, nil
	case "length", "arclength":
		return ArcLength, nil
	}
	return 0, equil.Preconditionf("unknown parametrization %q", name)
}

// Observer is told when a line completes a field period. With Workers > 1 it
// is called from several goroutines.
type Observer interface {
	OnPeriod(line, period, totalLines, totalPeriods int)
}

type ObserverFunc func(line, period, totalLines, totalPeriods int)

func (f ObserverFunc) OnPeriod(line, period, totalLines, totalPeriods int) {
	f(line, period, totalLines, totalPeriods)
}

type Options struct {
	Niter           int
	Nstep           int
	Mode            field.Mode
	Parametrization Parametrization
	// OneLength is the arc length of one period in ArcLength mode.
	OneLength float64
	Solver    integrators.Options
	Workers   int
	Observer  Observer
}

func DefaultOptions() Options {
	return Options{
		Niter:   128,
		Nstep:   32,
		Mode:    field.ModeDirect,
		Solver:  integrators.DefaultOptions(),
		Workers: 1,
	}
}

// Tracer traces lines through a grid-backed field.
type Tracer struct {
	grid  *field.Grid
	ev    equil.Evaluator
	fixed field.Field
}

// New returns a tracer over grid. ev is the pointwise evaluator used in
// ModeDirect and may be nil when only ModeInterpolated is used.
func New(grid *field.Grid, ev equil.Evaluator) *Tracer {
	return &Tracer{grid: grid, ev: ev}
}

// NewFromField traces through f directly; Options.Mode is ignored.
func NewFromField(f field.Field) *Tracer {
	return &Tracer{fixed: f}
}

func (t *Tracer) field(mode field.Mode) (field.Field, error) {
	if t.fixed != nil {
		return t.fixed, nil
	}
	return field.New(mode, t.grid, t.ev)
}

func (o Options) validate() error {
	if o.Niter < 1 {
		return equil.Preconditionf("niter must be at least 1, got %d", o.Niter)
	}
	if o.Nstep < 1 {
		return equil.Preconditionf("nstep must be at least 1, got %d", o.Nstep)
	}
	if o.Parametrization == ArcLength && !(o.OneLength > 0) {
		return equil.Preconditionf("arc length tracing needs a positive one-period length, got %g", o.OneLength)
	}
	if err := o.Solver.Validate(); err != nil {
		return fmt.Errorf("%w: %v", equil.ErrPrecondition, err)
	}
	return nil
}

// Trace integrates one field line per initial point. Lines are returned in
// the order of pts. The first failing line aborts the call.
func (t *Tracer) Trace(ctx context.Context, pts equil.Points, opts Options) ([]*FieldLine, error) {
	if err := pts.Validate(); err != nil {
		return nil, err
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	f, err := t.field(opts.Mode)
	if err != nil {
		return nil, err
	}
	if f.NFP() < 1 {
		return nil, equil.Preconditionf("field periods must be positive, got %d", f.NFP())
	}

	lines := make([]*FieldLine, len(pts))
	if opts.Workers <= 1 || len(pts) == 1 {
		for i, p := range pts {
			line, err := traceLine(ctx, f, i, len(pts), p, opts)
			if err != nil {
				return nil, err
			}
			lines[i] = line
		}
		return lines, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, p := range pts {
		g.Go(func() error {
			line, err := traceLine(gctx, f, i, len(pts), p, opts)
			if err != nil {
				return err
			}
			lines[i] = line
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return lines, nil
}

func toroidalSystem(f field.Field) integrators.System {
	return integrators.SystemFunc(func(zeta float64, y, dy integrators.State) error {
		p := equil.Point3{S: y[0], Theta: y[1], Zeta: zeta}
		b, err := f.B(p)
		if err != nil {
			return err
		}
		if b[2] == 0 {
			return fmt.Errorf("B^ζ vanishes at %v: %w", p, equil.ErrNonConvergence)
		}
		dy[0] = b[0] / b[2]
		dy[1] = b[1] / b[2]
		return nil
	})
}

func arcLengthSystem(f field.Field) integrators.System {
	return integrators.SystemFunc(func(l float64, y, dy integrators.State) error {
		p := equil.Point3{S: y[0], Theta: y[1], Zeta: y[2]}
		b, err := f.B(p)
		if err != nil {
			return err
		}
		g, err := f.Metric(p)
		if err != nil {
			return err
		}
		mod := g.Norm(b)
		if mod == 0 || math.IsNaN(mod) {
			return fmt.Errorf("|B| vanishes at %v: %w", p, equil.ErrNonConvergence)
		}
		dy[0] = b[0] / mod
		dy[1] = b[1] / mod
		dy[2] = b[2] / mod
		return nil
	})
}

func traceLine(ctx context.Context, f field.Field, idx, total int, p0 equil.Point3, opts Options) (*FieldLine, error) {
	nfp := f.NFP()
	nsub := opts.Niter * opts.Nstep
	line := newLine(nsub+1, opts.Nstep, nfp)

	r, z := f.Position(p0)
	line.append(Sample{Point3: p0, R: r, Z: z})

	solver := integrators.New(opts.Solver.Method)
	var (
		sys    integrators.System
		y      integrators.State
		period float64
		t0     float64
	)
	if opts.Parametrization == ArcLength {
		sys = arcLengthSystem(f)
		y = integrators.State{p0.S, p0.Theta, p0.Zeta}
		period = opts.OneLength
	} else {
		sys = toroidalSystem(f)
		y = integrators.State{p0.S, p0.Theta}
		period = 2 * math.Pi / float64(nfp)
		t0 = p0.Zeta
	}
	delta := period / float64(opts.Nstep)
	// Abscissa of the end of sub-step k, exact at period boundaries.
	at := func(k int) float64 {
		return t0 + float64(k/opts.Nstep)*period + float64(k%opts.Nstep)*delta
	}

	cur := p0
	for k := 0; k < nsub; k++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ta, tb := at(k), at(k+1)
		next, _, err := solver.Integrate(sys, ta, tb, y, opts.Solver)
		if err != nil {
			if !errors.Is(err, equil.ErrNonConvergence) {
				err = fmt.Errorf("%w: %w", equil.ErrNonConvergence, err)
			}
			return nil, &equil.TraceError{
				Line:    idx,
				Period:  k / opts.Nstep,
				Step:    k % opts.Nstep,
				Point:   cur,
				Wrapped: err,
			}
		}
		y = next
		if opts.Parametrization == ArcLength {
			cur = equil.Point3{S: y[0], Theta: y[1], Zeta: y[2]}
		} else {
			cur = equil.Point3{S: y[0], Theta: y[1], Zeta: tb}
		}
		r, z := f.Position(cur)
		line.append(Sample{Point3: cur, R: r, Z: z})

		if (k+1)%opts.Nstep == 0 && opts.Observer != nil {
			opts.Observer.OnPeriod(idx, (k+1)/opts.Nstep, total, opts.Niter)
		}
	}
	return line, nil
}
