package tracing

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/san-kum/qshpost/internal/equil"
	"github.com/san-kum/qshpost/internal/field"
)

func quickOptions() Options {
	opts := DefaultOptions()
	opts.Niter = 6
	opts.Nstep = 4
	opts.Solver.RTol = 1e-11
	opts.Solver.ATol = 1e-11
	return opts
}

func TestTraceSampleLayout(t *testing.T) {
	c := field.DefaultCircular()
	c.Periods = 5
	tr := NewFromField(c)
	opts := quickOptions()

	zeta0 := 0.3
	lines, err := tr.Trace(context.Background(), equil.Points{{S: 0.2, Theta: 0.1, Zeta: zeta0}}, opts)
	if err != nil {
		t.Fatalf("Trace: %v", err)
	}
	line := lines[0]
	if got, want := line.Len(), opts.Niter*opts.Nstep+1; got != want {
		t.Fatalf("Len() = %d, want %d", got, want)
	}
	if line.NZeta() != opts.Nstep || line.NFP() != 5 {
		t.Errorf("NZeta, NFP = %d, %d; want %d, 5", line.NZeta(), line.NFP(), opts.Nstep)
	}
	poincare := line.Poincare()
	if len(poincare) != opts.Niter+1 {
		t.Fatalf("Poincare has %d samples, want %d", len(poincare), opts.Niter+1)
	}
	period := 2 * math.Pi / 5
	for k, smp := range poincare {
		if want := zeta0 + float64(k)*period; smp.Zeta != want {
			t.Errorf("period %d at ζ=%.17g, want exactly %.17g", k, smp.Zeta, want)
		}
	}
}

func TestTraceFollowsRotationalTransform(t *testing.T) {
	c := field.DefaultCircular()
	tr := NewFromField(c)
	opts := quickOptions()

	s0 := 0.4
	lines, err := tr.Trace(context.Background(), equil.Points{{S: s0, Theta: 0.5}}, opts)
	if err != nil {
		t.Fatalf("Trace: %v", err)
	}
	iota := c.IotaAt(s0)
	for i, smp := range lines[0].Samples() {
		if math.Abs(smp.S-s0) > 1e-12 {
			t.Errorf("sample %d left its surface: s=%.15f", i, smp.S)
		}
		if want := 0.5 + iota*smp.Zeta; math.Abs(smp.Theta-want) > 1e-8 {
			t.Errorf("sample %d: θ=%.12f, want %.12f", i, smp.Theta, want)
		}
		r, z := c.Position(smp.Point3)
		if smp.R != r || smp.Z != z {
			t.Errorf("sample %d: position (%g, %g), want (%g, %g)", i, smp.R, smp.Z, r, z)
		}
	}
}

func TestTraceParallelMatchesSerial(t *testing.T) {
	c := field.DefaultCircular()
	c.Shear = 0.4
	tr := NewFromField(c)

	pts, err := equil.NewPoints(
		[]float64{-0.5, -0.2, 0, 0.3, 0.6, 0.9},
		[]float64{0, 1, 2, 3, 4, 5},
		[]float64{0, 0, 0.1, 0.2, 0, 0},
	)
	if err != nil {
		t.Fatal(err)
	}

	opts := quickOptions()
	serial, err := tr.Trace(context.Background(), pts, opts)
	if err != nil {
		t.Fatalf("serial Trace: %v", err)
	}
	opts.Workers = 4
	parallel, err := tr.Trace(context.Background(), pts, opts)
	if err != nil {
		t.Fatalf("parallel Trace: %v", err)
	}
	for i := range serial {
		if diff := cmp.Diff(serial[i].Samples(), parallel[i].Samples()); diff != "" {
			t.Errorf("line %d differs (-serial +parallel):\n%s", i, diff)
		}
	}
}

func TestTraceOnGrid(t *testing.T) {
	c := field.DefaultCircular()
	grid, err := field.Sample(field.GridSpec{NS: 33, NTheta: 128, NZeta: 2, SMin: -0.9, SMax: 1}, c)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	tr := New(grid, c)
	s0 := 0.25
	want := c.IotaAt(s0)

	for _, mode := range []field.Mode{field.ModeDirect, field.ModeInterpolated} {
		opts := quickOptions()
		opts.Mode = mode
		opts.Solver.RTol = 1e-8
		opts.Solver.ATol = 1e-8
		lines, err := tr.Trace(context.Background(), equil.Points{{S: s0}}, opts)
		if err != nil {
			t.Fatalf("%s: Trace: %v", mode, err)
		}
		th, ze := lines[0].Theta(), lines[0].Zeta()
		got := (th[len(th)-1] - th[0]) / (ze[len(ze)-1] - ze[0])
		if math.Abs(got-want) > 2e-3 {
			t.Errorf("%s: transform %.6f, want %.6f", mode, got, want)
		}
	}
}

func TestTraceArcLength(t *testing.T) {
	c := field.DefaultCircular()
	tr := NewFromField(c)
	opts := quickOptions()
	opts.Parametrization = ArcLength
	opts.OneLength = 2 * math.Pi * c.R0

	s0 := 0.1
	lines, err := tr.Trace(context.Background(), equil.Points{{S: s0, Theta: 0.3}}, opts)
	if err != nil {
		t.Fatalf("Trace: %v", err)
	}
	line := lines[0]
	zeta := line.Zeta()
	for i := 1; i < len(zeta); i++ {
		if zeta[i] <= zeta[i-1] {
			t.Fatalf("ζ not increasing at sample %d", i)
		}
	}
	th := line.Theta()
	got := (th[len(th)-1] - th[0]) / (zeta[len(zeta)-1] - zeta[0])
	if want := c.IotaAt(s0); math.Abs(got-want) > 1e-8 {
		t.Errorf("transform %.10f, want %.10f", got, want)
	}
}

func TestTracePreconditions(t *testing.T) {
	tr := NewFromField(field.DefaultCircular())
	good := equil.Points{{S: 0.2}}
	tests := []struct {
		name string
		pts  equil.Points
		mod  func(*Options)
	}{
		{"no points", nil, func(*Options) {}},
		{"nan point", equil.Points{{S: math.NaN()}}, func(*Options) {}},
		{"zero niter", good, func(o *Options) { o.Niter = 0 }},
		{"zero nstep", good, func(o *Options) { o.Nstep = 0 }},
		{"arc length without length", good, func(o *Options) { o.Parametrization = ArcLength }},
		{"bad tolerance", good, func(o *Options) { o.Solver.RTol = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := quickOptions()
			tt.mod(&opts)
			_, err := tr.Trace(context.Background(), tt.pts, opts)
			if !errors.Is(err, equil.ErrPrecondition) {
				t.Errorf("err = %v, want ErrPrecondition", err)
			}
		})
	}

	if _, err := New(nil, nil).Trace(context.Background(), good, quickOptions()); !errors.Is(err, equil.ErrPrecondition) {
		t.Errorf("nil grid: err = %v, want ErrPrecondition", err)
	}
}

type brokenField struct {
	field.Circular
	after float64
}

func (b brokenField) B(p equil.Point3) (equil.Vec3, error) {
	if p.Zeta > b.after {
		return equil.Vec3{}, errors.New("outside the computational domain")
	}
	return b.Circular.B(p)
}

func TestTraceError(t *testing.T) {
	tr := NewFromField(brokenField{Circular: field.DefaultCircular(), after: 2 * math.Pi * 1.5})
	opts := quickOptions()
	pts := equil.Points{{S: 0.1}, {S: 0.2}}

	_, err := tr.Trace(context.Background(), pts, opts)
	var te *equil.TraceError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want *TraceError", err)
	}
	if te.Line != 0 || te.Period != 1 {
		t.Errorf("failure at line %d period %d, want line 0 period 1", te.Line, te.Period)
	}
	if !errors.Is(err, equil.ErrNonConvergence) {
		t.Errorf("err = %v does not wrap ErrNonConvergence", err)
	}
}

func TestTraceObserverAndCancel(t *testing.T) {
	tr := NewFromField(field.DefaultCircular())
	opts := quickOptions()
	opts.Workers = 2

	var calls atomic.Int64
	opts.Observer = ObserverFunc(func(line, period, totalLines, totalPeriods int) {
		calls.Add(1)
		if totalLines != 3 || totalPeriods != opts.Niter {
			t.Errorf("OnPeriod totals = %d, %d", totalLines, totalPeriods)
		}
	})
	pts := equil.Points{{S: 0.1}, {S: 0.2}, {S: 0.3}}
	if _, err := tr.Trace(context.Background(), pts, opts); err != nil {
		t.Fatalf("Trace: %v", err)
	}
	if got := calls.Load(); got != int64(3*opts.Niter) {
		t.Errorf("OnPeriod called %d times, want %d", got, 3*opts.Niter)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := tr.Trace(ctx, pts, opts); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestNewFieldLine(t *testing.T) {
	if _, err := NewFieldLine(nil, 1, 1); !errors.Is(err, equil.ErrPrecondition) {
		t.Errorf("empty: err = %v, want ErrPrecondition", err)
	}
	samples := []Sample{{R: 1}, {R: 2}, {R: 3}, {R: 4}, {R: 5}}
	line, err := NewFieldLine(samples, 2, 1)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]float64{1, 3, 5}, []float64{line.Poincare()[0].R, line.Poincare()[1].R, line.Poincare()[2].R}); diff != "" {
		t.Errorf("Poincare stride (-want +got):\n%s", diff)
	}
	r := line.R()
	r[0] = 99
	if line.At(0).R != 1 {
		t.Error("R() exposed internal storage")
	}
}
