package field

import (
	"fmt"

	"github.com/san-kum/qshpost/internal/equil"
)

// Mode selects how the tracer obtains B^i.
type Mode int

const (
	// ModeDirect divides the pointwise J·B^i by the grid Jacobian.
	ModeDirect Mode = iota
	// ModeInterpolated interpolates B^i from the grid.
	ModeInterpolated
)

func (m Mode) String() string {
	if m == ModeInterpolated {
		return "interpolate"
	}
	return "calculate"
}

func ParseMode(name string) (Mode, error) {
	switch name {
	case "", "calculate", "direct":
		return ModeDirect, nil
	case "interpolate", "interpolated":
		return ModeInterpolated, nil
	}
	return 0, equil.Preconditionf("unknown field mode %q", name)
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Direct evaluates B^i = (J B^i)(p) / J_grid(p).
type Direct struct {
	Evaluator equil.Evaluator
	Grid      *Grid
}

func (d Direct) B(p equil.Point3) (equil.Vec3, error) {
	jb, err := d.Evaluator.JB(p)
	if err != nil {
		return equil.Vec3{}, err
	}
	jac := d.Grid.Jacobian(p)
	if jac == 0 {
		return equil.Vec3{}, fmt.Errorf("field: vanishing jacobian at %v: %w", p, equil.ErrNonConvergence)
	}
	return jb.Scale(1 / jac), nil
}

func (d Direct) NFP() int { return d.Grid.NFP() }

func (d Direct) Position(p equil.Point3) (float64, float64) { return d.Grid.Position(p) }

func (d Direct) Metric(p equil.Point3) (equil.Metric, error) { return d.Grid.Metric(p) }

// Interpolated evaluates B^i from the grid alone.
type Interpolated struct {
	Grid *Grid
}

func (f Interpolated) B(p equil.Point3) (equil.Vec3, error) { return f.Grid.B(p) }

func (f Interpolated) NFP() int { return f.Grid.NFP() }

func (f Interpolated) Position(p equil.Point3) (float64, float64) { return f.Grid.Position(p) }

func (f Interpolated) Metric(p equil.Point3) (equil.Metric, error) { return f.Grid.Metric(p) }

// Field is a tracer-ready field that also provides the metric.
type Field interface {
	equil.Field
	equil.MetricField
}

// New picks the evaluator for mode. ModeDirect requires a pointwise
// evaluator.
func New(mode Mode, grid *Grid, ev equil.Evaluator) (Field, error) {
	if grid == nil {
		return nil, equil.Preconditionf("field: nil grid")
	}
	switch mode {
	case ModeDirect:
		if ev == nil {
			return nil, equil.Preconditionf("field: direct mode needs a pointwise evaluator")
		}
		return Direct{Evaluator: ev, Grid: grid}, nil
	case ModeInterpolated:
		return Interpolated{Grid: grid}, nil
	}
	return nil, equil.Preconditionf("field: unknown mode %d", int(mode))
}
