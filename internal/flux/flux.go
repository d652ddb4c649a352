// Package flux integrates the toroidal flux through fitted cross-sections and
// derives the pinch and reversal parameters of a reversed field pinch.
package flux

import (
	"math"

	"gonum.org/v1/gonum/integrate/quad"

	"github.com/san-kum/qshpost/internal/equil"
	"github.com/san-kum/qshpost/internal/fourier"
	"github.com/san-kum/qshpost/internal/lsq"
	"github.com/san-kum/qshpost/internal/tracing"
)

// Section is a closed curve in the ζ = 0 plane given in flux coordinates as
// a function of a label l ∈ [0, 2π].
type Section interface {
	At(label float64) (s, theta float64)
}

// AngleDerivative is implemented by sections that know dθ/dl.
type AngleDerivative interface {
	DTheta(label float64) float64
}

// SectionFunc adapts a function to Section.
type SectionFunc func(label float64) (s, theta float64)

func (f SectionFunc) At(label float64) (float64, float64) { return f(label) }

// SCurve is a section labelled by θ itself, s(θ) = Σ c_m cos(mθ).
type SCurve struct {
	xm []int
	sc []float64
}

func NewSCurve(xm []int, sc []float64) (*SCurve, error) {
	if len(xm) != len(sc) {
		return nil, equil.Preconditionf("s curve lengths differ: xm=%d sc=%d", len(xm), len(sc))
	}
	return &SCurve{xm: append([]int(nil), xm...), sc: append([]float64(nil), sc...)}, nil
}

// FitSCurve fits s(θ) to the Poincaré samples of line.
func FitSCurve(line *tracing.FieldLine, mpol int, settings lsq.Settings) (*SCurve, error) {
	if mpol < 0 {
		return nil, equil.Preconditionf("mpol must not be negative, got %d", mpol)
	}
	pts := line.Poincare()
	theta := make([]float64, len(pts))
	s := make([]float64, len(pts))
	for i, p := range pts {
		theta[i], s[i] = p.Theta, p.S
	}
	xm := make([]int, mpol+1)
	for i := range xm {
		xm[i] = i
	}
	coef, err := fourier.FitSeries(theta, s, xm, settings, math.Cos)
	if err != nil {
		return nil, err
	}
	return NewSCurve(xm, coef[0])
}

func (c *SCurve) XM() []int     { return append([]int(nil), c.xm...) }
func (c *SCurve) SC() []float64 { return append([]float64(nil), c.sc...) }

func (c *SCurve) S(theta float64) float64 {
	s := 0.0
	for i, m := range c.xm {
		s += c.sc[i] * math.Cos(float64(m)*theta)
	}
	return s
}

func (c *SCurve) At(label float64) (float64, float64) { return c.S(label), label }

func (c *SCurve) DTheta(float64) float64 { return 1 }

// labelStep is the central difference step for dθ/dl.
const labelStep = 1e-8

// Toroidal returns ∮ A_θ dθ along section at ζ = 0 with n-point
// Gauss-Legendre quadrature in the label.
func Toroidal(pot equil.Potential, section Section, n int) (float64, error) {
	if pot == nil || section == nil {
		return 0, equil.Preconditionf("flux needs a vector potential and a section")
	}
	if n < 1 {
		return 0, equil.Preconditionf("quadrature order must be positive, got %d", n)
	}
	dtheta := func(l float64) float64 {
		_, t1 := section.At(l + labelStep)
		_, t0 := section.At(l - labelStep)
		return (t1 - t0) / (2 * labelStep)
	}
	if d, ok := section.(AngleDerivative); ok {
		dtheta = d.DTheta
	}

	var firstErr error
	integrand := func(l float64) float64 {
		s, theta := section.At(l)
		a, err := pot.VectorPotential(equil.Point3{S: s, Theta: theta})
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return 0
		}
		return a[1] * dtheta(l)
	}
	v := quad.Fixed(integrand, 0, 2*math.Pi, n, nil, 0)
	if firstErr != nil {
		return 0, firstErr
	}
	return v, nil
}

// Parameters are the pinch parameter Θ and reversal parameter F.
type Parameters struct {
	Pinch    float64
	Reversal float64
}

// PinchReversal averages B^θ around the edge at ζ = 0 and B^ζ along the
// edge at θ = 0, both normalized by the mean field Φ/(πa²).
func PinchReversal(f equil.Contravariant, sEdge, minorRadius, phiEdge float64, n int) (Parameters, error) {
	if f == nil {
		return Parameters{}, equil.Preconditionf("pinch parameters need a field")
	}
	if n < 1 {
		return Parameters{}, equil.Preconditionf("quadrature order must be positive, got %d", n)
	}
	if minorRadius <= 0 || phiEdge == 0 {
		return Parameters{}, equil.Preconditionf("minor radius %g and edge flux %g must be nonzero", minorRadius, phiEdge)
	}
	var firstErr error
	component := func(i int, p equil.Point3) float64 {
		b, err := f.B(p)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return 0
		}
		return b[i]
	}
	btheta := quad.Fixed(func(theta float64) float64 {
		return component(1, equil.Point3{S: sEdge, Theta: theta})
	}, 0, 2*math.Pi, n, nil, 0) / (2 * math.Pi)
	bzeta := quad.Fixed(func(zeta float64) float64 {
		return component(2, equil.Point3{S: sEdge, Zeta: zeta})
	}, 0, 2*math.Pi, n, nil, 0) / (2 * math.Pi)
	if firstErr != nil {
		return Parameters{}, firstErr
	}

	mean := phiEdge / (math.Pi * minorRadius * minorRadius)
	return Parameters{Pinch: btheta / mean, Reversal: bzeta / mean}, nil
}
