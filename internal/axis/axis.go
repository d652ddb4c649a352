// Package axis fits and evaluates magnetic axis curves
//
//	R(ζ) = Σ rac_n cos(-nζ),  Z(ζ) = Σ zas_n sin(-nζ)
//
// from traced field lines.
package axis

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/qshpost/internal/equil"
	"github.com/san-kum/qshpost/internal/lsq"
	"github.com/san-kum/qshpost/internal/tracing"
)

type Axis struct {
	initPoint equil.Point3
	xn        []int
	rac, zas  []float64
}

func New(initPoint equil.Point3, xn []int, rac, zas []float64) (*Axis, error) {
	if len(rac) != len(xn) || len(zas) != len(xn) {
		return nil, equil.Preconditionf("axis coefficient lengths differ: xn=%d rac=%d zas=%d", len(xn), len(rac), len(zas))
	}
	return &Axis{
		initPoint: initPoint,
		xn:        append([]int(nil), xn...),
		rac:       append([]float64(nil), rac...),
		zas:       append([]float64(nil), zas...),
	}, nil
}

// ToroidalModes returns n = 0, nfp, ..., ntor·nfp.
func ToroidalModes(ntor, nfp int) ([]int, error) {
	if ntor < 0 || nfp < 1 {
		return nil, equil.Preconditionf("axis modes need ntor >= 0 and nfp >= 1, got %d and %d", ntor, nfp)
	}
	xn := make([]int, ntor+1)
	for i := range xn {
		xn[i] = i * nfp
	}
	return xn, nil
}

func (a *Axis) Start() equil.Point3 { return a.initPoint }
func (a *Axis) XN() []int            { return append([]int(nil), a.xn...) }
func (a *Axis) RAC() []float64       { return append([]float64(nil), a.rac...) }
func (a *Axis) ZAS() []float64       { return append([]float64(nil), a.zas...) }

func (a *Axis) RZ(zeta float64) (r, z float64) {
	for i, n := range a.xn {
		sin, cos := math.Sincos(-float64(n) * zeta)
		r += a.rac[i] * cos
		z += a.zas[i] * sin
	}
	return r, z
}

func (a *Axis) Eval(zetas []float64) (r, z []float64) {
	r = make([]float64, len(zetas))
	z = make([]float64, len(zetas))
	for i, zeta := range zetas {
		r[i], z[i] = a.RZ(zeta)
	}
	return r, z
}

// Derivative returns dR/dζ and dZ/dζ.
func (a *Axis) Derivative(zeta float64) (dr, dz float64) {
	for i, n := range a.xn {
		fn := float64(n)
		sin, cos := math.Sincos(-fn * zeta)
		dr += fn * a.rac[i] * sin
		dz -= fn * a.zas[i] * cos
	}
	return dr, dz
}

// XYZ maps the axis to Cartesian coordinates, X = R cos ζ, Y = R sin ζ.
func (a *Axis) XYZ(zeta float64) (x, y, z float64) {
	r, z := a.RZ(zeta)
	sin, cos := math.Sincos(zeta)
	return r * cos, r * sin, z
}

type FitOptions struct {
	Settings lsq.Settings
}

func DefaultFitOptions() FitOptions {
	return FitOptions{Settings: lsq.DefaultSettings()}
}

// Fit least squares fits the modes xn to every sample of line, jointly for R
// and Z, starting from zero coefficients.
func Fit(xn []int, line *tracing.FieldLine, opts FitOptions) (*Axis, error) {
	nx := len(xn)
	if nx == 0 {
		return nil, equil.Preconditionf("axis fit needs at least one mode")
	}
	if line == nil || line.Len() <= nx {
		n := 0
		if line != nil {
			n = line.Len()
		}
		return nil, equil.Preconditionf("axis fit with %d modes needs more than %d samples, got %d", nx, nx, n)
	}
	zeta, rs, zs := line.Zeta(), line.R(), line.Z()
	ns := len(zeta)

	design := mat.NewDense(2*ns, 2*nx, nil)
	for i, ze := range zeta {
		for j, n := range xn {
			sin, cos := math.Sincos(-float64(n) * ze)
			design.Set(i, j, cos)
			design.Set(ns+i, nx+j, sin)
		}
	}
	p := lsq.Problem{
		M: 2 * ns,
		Residual: func(dst, x []float64) {
			for i := 0; i < ns; i++ {
				r, z := 0.0, 0.0
				for j := 0; j < nx; j++ {
					r += design.At(i, j) * x[j]
					z += design.At(ns+i, nx+j) * x[nx+j]
				}
				dst[i] = r - rs[i]
				dst[ns+i] = z - zs[i]
			}
		},
		Jacobian: func(dst *mat.Dense, x []float64) {
			dst.Copy(design)
		},
	}
	res, err := lsq.Solve(p, make([]float64, 2*nx), opts.Settings)
	if err != nil {
		return nil, err
	}
	if err := lsq.Check(res, "axis fit"); err != nil {
		return nil, err
	}
	return New(line.Start(), xn, res.X[:nx], res.X[nx:])
}
