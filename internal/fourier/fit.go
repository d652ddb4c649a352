package fourier

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/qshpost/internal/equil"
	"github.com/san-kum/qshpost/internal/lsq"
)

type FitOptions struct {
	// Full fits all four coefficient sets. By default R uses only cosines
	// and Z only sines (stellarator symmetric sections).
	Full bool
	// Orderer builds the path in FitReconstructed. Nil means
	// NearestNeighbor seeded at the outboard point.
	Orderer  Orderer
	Settings lsq.Settings
}

func DefaultFitOptions() FitOptions {
	return FitOptions{Settings: lsq.DefaultSettings()}
}

func modes(mpol int) []int {
	xm := make([]int, mpol+1)
	for i := range xm {
		xm[i] = i
	}
	return xm
}

// Basis is one family of a series, e.g. math.Cos.
type Basis func(x float64) float64

// FitSeries least squares fits v(θ) ≈ Σ_k Σ_m c_km basis_k(mθ) and returns
// one coefficient vector per basis function.
func FitSeries(theta, v []float64, xm []int, settings lsq.Settings, bases ...Basis) ([][]float64, error) {
	if len(theta) != len(v) {
		return nil, equil.Preconditionf("fourier: %d angles for %d values", len(theta), len(v))
	}
	nm := len(xm)
	n := nm * len(bases)
	if len(theta) <= n {
		return nil, equil.Preconditionf("fourier: %d samples cannot determine %d coefficients", len(theta), n)
	}

	// The model is linear, so the design matrix is the Jacobian. Columns that
	// vanish on every sample (sin 0θ) are left out and keep a zero coefficient.
	var cols [][]float64
	var index []int
	for k, b := range bases {
		for j, m := range xm {
			col := make([]float64, len(theta))
			norm := 0.0
			for i, th := range theta {
				col[i] = b(float64(m) * th)
				norm += col[i] * col[i]
			}
			if norm == 0 {
				continue
			}
			cols = append(cols, col)
			index = append(index, k*nm+j)
		}
	}
	coef := make([]float64, n)
	out := make([][]float64, len(bases))
	for k := range bases {
		out[k] = coef[k*nm : (k+1)*nm]
	}
	if len(cols) == 0 {
		return out, nil
	}

	design := mat.NewDense(len(theta), len(cols), nil)
	for j, col := range cols {
		design.SetCol(j, col)
	}
	p := lsq.Problem{
		M: len(theta),
		Residual: func(dst, x []float64) {
			for i := range dst {
				sum := 0.0
				for j := range cols {
					sum += cols[j][i] * x[j]
				}
				dst[i] = sum - v[i]
			}
		},
		Jacobian: func(dst *mat.Dense, x []float64) {
			dst.Copy(design)
		},
	}
	res, err := lsq.Solve(p, make([]float64, len(cols)), settings)
	if err != nil {
		return nil, err
	}
	if err := lsq.Check(res, "fourier fit"); err != nil {
		return nil, err
	}
	for j, at := range index {
		coef[at] = res.X[j]
	}
	return out, nil
}

// FitParametrized fits R and Z independently against the angles theta using
// modes 0..mpol.
func FitParametrized(theta, r, z []float64, mpol int, opts FitOptions) (*Curve, error) {
	if len(theta) != len(r) || len(theta) != len(z) {
		return nil, equil.Preconditionf("fourier: sample lengths differ: theta=%d r=%d z=%d", len(theta), len(r), len(z))
	}
	if mpol < 0 {
		return nil, equil.Preconditionf("fourier: mpol must not be negative, got %d", mpol)
	}
	if len(theta) <= mpol+1 {
		return nil, equil.Preconditionf("fourier: %d samples are too few for mpol=%d", len(theta), mpol)
	}
	xm := modes(mpol)
	zero := make([]float64, len(xm))

	if !opts.Full {
		rc, err := FitSeries(theta, r, xm, opts.Settings, math.Cos)
		if err != nil {
			return nil, err
		}
		zs, err := FitSeries(theta, z, xm, opts.Settings, math.Sin)
		if err != nil {
			return nil, err
		}
		return NewCurve(xm, rc[0], zero, zero, zs[0])
	}

	rcs, err := FitSeries(theta, r, xm, opts.Settings, math.Cos, math.Sin)
	if err != nil {
		return nil, err
	}
	zcs, err := FitSeries(theta, z, xm, opts.Settings, math.Cos, math.Sin)
	if err != nil {
		return nil, err
	}
	return NewCurve(xm, rcs[0], rcs[1], zcs[0], zcs[1])
}
