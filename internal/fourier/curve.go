// Package fourier fits closed flux-surface cross-sections with truncated
// Fourier series in a poloidal angle:
//
//	R(θ) = Σ rc_m cos(mθ) + rs_m sin(mθ)
//	Z(θ) = Σ zc_m cos(mθ) + zs_m sin(mθ)
//
// Samples either carry their own angle (FitParametrized) or are unordered
// points to which an angle is assigned by reconstructing the closed path
// (FitReconstructed).
package fourier

import (
	"math"

	"github.com/san-kum/qshpost/internal/equil"
)

// Curve is an immutable Fourier representation of a closed planar curve.
type Curve struct {
	xm             []int
	rc, rs, zc, zs []float64
}

func NewCurve(xm []int, rc, rs, zc, zs []float64) (*Curve, error) {
	n := len(xm)
	if len(rc) != n || len(rs) != n || len(zc) != n || len(zs) != n {
		return nil, equil.Preconditionf("curve coefficient lengths differ: xm=%d rc=%d rs=%d zc=%d zs=%d",
			n, len(rc), len(rs), len(zc), len(zs))
	}
	return &Curve{
		xm: append([]int(nil), xm...),
		rc: append([]float64(nil), rc...),
		rs: append([]float64(nil), rs...),
		zc: append([]float64(nil), zc...),
		zs: append([]float64(nil), zs...),
	}, nil
}

func (c *Curve) XM() []int      { return append([]int(nil), c.xm...) }
func (c *Curve) RC() []float64  { return append([]float64(nil), c.rc...) }
func (c *Curve) RS() []float64  { return append([]float64(nil), c.rs...) }
func (c *Curve) ZC() []float64  { return append([]float64(nil), c.zc...) }
func (c *Curve) ZS() []float64  { return append([]float64(nil), c.zs...) }
func (c *Curve) Modes() int     { return len(c.xm) }

// RZ evaluates the curve at one angle.
func (c *Curve) RZ(theta float64) (r, z float64) {
	for i, m := range c.xm {
		sin, cos := math.Sincos(float64(m) * theta)
		r += c.rc[i]*cos + c.rs[i]*sin
		z += c.zc[i]*cos + c.zs[i]*sin
	}
	return r, z
}

func (c *Curve) Eval(thetas []float64) (r, z []float64) {
	r = make([]float64, len(thetas))
	z = make([]float64, len(thetas))
	for i, th := range thetas {
		r[i], z[i] = c.RZ(th)
	}
	return r, z
}

// Derivative returns dR/dθ and dZ/dθ.
func (c *Curve) Derivative(theta float64) (dr, dz float64) {
	for i, m := range c.xm {
		fm := float64(m)
		sin, cos := math.Sincos(fm * theta)
		dr += fm * (c.rs[i]*cos - c.rc[i]*sin)
		dz += fm * (c.zs[i]*cos - c.zc[i]*sin)
	}
	return dr, dz
}
