package axis

import (
	"math"

	"gonum.org/v1/gonum/integrate/quad"

	"github.com/san-kum/qshpost/internal/equil"
)

// Writhe is the Gauss linking integral of the axis with itself.
type Writhe struct {
	Value float64
	// ErrorEstimate is the difference between the order n and order 2n
	// quadratures.
	ErrorEstimate float64
}

type point struct {
	x, y, z    float64
	dx, dy, dz float64
}

func (a *Axis) point(zeta float64) point {
	r, z := a.RZ(zeta)
	dr, dz := a.Derivative(zeta)
	sin, cos := math.Sincos(zeta)
	return point{
		x: r * cos, y: r * sin, z: z,
		dx: dr*cos - r*sin, dy: dr*sin + r*cos, dz: dz,
	}
}

func (a *Axis) gauss(z1, z2 float64) float64 {
	if z1 == z2 {
		return 0
	}
	p1, p2 := a.point(z1), a.point(z2)
	ex, ey, ez := p2.x-p1.x, p2.y-p1.y, p2.z-p1.z
	dist := math.Sqrt(ex*ex + ey*ey + ez*ez)
	if dist == 0 {
		return 0
	}
	// (r1' × r2') · (r2 - r1)
	cx := p1.dy*p2.dz - p1.dz*p2.dy
	cy := p1.dz*p2.dx - p1.dx*p2.dz
	cz := p1.dx*p2.dy - p1.dy*p2.dx
	return (cx*ex + cy*ey + cz*ez) / (dist * dist * dist)
}

func (a *Axis) writhe(n int) float64 {
	outer := func(z1 float64) float64 {
		return quad.Fixed(func(z2 float64) float64 {
			return a.gauss(z1, z2)
		}, 0, 2*math.Pi, n, nil, 0)
	}
	return quad.Fixed(outer, 0, 2*math.Pi, n, nil, 0) / (4 * math.Pi)
}

// Writhe integrates over [0, 2π]² with n-point Gauss-Legendre product
// quadrature and again with 2n points.
func (a *Axis) Writhe(n int) (Writhe, error) {
	if n < 1 {
		return Writhe{}, equil.Preconditionf("writhe quadrature order must be positive, got %d", n)
	}
	coarse := a.writhe(n)
	fine := a.writhe(2 * n)
	return Writhe{Value: fine, ErrorEstimate: math.Abs(fine - coarse)}, nil
}
