package equil

import (
	"fmt"
	"math"
)

// Point3 is a point in flux coordinates.
type Point3 struct {
	S     float64
	Theta float64
	Zeta  float64
}

func (p Point3) String() string {
	return fmt.Sprintf("(s=%.6g, θ=%.6g, ζ=%.6g)", p.S, p.Theta, p.Zeta)
}

func (p Point3) IsValid() bool {
	for _, v := range [3]float64{p.S, p.Theta, p.Zeta} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Points is an ordered set of initial conditions.
type Points []Point3

// NewPoints zips component slices into Points. The slices must have equal
// length.
func NewPoints(s, theta, zeta []float64) (Points, error) {
	if len(s) != len(theta) || len(s) != len(zeta) {
		return nil, Preconditionf("initial condition shapes differ: s=%d theta=%d zeta=%d", len(s), len(theta), len(zeta))
	}
	pts := make(Points, len(s))
	for i := range s {
		pts[i] = Point3{S: s[i], Theta: theta[i], Zeta: zeta[i]}
	}
	return pts, nil
}

// Validate reports the first non-finite point.
func (ps Points) Validate() error {
	if len(ps) == 0 {
		return Preconditionf("no initial points")
	}
	for i, p := range ps {
		if !p.IsValid() {
			return Preconditionf("initial point %d is not finite: %v", i, p)
		}
	}
	return nil
}

// Vec3 holds contravariant components (B^s, B^θ, B^ζ).
type Vec3 [3]float64

func (v Vec3) Scale(f float64) Vec3 {
	return Vec3{v[0] * f, v[1] * f, v[2] * f}
}

func (v Vec3) IsValid() bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// Metric is the covariant metric tensor g_ij.
type Metric [3][3]float64

// Norm returns sqrt(g_ij v^i v^j).
func (g Metric) Norm(v Vec3) float64 {
	sum := 0.0
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			sum += v[i] * v[j] * g[i][j]
		}
	}
	return math.Sqrt(sum)
}

// Geometry maps flux coordinates onto the cylindrical plane at toroidal
// angle ζ.
type Geometry interface {
	Position(p Point3) (r, z float64)
}

// Periodic fields repeat every 2π/NFP in ζ.
type Periodic interface {
	NFP() int
}

// Contravariant is a magnetic field returning (B^s, B^θ, B^ζ).
type Contravariant interface {
	B(p Point3) (Vec3, error)
}

// Evaluator returns the Jacobian-weighted components (J B^s, J B^θ, J B^ζ),
// the quantity an equilibrium code evaluates directly from its spectral
// representation.
type Evaluator interface {
	JB(p Point3) (Vec3, error)
}

// MetricField provides the covariant metric at a point.
type MetricField interface {
	Metric(p Point3) (Metric, error)
}

// Potential provides the covariant vector potential (A_s, A_θ, A_ζ).
type Potential interface {
	VectorPotential(p Point3) (Vec3, error)
}

// Field is what the tracer needs: field components, geometry and period.
type Field interface {
	Contravariant
	Geometry
	Periodic
}
