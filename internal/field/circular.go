package field

import (
	"math"

	"github.com/san-kum/qshpost/internal/equil"
)

// Circular is a large aspect ratio torus with circular, concentric flux
// surfaces and a prescribed rotational transform profile
//
//	ι(ρ) = Iota + Shear·ρ²,  ρ = (s - SMin)/(1 - SMin).
//
// It is exact, so every numerical result can be checked against closed forms.
type Circular struct {
	R0      float64 `yaml:"r0" json:"r0"`
	A       float64 `yaml:"a" json:"a"`
	B0      float64 `yaml:"b0" json:"b0"`
	Iota    float64 `yaml:"iota" json:"iota"`
	Shear   float64 `yaml:"shear" json:"shear"`
	SMin    float64 `yaml:"smin" json:"smin"`
	Periods int     `yaml:"nfp" json:"nfp"`
}

func DefaultCircular() Circular {
	return Circular{R0: 3, A: 1, B0: 1, Iota: 0.3, Shear: 0.1, SMin: -1, Periods: 1}
}

func (c Circular) Validate() error {
	switch {
	case c.A <= 0:
		return equil.Preconditionf("minor radius must be positive, got %g", c.A)
	case c.R0 <= c.A:
		return equil.Preconditionf("major radius %g must exceed minor radius %g", c.R0, c.A)
	case c.SMin >= 1:
		return equil.Preconditionf("smin must be below 1, got %g", c.SMin)
	case c.Periods < 1:
		return equil.Preconditionf("field periods must be positive, got %d", c.Periods)
	}
	return nil
}

func (c Circular) NFP() int { return c.Periods }

func (c Circular) kappa() float64 { return 1 / (1 - c.SMin) }

// Rho maps s to the normalized minor radius.
func (c Circular) Rho(s float64) float64 { return (s - c.SMin) * c.kappa() }

// IotaAt returns the rotational transform on the surface through s.
func (c Circular) IotaAt(s float64) float64 {
	rho := c.Rho(s)
	return c.Iota + c.Shear*rho*rho
}

func (c Circular) Position(p equil.Point3) (float64, float64) {
	rho := c.Rho(p.S)
	return c.R0 + c.A*rho*math.Cos(p.Theta), c.A * rho * math.Sin(p.Theta)
}

func (c Circular) Jacobian(p equil.Point3) (float64, error) {
	r, _ := c.Position(p)
	return c.A * c.A * c.Rho(p.S) * c.kappa() * r, nil
}

func (c Circular) JB(p equil.Point3) (equil.Vec3, error) {
	w := c.A * c.A * c.Rho(p.S) * c.kappa() * c.B0
	return equil.Vec3{0, w * c.IotaAt(p.S), w}, nil
}

func (c Circular) B(p equil.Point3) (equil.Vec3, error) {
	r, _ := c.Position(p)
	bz := c.B0 / r
	return equil.Vec3{0, c.IotaAt(p.S) * bz, bz}, nil
}

func (c Circular) Metric(p equil.Point3) (equil.Metric, error) {
	r, _ := c.Position(p)
	rho := c.Rho(p.S)
	ak := c.A * c.kappa()
	return equil.Metric{
		{ak * ak, 0, 0},
		{0, c.A * c.A * rho * rho, 0},
		{0, 0, r * r},
	}, nil
}

func (c Circular) VectorPotential(p equil.Point3) (equil.Vec3, error) {
	rho := c.Rho(p.S)
	rho2 := rho * rho
	a2b := c.A * c.A * c.B0
	return equil.Vec3{
		0,
		a2b * rho2 / 2,
		-a2b * (c.Iota*rho2/2 + c.Shear*rho2*rho2/4),
	}, nil
}

// ToroidalFlux is the exact flux through the surface at s.
func (c Circular) ToroidalFlux(s float64) float64 {
	rho := c.Rho(s)
	return math.Pi * c.A * c.A * c.B0 * rho * rho
}
