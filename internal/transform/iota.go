// Package transform estimates the rotational transform ι of traced lines.
package transform

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/qshpost/internal/equil"
	"github.com/san-kum/qshpost/internal/tracing"
)

// Curve is a closed curve parametrized by the toroidal angle, typically an
// axis.
type Curve interface {
	RZ(zeta float64) (r, z float64)
}

func span(line *tracing.FieldLine) (float64, error) {
	if line == nil || line.Len() < 2 {
		n := 0
		if line != nil {
			n = line.Len()
		}
		return 0, equil.Preconditionf("iota needs at least 2 samples, got %d", n)
	}
	zeta := line.Zeta()
	d := zeta[len(zeta)-1] - zeta[0]
	if d == 0 {
		return 0, equil.Preconditionf("line has no toroidal extent")
	}
	return d, nil
}

// Direct returns (θ_last - θ_first)/(ζ_last - ζ_first). θ is used as stored;
// traced lines are continuous in θ, wrapped data is not corrected.
func Direct(line *tracing.FieldLine) (float64, error) {
	d, err := span(line)
	if err != nil {
		return 0, err
	}
	theta := line.Theta()
	return (theta[len(theta)-1] - theta[0]) / d, nil
}

// AxisRelative accumulates the angle swept by the line's displacement from
// the axis in the (R, Z) plane and divides by the toroidal extent. Each
// increment is the unsigned angle between consecutive displacements, so
// sub-steps must turn by less than π.
func AxisRelative(line *tracing.FieldLine, axis Curve) (float64, error) {
	d, err := span(line)
	if err != nil {
		return 0, err
	}
	if axis == nil {
		return 0, equil.Preconditionf("nil axis")
	}
	n := line.Len()
	dr := make([]float64, n)
	dz := make([]float64, n)
	norm := make([]float64, n)
	for i := 0; i < n; i++ {
		smp := line.At(i)
		ar, az := axis.RZ(smp.Zeta)
		dr[i], dz[i] = smp.R-ar, smp.Z-az
		norm[i] = math.Hypot(dr[i], dz[i])
		if norm[i] == 0 {
			return 0, equil.Preconditionf("sample %d lies on the axis", i)
		}
	}
	turn := make([]float64, n-1)
	for i := range turn {
		cos := (dr[i]*dr[i+1] + dz[i]*dz[i+1]) / (norm[i] * norm[i+1])
		turn[i] = math.Acos(math.Max(-1, math.Min(1, cos)))
	}
	return floats.Sum(turn) / d, nil
}
