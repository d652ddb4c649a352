package fourier

import (
	"github.com/san-kum/qshpost/internal/tracing"
)

// FitFirstCross fits the Poincaré section of line using its traced poloidal
// angle as the parameter.
func FitFirstCross(line *tracing.FieldLine, mpol int, opts FitOptions) (*Curve, error) {
	pts := line.Poincare()
	theta := make([]float64, len(pts))
	r := make([]float64, len(pts))
	z := make([]float64, len(pts))
	for i, p := range pts {
		theta[i], r[i], z[i] = p.Theta, p.R, p.Z
	}
	return FitParametrized(theta, r, z, mpol, opts)
}

// FitSecondCross fits the Poincaré section of line by reconstructing the
// closed path from its upper half.
func FitSecondCross(line *tracing.FieldLine, mpol int, opts FitOptions) (*Curve, error) {
	pts := line.Poincare()
	r := make([]float64, len(pts))
	z := make([]float64, len(pts))
	for i, p := range pts {
		r[i], z[i] = p.R, p.Z
	}
	return FitReconstructed(r, z, mpol, opts)
}
