// Package export writes traced lines and fitted curves as CSV tables.
package export

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"

	"github.com/san-kum/qshpost/internal/equil"
	"github.com/san-kum/qshpost/internal/tracing"
)

var lineHeader = []string{"line", "index", "s", "theta", "zeta", "R", "Z"}

func format(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteLines writes one row per sample. With poincare set only the
// once-per-period samples are written.
func WriteLines(w io.Writer, lines []*tracing.FieldLine, poincare bool) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(lineHeader); err != nil {
		return err
	}
	for i, l := range lines {
		samples := l.Samples()
		if poincare {
			samples = l.Poincare()
		}
		for j, smp := range samples {
			row := []string{
				strconv.Itoa(i), strconv.Itoa(j),
				format(smp.S), format(smp.Theta), format(smp.Zeta),
				format(smp.R), format(smp.Z),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// Curve is anything mapping an angle to (R, Z).
type Curve interface {
	RZ(angle float64) (r, z float64)
}

// Tangent curves also provide dR/dangle and dZ/dangle; WriteCurve then adds
// dR and dZ columns.
type Tangent interface {
	Derivative(angle float64) (dr, dz float64)
}

// WriteCurve samples c at n uniformly spaced angles in [0, 2π/period).
func WriteCurve(w io.Writer, c Curve, n, period int) error {
	if n < 1 || period < 1 {
		return equil.Preconditionf("curve export needs positive samples and period, got %d and %d", n, period)
	}
	tan, hasTangent := c.(Tangent)
	header := []string{"angle", "R", "Z"}
	if hasTangent {
		header = append(header, "dR", "dZ")
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	span := 2 * math.Pi / float64(period)
	for i := 0; i < n; i++ {
		a := span * float64(i) / float64(n)
		r, z := c.RZ(a)
		row := []string{format(a), format(r), format(z)}
		if hasTangent {
			dr, dz := tan.Derivative(a)
			row = append(row, format(dr), format(dz))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
