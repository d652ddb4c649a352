package tracing

import (
	"github.com/san-kum/qshpost/internal/equil"
)

// Sample is one traced point with its cylindrical position.
type Sample struct {
	equil.Point3
	R float64
	Z float64
}

// FieldLine is an immutable traced field line. Consecutive samples are one
// sub-step apart; every NZeta-th sample is one field period further along.
type FieldLine struct {
	s, theta, zeta []float64
	r, z           []float64
	nzeta          int
	nfp            int
}

// NewFieldLine builds a line from existing samples, e.g. loaded from disk.
func NewFieldLine(samples []Sample, nzeta, nfp int) (*FieldLine, error) {
	if len(samples) == 0 {
		return nil, equil.Preconditionf("field line has no samples")
	}
	if nzeta < 1 || nfp < 1 {
		return nil, equil.Preconditionf("field line needs positive nzeta and nfp, got %d and %d", nzeta, nfp)
	}
	l := newLine(len(samples), nzeta, nfp)
	for _, smp := range samples {
		l.append(smp)
	}
	return l, nil
}

func newLine(capacity, nzeta, nfp int) *FieldLine {
	return &FieldLine{
		s:     make([]float64, 0, capacity),
		theta: make([]float64, 0, capacity),
		zeta:  make([]float64, 0, capacity),
		r:     make([]float64, 0, capacity),
		z:     make([]float64, 0, capacity),
		nzeta: nzeta,
		nfp:   nfp,
	}
}

func (l *FieldLine) append(smp Sample) {
	l.s = append(l.s, smp.S)
	l.theta = append(l.theta, smp.Theta)
	l.zeta = append(l.zeta, smp.Zeta)
	l.r = append(l.r, smp.R)
	l.z = append(l.z, smp.Z)
}

func (l *FieldLine) Len() int { return len(l.s) }

// NZeta is the number of sub-steps per field period.
func (l *FieldLine) NZeta() int { return l.nzeta }

func (l *FieldLine) NFP() int { return l.nfp }

func (l *FieldLine) At(i int) Sample {
	return Sample{
		Point3: equil.Point3{S: l.s[i], Theta: l.theta[i], Zeta: l.zeta[i]},
		R:      l.r[i],
		Z:      l.z[i],
	}
}

func (l *FieldLine) Samples() []Sample {
	out := make([]Sample, l.Len())
	for i := range out {
		out[i] = l.At(i)
	}
	return out
}

// Poincare returns one sample per field period, starting with the first.
func (l *FieldLine) Poincare() []Sample {
	out := make([]Sample, 0, l.Len()/l.nzeta+1)
	for i := 0; i < l.Len(); i += l.nzeta {
		out = append(out, l.At(i))
	}
	return out
}

func (l *FieldLine) S() []float64     { return append([]float64(nil), l.s...) }
func (l *FieldLine) Theta() []float64 { return append([]float64(nil), l.theta...) }
func (l *FieldLine) Zeta() []float64  { return append([]float64(nil), l.zeta...) }
func (l *FieldLine) R() []float64     { return append([]float64(nil), l.r...) }
func (l *FieldLine) Z() []float64     { return append([]float64(nil), l.z...) }

// Start is the initial condition of the line.
func (l *FieldLine) Start() equil.Point3 {
	return l.At(0).Point3
}
