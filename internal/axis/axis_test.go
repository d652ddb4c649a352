package axis

import (
	"errors"
	"math"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/san-kum/qshpost/internal/equil"
	"github.com/san-kum/qshpost/internal/tracing"
)

func lineFromAxis(t *testing.T, a *Axis, n int) *tracing.FieldLine {
	t.Helper()
	samples := make([]tracing.Sample, n)
	for i := range samples {
		zeta := 2 * math.Pi * float64(i) / float64(n)
		r, z := a.RZ(zeta)
		samples[i] = tracing.Sample{Point3: equil.Point3{S: -0.99, Zeta: zeta}, R: r, Z: z}
	}
	line, err := tracing.NewFieldLine(samples, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	return line
}

func TestToroidalModes(t *testing.T) {
	g := NewWithT(t)
	xn, err := ToroidalModes(3, 5)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(xn).To(Equal([]int{0, 5, 10, 15}))

	_, err = ToroidalModes(2, 0)
	g.Expect(err).To(MatchError(equil.ErrPrecondition))
}

func TestFitRecoversAxis(t *testing.T) {
	g := NewWithT(t)
	xn, _ := ToroidalModes(2, 2)
	want, err := New(equil.Point3{}, xn, []float64{3, 0.2, -0.01}, []float64{0, 0.1, 0.02})
	g.Expect(err).NotTo(HaveOccurred())

	line := lineFromAxis(t, want, 64)
	got, err := Fit(xn, line, DefaultFitOptions())
	g.Expect(err).NotTo(HaveOccurred())
	for i := range xn {
		g.Expect(got.RAC()[i]).To(BeNumerically("~", want.RAC()[i], 1e-9))
		g.Expect(got.ZAS()[i]).To(BeNumerically("~", want.ZAS()[i], 1e-9))
	}
	g.Expect(got.Start()).To(Equal(line.Start()))
}

func TestFitPreconditions(t *testing.T) {
	g := NewWithT(t)
	a, _ := New(equil.Point3{}, []int{0}, []float64{3}, []float64{0})
	line := lineFromAxis(t, a, 3)

	_, err := Fit([]int{0, 1, 2}, line, DefaultFitOptions())
	g.Expect(err).To(MatchError(equil.ErrPrecondition))
	_, err = Fit(nil, line, DefaultFitOptions())
	g.Expect(err).To(MatchError(equil.ErrPrecondition))
}

func TestNewRejectsMismatchedLengths(t *testing.T) {
	_, err := New(equil.Point3{}, []int{0, 1}, []float64{3}, []float64{0, 0})
	if !errors.Is(err, equil.ErrPrecondition) {
		t.Errorf("err = %v, want ErrPrecondition", err)
	}
}

func TestRZAndXYZ(t *testing.T) {
	g := NewWithT(t)
	a, _ := New(equil.Point3{}, []int{0, 1}, []float64{3, 0.5}, []float64{0, 0.25})

	r, z := a.RZ(math.Pi / 2)
	g.Expect(r).To(BeNumerically("~", 3, 1e-15))
	g.Expect(z).To(BeNumerically("~", -0.25, 1e-15))

	x, y, zz := a.XYZ(math.Pi / 2)
	g.Expect(x).To(BeNumerically("~", 0, 1e-15))
	g.Expect(y).To(BeNumerically("~", 3, 1e-15))
	g.Expect(zz).To(Equal(z))

	const h = 1e-6
	dr, dz := a.Derivative(0.4)
	r1, z1 := a.RZ(0.4 + h)
	r0, z0 := a.RZ(0.4 - h)
	g.Expect(dr).To(BeNumerically("~", (r1-r0)/(2*h), 1e-8))
	g.Expect(dz).To(BeNumerically("~", (z1-z0)/(2*h), 1e-8))
}

func TestWrithePlanarCircle(t *testing.T) {
	g := NewWithT(t)
	a, _ := New(equil.Point3{}, []int{0}, []float64{3}, []float64{0})
	w, err := a.Writhe(16)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(w.Value).To(BeZero())
	g.Expect(w.ErrorEstimate).To(BeZero())
}

func TestWritheMirror(t *testing.T) {
	g := NewWithT(t)
	a, _ := New(equil.Point3{}, []int{0, 3}, []float64{3, 0.3}, []float64{0, 0.4})
	m, _ := New(equil.Point3{}, []int{0, 3}, []float64{3, 0.3}, []float64{0, -0.4})

	wa, err := a.Writhe(24)
	g.Expect(err).NotTo(HaveOccurred())
	wm, err := m.Writhe(24)
	g.Expect(err).NotTo(HaveOccurred())

	g.Expect(wa.Value).NotTo(BeZero())
	g.Expect(math.Abs(wa.Value)).To(BeNumerically("<", 1))
	g.Expect(wm.Value).To(BeNumerically("~", -wa.Value, 1e-12))

	_, err = a.Writhe(0)
	g.Expect(err).To(MatchError(equil.ErrPrecondition))
}
