package bifurcation_test

import (
	"context"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/qshpost/internal/axis"
	"github.com/san-kum/qshpost/internal/bifurcation"
	"github.com/san-kum/qshpost/internal/equil"
	"github.com/san-kum/qshpost/internal/field"
	"github.com/san-kum/qshpost/internal/tracing"
)

func reference(s, r float64) *axis.Axis {
	a, err := axis.New(equil.Point3{S: s}, []int{0}, []float64{r}, []float64{0})
	Expect(err).NotTo(HaveOccurred())
	return a
}

// fixedTracer returns one line whose Poincaré samples have the given R.
type fixedTracer []float64

func (ft fixedTracer) Trace(ctx context.Context, pts equil.Points, opts tracing.Options) ([]*tracing.FieldLine, error) {
	samples := make([]tracing.Sample, len(ft))
	for i, r := range ft {
		samples[i] = tracing.Sample{Point3: pts[0], R: r}
	}
	line, err := tracing.NewFieldLine(samples, 1, 1)
	return []*tracing.FieldLine{line}, err
}

var _ = Describe("Locate", func() {
	var (
		c      field.Circular
		tracer *tracing.Tracer
		opts   bifurcation.Options
		ctx    context.Context
	)

	BeforeEach(func() {
		c = field.DefaultCircular()
		c.Periods = 2
		tracer = tracing.NewFromField(c)
		opts = bifurcation.DefaultOptions()
		opts.IterLine = 3
		ctx = context.Background()
	})

	rAt := func(s float64) float64 { return c.R0 + c.A*c.Rho(s) }

	Context("with well separated references", func() {
		It("halves the bracket every step and keeps the transition inside", func() {
			first := reference(-0.9, rAt(-0.9))
			second := reference(0.9, rAt(0.3))

			var seen []bifurcation.Step
			opts.Observer = func(s bifurcation.Step) { seen = append(seen, s) }
			res, err := bifurcation.Locate(ctx, first, second, tracer, opts)
			Expect(err).NotTo(HaveOccurred())

			Expect(res.Steps).To(HaveLen(opts.Niter))
			Expect(seen).To(Equal(res.Steps))
			w := 1.8
			for _, step := range res.Steps {
				w /= 2
				Expect(step.Bracket.Width()).To(BeNumerically("~", w, 1e-12))
				Expect(step.Bracket.Left).To(BeNumerically("<=", 0.3))
				Expect(step.Bracket.Right).To(BeNumerically(">=", 0.3))
			}
			Expect(res.Bracket).To(Equal(res.Steps[len(res.Steps)-1].Bracket))
			Expect(res.FirstR).To(Equal(rAt(-0.9)))
		})

		It("uses the outboard extent of the traced surface", func() {
			first := reference(-0.9, rAt(-0.9))
			second := reference(0.9, rAt(0.3))
			opts.Niter = 1

			res, err := bifurcation.Locate(ctx, first, second, tracer, opts)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Steps[0].MidS).To(Equal(0.0))
			Expect(res.Steps[0].MidR).To(BeNumerically("~", rAt(0), 1e-12))
			Expect(res.Bracket).To(Equal(bifurcation.Bracket{Left: 0, Right: 0.9}))
		})
	})

	Context("with invalid references", func() {
		It("rejects a first axis outside the second", func() {
			_, err := bifurcation.Locate(ctx, reference(-0.9, 4), reference(0.9, 3.5), tracer, opts)
			Expect(err).To(MatchError(equil.ErrPrecondition))
		})

		It("rejects reversed starting points", func() {
			_, err := bifurcation.Locate(ctx, reference(0.9, 3.1), reference(-0.9, 3.5), tracer, opts)
			Expect(err).To(MatchError(equil.ErrPrecondition))
		})

		It("rejects a zero iteration count", func() {
			opts.Niter = 0
			_, err := bifurcation.Locate(ctx, reference(-0.9, 3.1), reference(0.9, 3.5), tracer, opts)
			Expect(err).To(MatchError(equil.ErrPrecondition))
		})
	})

	Context("when an orbit falls inside the first axis", func() {
		It("reports a topology error", func() {
			first := reference(-0.9, rAt(0.8))
			second := reference(0.9, rAt(0.85))

			_, err := bifurcation.Locate(ctx, first, second, tracer, opts)
			Expect(err).To(MatchError(equil.ErrTopology))

			var te *bifurcation.TopologyError
			Expect(err).To(BeAssignableToTypeOf(te))
			te = err.(*bifurcation.TopologyError)
			Expect(te.Iteration).To(Equal(0))
			Expect(te.MidS).To(Equal(0.0))
		})

		It("treats a non-finite orbit as a topology error", func() {
			_, err := bifurcation.Locate(ctx, reference(-0.9, 3.1), reference(0.9, 3.5), fixedTracer{math.NaN()}, opts)
			Expect(err).To(MatchError(equil.ErrTopology))
		})

		It("notices a non-finite sample after finite ones", func() {
			_, err := bifurcation.Locate(ctx, reference(-0.9, 3.1), reference(0.9, 3.5), fixedTracer{3.2, math.NaN(), 3.3}, opts)
			Expect(err).To(MatchError(equil.ErrTopology))
		})

		It("takes the largest section R", func() {
			opts.Niter = 1
			res, err := bifurcation.Locate(ctx, reference(-0.9, 3.1), reference(0.9, 3.5), fixedTracer{3.2, 3.6, 3.3}, opts)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Steps[0].MidR).To(Equal(3.6))
			Expect(res.Bracket).To(Equal(bifurcation.Bracket{Left: -0.9, Right: 0}))
		})
	})
})
