package integrators

import (
	"math"
)

// Dormand-Prince coefficients (RK45)
var (
	a2 = 1.0 / 5.0
	a3 = 3.0 / 10.0
	a4 = 4.0 / 5.0
	a5 = 8.0 / 9.0

	b21 = 1.0 / 5.0
	b31 = 3.0 / 40.0
	b32 = 9.0 / 40.0
	b41 = 44.0 / 45.0
	b42 = -56.0 / 15.0
	b43 = 32.0 / 9.0
	b51 = 19372.0 / 6561.0
	b52 = -25360.0 / 2187.0
	b53 = 64448.0 / 6561.0
	b54 = -212.0 / 729.0
	b61 = 9017.0 / 3168.0
	b62 = -355.0 / 33.0
	b63 = 46732.0 / 5247.0
	b64 = 49.0 / 176.0
	b65 = -5103.0 / 18656.0

	c1 = 35.0 / 384.0
	c3 = 500.0 / 1113.0
	c4 = 125.0 / 192.0
	c5 = -2187.0 / 6784.0
	c6 = 11.0 / 84.0

	dc1 = c1 - 5179.0/57600.0
	dc3 = c3 - 7571.0/16695.0
	dc4 = c4 - 393.0/640.0
	dc5 = c5 - -92097.0/339200.0
	dc6 = c6 - 187.0/2100.0
	dc7 = -1.0 / 40.0
)

// tableau is an explicit embedded pair whose last stage is evaluated at the
// new solution (first same as last).
type tableau struct {
	c      []float64
	a      [][]float64
	b      []float64
	e      []float64
	errExp float64
}

var dormandPrince = &tableau{
	c: []float64{0, a2, a3, a4, a5, 1, 1},
	a: [][]float64{
		nil,
		{b21},
		{b31, b32},
		{b41, b42, b43},
		{b51, b52, b53, b54},
		{b61, b62, b63, b64, b65},
		{c1, 0, c3, c4, c5, c6},
	},
	b:      []float64{c1, 0, c3, c4, c5, c6, 0},
	e:      []float64{dc1, 0, dc3, dc4, dc5, dc6, dc7},
	errExp: 1.0 / 5.0,
}

var bogackiShampine = &tableau{
	c: []float64{0, 1.0 / 2.0, 3.0 / 4.0, 1},
	a: [][]float64{
		nil,
		{1.0 / 2.0},
		{0, 3.0 / 4.0},
		{2.0 / 9.0, 1.0 / 3.0, 4.0 / 9.0},
	},
	b:      []float64{2.0 / 9.0, 1.0 / 3.0, 4.0 / 9.0, 0},
	e:      []float64{-5.0 / 72.0, 1.0 / 12.0, 1.0 / 9.0, -1.0 / 8.0},
	errExp: 1.0 / 3.0,
}

// RK45 integrates with an embedded pair, rejecting steps whose scaled error
// norm exceeds one.
type RK45 struct {
	tb       *tableau
	safety   float64
	minScale float64
	maxScale float64
	k        []State
	ytmp     State
}

func NewRK45() *RK45 {
	return newEmbedded(dormandPrince)
}

func NewRK23() *RK45 {
	return newEmbedded(bogackiShampine)
}

func newEmbedded(tb *tableau) *RK45 {
	return &RK45{
		tb:       tb,
		safety:   0.9,
		minScale: 0.2,
		maxScale: 10.0,
	}
}

func (r *RK45) ensureScratch(n int) {
	if len(r.ytmp) == n && len(r.k) == len(r.tb.c) {
		return
	}
	r.k = make([]State, len(r.tb.c))
	for i := range r.k {
		r.k[i] = make(State, n)
	}
	r.ytmp = make(State, n)
}

func (r *RK45) derive(sys System, t float64, y, dy State, stats *Stats) error {
	stats.Evals++
	if err := sys.Derive(t, y, dy); err != nil {
		return err
	}
	if !dy.IsValid() {
		return ErrInvalidState
	}
	return nil
}

// Integrate advances y0 from t0 to t1 and returns the state at t1.
func (r *RK45) Integrate(sys System, t0, t1 float64, y0 State, opts Options) (State, Stats, error) {
	var stats Stats
	y := y0.Clone()
	if t1 == t0 {
		return y, stats, nil
	}
	n := len(y)
	r.ensureScratch(n)
	tb := r.tb
	last := len(tb.c) - 1

	dir := 1.0
	if t1 < t0 {
		dir = -1.0
	}
	span := math.Abs(t1 - t0)
	maxStep := opts.MaxStep
	if maxStep <= 0 || maxStep > span {
		maxStep = span
	}

	t := t0
	if err := r.derive(sys, t, y, r.k[0], &stats); err != nil {
		return y, stats, &StepError{T: t, Wrapped: err}
	}

	h := opts.InitialStep
	if h <= 0 {
		var err error
		h, err = r.initialStep(sys, t, y, dir, opts, &stats)
		if err != nil {
			return y, stats, &StepError{T: t, Wrapped: err}
		}
	}
	h = math.Min(h, maxStep)

	ynew := make(State, n)
	rejected := false
	for {
		if stats.Steps+stats.Rejected >= opts.MaxSteps {
			return y, stats, &StepError{T: t, H: h, Wrapped: ErrMaxSteps}
		}
		minStep := opts.MinStep
		if minStep <= 0 {
			at := math.Abs(t)
			minStep = 16 * (math.Nextafter(at, math.Inf(1)) - at)
		}
		if h < minStep {
			return y, stats, &StepError{T: t, H: h, Wrapped: ErrStepTooSmall}
		}

		remaining := dir * (t1 - t)
		final := false
		if h >= remaining {
			h = remaining
			final = true
		}
		hs := dir * h

		for s := 1; s <= last; s++ {
			for i := 0; i < n; i++ {
				acc := 0.0
				for j, a := range tb.a[s] {
					acc += a * r.k[j][i]
				}
				r.ytmp[i] = y[i] + hs*acc
			}
			if s == last {
				copy(ynew, r.ytmp)
			}
			if err := r.derive(sys, t+tb.c[s]*hs, r.ytmp, r.k[s], &stats); err != nil {
				return y, stats, &StepError{T: t, H: h, Wrapped: err}
			}
		}

		errNorm := 0.0
		for i := 0; i < n; i++ {
			est := 0.0
			for j, e := range tb.e {
				est += e * r.k[j][i]
			}
			est *= hs
			sc := opts.ATol + opts.RTol*math.Max(math.Abs(y[i]), math.Abs(ynew[i]))
			errNorm += (est / sc) * (est / sc)
		}
		errNorm = math.Sqrt(errNorm / float64(n))

		if errNorm <= 1 {
			stats.Steps++
			if final {
				t = t1
			} else {
				t += hs
			}
			copy(y, ynew)
			r.k[0], r.k[last] = r.k[last], r.k[0]
			if final {
				return y, stats, nil
			}

			scale := r.maxScale
			if errNorm > 0 {
				scale = math.Min(r.maxScale, r.safety*math.Pow(errNorm, -tb.errExp))
			}
			if rejected {
				scale = math.Min(scale, 1)
			}
			h = math.Min(h*scale, maxStep)
			rejected = false
		} else {
			stats.Rejected++
			scale := math.Max(r.minScale, r.safety*math.Pow(errNorm, -tb.errExp))
			h *= scale
			rejected = true
		}
	}
}

// initialStep follows Hairer, Nørsett and Wanner's starting step heuristic.
func (r *RK45) initialStep(sys System, t float64, y State, dir float64, opts Options, stats *Stats) (float64, error) {
	n := len(y)
	f0 := r.k[0]
	d0, d1 := 0.0, 0.0
	for i := 0; i < n; i++ {
		sc := opts.ATol + opts.RTol*math.Abs(y[i])
		d0 += (y[i] / sc) * (y[i] / sc)
		d1 += (f0[i] / sc) * (f0[i] / sc)
	}
	d0 = math.Sqrt(d0 / float64(n))
	d1 = math.Sqrt(d1 / float64(n))

	h0 := 1e-6
	if d0 >= 1e-5 && d1 >= 1e-5 {
		h0 = 0.01 * d0 / d1
	}

	for i := 0; i < n; i++ {
		r.ytmp[i] = y[i] + dir*h0*f0[i]
	}
	f1 := r.k[1]
	if err := r.derive(sys, t+dir*h0, r.ytmp, f1, stats); err != nil {
		return 0, err
	}
	d2 := 0.0
	for i := 0; i < n; i++ {
		sc := opts.ATol + opts.RTol*math.Abs(y[i])
		d := (f1[i] - f0[i]) / sc
		d2 += d * d
	}
	d2 = math.Sqrt(d2/float64(n)) / h0

	var h1 float64
	if m := math.Max(d1, d2); m <= 1e-15 {
		h1 = math.Max(1e-6, h0*1e-3)
	} else {
		h1 = math.Pow(0.01/m, r.tb.errExp)
	}
	return math.Min(100*h0, h1), nil
}
