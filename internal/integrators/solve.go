package integrators

// Integrator advances an ODE system across one interval.
type Integrator interface {
	Integrate(sys System, t0, t1 float64, y0 State, opts Options) (State, Stats, error)
}

// New returns a fresh integrator for the method. Integrators carry scratch
// buffers and must not be shared between goroutines.
func New(m Method) Integrator {
	switch m {
	case BogackiShampine:
		return NewRK23()
	case ClassicRK4:
		return NewRK4()
	case ForwardEuler:
		return NewEuler()
	default:
		return NewRK45()
	}
}

// Solve integrates sys from t0 to t1 with a fresh integrator.
func Solve(sys System, t0, t1 float64, y0 State, opts Options) (State, Stats, error) {
	if err := opts.Validate(); err != nil {
		return nil, Stats{}, err
	}
	return New(opts.Method).Integrate(sys, t0, t1, y0, opts)
}
