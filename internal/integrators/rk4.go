package integrators

type RK4 struct {
	k1, k2, k3, k4 State
	scratch        State
}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) ensureScratch(n int) {
	if len(r.k1) != n {
		r.k1 = make(State, n)
		r.k2 = make(State, n)
		r.k3 = make(State, n)
		r.k4 = make(State, n)
		r.scratch = make(State, n)
	}
}

func (r *RK4) Step(sys System, t, dt float64, x State) (State, error) {
	n := len(x)
	r.ensureScratch(n)

	if err := sys.Derive(t, x, r.k1); err != nil {
		return nil, err
	}

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + dt*0.5*r.k1[i]
	}
	if err := sys.Derive(t+dt*0.5, r.scratch, r.k2); err != nil {
		return nil, err
	}

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + dt*0.5*r.k2[i]
	}
	if err := sys.Derive(t+dt*0.5, r.scratch, r.k3); err != nil {
		return nil, err
	}

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + dt*r.k3[i]
	}
	if err := sys.Derive(t+dt, r.scratch, r.k4); err != nil {
		return nil, err
	}

	result := make(State, n)
	dt6 := dt / 6.0
	for i := 0; i < n; i++ {
		result[i] = x[i] + dt6*(r.k1[i]+2*r.k2[i]+2*r.k3[i]+r.k4[i])
	}

	return result, nil
}

// Integrate takes opts.FixedSteps equal steps from t0 to t1.
func (r *RK4) Integrate(sys System, t0, t1 float64, y0 State, opts Options) (State, Stats, error) {
	return fixedSteps(r.Step, 4, sys, t0, t1, y0, opts)
}

type Euler struct {
	dx State
}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(sys System, t, dt float64, x State) (State, error) {
	if len(e.dx) != len(x) {
		e.dx = make(State, len(x))
	}
	if err := sys.Derive(t, x, e.dx); err != nil {
		return nil, err
	}
	result := make(State, len(x))
	for i := range x {
		result[i] = x[i] + dt*e.dx[i]
	}
	return result, nil
}

func (e *Euler) Integrate(sys System, t0, t1 float64, y0 State, opts Options) (State, Stats, error) {
	return fixedSteps(e.Step, 1, sys, t0, t1, y0, opts)
}

func fixedSteps(step func(System, float64, float64, State) (State, error), evals int, sys System, t0, t1 float64, y0 State, opts Options) (State, Stats, error) {
	var stats Stats
	n := opts.FixedSteps
	if n <= 0 {
		n = 1
	}
	dt := (t1 - t0) / float64(n)
	x := y0.Clone()
	for i := 0; i < n; i++ {
		t := t0 + float64(i)*dt
		next, err := step(sys, t, dt, x)
		stats.Evals += evals
		if err == nil && !next.IsValid() {
			err = ErrInvalidState
		}
		if err != nil {
			return x, stats, &StepError{T: t, H: dt, Wrapped: err}
		}
		x = next
		stats.Steps++
	}
	return x, stats, nil
}

