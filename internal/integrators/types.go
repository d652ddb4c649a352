package integrators

import (
	"fmt"
	"math"
	"strings"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// System is a first order ODE system dy/dt = f(t, y). Derive writes f into
// dy, which has the length of y.
type System interface {
	Derive(t float64, y, dy State) error
}

// SystemFunc adapts a plain function to System.
type SystemFunc func(t float64, y, dy State) error

func (f SystemFunc) Derive(t float64, y, dy State) error {
	return f(t, y, dy)
}

// Method selects the integration scheme.
type Method int

const (
	// DormandPrince is the adaptive 5(4) embedded pair.
	DormandPrince Method = iota
	// BogackiShampine is the adaptive 3(2) embedded pair.
	BogackiShampine
	// ClassicRK4 takes FixedSteps equal fourth order steps per interval.
	ClassicRK4
	// ForwardEuler takes FixedSteps equal first order steps per interval.
	ForwardEuler
)

var methodNames = map[Method]string{
	DormandPrince:   "dopri5",
	BogackiShampine: "rk23",
	ClassicRK4:      "rk4",
	ForwardEuler:    "euler",
}

func (m Method) String() string {
	if name, ok := methodNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

// Adaptive reports whether the method controls its own step size.
func (m Method) Adaptive() bool {
	return m == DormandPrince || m == BogackiShampine
}

func ParseMethod(name string) (Method, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	switch key {
	case "", "rk45":
		return DormandPrince, nil
	}
	for m, n := range methodNames {
		if n == key {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown integrator: %s", name)
}

func (m Method) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Method) UnmarshalText(text []byte) error {
	parsed, err := ParseMethod(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Options configures a single Solve call.
type Options struct {
	Method Method
	RTol   float64
	ATol   float64
	// InitialStep of zero lets the solver pick one.
	InitialStep float64
	// MaxStep of zero means the whole interval.
	MaxStep float64
	// MinStep of zero means a few ulps of t.
	MinStep  float64
	MaxSteps int
	// FixedSteps is the number of steps per interval for fixed-step methods.
	FixedSteps int
}

func DefaultOptions() Options {
	return Options{
		Method:     DormandPrince,
		RTol:       1e-10,
		ATol:       1e-10,
		MaxSteps:   100000,
		FixedSteps: 16,
	}
}

func (o Options) Validate() error {
	if _, ok := methodNames[o.Method]; !ok {
		return fmt.Errorf("invalid integrator method %d", int(o.Method))
	}
	if o.Method.Adaptive() {
		if o.RTol <= 0 || o.ATol < 0 {
			return fmt.Errorf("tolerances must be positive, got rtol=%g atol=%g", o.RTol, o.ATol)
		}
		if o.MaxSteps <= 0 {
			return fmt.Errorf("max steps must be positive, got %d", o.MaxSteps)
		}
		if o.InitialStep < 0 || o.MaxStep < 0 || o.MinStep < 0 {
			return fmt.Errorf("step bounds must not be negative")
		}
		return nil
	}
	if o.FixedSteps <= 0 {
		return fmt.Errorf("fixed steps must be positive, got %d", o.FixedSteps)
	}
	return nil
}

// Stats counts the work done by a Solve call.
type Stats struct {
	Steps    int
	Rejected int
	Evals    int
}
