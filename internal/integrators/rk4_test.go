package integrators

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/qshpost/internal/equil"
)

func oscillator() System {
	return SystemFunc(func(t float64, y, dy State) error {
		dy[0] = y[1]
		dy[1] = -y[0]
		return nil
	})
}

func TestRK4Accuracy(t *testing.T) {
	opts := DefaultOptions()
	opts.Method = ClassicRK4
	opts.FixedSteps = 100

	x, stats, err := NewRK4().Integrate(oscillator(), 0, 1, State{1, 0}, opts)
	if err != nil {
		t.Fatalf("Integrate: %v", err)
	}

	if math.Abs(x[0]-math.Cos(1)) > 1e-8 {
		t.Errorf("position error too large: got %.10f, want %.10f", x[0], math.Cos(1))
	}
	if math.Abs(x[1]+math.Sin(1)) > 1e-8 {
		t.Errorf("velocity error too large: got %.10f, want %.10f", x[1], -math.Sin(1))
	}
	if stats.Steps != 100 || stats.Evals != 400 {
		t.Errorf("stats = %+v, want 100 steps and 400 evals", stats)
	}
}

func TestEulerFirstOrder(t *testing.T) {
	decay := SystemFunc(func(t float64, y, dy State) error {
		dy[0] = -y[0]
		return nil
	})
	opts := DefaultOptions()
	opts.Method = ForwardEuler

	var prev float64
	for i, n := range []int{100, 200, 400} {
		opts.FixedSteps = n
		x, _, err := NewEuler().Integrate(decay, 0, 1, State{1}, opts)
		if err != nil {
			t.Fatalf("Integrate: %v", err)
		}
		errAbs := math.Abs(x[0] - math.Exp(-1))
		if i > 0 {
			ratio := prev / errAbs
			if ratio < 1.8 || ratio > 2.2 {
				t.Errorf("halving h changed the error by %.3f, want ~2", ratio)
			}
		}
		prev = errAbs
	}
}

func TestFixedStepInvalidState(t *testing.T) {
	blowup := SystemFunc(func(t float64, y, dy State) error {
		dy[0] = math.Inf(1)
		return nil
	})
	opts := DefaultOptions()
	opts.Method = ClassicRK4
	_, _, err := NewRK4().Integrate(blowup, 0, 1, State{1}, opts)
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
	if !errors.Is(err, equil.ErrNonConvergence) {
		t.Errorf("err = %v does not wrap ErrNonConvergence", err)
	}
	var se *StepError
	if !errors.As(err, &se) || se.T != 0 {
		t.Errorf("err = %v, want *StepError at t=0", err)
	}
}

func TestDeriveErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	sys := SystemFunc(func(t float64, y, dy State) error {
		if t > 0.5 {
			return boom
		}
		dy[0] = 1
		return nil
	})
	for _, m := range []Method{ClassicRK4, ForwardEuler, DormandPrince, BogackiShampine} {
		opts := DefaultOptions()
		opts.Method = m
		_, _, err := Solve(sys, 0, 1, State{0}, opts)
		if !errors.Is(err, boom) {
			t.Errorf("%s: err = %v, want boom", m, err)
		}
	}
}
