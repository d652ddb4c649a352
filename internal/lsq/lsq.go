// Package lsq solves bounded nonlinear least squares problems with a damped
// Gauss-Newton (Levenberg-Marquardt) iteration.
//
// The cost is 0.5*|r(x)|^2. Bounds are enforced by clamping every trial point
// into [Lower, Upper]; a nil bound slice means unbounded.
package lsq

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/qshpost/internal/equil"
)

// Problem describes residuals r: R^n -> R^M.
type Problem struct {
	// Residual writes r(x) into dst, which has length M.
	Residual func(dst, x []float64)
	// Jacobian writes dr/dx into dst (M x n). When nil the Jacobian is
	// approximated by central differences.
	Jacobian func(dst *mat.Dense, x []float64)
	M        int
	Lower    []float64
	Upper    []float64
}

type Settings struct {
	MaxIter        int
	FTol           float64
	GTol           float64
	XTol           float64
	InitialDamping float64
}

func DefaultSettings() Settings {
	return Settings{
		MaxIter:        200,
		FTol:           1e-12,
		GTol:           1e-12,
		XTol:           1e-12,
		InitialDamping: 1e-3,
	}
}

type Status int

const (
	IterationLimit Status = iota
	GradientConverged
	CostConverged
	StepConverged
	Stalled
)

func (s Status) String() string {
	switch s {
	case GradientConverged:
		return "gtol"
	case CostConverged:
		return "ftol"
	case StepConverged:
		return "xtol"
	case Stalled:
		return "stalled"
	default:
		return "iteration limit"
	}
}

type Result struct {
	X          []float64
	Cost       float64
	Iterations int
	Status     Status
	Success    bool
}

const maxDamping = 1e16

func (p Problem) validate(x0 []float64) error {
	n := len(x0)
	switch {
	case p.Residual == nil:
		return equil.Preconditionf("lsq: nil residual")
	case n == 0:
		return equil.Preconditionf("lsq: empty parameter vector")
	case p.M <= 0:
		return equil.Preconditionf("lsq: residual count must be positive, got %d", p.M)
	case p.Lower != nil && len(p.Lower) != n:
		return equil.Preconditionf("lsq: %d lower bounds for %d parameters", len(p.Lower), n)
	case p.Upper != nil && len(p.Upper) != n:
		return equil.Preconditionf("lsq: %d upper bounds for %d parameters", len(p.Upper), n)
	}
	for i := 0; i < n; i++ {
		if p.Lower != nil && p.Upper != nil && p.Lower[i] > p.Upper[i] {
			return equil.Preconditionf("lsq: bound %d is empty [%g, %g]", i, p.Lower[i], p.Upper[i])
		}
	}
	return nil
}

func (p Problem) clamp(x []float64) {
	for i := range x {
		if p.Lower != nil && x[i] < p.Lower[i] {
			x[i] = p.Lower[i]
		}
		if p.Upper != nil && x[i] > p.Upper[i] {
			x[i] = p.Upper[i]
		}
	}
}

func (p Problem) jacobian(dst *mat.Dense, x []float64) {
	if p.Jacobian != nil {
		p.Jacobian(dst, x)
		return
	}
	fd.Jacobian(dst, p.Residual, x, &fd.JacobianSettings{Formula: fd.Central})
}

func cost(r []float64) float64 {
	return 0.5 * floats.Dot(r, r)
}

// Solve minimizes the problem's cost starting at x0. A non-converged run is
// returned with Success false and a nil error; only invalid input or a
// non-finite residual produces an error.
func Solve(p Problem, x0 []float64, s Settings) (*Result, error) {
	if err := p.validate(x0); err != nil {
		return nil, err
	}
	if s.MaxIter <= 0 {
		return nil, equil.Preconditionf("lsq: MaxIter must be positive, got %d", s.MaxIter)
	}
	n, m := len(x0), p.M

	x := append([]float64(nil), x0...)
	p.clamp(x)
	r := make([]float64, m)
	p.Residual(r, x)
	c := cost(r)
	if math.IsNaN(c) || math.IsInf(c, 0) {
		return nil, fmt.Errorf("lsq: non-finite residual at initial point: %w", equil.ErrNonConvergence)
	}

	lambda := s.InitialDamping
	if lambda <= 0 {
		lambda = DefaultSettings().InitialDamping
	}

	jac := mat.NewDense(m, n, nil)
	var jtj mat.SymDense
	grad := mat.NewVecDense(n, nil)
	rv := mat.NewVecDense(m, r)
	damped := mat.NewSymDense(n, nil)
	step := mat.NewVecDense(n, nil)
	var chol mat.Cholesky

	xnew := make([]float64, n)
	rnew := make([]float64, m)
	diag := make([]float64, n)

	res := &Result{Status: IterationLimit}
	for iter := 1; iter <= s.MaxIter; iter++ {
		res.Iterations = iter
		p.jacobian(jac, x)
		jtj.SymOuterK(1, jac.T())
		grad.MulVec(jac.T(), rv)
		if mat.Norm(grad, math.Inf(1)) <= s.GTol {
			res.Status = GradientConverged
			break
		}

		maxDiag := 0.0
		for i := 0; i < n; i++ {
			diag[i] = jtj.At(i, i)
			maxDiag = math.Max(maxDiag, diag[i])
		}
		if maxDiag == 0 {
			maxDiag = 1
		}
		for i := range diag {
			if diag[i] <= 1e-12*maxDiag {
				diag[i] = maxDiag
			}
		}

		accepted := false
		for !accepted {
			damped.CopySym(&jtj)
			for i := 0; i < n; i++ {
				damped.SetSym(i, i, jtj.At(i, i)+lambda*diag[i])
			}
			if !chol.Factorize(damped) {
				lambda *= 10
				if lambda > maxDamping {
					break
				}
				continue
			}
			if err := chol.SolveVecTo(step, grad); err != nil {
				lambda *= 10
				if lambda > maxDamping {
					break
				}
				continue
			}
			for i := 0; i < n; i++ {
				xnew[i] = x[i] - step.AtVec(i)
			}
			p.clamp(xnew)
			p.Residual(rnew, xnew)
			cnew := cost(rnew)

			if !math.IsNaN(cnew) && cnew <= c {
				accepted = true
				dx := 0.0
				for i := 0; i < n; i++ {
					d := xnew[i] - x[i]
					dx += d * d
				}
				dx = math.Sqrt(dx)
				reduction := c - cnew
				copy(x, xnew)
				copy(r, rnew)
				c = cnew
				lambda = math.Max(lambda/3, 1e-15)

				if reduction <= s.FTol*c || c == 0 {
					res.Status = CostConverged
				} else if dx <= s.XTol*(s.XTol+floats.Norm(x, 2)) {
					res.Status = StepConverged
				}
				break
			}
			lambda *= 2
			if lambda > maxDamping {
				break
			}
		}
		if !accepted {
			res.Status = Stalled
			break
		}
		if res.Status != IterationLimit {
			break
		}
	}

	res.X = x
	res.Cost = c
	res.Success = res.Status == GradientConverged || res.Status == CostConverged || res.Status == StepConverged
	return res, nil
}

// Check turns an unsuccessful result into an error wrapping
// equil.ErrNonConvergence.
func Check(res *Result, what string) error {
	if res.Success {
		return nil
	}
	return fmt.Errorf("%s: least squares stopped after %d iterations (%s, cost %.3g): %w",
		what, res.Iterations, res.Status, res.Cost, equil.ErrNonConvergence)
}
