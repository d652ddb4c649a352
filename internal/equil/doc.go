// Package equil provides the core primitives shared by the post-processing
// tools for stepped-pressure equilibria.
//
// The package defines the coordinate and field types every other package
// builds on:
//
//   - [Point3]: a point in flux coordinates (s, θ, ζ)
//   - [Points]: the ordered container of initial conditions handed to a tracer
//   - [Contravariant]: a field returning (B^s, B^θ, B^ζ) at a point
//   - [Evaluator]: a pointwise field returning Jacobian-weighted components
//   - [Geometry]: the map from flux coordinates to cylindrical (R, Z)
//
// # Errors
//
// Numerical failures are reported through three sentinels:
// [ErrPrecondition] for invalid input, [ErrNonConvergence] for ODE or least
// squares failures, and [ErrTopology] when a bifurcation bracket turns out to
// be inconsistent with the traced orbits. Callers test them with errors.Is.
package equil
