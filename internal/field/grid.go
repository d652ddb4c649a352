package field

import (
	"fmt"
	"math"

	"github.com/san-kum/qshpost/internal/equil"
)

// Metric component order in a Grid: ss, sθ, sζ, θθ, θζ, ζζ.
const (
	gSS = iota
	gST
	gSZ
	gTT
	gTZ
	gZZ
	metricComponents
)

// GridSpec sets the node layout. s is uniform on [SMin, SMax] including both
// ends; θ covers [0, 2π) and ζ covers one field period [0, 2π/NFP), both
// periodic.
type GridSpec struct {
	NS     int     `json:"ns" yaml:"ns"`
	NTheta int     `json:"ntheta" yaml:"ntheta"`
	NZeta  int     `json:"nzeta" yaml:"nzeta"`
	SMin   float64 `json:"smin" yaml:"smin"`
	SMax   float64 `json:"smax" yaml:"smax"`
	NFP    int     `json:"nfp" yaml:"nfp"`
}

func (s GridSpec) Validate() error {
	switch {
	case s.NS < 2:
		return equil.Preconditionf("grid needs at least 2 radial nodes, got %d", s.NS)
	case s.NTheta < 3:
		return equil.Preconditionf("grid needs at least 3 poloidal nodes, got %d", s.NTheta)
	case s.NZeta < 1:
		return equil.Preconditionf("grid needs at least 1 toroidal node, got %d", s.NZeta)
	case s.NFP < 1:
		return equil.Preconditionf("field periods must be positive, got %d", s.NFP)
	case !(s.SMin < s.SMax):
		return equil.Preconditionf("radial range [%g, %g] is empty", s.SMin, s.SMax)
	}
	return nil
}

func (s GridSpec) size() int {
	return s.NS * s.NTheta * s.NZeta
}

func (s GridSpec) index(i, j, k int) int {
	return (i*s.NTheta+j)*s.NZeta + k
}

// Node returns the coordinates of node (i, j, k).
func (s GridSpec) Node(i, j, k int) equil.Point3 {
	return equil.Point3{
		S:     s.SMin + float64(i)*(s.SMax-s.SMin)/float64(s.NS-1),
		Theta: 2 * math.Pi * float64(j) / float64(s.NTheta),
		Zeta:  2 * math.Pi * float64(k) / float64(s.NZeta*s.NFP),
	}
}

// Grid caches field quantities on a (s, θ, ζ) mesh. It is read-only after
// construction and safe for concurrent use.
type Grid struct {
	spec   GridSpec
	jac    []float64
	b      [3][]float64
	metric [metricComponents][]float64
	r, z   []float64
}

// GridData is the exported form of a Grid, used for persistence.
type GridData struct {
	Spec     GridSpec     `json:"spec"`
	Jacobian []float64    `json:"jacobian"`
	B        [3][]float64 `json:"b"`
	Metric   [6][]float64 `json:"metric"`
	R        []float64    `json:"r"`
	Z        []float64    `json:"z"`
}

// NewGrid builds a grid from raw node data.
func NewGrid(d GridData) (*Grid, error) {
	if err := d.Spec.Validate(); err != nil {
		return nil, err
	}
	n := d.Spec.size()
	check := func(name string, v []float64) error {
		if len(v) != n {
			return equil.Preconditionf("grid %s has %d values, want %d", name, len(v), n)
		}
		return nil
	}
	if err := check("jacobian", d.Jacobian); err != nil {
		return nil, err
	}
	for i := range d.B {
		if err := check(fmt.Sprintf("B[%d]", i), d.B[i]); err != nil {
			return nil, err
		}
	}
	for i := range d.Metric {
		if err := check(fmt.Sprintf("metric[%d]", i), d.Metric[i]); err != nil {
			return nil, err
		}
	}
	if err := check("R", d.R); err != nil {
		return nil, err
	}
	if err := check("Z", d.Z); err != nil {
		return nil, err
	}

	g := &Grid{spec: d.Spec, jac: clone(d.Jacobian), r: clone(d.R), z: clone(d.Z)}
	for i := range d.B {
		g.b[i] = clone(d.B[i])
	}
	for i := range d.Metric {
		g.metric[i] = clone(d.Metric[i])
	}
	return g, nil
}

// Data returns a copy of the node values.
func (g *Grid) Data() GridData {
	d := GridData{Spec: g.spec, Jacobian: clone(g.jac), R: clone(g.r), Z: clone(g.z)}
	for i := range g.b {
		d.B[i] = clone(g.b[i])
	}
	for i := range g.metric {
		d.Metric[i] = clone(g.metric[i])
	}
	return d
}

func clone(v []float64) []float64 {
	return append([]float64(nil), v...)
}

func (g *Grid) Spec() GridSpec { return g.spec }

func (g *Grid) NFP() int { return g.spec.NFP }

// cell locates p and returns the eight corner indices and trilinear weights.
type cell struct {
	idx [8]int
	w   [8]float64
}

func wrap(x float64, n int) (int, int, float64) {
	x = math.Mod(x, float64(n))
	if x < 0 {
		x += float64(n)
	}
	i0 := int(x)
	if i0 >= n {
		i0 = n - 1
	}
	f := x - float64(i0)
	return i0, (i0 + 1) % n, f
}

func (g *Grid) locate(p equil.Point3) cell {
	sp := g.spec
	x := (p.S - sp.SMin) / (sp.SMax - sp.SMin) * float64(sp.NS-1)
	x = math.Max(0, math.Min(x, float64(sp.NS-1)))
	i0 := int(x)
	if i0 >= sp.NS-1 {
		i0 = sp.NS - 2
	}
	fs := x - float64(i0)
	i1 := i0 + 1

	j0, j1, ft := wrap(p.Theta/(2*math.Pi)*float64(sp.NTheta), sp.NTheta)
	k0, k1, fz := wrap(p.Zeta*float64(sp.NFP)/(2*math.Pi)*float64(sp.NZeta), sp.NZeta)

	var c cell
	n := 0
	for a, i := range [2]int{i0, i1} {
		ws := 1 - fs
		if a == 1 {
			ws = fs
		}
		for b, j := range [2]int{j0, j1} {
			wt := 1 - ft
			if b == 1 {
				wt = ft
			}
			for d, k := range [2]int{k0, k1} {
				wz := 1 - fz
				if d == 1 {
					wz = fz
				}
				c.idx[n] = sp.index(i, j, k)
				c.w[n] = ws * wt * wz
				n++
			}
		}
	}
	return c
}

func (c cell) eval(v []float64) float64 {
	sum := 0.0
	for n := range c.idx {
		sum += c.w[n] * v[c.idx[n]]
	}
	return sum
}

// Jacobian interpolates the cached Jacobian at p.
func (g *Grid) Jacobian(p equil.Point3) float64 {
	return g.locate(p).eval(g.jac)
}

// B interpolates the contravariant field at p.
func (g *Grid) B(p equil.Point3) (equil.Vec3, error) {
	c := g.locate(p)
	return equil.Vec3{c.eval(g.b[0]), c.eval(g.b[1]), c.eval(g.b[2])}, nil
}

// Metric interpolates the covariant metric at p.
func (g *Grid) Metric(p equil.Point3) (equil.Metric, error) {
	c := g.locate(p)
	var m [metricComponents]float64
	for i := range m {
		m[i] = c.eval(g.metric[i])
	}
	return equil.Metric{
		{m[gSS], m[gST], m[gSZ]},
		{m[gST], m[gTT], m[gTZ]},
		{m[gSZ], m[gTZ], m[gZZ]},
	}, nil
}

// Position interpolates the cylindrical coordinates at p.
func (g *Grid) Position(p equil.Point3) (float64, float64) {
	c := g.locate(p)
	return c.eval(g.r), c.eval(g.z)
}

// Model is a pointwise equilibrium that can be sampled onto a grid.
type Model interface {
	equil.Evaluator
	equil.Geometry
	equil.MetricField
	equil.Periodic
	Jacobian(p equil.Point3) (float64, error)
}

// Sample evaluates model on every node of spec. spec.NFP is taken from the
// model.
func Sample(spec GridSpec, model Model) (*Grid, error) {
	spec.NFP = model.NFP()
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	n := spec.size()
	g := &Grid{spec: spec, jac: make([]float64, n), r: make([]float64, n), z: make([]float64, n)}
	for c := range g.b {
		g.b[c] = make([]float64, n)
	}
	for c := range g.metric {
		g.metric[c] = make([]float64, n)
	}

	for i := 0; i < spec.NS; i++ {
		for j := 0; j < spec.NTheta; j++ {
			for k := 0; k < spec.NZeta; k++ {
				p := spec.Node(i, j, k)
				idx := spec.index(i, j, k)

				jac, err := model.Jacobian(p)
				if err != nil {
					return nil, fmt.Errorf("sample jacobian at %v: %w", p, err)
				}
				jb, err := model.JB(p)
				if err != nil {
					return nil, fmt.Errorf("sample field at %v: %w", p, err)
				}
				m, err := model.Metric(p)
				if err != nil {
					return nil, fmt.Errorf("sample metric at %v: %w", p, err)
				}

				g.jac[idx] = jac
				if jac != 0 {
					for c := range g.b {
						g.b[c][idx] = jb[c] / jac
					}
				} else {
					// Coordinate axis: take B from the neighbouring surface by
					// extrapolating after the loop.
					for c := range g.b {
						g.b[c][idx] = math.NaN()
					}
				}
				g.metric[gSS][idx] = m[0][0]
				g.metric[gST][idx] = m[0][1]
				g.metric[gSZ][idx] = m[0][2]
				g.metric[gTT][idx] = m[1][1]
				g.metric[gTZ][idx] = m[1][2]
				g.metric[gZZ][idx] = m[2][2]
				g.r[idx], g.z[idx] = model.Position(p)
			}
		}
	}
	g.fillSingular()
	return g, nil
}

// fillSingular replaces B on surfaces with a vanishing Jacobian by linear
// extrapolation from the two neighbouring surfaces.
func (g *Grid) fillSingular() {
	sp := g.spec
	for j := 0; j < sp.NTheta; j++ {
		for k := 0; k < sp.NZeta; k++ {
			for i := 0; i < sp.NS; i++ {
				idx := sp.index(i, j, k)
				if !math.IsNaN(g.b[0][idx]) {
					continue
				}
				step := 1
				if i == sp.NS-1 {
					step = -1
				}
				n1, n2 := sp.index(i+step, j, k), sp.index(i+2*step, j, k)
				for c := range g.b {
					if sp.NS > 2 {
						g.b[c][idx] = 2*g.b[c][n1] - g.b[c][n2]
					} else {
						g.b[c][idx] = g.b[c][n1]
					}
				}
			}
		}
	}
}
