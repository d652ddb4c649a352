package fourier

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/qshpost/internal/equil"
)

// Orderer arranges unordered upper half-plane points (Z >= 0) into a path.
// It returns indices into r and z and may drop points.
type Orderer interface {
	Order(r, z []float64) ([]int, error)
}

// SeedOutboard starts the nearest neighbour path at the point of largest R.
const SeedOutboard = -1

// NearestNeighbor walks greedily to the closest unvisited point. Seed is the
// index of the first point, or SeedOutboard. The walk is O(n²).
type NearestNeighbor struct {
	Seed int
}

func (nn NearestNeighbor) Order(r, z []float64) ([]int, error) {
	n := len(r)
	if n == 0 {
		return nil, equil.Preconditionf("fourier: no points to order")
	}
	cur := nn.Seed
	if cur == SeedOutboard {
		cur = floats.MaxIdx(r)
	}
	if cur < 0 || cur >= n {
		return nil, equil.Preconditionf("fourier: seed %d outside [0, %d)", nn.Seed, n)
	}

	visited := make([]bool, n)
	order := make([]int, 0, n)
	visited[cur] = true
	order = append(order, cur)
	for len(order) < n {
		best, bestDist := -1, math.Inf(1)
		for j := 0; j < n; j++ {
			if visited[j] {
				continue
			}
			dr, dz := r[j]-r[cur], z[j]-z[cur]
			if d := dr*dr + dz*dz; d < bestDist {
				best, bestDist = j, d
			}
		}
		cur = best
		visited[cur] = true
		order = append(order, cur)
	}
	return order, nil
}

// AngularSort orders points by polar angle about the centroid of the
// mirrored cloud, (mean R, 0). With MaxZScore > 0, points whose distance from
// the centroid deviates by more than MaxZScore standard deviations are
// dropped first.
type AngularSort struct {
	MaxZScore float64
}

func (a AngularSort) Order(r, z []float64) ([]int, error) {
	n := len(r)
	if n == 0 {
		return nil, equil.Preconditionf("fourier: no points to order")
	}
	rc := stat.Mean(r, nil)
	keep := make([]int, 0, n)
	if a.MaxZScore > 0 && n > 2 {
		radius := make([]float64, n)
		for i := range r {
			radius[i] = math.Hypot(r[i]-rc, z[i])
		}
		mean, std := stat.MeanStdDev(radius, nil)
		for i, d := range radius {
			if std == 0 || math.Abs(d-mean)/std <= a.MaxZScore {
				keep = append(keep, i)
			}
		}
	} else {
		for i := range r {
			keep = append(keep, i)
		}
	}
	angle := make([]float64, n)
	for _, i := range keep {
		angle[i] = math.Atan2(z[i], r[i]-rc)
	}
	sort.SliceStable(keep, func(i, j int) bool {
		return angle[keep[i]] < angle[keep[j]]
	})
	return keep, nil
}

// Reconstruct turns unordered points into a closed parametrized path. Only
// points with Z >= 0 are used; they are ordered, mirrored across Z = 0 (R
// kept, Z negated, order reversed) and given the angle 2π·(chord length so
// far)/(total chord length).
func Reconstruct(r, z []float64, orderer Orderer) (theta, pr, pz []float64, err error) {
	if len(r) != len(z) {
		return nil, nil, nil, equil.Preconditionf("fourier: %d R values for %d Z values", len(r), len(z))
	}
	if orderer == nil {
		orderer = NearestNeighbor{Seed: SeedOutboard}
	}
	var ur, uz []float64
	for i := range r {
		if z[i] >= 0 {
			ur = append(ur, r[i])
			uz = append(uz, z[i])
		}
	}
	if len(ur) < 2 {
		return nil, nil, nil, equil.Preconditionf("fourier: %d points in the upper half plane, need at least 2", len(ur))
	}
	order, err := orderer.Order(ur, uz)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(order) < 2 {
		return nil, nil, nil, equil.Preconditionf("fourier: orderer kept %d points, need at least 2", len(order))
	}

	n := len(order)
	pr = make([]float64, 2*n)
	pz = make([]float64, 2*n)
	for i, idx := range order {
		pr[i], pz[i] = ur[idx], uz[idx]
		pr[2*n-1-i], pz[2*n-1-i] = ur[idx], -uz[idx]
	}

	theta = make([]float64, 2*n)
	for i := 1; i < 2*n; i++ {
		theta[i] = theta[i-1] + math.Hypot(pr[i]-pr[i-1], pz[i]-pz[i-1])
	}
	total := theta[2*n-1]
	if total == 0 {
		return nil, nil, nil, equil.Preconditionf("fourier: all points coincide")
	}
	floats.Scale(2*math.Pi/total, theta)
	return theta, pr, pz, nil
}

// FitReconstructed fits a curve to unordered points.
func FitReconstructed(r, z []float64, mpol int, opts FitOptions) (*Curve, error) {
	theta, pr, pz, err := Reconstruct(r, z, opts.Orderer)
	if err != nil {
		return nil, err
	}
	return FitParametrized(theta, pr, pz, mpol, opts)
}
