package kmeans

import (
	"errors"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat"

	"particletriage/internal/particle"
)

// DefaultMaxIterations bounds the refinement loop when no fixed point is found.
const DefaultMaxIterations = 500

// ErrEmptyInput is returned when there are no centroids to work with.
var ErrEmptyInput = errors.New("no centroids")

// Result describes the final state of a clustering run.
type Result struct {
	Centers    []particle.Center
	Iterations int
	Converged  bool
}

// Clusterer groups component centroids with Lloyd's algorithm.
type Clusterer struct {
	MaxIterations int
	Rand          *rand.Rand
}

// NewClusterer returns a clusterer whose initial centers are drawn from a
// generator seeded with seed, so runs are reproducible.
func NewClusterer(seed uint64) *Clusterer {
	return &Clusterer{
		MaxIterations: DefaultMaxIterations,
		Rand:          rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Cluster partitions cents into k clusters in place. Every centroid ends up
// with Distances to all k centers and the ClusterIndex of the nearest one.
// Both reflect the centers the last assignment was made against, i.e. the
// state before the final re-centering.
func (c *Clusterer) Cluster(cents []particle.Centroid, k int) (Result, error) {
	if len(cents) == 0 {
		return Result{}, ErrEmptyInput
	}
	if k < 1 {
		k = 1
	}
	if k > len(cents) {
		k = len(cents)
	}
	maxIter := c.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}

	centers := c.initCenters(cents, k)
	prev := make([]particle.Center, k)

	res := Result{}
	for res.Iterations < maxIter {
		res.Iterations++

		assign(cents, centers)

		copy(prev, centers)
		recenter(cents, centers)

		if equalCenters(prev, centers) {
			res.Converged = true
			break
		}
	}

	res.Centers = centers
	return res, nil
}

// initCenters seeds k centers at distinct, randomly chosen centroids.
func (c *Clusterer) initCenters(cents []particle.Centroid, k int) []particle.Center {
	r := c.Rand
	if r == nil {
		r = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	picked := make(map[int]bool, k)
	centers := make([]particle.Center, 0, k)
	for len(centers) < k {
		idx := r.IntN(len(cents))
		if picked[idx] {
			continue
		}
		picked[idx] = true
		centers = append(centers, particle.Center{X: cents[idx].X, Y: cents[idx].Y})
	}
	return centers
}

// assign fills every centroid's distance table and picks its nearest center.
// Ties go to the lowest center index.
func assign(cents []particle.Centroid, centers []particle.Center) {
	for i := range cents {
		ct := &cents[i]
		if len(ct.Distances) != len(centers) {
			ct.Distances = make([]float64, len(centers))
		}
		best := 0
		for j, cc := range centers {
			ct.Distances[j] = distance(ct.X, ct.Y, cc.X, cc.Y)
			if ct.Distances[j] < ct.Distances[best] {
				best = j
			}
		}
		ct.ClusterIndex = best
	}
}

// recenter moves each center to the integer mean of its members. A center
// that lost all of its members stays where it was.
func recenter(cents []particle.Centroid, centers []particle.Center) {
	xSum := make([]int, len(centers))
	ySum := make([]int, len(centers))
	counts := make([]int, len(centers))

	for _, ct := range cents {
		xSum[ct.ClusterIndex] += ct.X
		ySum[ct.ClusterIndex] += ct.Y
		counts[ct.ClusterIndex]++
	}

	for i := range centers {
		if counts[i] > 0 {
			centers[i] = particle.Center{X: xSum[i] / counts[i], Y: ySum[i] / counts[i]}
		}
	}
}

func equalCenters(a, b []particle.Center) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func distance(x1, y1, x2, y2 int) float64 {
	return math.Hypot(float64(x2-x1), float64(y2-y1))
}

// Density is the mean distance from each centroid to its own cluster center.
func Density(cents []particle.Centroid) (float64, error) {
	if len(cents) == 0 {
		return 0, ErrEmptyInput
	}
	ds := make([]float64, len(cents))
	for i, ct := range cents {
		if ct.ClusterIndex < 0 || ct.ClusterIndex >= len(ct.Distances) {
			return 0, errors.New("centroid has not been clustered")
		}
		ds[i] = ct.Distances[ct.ClusterIndex]
	}
	return stat.Mean(ds, nil), nil
}
