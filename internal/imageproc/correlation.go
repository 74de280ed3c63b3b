package imageproc

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Correlate returns the absolute 2D correlation coefficient between two
// equally sized grids. Means are rounded to whole intensities before the
// deviations are taken. A uniform grid has no variance and yields 0.
func Correlate(a, b *Grid) (float64, error) {
	if !a.SameSize(b) {
		return 0, fmt.Errorf("correlate %dx%d with %dx%d: %w",
			a.Width, a.Height, b.Width, b.Height, ErrDimensionMismatch)
	}
	ref := newReference(a)
	return ref.correlate(b, make([]float64, len(b.Pix))), nil
}

// reference caches the deviations of one grid so it can be correlated
// against many candidates without recomputing them.
type reference struct {
	dev   []float64
	sumSq float64
}

func newReference(g *Grid) *reference {
	dev := make([]float64, len(g.Pix))
	deviations(g, dev)
	return &reference{dev: dev, sumSq: floats.Dot(dev, dev)}
}

// correlate scores g against the reference using scratch as the deviation
// buffer. Callers guarantee matching sizes.
func (r *reference) correlate(g *Grid, scratch []float64) float64 {
	deviations(g, scratch)
	denom := math.Sqrt(r.sumSq * floats.Dot(scratch, scratch))
	if denom == 0 {
		return 0
	}
	return math.Abs(floats.Dot(r.dev, scratch) / denom)
}

// deviations fills dev with each pixel minus the rounded grid mean.
func deviations(g *Grid, dev []float64) {
	var sum float64
	for i, p := range g.Pix {
		dev[i] = float64(p)
		sum += dev[i]
	}
	mean := 0.0
	if len(g.Pix) > 0 {
		mean = math.Round(sum / float64(len(g.Pix)))
	}
	floats.AddConst(-mean, dev)
}
