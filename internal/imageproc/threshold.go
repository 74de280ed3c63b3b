package imageproc

import (
	"errors"

	"gonum.org/v1/gonum/stat"
)

// MaxThreshold is the last candidate value tried by SelectThreshold.
const MaxThreshold = 255

// Threshold is the outcome of a threshold sweep over one frame.
type Threshold struct {
	Value       int     `json:"value"`
	Correlation float64 `json:"correlation"`
}

// SelectThreshold binarizes g at every value in [0, 255] and returns the one
// whose binary image correlates best with g. Ties keep the lowest threshold,
// so a frame that never correlates returns 0.
func SelectThreshold(g *Grid) (Threshold, error) {
	if err := g.Validate(); err != nil {
		return Threshold{}, err
	}

	ref := newReference(g)
	scratch := NewGrid(g.Width, g.Height, 1)
	dev := make([]float64, len(g.Pix))

	best := Threshold{}
	for t := 0; t <= MaxThreshold; t++ {
		if err := Binarize(scratch, g, t); err != nil {
			return Threshold{}, err
		}
		r := ref.correlate(scratch, dev)
		if r > best.Correlation {
			best = Threshold{Value: t, Correlation: r}
		}
	}
	return best, nil
}

// MeanThreshold averages per-frame thresholds into one dataset threshold,
// truncating toward zero.
func MeanThreshold(values []int) (int, error) {
	if len(values) == 0 {
		return 0, errors.New("no thresholds to average")
	}
	xs := make([]float64, len(values))
	for i, v := range values {
		xs[i] = float64(v)
	}
	return int(stat.Mean(xs, nil)), nil
}
