package conncomp

import (
	"errors"
	"fmt"
	"math"

	"particletriage/internal/imageproc"
	"particletriage/internal/particle"
)

// DefaultMaxComponents caps the number of components a single frame may
// produce before labeling gives up on it.
const DefaultMaxComponents = 20000

// Label values written during tracing besides positive component ids.
const (
	Unlabeled = 0
	Rejected  = -1
)

// ErrTooManyComponents is returned when a frame exceeds the component ceiling.
var ErrTooManyComponents = errors.New("too many connected components")

// Mask is a binarized frame whose outer border is always background.
type Mask struct {
	Width  int
	Height int
	Bits   []uint8
}

// NewMask thresholds g at t, keeping only interior pixels so contour tracing
// never steps outside the buffer.
func NewMask(g *imageproc.Grid, t int) *Mask {
	m := &Mask{Width: g.Width, Height: g.Height, Bits: make([]uint8, len(g.Pix))}
	for y := 1; y < g.Height-1; y++ {
		row := y * g.Width
		for x := 1; x < g.Width-1; x++ {
			if int(g.Pix[row+x]) <= t {
				m.Bits[row+x] = imageproc.Foreground
			}
		}
	}
	return m
}

// Result is the component analysis of one frame.
type Result struct {
	Centroids []particle.Centroid
	Count     int
	// K is the number of clusters to group the centroids into.
	K int
	// Labels is the label grid left by the scan, row-major like the mask.
	Labels []int
}

// Labeler extracts 8-connected components with contour tracing.
type Labeler struct {
	MaxComponents int
}

// NewLabeler returns a labeler with the given ceiling, or the default when
// ceiling is not positive.
func NewLabeler(ceiling int) *Labeler {
	if ceiling <= 0 {
		ceiling = DefaultMaxComponents
	}
	return &Labeler{MaxComponents: ceiling}
}

// ClusterCount returns max(1, floor(sqrt(count/2))).
func ClusterCount(count int) int {
	k := int(math.Sqrt(float64(count / 2)))
	if k < 1 {
		k = 1
	}
	return k
}

// Label binarizes g at threshold and labels its components. Each component
// is represented by the first pixel the raster scan meets.
func (l *Labeler) Label(g *imageproc.Grid, threshold int) (Result, error) {
	if err := g.Validate(); err != nil {
		return Result{}, err
	}
	return l.LabelMask(NewMask(g, threshold))
}

// LabelMask labels an already binarized mask.
func (l *Labeler) LabelMask(m *Mask) (Result, error) {
	ceiling := l.MaxComponents
	if ceiling <= 0 {
		ceiling = DefaultMaxComponents
	}

	labels := make([]int, len(m.Bits))
	var cents []particle.Centroid
	count := 0

	apply := func(tr Trace, label int) {
		for _, p := range tr.Rejected {
			labels[p.Y*m.Width+p.X] = Rejected
		}
		for _, p := range tr.Boundary {
			labels[p.Y*m.Width+p.X] = label
		}
	}

	for y := 1; y < m.Height-1; y++ {
		current := Unlabeled
		for x := 1; x < m.Width-1; x++ {
			i := y*m.Width + x
			if m.Bits[i] != 0 {
				if current != Unlabeled {
					labels[i] = current
					continue
				}
				current = labels[i]
				if current != Unlabeled {
					continue
				}

				count++
				if count > ceiling {
					return Result{}, fmt.Errorf("%w: more than %d", ErrTooManyComponents, ceiling)
				}
				current = count
				apply(TraceContour(m, Point{X: x, Y: y}, 0), current)
				labels[i] = current
				cents = append(cents, particle.Centroid{X: x, Y: y})
				continue
			}

			if current != Unlabeled {
				if labels[i] == Unlabeled {
					// Unvisited background right after a run is a hole.
					apply(TraceContour(m, Point{X: x - 1, Y: y}, 1), current)
				}
				current = Unlabeled
			}
		}
	}

	k := ClusterCount(count)
	for i := range cents {
		cents[i].Distances = make([]float64, k)
	}
	if cents == nil {
		cents = []particle.Centroid{}
	}

	return Result{Centroids: cents, Count: count, K: k, Labels: labels}, nil
}
