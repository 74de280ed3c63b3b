package conncomp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"particletriage/internal/imageproc"
	"particletriage/internal/particle"
)

// frameWith returns a bright w x h frame with the listed pixels set dark.
func frameWith(w, h int, dark ...Point) *imageproc.Grid {
	g := imageproc.NewGrid(w, h, 255)
	for i := range g.Pix {
		g.Pix[i] = 255
	}
	for _, p := range dark {
		g.Set(p.X, p.Y, 0)
	}
	return g
}

func block(x0, y0, w, h int) []Point {
	var pts []Point
	for y := y0; y < y0+h; y++ {
		for x := x0; x < x0+w; x++ {
			pts = append(pts, Point{X: x, Y: y})
		}
	}
	return pts
}

func TestLabelTwoBlocks(t *testing.T) {
	dark := append(block(2, 2, 2, 2), block(6, 5, 2, 2)...)
	g := frameWith(10, 10, dark...)

	res, err := NewLabeler(0).Label(g, 100)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Count)
	assert.Equal(t, 1, res.K)
	require.Len(t, res.Centroids, 2)
	assert.Equal(t, particle.Centroid{X: 2, Y: 2, Distances: make([]float64, 1)}, res.Centroids[0])
	assert.Equal(t, particle.Centroid{X: 6, Y: 5, Distances: make([]float64, 1)}, res.Centroids[1])

	for _, p := range block(2, 2, 2, 2) {
		assert.Equal(t, 1, res.Labels[p.Y*g.Width+p.X], "pixel %v", p)
	}
	for _, p := range block(6, 5, 2, 2) {
		assert.Equal(t, 2, res.Labels[p.Y*g.Width+p.X], "pixel %v", p)
	}
}

func TestLabelEmptyFrame(t *testing.T) {
	res, err := NewLabeler(0).Label(frameWith(8, 8), 100)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Count)
	assert.Equal(t, 1, res.K)
	assert.NotNil(t, res.Centroids)
	assert.Empty(t, res.Centroids)
}

func TestLabelIgnoresBorder(t *testing.T) {
	g := frameWith(6, 6, Point{0, 0}, Point{5, 3}, Point{2, 5}, Point{3, 0})
	res, err := NewLabeler(0).Label(g, 100)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Count)
}

func TestLabelIsolatedPixel(t *testing.T) {
	g := frameWith(5, 5, Point{2, 2})
	res, err := NewLabeler(0).Label(g, 100)
	require.NoError(t, err)
	require.Equal(t, 1, res.Count)
	assert.Equal(t, 2, res.Centroids[0].X)
	assert.Equal(t, 2, res.Centroids[0].Y)
	assert.Equal(t, 1, res.Labels[2*5+2])
}

func TestLabelRingWithHole(t *testing.T) {
	var ring []Point
	for _, p := range block(2, 2, 5, 5) {
		if p.X == 2 || p.X == 6 || p.Y == 2 || p.Y == 6 {
			ring = append(ring, p)
		}
	}
	g := frameWith(10, 10, ring...)

	res, err := NewLabeler(0).Label(g, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)
	for _, p := range ring {
		assert.Equal(t, 1, res.Labels[p.Y*g.Width+p.X], "pixel %v", p)
	}
	for _, p := range block(3, 3, 3, 3) {
		assert.LessOrEqual(t, res.Labels[p.Y*g.Width+p.X], 0, "hole pixel %v", p)
	}
}

func TestLabelConcaveShape(t *testing.T) {
	// A U shape: the scan meets the right arm's top after the left arm, but
	// both belong to the component traced from the first pixel.
	var u []Point
	u = append(u, block(2, 2, 1, 5)...)
	u = append(u, block(6, 2, 1, 5)...)
	u = append(u, block(3, 6, 3, 1)...)
	g := frameWith(10, 10, u...)

	res, err := NewLabeler(0).Label(g, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, particle.Centroid{X: 2, Y: 2, Distances: make([]float64, 1)}, res.Centroids[0])
}

func TestLabelDiagonalConnectivity(t *testing.T) {
	g := frameWith(8, 8, Point{2, 2}, Point{3, 3}, Point{4, 4})
	res, err := NewLabeler(0).Label(g, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)
}

func TestLabelCeiling(t *testing.T) {
	g := frameWith(9, 5, Point{1, 2}, Point{3, 2}, Point{5, 2}, Point{7, 2})

	_, err := NewLabeler(3).Label(g, 100)
	assert.ErrorIs(t, err, ErrTooManyComponents)

	res, err := NewLabeler(4).Label(g, 100)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Count)
}

func TestLabelInvalidGrid(t *testing.T) {
	_, err := NewLabeler(0).Label(&imageproc.Grid{Width: 3, Height: 3}, 10)
	assert.Error(t, err)
}

func TestTraceContour(t *testing.T) {
	t.Run("isolated pixel has empty boundary", func(t *testing.T) {
		m := NewMask(frameWith(5, 5, Point{2, 2}), 100)
		tr := TraceContour(m, Point{2, 2}, 0)
		assert.Empty(t, tr.Boundary)
		assert.Len(t, tr.Rejected, 7)
	})

	t.Run("square boundary", func(t *testing.T) {
		m := NewMask(frameWith(6, 6, block(2, 2, 2, 2)...), 100)
		tr := TraceContour(m, Point{2, 2}, 0)
		assert.Equal(t, []Point{{3, 2}, {3, 3}, {2, 3}, {2, 2}}, tr.Boundary)
		for _, p := range tr.Rejected {
			assert.Equal(t, uint8(0), m.Bits[p.Y*m.Width+p.X], "rejected %v", p)
		}
	})

	t.Run("pair of pixels", func(t *testing.T) {
		m := NewMask(frameWith(6, 5, Point{2, 2}, Point{3, 2}), 100)
		tr := TraceContour(m, Point{2, 2}, 0)
		assert.ElementsMatch(t, []Point{{3, 2}, {2, 2}}, tr.Boundary)
	})
}

func TestClusterCount(t *testing.T) {
	tests := []struct {
		count, want int
	}{
		{0, 1}, {1, 1}, {3, 1}, {7, 1}, {8, 2}, {9, 2}, {18, 3}, {100, 7}, {20000, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClusterCount(tt.count), "count %d", tt.count)
	}
}
