package imageproc

import (
	"errors"
	"fmt"
)

// Pixel values of a binarized grid.
const (
	Background uint8 = 0
	Foreground uint8 = 1
)

// ErrDimensionMismatch is returned when two grids that must share a size do not.
var ErrDimensionMismatch = errors.New("grid dimensions do not match")

// Grid is an 8-bit grayscale frame stored row-major in one buffer.
type Grid struct {
	Width  int
	Height int
	MaxVal int // grayscale depth, 255 for raw frames and 1 for binarized ones
	Pix    []uint8
}

// NewGrid allocates a zeroed width x height grid.
func NewGrid(width, height, maxVal int) *Grid {
	return &Grid{
		Width:  width,
		Height: height,
		MaxVal: maxVal,
		Pix:    make([]uint8, width*height),
	}
}

// Index returns the offset of (x, y) in Pix.
func (g *Grid) Index(x, y int) int {
	return y*g.Width + x
}

func (g *Grid) At(x, y int) uint8 {
	return g.Pix[y*g.Width+x]
}

func (g *Grid) Set(x, y int, v uint8) {
	g.Pix[y*g.Width+x] = v
}

// Clone returns a deep copy of g.
func (g *Grid) Clone() *Grid {
	c := *g
	c.Pix = append([]uint8(nil), g.Pix...)
	return &c
}

// SameSize reports whether g and o have identical width and height.
func (g *Grid) SameSize(o *Grid) bool {
	return g.Width == o.Width && g.Height == o.Height
}

// Validate checks that the buffer matches the declared dimensions.
func (g *Grid) Validate() error {
	if g.Width <= 0 || g.Height <= 0 {
		return fmt.Errorf("invalid grid size %dx%d", g.Width, g.Height)
	}
	if len(g.Pix) != g.Width*g.Height {
		return fmt.Errorf("grid buffer holds %d pixels, want %d", len(g.Pix), g.Width*g.Height)
	}
	return nil
}

// Binarize writes src thresholded at t into dst: pixels brighter than t
// become Background, everything else Foreground.
func Binarize(dst, src *Grid, t int) error {
	if !dst.SameSize(src) {
		return fmt.Errorf("binarize %dx%d into %dx%d: %w",
			src.Width, src.Height, dst.Width, dst.Height, ErrDimensionMismatch)
	}
	for i, p := range src.Pix {
		if int(p) > t {
			dst.Pix[i] = Background
		} else {
			dst.Pix[i] = Foreground
		}
	}
	dst.MaxVal = 1
	return nil
}
