package imageproc

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"github.com/lucasb-eyer/go-colorful"

	"particletriage/internal/particle"
)

// clusterPalette spreads k hues evenly around the colour wheel.
func clusterPalette(k int) []color.RGBA {
	if k < 1 {
		k = 1
	}
	palette := make([]color.RGBA, k)
	for i := range palette {
		c := colorful.Hsv(360.0*float64(i)/float64(k), 0.85, 0.95)
		r, g, b := c.RGB255()
		palette[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return palette
}

// RenderClusterOverlay draws g in gray and marks every centroid with a small
// cross in the colour of its cluster.
func RenderClusterOverlay(g *Grid, cents []particle.Centroid, k int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, g.Width, g.Height))

	scale := 1
	if g.MaxVal > 0 && g.MaxVal < 255 {
		scale = 255 / g.MaxVal
	}
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			v := uint8(int(g.At(x, y)) * scale)
			img.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}

	palette := clusterPalette(k)
	for _, c := range cents {
		col := palette[c.ClusterIndex%len(palette)]
		for d := -1; d <= 1; d++ {
			img.Set(c.X+d, c.Y, col)
			img.Set(c.X, c.Y+d, col)
		}
	}
	return img
}

// SaveClusterOverlay renders the overlay and writes it as a PNG.
func SaveClusterOverlay(path string, g *Grid, cents []particle.Centroid, k int) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating overlay file: %w", err)
	}
	defer file.Close()

	if err := png.Encode(file, RenderClusterOverlay(g, cents, k)); err != nil {
		return fmt.Errorf("error encoding overlay: %w", err)
	}
	return file.Close()
}
