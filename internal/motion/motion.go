// Package motion estimates particle-field motion between consecutive frames.
//
// Centroids are paired by index, not by proximity: the i-th component of one
// frame is taken to be the i-th component of the next.
package motion

import (
	"errors"

	"gonum.org/v1/gonum/stat"

	"particletriage/internal/particle"
)

// ErrEmptyInput is returned when either frame has no centroids to pair.
var ErrEmptyInput = errors.New("no centroid pairs")

// Shift returns the mean displacement b[i]-a[i] over the first
// min(len(a), len(b)) index-aligned pairs.
func Shift(a, b []particle.Centroid) (particle.Vector, error) {
	n := min(len(a), len(b))
	if n == 0 {
		return particle.Vector{}, ErrEmptyInput
	}
	dx := make([]float64, n)
	dy := make([]float64, n)
	for i := 0; i < n; i++ {
		dx[i] = float64(b[i].X - a[i].X)
		dy[i] = float64(b[i].Y - a[i].Y)
	}
	return particle.Vector{DX: stat.Mean(dx, nil), DY: stat.Mean(dy, nil)}, nil
}

// Acceleration is the change between two successive shifts, prev - cur.
func Acceleration(prev, cur particle.Vector) particle.Vector {
	return prev.Sub(cur)
}

// PairShift is the shift from frame From to frame From+1. OK is false when
// the shift could not be measured.
type PairShift struct {
	From  int             `json:"from"`
	Shift particle.Vector `json:"shift"`
	OK    bool            `json:"ok"`
}

// Accelerations assigns an acceleration to each of n frames. Frame i
// receives shift(i→i+1) - shift(i+1→i+2), the change in motion leaving it.
// The last two frames, and frames missing either shift, receive zero.
// shifts[j] must have From == j.
func Accelerations(shifts []PairShift, n int) []particle.Vector {
	acc := make([]particle.Vector, max(n, 0))
	for i := 0; i+1 < len(shifts) && i < n-2; i++ {
		out, next := shifts[i], shifts[i+1]
		if !out.OK || !next.OK {
			continue
		}
		acc[i] = Acceleration(out.Shift, next.Shift)
	}
	return acc
}
