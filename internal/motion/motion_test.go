package motion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"particletriage/internal/particle"
)

func TestShift(t *testing.T) {
	a := []particle.Centroid{{X: 1, Y: 1}, {X: 5, Y: 5}, {X: 9, Y: 2}}

	t.Run("identical frames", func(t *testing.T) {
		s, err := Shift(a, a)
		require.NoError(t, err)
		assert.Equal(t, particle.Vector{}, s)
	})

	t.Run("mean of paired displacements", func(t *testing.T) {
		b := []particle.Centroid{{X: 3, Y: 0}, {X: 6, Y: 5}, {X: 12, Y: 4}}
		s, err := Shift(a, b)
		require.NoError(t, err)
		assert.InDelta(t, 2.0, s.DX, 1e-12)
		assert.InDelta(t, 1.0/3.0, s.DY, 1e-12)
	})

	t.Run("extra centroids are ignored", func(t *testing.T) {
		b := []particle.Centroid{{X: 2, Y: 2}}
		s, err := Shift(a, b)
		require.NoError(t, err)
		assert.Equal(t, particle.Vector{DX: 1, DY: 1}, s)
	})

	t.Run("empty frame", func(t *testing.T) {
		_, err := Shift(a, nil)
		assert.ErrorIs(t, err, ErrEmptyInput)
	})
}

func TestAcceleration(t *testing.T) {
	got := Acceleration(particle.Vector{DX: 3, DY: 1}, particle.Vector{DX: 1, DY: 4})
	assert.Equal(t, particle.Vector{DX: 2, DY: -3}, got)
}

func TestAccelerations(t *testing.T) {
	shifts := []PairShift{
		{From: 0, Shift: particle.Vector{DX: 1, DY: 1}, OK: true},
		{From: 1, Shift: particle.Vector{DX: 4, DY: 0}, OK: true},
		{From: 2, OK: false},
		{From: 3, Shift: particle.Vector{DX: 2, DY: 2}, OK: true},
		{From: 4, Shift: particle.Vector{DX: 5, DY: -1}, OK: true},
	}

	acc := Accelerations(shifts, 6)
	require.Len(t, acc, 6)
	assert.Equal(t, particle.Vector{DX: -3, DY: 1}, acc[0])
	assert.Equal(t, particle.Vector{}, acc[1])
	assert.Equal(t, particle.Vector{}, acc[2])
	assert.Equal(t, particle.Vector{DX: -3, DY: 3}, acc[3])
	assert.Equal(t, particle.Vector{}, acc[4])
	assert.Equal(t, particle.Vector{}, acc[5])

	assert.Len(t, Accelerations(nil, 1), 1)
	assert.Empty(t, Accelerations(nil, 0))
}

func TestAccelerationsBelongToLeadingFrame(t *testing.T) {
	shifts := []PairShift{
		{From: 0, Shift: particle.Vector{DX: 1}, OK: true},
		{From: 1, Shift: particle.Vector{DX: 4}, OK: true},
		{From: 2, Shift: particle.Vector{DX: 10}, OK: true},
	}

	acc := Accelerations(shifts, 4)
	assert.Equal(t, []particle.Vector{{DX: -3}, {DX: -6}, {}, {}}, acc)
}
