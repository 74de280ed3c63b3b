package downlink

import (
	"sort"

	"particletriage/internal/particle"
)

// Defaults for the scoring weights and the attempt budget.
const (
	DefaultDensityWeight      = 0.5
	DefaultAccelerationWeight = 0.5
	DefaultMaxAttempts        = 1000
)

// FrameScore is the priority of one frame within the sequence.
type FrameScore struct {
	Index int     `json:"index"`
	Value float64 `json:"value"`
}

// Selection is the set of frames chosen for downlink.
type Selection struct {
	// Indices are sequence positions (0 is the first frame), ascending.
	Indices []int `json:"indices"`
	// Scores are the initial scores of every frame; endpoints are pinned at 0.
	Scores   []FrameScore `json:"scores"`
	Quota    int          `json:"quota"`
	Attempts int          `json:"attempts"`
	// Partial is set when the loop stopped before reaching the quota.
	Partial bool `json:"partial"`
}

// Contains reports whether sequence position i was selected.
func (s Selection) Contains(i int) bool {
	j := sort.SearchInts(s.Indices, i)
	return j < len(s.Indices) && s.Indices[j] == i
}

// Scheduler picks which frames to transmit under a bandwidth quota.
type Scheduler struct {
	DensityWeight      float64
	AccelerationWeight float64
	MaxAttempts        int
}

// NewScheduler returns a scheduler with the default weights and budget.
func NewScheduler() *Scheduler {
	return &Scheduler{
		DensityWeight:      DefaultDensityWeight,
		AccelerationWeight: DefaultAccelerationWeight,
		MaxAttempts:        DefaultMaxAttempts,
	}
}

// Quota is floor(numImages * pct / 100).
func Quota(numImages, pct int) int {
	if numImages <= 0 || pct <= 0 {
		return 0
	}
	return numImages * pct / 100
}

// Select scores every interior frame and greedily transmits the best one
// together with its immediate neighbours until quota frames have been
// chosen, no candidate is left, or the attempt budget runs out. The first
// and last frames are always transmitted.
func (s *Scheduler) Select(pct int, accel []particle.Vector, densities []float64, numImages int) Selection {
	sel := Selection{Quota: Quota(numImages, pct)}
	if numImages <= 0 {
		return sel
	}

	maxAttempts := s.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	score := make([]float64, numImages)
	for i := 1; i < numImages-1; i++ {
		var d float64
		var a particle.Vector
		if i < len(densities) {
			d = densities[i]
		}
		if i < len(accel) {
			a = accel[i]
		}
		score[i] = d*s.DensityWeight + a.Sum()*s.AccelerationWeight
	}
	sel.Scores = make([]FrameScore, numImages)
	for i, v := range score {
		sel.Scores[i] = FrameScore{Index: i, Value: v}
	}

	sent := make([]bool, numImages)
	count := 0
	transmit := func(i int) {
		if i < 0 || i >= numImages || sent[i] {
			return
		}
		sent[i] = true
		score[i] = 0
		count++
	}

	transmit(0)
	transmit(numImages - 1)

	for count < sel.Quota && sel.Attempts < maxAttempts {
		best := -1
		for i := 1; i < numImages-1; i++ {
			if sent[i] {
				continue
			}
			if best < 0 || score[i] > score[best] {
				best = i
			}
		}
		if best < 0 {
			break
		}
		sel.Attempts++

		transmit(best - 1)
		transmit(best)
		transmit(best + 1)
	}

	for i, ok := range sent {
		if ok {
			sel.Indices = append(sel.Indices, i)
		}
	}
	sel.Partial = count < sel.Quota
	return sel
}
