package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"particletriage/internal/conncomp"
	"particletriage/internal/downlink"
	"particletriage/internal/imageproc"
	"particletriage/internal/kmeans"
	"particletriage/internal/motion"
	"particletriage/internal/particle"
	"particletriage/internal/pgm"
)

// Stages a frame can fail in.
const (
	StageThreshold = "threshold"
	StageLabel     = "label"
	StageCluster   = "cluster"
	StageDensity   = "density"
	StageShift     = "shift"
	StageOverlay   = "overlay"
	StageDownlink  = "downlink"
)

// ErrorKind classifies a per-frame failure.
type ErrorKind string

const (
	KindIO                ErrorKind = "io"
	KindDimensionMismatch ErrorKind = "dimension_mismatch"
	KindTooManyComponents ErrorKind = "too_many_components"
	KindEmptyInput        ErrorKind = "empty_input"
	KindCanceled          ErrorKind = "canceled"
	KindOther             ErrorKind = "other"
)

// Classify maps an error onto its ErrorKind.
func Classify(err error) ErrorKind {
	var ioErr *pgm.IOError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, imageproc.ErrDimensionMismatch):
		return KindDimensionMismatch
	case errors.Is(err, conncomp.ErrTooManyComponents):
		return KindTooManyComponents
	case errors.Is(err, kmeans.ErrEmptyInput), errors.Is(err, motion.ErrEmptyInput):
		return KindEmptyInput
	case errors.As(err, &ioErr):
		return KindIO
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindOther
	}
}

// FrameError is one recovered per-frame failure.
type FrameError struct {
	Frame   int       `json:"frame"`
	Stage   string    `json:"stage"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e FrameError) Error() string {
	return fmt.Sprintf("frame %d (%s): %v", e.Frame, e.Stage, e.Err)
}

func (e FrameError) Unwrap() error { return e.Err }

func newFrameError(frame int, stage string, err error) FrameError {
	return FrameError{
		Frame:   frame,
		Stage:   stage,
		Kind:    Classify(err),
		Message: err.Error(),
		Err:     err,
	}
}

// FrameResult stores the analysis of one frame in the sequence.
type FrameResult struct {
	Index       int               `json:"index"`
	Frame       int               `json:"frame"`
	Threshold   int               `json:"threshold"`
	Correlation float64           `json:"correlation"`
	Components  int               `json:"components"`
	Clusters    int               `json:"clusters"`
	Centers     []particle.Center `json:"centers,omitempty"`
	Iterations  int               `json:"iterations"`
	Converged   bool              `json:"converged"`
	Density     float64           `json:"density"`
	HasDensity  bool              `json:"has_density"`
	// Shift is the motion from the previous frame, nil when unmeasured.
	Shift        *particle.Vector `json:"shift,omitempty"`
	Acceleration particle.Vector  `json:"acceleration"`
	Score        float64          `json:"score"`
	Transmitted  bool             `json:"transmitted"`
	Failed       bool             `json:"failed"`
}

// Report is the outcome of one AnalyzeSequence call.
type Report struct {
	RunID              string             `json:"run_id"`
	StartedAt          time.Time          `json:"started_at"`
	Elapsed            time.Duration      `json:"elapsed_ns"`
	Start              int                `json:"start"`
	End                int                `json:"end"`
	Threshold          int                `json:"threshold"`
	DownlinkPercentage int                `json:"downlink_percentage"`
	Frames             []FrameResult      `json:"frames"`
	Selection          downlink.Selection `json:"selection"`
	// Downlinked lists frame numbers that reached the downlink store.
	Downlinked []int        `json:"downlinked"`
	Failures   []FrameError `json:"failures"`
}

// DownlinkSet returns the frame numbers chosen for transmission.
func (r *Report) DownlinkSet() []int {
	set := make([]int, len(r.Selection.Indices))
	for i, idx := range r.Selection.Indices {
		set[i] = r.Start + idx
	}
	return set
}

// FailuresByKind counts recorded failures per kind.
func (r *Report) FailuresByKind() map[ErrorKind]int {
	counts := make(map[ErrorKind]int)
	for _, f := range r.Failures {
		counts[f.Kind]++
	}
	return counts
}

// WriteJSON saves the report as indented JSON.
func (r *Report) WriteJSON(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling results: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing results file: %w", err)
	}
	return nil
}
