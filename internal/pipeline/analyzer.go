package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"particletriage/internal/conncomp"
	"particletriage/internal/downlink"
	"particletriage/internal/imageproc"
	"particletriage/internal/kmeans"
	"particletriage/internal/motion"
	"particletriage/internal/particle"
	"particletriage/internal/worker"
)

// ErrNoUsableFrames is returned when every frame failed the threshold pass.
var ErrNoUsableFrames = errors.New("no frame in the sequence could be analyzed")

// Output file names written into OutputDir.
const (
	ResultsFile  = "analysis_results.json"
	ManifestFile = "downlink_manifest.cbor"
)

// Analyzer runs the triage pipeline over a numbered frame sequence.
type Analyzer struct {
	// Configuration
	Source             downlink.Source
	Downlink           downlink.Sink
	ThresholdStore     downlink.Sink // optional, receives binarized frames
	DownlinkPercentage int
	Workers            int
	Seed               uint64
	Labeler            *conncomp.Labeler
	ClusterIterations  int
	Scheduler          *downlink.Scheduler
	OverlayDir         string // optional, receives cluster overlay PNGs
	OutputDir          string // optional, receives results JSON and manifest
}

// NewAnalyzer creates an analyzer with default limits.
func NewAnalyzer(src downlink.Source, dst downlink.Sink, downlinkPercentage int) *Analyzer {
	return &Analyzer{
		Source:             src,
		Downlink:           dst,
		DownlinkPercentage: downlinkPercentage,
		Workers:            1,
		Labeler:            conncomp.NewLabeler(conncomp.DefaultMaxComponents),
		ClusterIterations:  kmeans.DefaultMaxIterations,
		Scheduler:          downlink.NewScheduler(),
	}
}

type thresholdOutcome struct {
	threshold imageproc.Threshold
	err       error
}

// frameState carries what the sequential pass needs from the previous frame.
type frameState struct {
	index     int
	centroids []particle.Centroid
}

// AnalyzeSequence analyzes frames start..end inclusive and transmits the
// selected subset. Per-frame failures are collected in the report and do not
// stop the run.
func (a *Analyzer) AnalyzeSequence(ctx context.Context, start, end int) (*Report, error) {
	if start < 0 || end < start {
		return nil, fmt.Errorf("invalid frame range %d..%d", start, end)
	}
	if a.Source == nil || a.Downlink == nil {
		return nil, errors.New("analyzer needs a source and a downlink store")
	}
	if a.DownlinkPercentage < 0 || a.DownlinkPercentage > 100 {
		return nil, fmt.Errorf("downlink percentage must be in [0,100], got %d", a.DownlinkPercentage)
	}

	startTime := time.Now()
	n := end - start + 1
	report := &Report{
		RunID:              uuid.NewString(),
		StartedAt:          startTime,
		Start:              start,
		End:                end,
		DownlinkPercentage: a.DownlinkPercentage,
		Frames:             make([]FrameResult, n),
	}
	for i := range report.Frames {
		report.Frames[i] = FrameResult{Index: i, Frame: start + i}
	}

	log.Printf("Number of frames to be processed: %d", n)

	// Threshold pass: frames are independent, so they fan out over the pool.
	outcomes := worker.Map(n, a.Workers, func(i int) thresholdOutcome {
		if err := ctx.Err(); err != nil {
			return thresholdOutcome{err: err}
		}
		g, err := a.Source.Load(start + i)
		if err != nil {
			return thresholdOutcome{err: err}
		}
		th, err := imageproc.SelectThreshold(g)
		return thresholdOutcome{threshold: th, err: err}
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var thresholds []int
	for i, o := range outcomes {
		fr := &report.Frames[i]
		if o.err != nil {
			fr.Failed = true
			report.fail(newFrameError(fr.Frame, StageThreshold, o.err))
			continue
		}
		fr.Threshold = o.threshold.Value
		fr.Correlation = o.threshold.Correlation
		thresholds = append(thresholds, o.threshold.Value)
	}
	if len(thresholds) == 0 {
		return report, ErrNoUsableFrames
	}
	report.Threshold, _ = imageproc.MeanThreshold(thresholds)
	log.Printf("Mean threshold value for the sequence: %d", report.Threshold)

	// Sequential pass: shifts need the immediately preceding frame.
	densities := make([]float64, n)
	shifts := make([]motion.PairShift, max(n-1, 0))
	for j := range shifts {
		shifts[j].From = j
	}

	var prev *frameState
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fr := &report.Frames[i]
		if fr.Failed {
			prev = nil
			continue
		}

		cents, ok := a.processFrame(report, fr)
		if !ok {
			fr.Failed = true
			prev = nil
			continue
		}
		if fr.HasDensity {
			densities[i] = fr.Density
		}

		if prev != nil && prev.index == i-1 {
			shift, err := motion.Shift(prev.centroids, cents)
			if err != nil {
				report.fail(newFrameError(fr.Frame, StageShift, err))
			} else {
				fr.Shift = &shift
				shifts[i-1] = motion.PairShift{From: i - 1, Shift: shift, OK: true}
			}
		}
		prev = &frameState{index: i, centroids: cents}

		if (i+1)%25 == 0 {
			log.Printf("Processed %d frames...", i+1)
		}
	}

	accel := motion.Accelerations(shifts, n)
	for i := range report.Frames {
		report.Frames[i].Acceleration = accel[i]
	}

	report.Selection = a.Scheduler.Select(a.DownlinkPercentage, accel, densities, n)
	for _, s := range report.Selection.Scores {
		report.Frames[s.Index].Score = s.Value
	}
	for _, idx := range report.Selection.Indices {
		report.Frames[idx].Transmitted = true
	}
	if report.Selection.Partial {
		log.Printf("Warning: downlink quota %d not met after %d attempts (%d frames selected)",
			report.Selection.Quota, report.Selection.Attempts, len(report.Selection.Indices))
	}

	sent, failed := downlink.Transmit(ctx, a.Source, a.Downlink, report.Selection, start)
	report.Downlinked = sent
	for _, f := range failed {
		report.fail(newFrameError(f.Frame, StageDownlink, f.Err))
	}

	report.Elapsed = time.Since(startTime)
	if err := a.writeOutputs(report, failed); err != nil {
		return report, err
	}

	log.Printf("Analysis complete: %d frames in %.2f seconds, %d downlinked, %d failures",
		n, report.Elapsed.Seconds(), len(report.Downlinked), len(report.Failures))
	return report, nil
}

// processFrame binarizes, labels and clusters one frame. It returns the
// frame's centroids and false when the frame cannot take part in motion
// estimation.
func (a *Analyzer) processFrame(report *Report, fr *FrameResult) ([]particle.Centroid, bool) {
	g, err := a.Source.Load(fr.Frame)
	if err != nil {
		report.fail(newFrameError(fr.Frame, StageLabel, err))
		return nil, false
	}

	if a.ThresholdStore != nil {
		bin := imageproc.NewGrid(g.Width, g.Height, 1)
		if err := imageproc.Binarize(bin, g, report.Threshold); err != nil {
			report.fail(newFrameError(fr.Frame, StageThreshold, err))
		} else if err := a.ThresholdStore.Save(fr.Frame, bin); err != nil {
			log.Printf("Warning: could not save thresholded frame %d: %v", fr.Frame, err)
			report.fail(newFrameError(fr.Frame, StageThreshold, err))
		}
	}

	labeler := a.Labeler
	if labeler == nil {
		labeler = conncomp.NewLabeler(conncomp.DefaultMaxComponents)
	}
	res, err := labeler.Label(g, report.Threshold)
	if err != nil {
		report.fail(newFrameError(fr.Frame, StageLabel, err))
		return nil, false
	}
	fr.Components = res.Count
	fr.Clusters = res.K

	if res.Count == 0 {
		report.fail(newFrameError(fr.Frame, StageCluster, kmeans.ErrEmptyInput))
		return res.Centroids, true
	}

	clusterer := kmeans.NewClusterer(a.Seed + uint64(fr.Frame))
	clusterer.MaxIterations = a.ClusterIterations
	cres, err := clusterer.Cluster(res.Centroids, res.K)
	if err != nil {
		report.fail(newFrameError(fr.Frame, StageCluster, err))
		return res.Centroids, true
	}
	fr.Centers = cres.Centers
	fr.Iterations = cres.Iterations
	fr.Converged = cres.Converged

	density, err := kmeans.Density(res.Centroids)
	if err != nil {
		report.fail(newFrameError(fr.Frame, StageDensity, err))
	} else {
		fr.Density = density
		fr.HasDensity = true
	}

	if a.OverlayDir != "" {
		if err := a.saveOverlay(fr.Frame, g, res); err != nil {
			log.Printf("Warning: error saving overlay for frame %d: %v", fr.Frame, err)
			report.fail(newFrameError(fr.Frame, StageOverlay, err))
		}
	}
	return res.Centroids, true
}

func (a *Analyzer) saveOverlay(frame int, g *imageproc.Grid, res conncomp.Result) error {
	if err := os.MkdirAll(a.OverlayDir, 0755); err != nil {
		return fmt.Errorf("error creating overlay directory: %w", err)
	}
	path := filepath.Join(a.OverlayDir, fmt.Sprintf("overlay_%04d.png", frame))
	return imageproc.SaveClusterOverlay(path, g, res.Centroids, res.K)
}

func (a *Analyzer) writeOutputs(report *Report, failed []downlink.TransferError) error {
	if a.OutputDir == "" {
		return nil
	}
	if err := report.WriteJSON(filepath.Join(a.OutputDir, ResultsFile)); err != nil {
		return err
	}

	m := downlink.Manifest{
		RunID:     report.RunID,
		CreatedAt: report.StartedAt.UTC(),
		Threshold: report.Threshold,
		Percent:   report.DownlinkPercentage,
		Quota:     report.Selection.Quota,
		Attempts:  report.Selection.Attempts,
		Partial:   report.Selection.Partial,
		Frames:    report.Downlinked,
	}
	for _, f := range failed {
		m.Failed = append(m.Failed, f.Frame)
	}
	return downlink.WriteManifest(filepath.Join(a.OutputDir, ManifestFile), m)
}

func (r *Report) fail(fe FrameError) {
	r.Failures = append(r.Failures, fe)
}
