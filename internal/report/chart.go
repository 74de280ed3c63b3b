// Package report renders per-frame triage metrics as charts.
package report

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"particletriage/internal/pipeline"
)

var (
	densityColor  = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	accelColor    = color.RGBA{R: 255, G: 127, B: 14, A: 255}
	scoreColor    = color.RGBA{R: 44, G: 160, B: 44, A: 255}
	transmitColor = color.RGBA{R: 214, G: 39, B: 40, A: 255}
)

// ChartSeries extracts the plotted series from the frame results.
func ChartSeries(frames []pipeline.FrameResult) (density, accel, score, sent plotter.XYs) {
	density = make(plotter.XYs, 0, len(frames))
	accel = make(plotter.XYs, 0, len(frames))
	score = make(plotter.XYs, 0, len(frames))
	for _, f := range frames {
		x := float64(f.Frame)
		if f.HasDensity {
			density = append(density, plotter.XY{X: x, Y: f.Density})
		}
		accel = append(accel, plotter.XY{X: x, Y: f.Acceleration.Sum()})
		score = append(score, plotter.XY{X: x, Y: f.Score})
		if f.Transmitted {
			sent = append(sent, plotter.XY{X: x, Y: f.Score})
		}
	}
	return density, accel, score, sent
}

// WriteScoreChart plots density, acceleration and downlink score per frame
// and marks the transmitted frames. The image format follows the file
// extension (png, svg, pdf).
func WriteScoreChart(path string, rep *pipeline.Report) error {
	if rep == nil || len(rep.Frames) == 0 {
		return fmt.Errorf("no frames to plot")
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Frames %d-%d - Downlink Scores (%d%%)", rep.Start, rep.End, rep.DownlinkPercentage)
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Value"
	p.Add(plotter.NewGrid())

	density, accel, score, sent := ChartSeries(rep.Frames)

	for _, s := range []struct {
		name string
		pts  plotter.XYs
		col  color.Color
	}{
		{"Cluster density", density, densityColor},
		{"Acceleration (dx+dy)", accel, accelColor},
		{"Score", score, scoreColor},
	} {
		if len(s.pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(s.pts)
		if err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
		line.Color = s.col
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(s.name, line)
	}

	if len(sent) > 0 {
		marks, err := plotter.NewScatter(sent)
		if err != nil {
			return fmt.Errorf("transmitted: %w", err)
		}
		marks.GlyphStyle.Color = transmitColor
		marks.GlyphStyle.Shape = draw.CircleGlyph{}
		marks.GlyphStyle.Radius = vg.Points(3)
		p.Add(marks)
		p.Legend.Add("Transmitted", marks)
	}
	p.Legend.Top = true

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating chart directory: %w", err)
	}
	if err := p.Save(10*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("error saving chart: %w", err)
	}
	return nil
}
