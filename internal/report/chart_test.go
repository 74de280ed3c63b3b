package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"particletriage/internal/particle"
	"particletriage/internal/pipeline"
)

func sampleFrames() []pipeline.FrameResult {
	return []pipeline.FrameResult{
		{Frame: 1, Density: 2, HasDensity: true, Transmitted: true},
		{Frame: 2, Density: 3, HasDensity: true, Acceleration: particle.Vector{DX: 1, DY: 2}, Score: 3},
		{Frame: 3, Failed: true},
		{Frame: 4, Density: 1, HasDensity: true, Score: 0.5, Transmitted: true},
	}
}

func TestChartSeries(t *testing.T) {
	density, accel, score, sent := ChartSeries(sampleFrames())

	assert.Len(t, density, 3)
	assert.Len(t, accel, 4)
	assert.Len(t, score, 4)
	require.Len(t, sent, 2)
	assert.Equal(t, 3.0, accel[1].Y)
	assert.Equal(t, 4.0, sent[1].X)
	assert.Equal(t, 0.5, sent[1].Y)
}

func TestWriteScoreChart(t *testing.T) {
	dir := t.TempDir()
	rep := &pipeline.Report{Start: 1, End: 4, DownlinkPercentage: 50, Frames: sampleFrames()}

	for _, name := range []string{"scores.png", "nested/scores.svg"} {
		path := filepath.Join(dir, name)
		require.NoError(t, WriteScoreChart(path, rep))
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}

	assert.Error(t, WriteScoreChart(filepath.Join(dir, "empty.png"), &pipeline.Report{}))
}
