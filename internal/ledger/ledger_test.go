package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"particletriage/internal/downlink"
	"particletriage/internal/particle"
	"particletriage/internal/pipeline"
)

func sampleReport(runID string, started time.Time) *pipeline.Report {
	shift := particle.Vector{DX: 1.5, DY: -0.5}
	return &pipeline.Report{
		RunID:              runID,
		StartedAt:          started,
		Elapsed:            1500 * time.Millisecond,
		Start:              1,
		End:                3,
		Threshold:          42,
		DownlinkPercentage: 50,
		Frames: []pipeline.FrameResult{
			{Index: 0, Frame: 1, Threshold: 40, Correlation: 0.8, Components: 12, Clusters: 2, Density: 3.5, HasDensity: true, Transmitted: true},
			{Index: 1, Frame: 2, Threshold: 44, Correlation: 0.7, Components: 10, Clusters: 2, Density: 2.5, HasDensity: true,
				Shift: &shift, Acceleration: particle.Vector{DX: 0.25, DY: 0.75}, Score: 2.5},
			{Index: 2, Frame: 3, Failed: true, Transmitted: true},
		},
		Selection: downlink.Selection{Indices: []int{0, 2}, Quota: 1, Attempts: 0},
		Downlinked: []int{1, 3},
		Failures: []pipeline.FrameError{
			{Frame: 3, Stage: pipeline.StageThreshold, Kind: pipeline.KindIO, Message: "load 003.pgm: missing", Err: errors.New("missing")},
		},
	}
}

func TestRecordReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	db, err := Open(path)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	started := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, db.RecordReport(ctx, sampleReport("run-a", started)))
	require.NoError(t, db.RecordReport(ctx, sampleReport("run-b", started.Add(time.Hour))))

	runs, err := db.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-b", runs[0].RunID)
	a := runs[1]
	assert.Equal(t, "run-a", a.RunID)
	assert.True(t, started.Equal(a.StartedAt))
	assert.Equal(t, 1500*time.Millisecond, a.Elapsed)
	assert.Equal(t, 42, a.Threshold)
	assert.Equal(t, 50, a.DownlinkPercentage)
	assert.Equal(t, 1, a.Quota)
	assert.False(t, a.Partial)
	assert.Equal(t, 1, a.Failures)

	frames, err := db.Frames(ctx, "run-a")
	require.NoError(t, err)
	require.Len(t, frames, 3)
	assert.Equal(t, Frame{Frame: 1, Threshold: 40, Correlation: 0.8, Components: 12, Clusters: 2, Density: 3.5, Transmitted: true}, frames[0])
	assert.Equal(t, 1.5, frames[1].ShiftX)
	assert.Equal(t, -0.5, frames[1].ShiftY)
	assert.Equal(t, 0.25, frames[1].AccelX)
	assert.Equal(t, 2.5, frames[1].Score)
	assert.True(t, frames[2].Failed)

	sent, err := db.TransmittedFrames(ctx, "run-a")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, sent)

	var kind string
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT kind FROM frame_failures WHERE run_id = ? AND frame = 3`, "run-a").Scan(&kind))
	assert.Equal(t, string(pipeline.KindIO), kind)
}

func TestRecordReportDuplicateRun(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	rep := sampleReport("run-a", time.Now())
	require.NoError(t, db.RecordReport(ctx, rep))
	assert.Error(t, db.RecordReport(ctx, rep))

	// The failed insert left nothing behind.
	frames, err := db.Frames(ctx, "run-a")
	require.NoError(t, err)
	assert.Len(t, frames, 3)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.RecordReport(context.Background(), sampleReport("run-a", time.Now())))
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()
	runs, err := db.Runs(context.Background())
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
