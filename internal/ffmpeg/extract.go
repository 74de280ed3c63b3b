package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// DefaultPattern names extracted frames the way the frame stores read them.
const DefaultPattern = "%03d.pgm"

// ExtractOptions controls conversion of a video into a grayscale PGM
// frame sequence.
type ExtractOptions struct {
	VideoURL           string
	OutputDir          string
	Pattern            string
	StartNumber        int
	SampleEveryNFrames int
	TimeRange          *TimeRange
	// Width and Height rescale the output when both are positive.
	Width  int
	Height int
}

// BuildExtractArgs assembles the ffmpeg argument list for opts.
func BuildExtractArgs(opts ExtractOptions) []string {
	args := []string{
		"-loglevel", "error",
		"-nostdin",
	}

	if opts.TimeRange != nil {
		if opts.TimeRange.Start != "" {
			args = append(args, "-ss", opts.TimeRange.Start)
		}
		if opts.TimeRange.End != "" {
			startTime, endTime := 0.0, 0.0
			if s, err := parseTimeString(opts.TimeRange.Start); err == nil {
				startTime = s
			}
			if e, err := parseTimeString(opts.TimeRange.End); err == nil {
				endTime = e
			}
			if endTime > startTime {
				args = append(args, "-t", fmt.Sprintf("%.3f", endTime-startTime))
			}
		}
	}

	args = append(args, "-i", opts.VideoURL)

	var filters []string
	if opts.SampleEveryNFrames > 1 {
		filters = append(filters, fmt.Sprintf("select=not(mod(n\\,%d))", opts.SampleEveryNFrames))
	}
	if opts.Width > 0 && opts.Height > 0 {
		filters = append(filters, fmt.Sprintf("scale=%d:%d", opts.Width, opts.Height))
	}
	filters = append(filters, "format=gray")
	args = append(args, "-vf", strings.Join(filters, ","))

	if opts.SampleEveryNFrames > 1 {
		args = append(args, "-vsync", "vfr")
	}

	pattern := opts.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}
	args = append(args,
		"-start_number", fmt.Sprintf("%d", opts.StartNumber),
		"-pix_fmt", "gray",
		"-f", "image2",
		"-c:v", "pgm",
		"-y",
		filepath.Join(opts.OutputDir, pattern),
	)
	return args
}

// ExtractFrames runs ffmpeg to write the frame sequence and returns how many
// frames this run wrote.
func ExtractFrames(ctx context.Context, opts ExtractOptions) (int, error) {
	if opts.VideoURL == "" {
		return 0, fmt.Errorf("no video given")
	}
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return 0, fmt.Errorf("ffmpeg not found in $PATH: %w", err)
	}
	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return 0, fmt.Errorf("error creating output directory: %w", err)
	}

	args := BuildExtractArgs(opts)
	// Coarse filesystems keep whole-second modification times.
	started := time.Now().Truncate(time.Second)
	log.Printf("Running: ffmpeg %s", strings.Join(args, " "))

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, fmt.Errorf("ffmpeg failed: %w\n%s", err, strings.TrimSpace(stderr.String()))
	}

	pattern := opts.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}
	return countWritten(opts.OutputDir, pattern, opts.StartNumber, started), nil
}

// countWritten counts the run of consecutively numbered frames from start
// that were modified at or after since. Older files left by earlier runs
// end the count.
func countWritten(dir, pattern string, start int, since time.Time) int {
	n := 0
	for i := start; ; i++ {
		info, err := os.Stat(filepath.Join(dir, fmt.Sprintf(pattern, i)))
		if err != nil || info.ModTime().Before(since) {
			return n
		}
		n++
	}
}
