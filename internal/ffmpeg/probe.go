package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// TimeRange represents start and end time for frame extraction
type TimeRange struct {
	Start string
	End   string
}

// VideoInfo is the subset of ffprobe stream data the extractor needs.
type VideoInfo struct {
	Width     int
	Height    int
	Framerate float64
}

type probeOutput struct {
	Streams []struct {
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
	} `json:"streams"`
}

// GetVideoInfo extracts width, height, and framerate from the video
func GetVideoInfo(ctx context.Context, videoURL string) (VideoInfo, error) {
	args := []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,avg_frame_rate",
		"-of", "json",
		videoURL,
	}

	cmd := exec.CommandContext(ctx, "ffprobe", args...)
	output, err := cmd.Output()
	if err != nil {
		return VideoInfo{}, fmt.Errorf("ffprobe error: %w", err)
	}
	return parseProbeOutput(output)
}

func parseProbeOutput(output []byte) (VideoInfo, error) {
	var data probeOutput
	if err := json.Unmarshal(output, &data); err != nil {
		return VideoInfo{}, fmt.Errorf("error parsing ffprobe output: %w", err)
	}
	if len(data.Streams) == 0 {
		return VideoInfo{}, fmt.Errorf("no video streams found")
	}

	s := data.Streams[0]
	if s.Width <= 0 || s.Height <= 0 {
		return VideoInfo{}, fmt.Errorf("invalid dimensions %dx%d", s.Width, s.Height)
	}
	info := VideoInfo{Width: s.Width, Height: s.Height}

	rate, err := parseFramerate(s.AvgFrameRate)
	if err != nil {
		return info, err
	}
	info.Framerate = rate
	return info, nil
}

// parseFramerate handles both "25" and rational forms like "24000/1001".
func parseFramerate(s string) (float64, error) {
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err1 := strconv.ParseFloat(num, 64)
		d, err2 := strconv.ParseFloat(den, 64)
		if err1 != nil || err2 != nil || d == 0 {
			return 0, fmt.Errorf("invalid framerate format %q", s)
		}
		return n / d, nil
	}
	rate, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid framerate: %w", err)
	}
	return rate, nil
}

// parseTimeString converts time strings like "00:05:10" to seconds
func parseTimeString(timeStr string) (float64, error) {
	if seconds, err := strconv.ParseFloat(timeStr, 64); err == nil {
		return seconds, nil
	}

	parts := strings.Split(timeStr, ":")
	if len(parts) == 3 {
		h, errH := strconv.ParseFloat(parts[0], 64)
		m, errM := strconv.ParseFloat(parts[1], 64)
		s, errS := strconv.ParseFloat(parts[2], 64)

		if errH == nil && errM == nil && errS == nil {
			return h*3600 + m*60 + s, nil
		}
	}

	return 0, fmt.Errorf("invalid time format: %s", timeStr)
}
