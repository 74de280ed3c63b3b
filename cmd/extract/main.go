package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"particletriage/internal/ffmpeg"
)

func main() {
	videoPath := flag.String("video", "", "Path to video file (local or URL)")
	outputDir := flag.String("output", "data/camera_data", "Directory to write PGM frames to")
	pattern := flag.String("pattern", ffmpeg.DefaultPattern, "Frame file name pattern")
	startNumber := flag.Int("start-number", 1, "Number of the first extracted frame")
	startTime := flag.String("start", "", "Start time (format: HH:MM:SS)")
	endTime := flag.String("end", "", "End time (format: HH:MM:SS)")
	sampleRate := flag.Int("sample-rate", 1, "Extract every Nth frame")
	width := flag.Int("width", 0, "Output width (0 keeps the source size)")
	height := flag.Int("height", 0, "Output height (0 keeps the source size)")

	flag.Parse()

	if *videoPath == "" {
		fmt.Fprintf(os.Stderr, "Error: Video path is required\n")
		flag.Usage()
		os.Exit(1)
	}

	var timeRange *ffmpeg.TimeRange
	if *startTime != "" || *endTime != "" {
		timeRange = &ffmpeg.TimeRange{
			Start: *startTime,
			End:   *endTime,
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signalChan
		log.Println("Received termination signal, shutting down...")
		cancel()
	}()

	info, err := ffmpeg.GetVideoInfo(ctx, *videoPath)
	if err != nil {
		log.Fatalf("Error getting video info: %v", err)
	}
	log.Printf("Video: %dx%d @ %.3f fps", info.Width, info.Height, info.Framerate)

	n, err := ffmpeg.ExtractFrames(ctx, ffmpeg.ExtractOptions{
		VideoURL:           *videoPath,
		OutputDir:          *outputDir,
		Pattern:            *pattern,
		StartNumber:        *startNumber,
		SampleEveryNFrames: *sampleRate,
		TimeRange:          timeRange,
		Width:              *width,
		Height:             *height,
	})
	if err != nil {
		log.Fatalf("Error extracting frames: %v", err)
	}
	log.Printf("Extraction complete. %d frames in %s", n, *outputDir)
}
