package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"

	"particletriage/internal/config"
	"particletriage/internal/conncomp"
	"particletriage/internal/downlink"
	"particletriage/internal/ledger"
	"particletriage/internal/pgm"
	"particletriage/internal/pipeline"
	"particletriage/internal/report"
)

func main() {
	// Define command line flags
	configPath := flag.String("config", "", "Path to a JSON config file (optional)")
	sourceDir := flag.String("source", "", "Directory holding the numbered source frames")
	thresholdDir := flag.String("threshold-dir", "", "Directory for binarized frames (empty disables)")
	downlinkDir := flag.String("downlink-dir", "", "Directory receiving transmitted frames")
	outputDir := flag.String("output", "", "Directory for the results JSON and downlink manifest")
	start := flag.Int("start", 0, "First frame number")
	end := flag.Int("end", 0, "Last frame number (inclusive)")
	pct := flag.Int("pct", 0, "Percentage of frames to downlink")
	seed := flag.Uint64("seed", 0, "Clustering seed (random when unset)")
	workers := flag.Int("workers", 0, "Threshold workers (0 = number of CPUs)")
	overlayDir := flag.String("overlay-dir", "", "Directory for cluster overlay PNGs")
	chartPath := flag.String("chart", "", "Write a score chart to this path (.png, .svg, .pdf)")
	ledgerPath := flag.String("ledger", "", "Record the run in this SQLite database")

	flag.Parse()

	cfg := config.EmptyConfig()
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("Error loading config: %v", err)
		}
		cfg = loaded
	}

	// Explicit flags win over the config file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "start":
			config.SetInt(&cfg.StartIndex, *start)
		case "end":
			config.SetInt(&cfg.EndIndex, *end)
		case "pct":
			config.SetInt(&cfg.DownlinkPercentage, *pct)
		case "workers":
			config.SetInt(&cfg.Workers, *workers)
		case "seed":
			cfg.Seed = seed
		}
	})
	config.SetStringIfNonEmpty(&cfg.SourceDir, *sourceDir)
	config.SetStringIfNonEmpty(&cfg.ThresholdDir, *thresholdDir)
	config.SetStringIfNonEmpty(&cfg.DownlinkDir, *downlinkDir)
	config.SetStringIfNonEmpty(&cfg.OverlayDir, *overlayDir)
	config.SetStringIfNonEmpty(&cfg.ChartPath, *chartPath)
	config.SetStringIfNonEmpty(&cfg.LedgerPath, *ledgerPath)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		flag.Usage()
		os.Exit(1)
	}

	// Create a context that can be canceled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle termination signals
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signalChan
		log.Println("Received termination signal, shutting down...")
		cancel()
	}()

	analyzer := newAnalyzer(cfg, *outputDir)

	first, last := cfg.GetStartIndex(), cfg.GetEndIndex()
	log.Printf("Starting analysis of frames %d-%d in %s (seed %d)", first, last, cfg.GetSourceDir(), analyzer.Seed)
	rep, err := analyzer.AnalyzeSequence(ctx, first, last)
	if err != nil {
		if errors.Is(err, pipeline.ErrNoUsableFrames) && rep != nil {
			logFailures(rep)
		}
		log.Fatalf("Error analyzing frames: %v", err)
	}
	logFailures(rep)
	log.Printf("Downlinked frames: %v", rep.Downlinked)

	if path := cfg.GetChartPath(); path != "" {
		if err := report.WriteScoreChart(path, rep); err != nil {
			log.Printf("Warning: error writing chart: %v", err)
		} else {
			log.Printf("Score chart written to %s", path)
		}
	}

	if path := cfg.GetLedgerPath(); path != "" {
		if err := recordRun(ctx, path, rep); err != nil {
			log.Fatalf("Error recording run: %v", err)
		}
		log.Printf("Run %s recorded in %s", rep.RunID, path)
	}
}

// recordRun stores rep in the ledger at path. The ledger is closed before
// returning so its WAL is checkpointed even when the caller exits.
func recordRun(ctx context.Context, path string, rep *pipeline.Report) error {
	db, err := ledger.Open(path)
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}
	if err := db.RecordReport(ctx, rep); err != nil {
		db.Close()
		return err
	}
	return db.Close()
}

func newAnalyzer(cfg *config.TriageConfig, outputDir string) *pipeline.Analyzer {
	pattern := cfg.GetFramePattern()

	src := pgm.NewDirStore(cfg.GetSourceDir())
	src.Pattern = pattern
	dst := pgm.NewDirStore(cfg.GetDownlinkDir())
	dst.Pattern = pattern

	a := pipeline.NewAnalyzer(src, dst, cfg.GetDownlinkPercentage())
	if dir := cfg.GetThresholdDir(); dir != "" {
		th := pgm.NewDirStore(dir)
		th.Pattern = pattern
		a.ThresholdStore = th
	}
	a.Workers = cfg.GetWorkers()
	a.Labeler = conncomp.NewLabeler(cfg.GetMaxComponents())
	a.ClusterIterations = cfg.GetMaxClusterIterations()
	a.Scheduler = &downlink.Scheduler{
		DensityWeight:      cfg.GetDensityWeight(),
		AccelerationWeight: cfg.GetAccelerationWeight(),
		MaxAttempts:        cfg.GetMaxDownlinkAttempts(),
	}
	a.OverlayDir = cfg.GetOverlayDir()
	a.OutputDir = outputDir

	if s, ok := cfg.GetSeed(); ok {
		a.Seed = s
	} else {
		a.Seed = rand.Uint64()
	}
	return a
}

func logFailures(rep *pipeline.Report) {
	if len(rep.Failures) == 0 {
		return
	}
	for kind, n := range rep.FailuresByKind() {
		log.Printf("  %s: %d", kind, n)
	}
	for _, f := range rep.Failures {
		log.Printf("Frame %d failed at %s: %s", f.Frame, f.Stage, f.Message)
	}
}
