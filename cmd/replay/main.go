package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/zonetrack/internal/domain/association"
	"github.com/okian/zonetrack/internal/engine"
	"github.com/okian/zonetrack/internal/replay"
)

// Default configuration constants.
const (
	defaultROI       = "300,300;700,300;700,700;300,700"
	defaultTimeout   = 10 * time.Second
	defaultRetries   = 10
	defaultObjects   = 5
	defaultFrames    = 60
	defaultRunBudget = 10 * time.Minute
)

func main() {
	var (
		mode        = flag.String("mode", replay.ModeLocal, "local or http")
		input       = flag.String("input", "", "JSON-lines frame file; empty generates a scenario")
		save        = flag.String("save", "", "Write the replayed frames to this file")
		output      = flag.String("output", "", "Write the summary to this file")
		roi         = flag.String("roi", defaultROI, "Region of interest as x,y;x,y;...")
		baseURL     = flag.String("url", "http://localhost:9080", "Base URL of the service")
		timeout     = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		reset       = flag.Bool("reset", false, "POST /reset before replaying")
		retries     = flag.Int("retries", defaultRetries, "Attempts per frame on 429")
		objects     = flag.Int("objects", defaultObjects, "Generated objects")
		frames      = flag.Int("frames", defaultFrames, "Generated frames")
		seed        = flag.Uint64("seed", 0, "Generator seed")
		jitter      = flag.Float64("jitter", 0, "Max centroid jitter per axis")
		threshold   = flag.Float64("match-threshold", engine.DefaultMatchThreshold, "Association distance in local mode")
		assocKind   = flag.String("association", association.KindGreedy, "greedy or hungarian in local mode")
		logFile     = flag.String("log", "", "Also write logs to this file")
		verbose     = flag.Bool("verbose", false, "Log every crossing")
		help        = flag.Bool("help", false, "Show help")
		frameUnitMs = flag.Int64("frame-unit-ms", 0, "Timestamp step of generated frames (default 1000)")
	)
	flag.Parse()

	if *help {
		replay.ShowHelp()
		return
	}

	closeLog, err := replay.SetupLogging(*logFile)
	if err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer closeLog()

	poly, err := replay.ParsePolygon(*roi)
	if err != nil {
		os.Stderr.WriteString("Invalid -roi: " + err.Error() + "\n")
		os.Exit(1)
	}

	engineCfg := engine.DefaultConfig()
	engineCfg.MatchThreshold = *threshold
	engineCfg.Association = *assocKind
	if *frameUnitMs > 0 {
		engineCfg.FrameUnitMs = *frameUnitMs
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultRunBudget)
	defer cancel()

	cfg := &replay.Config{
		Mode:    *mode,
		Input:   *input,
		Output:  *output,
		Save:    *save,
		BaseURL: *baseURL,
		Timeout: *timeout,
		Reset:   *reset,
		Retries: *retries,
		Engine:  engineCfg,
		ROI:     poly,
		Generate: replay.GenerateOptions{
			Objects:     *objects,
			Frames:      *frames,
			FrameUnitMs: *frameUnitMs,
			Seed:        *seed,
			Jitter:      *jitter,
		},
		Verbose: *verbose,
	}

	if _, err := replay.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("Replay failed: " + err.Error() + "\n")
		stop()
		cancel()
		os.Exit(1)
	}
}
