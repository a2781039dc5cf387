package replay

import (
	"fmt"
	"io"
	"os"

	"github.com/okian/zonetrack/pkg/logger"
)

const logFilePermission = 0600

// SetupLogging sends log output to stdout and, when logFile is set, to that
// file as well. The returned close func releases the file.
func SetupLogging(logFile string) (func() error, error) {
	if logFile == "" {
		if err := logger.Init(); err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
		return func() error { return nil }, nil
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}
	if err := logger.InitWithWriter(io.MultiWriter(os.Stdout, file)); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return file.Close, nil
}

// ShowHelp prints usage information for the replay tool.
func ShowHelp() {
	os.Stdout.WriteString(`zonetrack replay
================

Replays detection frames through the tracking engine, in-process or against
a running service, and reports the zone counters.

Usage:
  go run ./cmd/replay [options]

Options:
  -mode string
        local (in-process engine) or http (default "local")
  -input string
        JSON-lines frame file; empty generates a scenario
  -save string
        Write the replayed frames to this JSON-lines file
  -output string
        Write the summary to this JSON file
  -roi string
        Region of interest as "x,y;x,y;..." (default "300,300;700,300;700,700;300,700")
  -url string
        Base URL of the service in http mode (default "http://localhost:9080")
  -timeout duration
        HTTP request timeout (default 10s)
  -reset
        POST /reset before replaying in http mode
  -retries int
        Attempts per frame while the service answers 429 (default 10)
  -objects int
        Generated objects (default 5)
  -frames int
        Generated frames (default 60)
  -seed uint
        Generator seed
  -jitter float
        Max centroid jitter per axis for generated frames
  -match-threshold float
        Association distance in local mode (default 150)
  -association string
        greedy or hungarian in local mode (default "greedy")
  -log string
        Also write logs to this file
  -verbose
        Log every crossing in local mode
  -help
        Show this help message

Examples:
  # Generated scenario through the in-process engine
  go run ./cmd/replay

  # Recorded frames against a running service
  go run ./cmd/replay -mode http -input frames.jsonl -reset
`)
}
