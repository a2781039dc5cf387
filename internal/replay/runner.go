package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/okian/zonetrack/internal/domain/types"
	"github.com/okian/zonetrack/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	filePermission      = 0600
)

// Run loads or generates the frames, replays them in the configured mode
// and writes the summary.
func Run(ctx context.Context, cfg *Config) (Summary, error) {
	log := logger.Get().Named("replay")
	log.Info(ctx, "starting replay",
		logger.String("mode", cfg.Mode),
		logger.String("input", cfg.Input),
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("roiVertices", len(cfg.ROI)),
		logger.Bool("verbose", cfg.Verbose))

	// Step 1: load or generate frames
	frames, err := loadFrames(cfg)
	if err != nil {
		return Summary{}, err
	}
	if cfg.Save != "" {
		if err := saveFrames(cfg.Save, frames); err != nil {
			return Summary{}, err
		}
		log.Info(ctx, "frames saved", logger.String("file", cfg.Save), logger.Int("frames", len(frames)))
	}

	// Step 2: replay
	var sum Summary
	switch cfg.Mode {
	case ModeLocal, "":
		sum, err = RunLocal(ctx, cfg, frames)
	case ModeHTTP:
		sum, err = RunHTTP(ctx, cfg, frames)
	default:
		return Summary{}, fmt.Errorf("%w: %q", ErrUnknownMode, cfg.Mode)
	}
	if err != nil {
		return sum, fmt.Errorf("replay failed: %w", err)
	}

	// Step 3: report
	log.Info(ctx, "replay completed",
		logger.String("session", sum.SessionID),
		logger.Int("frames", sum.Frames),
		logger.Int("accepted", sum.Accepted),
		logger.Int("duplicate", sum.Duplicate),
		logger.Int("rejected", sum.Rejected),
		logger.Int64("entered", sum.Entered),
		logger.Int64("exited", sum.Exited),
		logger.Int("tracks", sum.Tracks),
		logger.String("duration", sum.Duration.String()))

	if cfg.Output != "" {
		if err := saveSummary(cfg.Output, sum); err != nil {
			return sum, err
		}
	}
	return sum, nil
}

func loadFrames(cfg *Config) ([]types.FrameRequest, error) {
	if cfg.Input == "" {
		return Generate(cfg.Generate), nil
	}
	f, err := os.Open(cfg.Input)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()
	return ReadFrames(f)
}

func saveFrames(path string, frames []types.FrameRequest) error {
	f, err := create(path)
	if err != nil {
		return err
	}
	if err := WriteFrames(f, frames); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func saveSummary(path string, sum Summary) error {
	data, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), directoryPermission); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(path, data, filePermission); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

func create(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), directoryPermission); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePermission)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return f, nil
}
