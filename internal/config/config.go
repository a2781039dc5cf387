// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - External errors are wrapped with this package's sentinel kinds.
package config

import (
	"fmt"

	"github.com/okian/zonetrack/internal/adapters/repository"
	"github.com/okian/zonetrack/internal/domain/association"
	"github.com/okian/zonetrack/internal/domain/geometry"
	"github.com/okian/zonetrack/internal/engine"
)

// Vertex is one region-of-interest corner as written in config files.
type Vertex struct {
	X float64 `koanf:"x"`
	Y float64 `koanf:"y"`
}

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// FrameQueueSize bounds the buffer in front of the tick worker. The
	// dequeue relay holds one more frame, so 1 admits two waiting frames.
	FrameQueueSize int `koanf:"queue_size"`

	// DedupeSize sets how many frame ids are remembered for idempotency.
	DedupeSize int `koanf:"dedupe_size"`

	// Tracking tunables.
	MatchThreshold     float64 `koanf:"match_threshold"`
	MaxDropoutTicks    int     `koanf:"max_dropout_ticks"`
	TrajectoryCapacity int     `koanf:"trajectory_capacity"`
	FrameUnitMs        int64   `koanf:"frame_unit_ms"`

	// Association selects "greedy" or "hungarian" matching.
	Association string `koanf:"association"`

	// MinConfidence drops detections below this confidence before tracking.
	MinConfidence float64 `koanf:"min_confidence"`

	// LabelMinConfidence overrides MinConfidence per label.
	LabelMinConfidence map[string]float64 `koanf:"label_min_confidence"`

	// Labels restricts tracking to these labels. Empty tracks everything.
	Labels []string `koanf:"labels"`

	// JournalDriver is "memory" or "sqlite".
	JournalDriver string `koanf:"journal_driver"`

	// JournalPath is the SQLite database file.
	JournalPath string `koanf:"journal_path"`

	// JournalSize bounds the in-memory journal.
	JournalSize int `koanf:"journal_size"`

	// MaxCrossingsLimit caps GET /crossings?limit.
	MaxCrossingsLimit int `koanf:"max_crossings_limit"`

	// ROI is the initial region of interest. Fewer than 3 vertices leaves
	// analytics disabled until one is set over HTTP.
	ROI []Vertex `koanf:"roi"`
}

// New creates a Config populated with defaults.
func New() *Config {
	d := engine.DefaultConfig()
	return &Config{
		LogLevel:           "info",
		Addr:               ":9080",
		FrameQueueSize:     1,
		DedupeSize:         4096,
		MatchThreshold:     d.MatchThreshold,
		MaxDropoutTicks:    d.MaxDropoutTicks,
		TrajectoryCapacity: d.TrajectoryCapacity,
		FrameUnitMs:        d.FrameUnitMs,
		Association:        d.Association,
		MinConfidence:      0,
		LabelMinConfidence: map[string]float64{},
		JournalDriver:      repository.DriverMemory,
		JournalPath:        "zonetrack.db",
		JournalSize:        10_000,
		MaxCrossingsLimit:  1000,
	}
}

// Engine returns the tracking tunables.
func (c *Config) Engine() engine.Config {
	return engine.Config{
		MatchThreshold:     c.MatchThreshold,
		MaxDropoutTicks:    c.MaxDropoutTicks,
		TrajectoryCapacity: c.TrajectoryCapacity,
		FrameUnitMs:        c.FrameUnitMs,
		Association:        c.Association,
	}
}

// Polygon returns the configured region of interest.
func (c *Config) Polygon() geometry.Polygon {
	if len(c.ROI) == 0 {
		return nil
	}
	poly := make(geometry.Polygon, len(c.ROI))
	for i, v := range c.ROI {
		poly[i] = geometry.Point{X: v.X, Y: v.Y}
	}
	return poly
}

// Validate checks every field and returns an error wrapping ErrInvalidConfig.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if c.FrameQueueSize < 1 {
		return fmt.Errorf("%w: queue_size must be >= 1, got %d", ErrInvalidConfig, c.FrameQueueSize)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("%w: min_confidence must be within [0,1], got %v", ErrInvalidConfig, c.MinConfidence)
	}
	for label, v := range c.LabelMinConfidence {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: label_min_confidence[%s] must be within [0,1], got %v", ErrInvalidConfig, label, v)
		}
	}
	switch c.Association {
	case association.KindGreedy, association.KindHungarian:
	default:
		return fmt.Errorf("%w: association must be %q or %q, got %q", ErrInvalidConfig, association.KindGreedy, association.KindHungarian, c.Association)
	}
	switch c.JournalDriver {
	case repository.DriverMemory:
		if c.JournalSize < 1 {
			return fmt.Errorf("%w: journal_size must be >= 1, got %d", ErrInvalidConfig, c.JournalSize)
		}
	case repository.DriverSQLite:
		if c.JournalPath == "" {
			return fmt.Errorf("%w: journal_path must not be empty for sqlite", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: journal_driver must be %q or %q, got %q", ErrInvalidConfig, repository.DriverMemory, repository.DriverSQLite, c.JournalDriver)
	}
	if c.MaxCrossingsLimit < 1 {
		return fmt.Errorf("%w: max_crossings_limit must be >= 1, got %d", ErrInvalidConfig, c.MaxCrossingsLimit)
	}
	if !c.Polygon().Finite() {
		return fmt.Errorf("%w: roi has a non-finite vertex", ErrInvalidConfig)
	}
	if err := c.Engine().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
