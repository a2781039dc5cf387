package trackstore

import (
	"fmt"
	"sync/atomic"

	"github.com/okian/zonetrack/internal/domain/association"
	"github.com/okian/zonetrack/internal/domain/geometry"
	"github.com/okian/zonetrack/internal/domain/model"
)

// Default tunables.
const (
	DefaultMaxDropoutTicks    = 5
	DefaultTrajectoryCapacity = 30
	DefaultFrameUnitMs        = 1000
)

// DefaultPalette is indexed by id mod len so a track's color is a pure
// function of its id.
var DefaultPalette = []string{
	"#e6194b", "#3cb44b", "#ffe119", "#4363d8", "#f58231", "#911eb4",
	"#46f0f0", "#f032e6", "#bcf60c", "#fabebe", "#008080", "#e6beff",
}

// Config holds the lifecycle tunables.
type Config struct {
	MaxDropoutTicks    int
	TrajectoryCapacity int
	FrameUnitMs        int64
}

// DefaultConfig returns the stock lifecycle tunables.
func DefaultConfig() Config {
	return Config{
		MaxDropoutTicks:    DefaultMaxDropoutTicks,
		TrajectoryCapacity: DefaultTrajectoryCapacity,
		FrameUnitMs:        DefaultFrameUnitMs,
	}
}

// Validate checks the tunables.
func (c Config) Validate() error {
	if c.MaxDropoutTicks < 0 {
		return fmt.Errorf("%w: max dropout ticks must be >= 0, got %d", ErrInvalidConfig, c.MaxDropoutTicks)
	}
	if c.TrajectoryCapacity < 1 {
		return fmt.Errorf("%w: trajectory capacity must be >= 1, got %d", ErrInvalidConfig, c.TrajectoryCapacity)
	}
	if c.FrameUnitMs < 1 {
		return fmt.Errorf("%w: frame unit must be >= 1ms, got %d", ErrInvalidConfig, c.FrameUnitMs)
	}
	return nil
}

// DropoutWindow is how long, in milliseconds, an unmatched track survives.
func (c Config) DropoutWindow() int64 {
	return int64(c.MaxDropoutTicks) * c.FrameUnitMs
}

// IDAllocator hands out monotonically increasing track ids starting at 1.
// Safe for concurrent use.
type IDAllocator struct {
	last atomic.Int64
}

// NewIDAllocator returns an allocator whose first id is 1.
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{}
}

// Next returns a fresh id.
func (a *IDAllocator) Next() int64 {
	return a.last.Add(1)
}

// Last returns the most recently issued id, or 0.
func (a *IDAllocator) Last() int64 {
	return a.last.Load()
}

// Changes summarizes what an Apply did to the track set.
type Changes struct {
	Updated    int
	Created    int
	Retained   int
	RetiredIDs []int64
}

// Store is the sole owner of the track set. It is not safe for concurrent
// use; the engine serializes access.
type Store struct {
	cfg     Config
	ids     *IDAllocator
	palette []string
	tracks  []model.Track
}

// New builds an empty store.
func New(cfg Config, opts ...Option) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Store{
		cfg:     cfg,
		ids:     NewIDAllocator(),
		palette: DefaultPalette,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Config returns the store tunables.
func (s *Store) Config() Config {
	return s.cfg
}

// IDs returns the allocator backing the store.
func (s *Store) IDs() *IDAllocator {
	return s.ids
}

// Current returns the live track set in creation order. Callers must treat it
// as read-only; use Snapshot to hand tracks outside the engine.
func (s *Store) Current() []model.Track {
	return s.tracks
}

// Snapshot returns a deep copy of the track set.
func (s *Store) Snapshot() []model.Track {
	return model.CloneTracks(s.tracks)
}

// Len returns the number of live tracks.
func (s *Store) Len() int {
	return len(s.tracks)
}

// Replace installs tracks as the new live set.
func (s *Store) Replace(tracks []model.Track) {
	s.tracks = tracks
}

// Clear drops every track. The allocator keeps counting.
func (s *Store) Clear() {
	s.tracks = nil
}

// ColorFor returns the display color for id.
func (s *Store) ColorFor(id int64) string {
	n := int64(len(s.palette))
	idx := id % n
	if idx < 0 {
		idx += n
	}
	return s.palette[idx]
}

// Apply computes the next track set from current, a matching produced against
// current and detections, and the tick timestamp. It does not modify current
// or install the result; Replace does that.
//
// Output order is surviving tracks in their existing order followed by new
// tracks in detection order.
func (s *Store) Apply(current []model.Track, match association.Result, detections []model.Detection, ts int64) ([]model.Track, Changes) {
	var ch Changes
	matched := make(map[int]int, len(match.Matches))
	for _, m := range match.Matches {
		matched[m.Track] = m.Detection
	}

	next := make([]model.Track, 0, len(current)+len(match.UnmatchedDetections))
	window := s.cfg.DropoutWindow()

	for ti, t := range current {
		if di, ok := matched[ti]; ok {
			next = append(next, s.update(t, detections[di].Box, ts))
			ch.Updated++
			continue
		}
		if ts-t.LastSeen < window {
			next = append(next, t.Clone())
			ch.Retained++
			continue
		}
		ch.RetiredIDs = append(ch.RetiredIDs, t.ID)
	}

	for _, di := range match.UnmatchedDetections {
		next = append(next, s.spawn(detections[di], ts))
		ch.Created++
	}
	return next, ch
}

func (s *Store) update(t model.Track, box geometry.BoundingBox, ts int64) model.Track {
	traj := appendCapped(t.Trajectory, geometry.Centroid(box), s.cfg.TrajectoryCapacity)
	return model.Track{
		ID:         t.ID,
		Label:      t.Label,
		Box:        box,
		Trajectory: traj,
		Color:      t.Color,
		LastSeen:   ts,
	}
}

func (s *Store) spawn(d model.Detection, ts int64) model.Track {
	id := s.ids.Next()
	return model.Track{
		ID:         id,
		Label:      d.Label,
		Box:        d.Box,
		Trajectory: []geometry.Point{geometry.Centroid(d.Box)},
		Color:      s.ColorFor(id),
		LastSeen:   ts,
	}
}

// appendCapped returns a fresh slice holding the last capacity points of
// traj followed by p. traj is never written to.
func appendCapped(traj []geometry.Point, p geometry.Point, capacity int) []geometry.Point {
	keep := len(traj)
	if keep > capacity-1 {
		keep = capacity - 1
	}
	out := make([]geometry.Point, 0, keep+1)
	out = append(out, traj[len(traj)-keep:]...)
	return append(out, p)
}
