// Package model contains domain models passed between layers.
package model

import (
	"github.com/okian/zonetrack/internal/domain/geometry"
)

// Detection is one labelled box reported by the detector for a single image.
// It lives for one tick only.
type Detection struct {
	Label      string
	Box        geometry.BoundingBox
	Confidence *float64 // nil when the detector reports none
}

// Track is a temporally coherent object followed across ticks.
// ID, Label and Color never change after creation.
type Track struct {
	ID         int64
	Label      string
	Box        geometry.BoundingBox
	Trajectory []geometry.Point // oldest first
	Color      string
	LastSeen   int64 // milliseconds
}

// Centroid returns the center of the track's current box.
func (t Track) Centroid() geometry.Point {
	return geometry.Centroid(t.Box)
}

// Clone returns a deep copy so callers can never alias store-owned slices.
func (t Track) Clone() Track {
	out := t
	if t.Trajectory != nil {
		out.Trajectory = make([]geometry.Point, len(t.Trajectory))
		copy(out.Trajectory, t.Trajectory)
	}
	return out
}

// CloneTracks deep-copies a track list.
func CloneTracks(tracks []Track) []Track {
	if tracks == nil {
		return nil
	}
	out := make([]Track, len(tracks))
	for i := range tracks {
		out[i] = tracks[i].Clone()
	}
	return out
}

// Counters are cumulative zone crossings. They only ever grow.
type Counters struct {
	Entered int64 `json:"entered"`
	Exited  int64 `json:"exited"`
}

// Direction of a zone crossing.
type Direction string

// Crossing directions.
const (
	DirectionEntered Direction = "entered"
	DirectionExited  Direction = "exited"
)

// Crossing records one track crossing the region boundary.
type Crossing struct {
	SessionID string
	TrackID   int64
	Label     string
	Direction Direction
	Timestamp int64 // milliseconds
	Position  geometry.Point
}

// Frame is one detection batch waiting to be ticked.
type Frame struct {
	ID         string
	Timestamp  int64 // milliseconds, non-decreasing across frames
	Detections []Detection
}
