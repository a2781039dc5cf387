// Package types contains the JSON views exchanged with HTTP clients and the
// replay tool, plus their conversions to domain models.
package types

import (
	"fmt"

	"github.com/okian/zonetrack/internal/domain/geometry"
	"github.com/okian/zonetrack/internal/domain/model"
	"github.com/okian/zonetrack/internal/engine"
)

// Detection is one detector output as sent over the wire.
// Box is [ymin, xmin, ymax, xmax] on the 0..1000 plane.
type Detection struct {
	Label      string    `json:"label"`
	Box        []float64 `json:"box"`
	Confidence *float64  `json:"confidence,omitempty"`
}

// FrameRequest is the body of POST /frames and one line of a replay file.
type FrameRequest struct {
	FrameID    string      `json:"frame_id,omitempty"`
	TS         int64       `json:"ts"`
	Detections []Detection `json:"detections"`
}

// ToModel converts the request into a frame. A wrong box arity fails the
// whole request.
func (r FrameRequest) ToModel() (model.Frame, error) {
	dets := make([]model.Detection, 0, len(r.Detections))
	for i, d := range r.Detections {
		box, err := geometry.BoxFromSlice(d.Box)
		if err != nil {
			return model.Frame{}, fmt.Errorf("detection %d: %w", i, err)
		}
		dets = append(dets, model.Detection{Label: d.Label, Box: box, Confidence: d.Confidence})
	}
	return model.Frame{ID: r.FrameID, Timestamp: r.TS, Detections: dets}, nil
}

// FrameFromModel is the inverse of ToModel.
func FrameFromModel(f model.Frame) FrameRequest {
	out := FrameRequest{FrameID: f.ID, TS: f.Timestamp, Detections: make([]Detection, len(f.Detections))}
	for i, d := range f.Detections {
		out.Detections[i] = Detection{Label: d.Label, Box: d.Box.Slice(), Confidence: d.Confidence}
	}
	return out
}

// Track is the read-only track view.
type Track struct {
	ID         int64            `json:"id"`
	Label      string           `json:"label"`
	Box        []float64        `json:"box"`
	Centroid   geometry.Point   `json:"centroid"`
	Trajectory []geometry.Point `json:"trajectory"`
	Color      string           `json:"color"`
	LastSeen   int64            `json:"last_seen"`
}

// TrackFromModel builds the view of t.
func TrackFromModel(t model.Track) Track {
	traj := make([]geometry.Point, len(t.Trajectory))
	copy(traj, t.Trajectory)
	return Track{
		ID:         t.ID,
		Label:      t.Label,
		Box:        t.Box.Slice(),
		Centroid:   t.Centroid(),
		Trajectory: traj,
		Color:      t.Color,
		LastSeen:   t.LastSeen,
	}
}

// TracksFromModel converts a snapshot. Never returns nil.
func TracksFromModel(tracks []model.Track) []Track {
	out := make([]Track, len(tracks))
	for i := range tracks {
		out[i] = TrackFromModel(tracks[i])
	}
	return out
}

// Counters is the body of GET /counters. Journaled holds the crossings the
// journal retained for the session and is omitted when the journal cannot
// be read.
type Counters struct {
	SessionID string         `json:"session_id"`
	Entered   int64          `json:"entered"`
	Exited    int64          `json:"exited"`
	Inside    int            `json:"inside"`
	Journaled *JournalTotals `json:"journaled,omitempty"`
}

// JournalTotals counts journaled crossings by direction.
type JournalTotals struct {
	Entered int64 `json:"entered"`
	Exited  int64 `json:"exited"`
}

// Snapshot is the body of GET /tracks and every websocket message.
type Snapshot struct {
	SessionID string  `json:"session_id"`
	TS        int64   `json:"ts"`
	Tracks    []Track `json:"tracks"`
	Entered   int64   `json:"entered"`
	Exited    int64   `json:"exited"`
}

// SnapshotFromResult builds the view of a tick result.
func SnapshotFromResult(res engine.Result) Snapshot { //nolint:gocritic // hugeParam: Result is a value snapshot
	return Snapshot{
		SessionID: res.SessionID,
		TS:        res.Timestamp,
		Tracks:    TracksFromModel(res.Tracks),
		Entered:   res.Entered,
		Exited:    res.Exited,
	}
}

// Crossing is one journal entry.
type Crossing struct {
	SessionID string         `json:"session_id"`
	TrackID   int64          `json:"track_id"`
	Label     string         `json:"label"`
	Direction string         `json:"direction"`
	TS        int64          `json:"ts"`
	Position  geometry.Point `json:"position"`
}

// CrossingsFromModel converts journal entries. Never returns nil.
func CrossingsFromModel(in []model.Crossing) []Crossing {
	out := make([]Crossing, len(in))
	for i, c := range in {
		out[i] = Crossing{
			SessionID: c.SessionID,
			TrackID:   c.TrackID,
			Label:     c.Label,
			Direction: string(c.Direction),
			TS:        c.Timestamp,
			Position:  c.Position,
		}
	}
	return out
}

// ROIRequest is the body of PUT /roi.
type ROIRequest struct {
	Points []geometry.Point `json:"points"`
}

// ROI is the body of GET /roi and the PUT /roi response.
type ROI struct {
	Points   []geometry.Point `json:"points"`
	Defined  bool             `json:"defined"`
	Area     float64          `json:"area"`
	Simple   bool             `json:"simple"`
	Problem  string           `json:"problem,omitempty"`
	Vertices int              `json:"vertices"`
}
