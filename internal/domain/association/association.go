// Package association matches existing tracks to a new batch of detections
// for a single tick.
package association

import (
	"fmt"
	"math"

	"github.com/okian/zonetrack/internal/domain/geometry"
	"github.com/okian/zonetrack/internal/domain/model"
)

// Kinds of associator selectable from configuration.
const (
	KindGreedy    = "greedy"
	KindHungarian = "hungarian"
)

// Match pairs a track index with a detection index.
type Match struct {
	Track     int
	Detection int
}

// Result is a partial 1:1 matching between tracks and detections.
// Indices refer to the slices handed to Associate. Matches and
// UnmatchedTracks follow track order; UnmatchedDetections follows input order.
type Result struct {
	Matches             []Match
	UnmatchedTracks     []int
	UnmatchedDetections []int
}

// DetectionFor returns the detection index matched to track i, or -1.
func (r Result) DetectionFor(track int) int {
	for _, m := range r.Matches {
		if m.Track == track {
			return m.Detection
		}
	}
	return -1
}

// Associator produces a matching for one tick.
type Associator interface {
	Associate(tracks []model.Track, detections []model.Detection) Result
}

// New returns the associator registered under kind.
func New(kind string, threshold float64) (Associator, error) {
	if threshold <= 0 || math.IsNaN(threshold) {
		return nil, fmt.Errorf("%w: match threshold must be positive, got %v", ErrInvalidThreshold, threshold)
	}
	switch kind {
	case "", KindGreedy:
		return &Greedy{Threshold: threshold}, nil
	case KindHungarian:
		return &Hungarian{Threshold: threshold}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// eligible applies the label gate and the distance gate. It returns the
// distance and whether the pair may be matched.
func eligible(threshold float64, track model.Track, trackCenter geometry.Point, det model.Detection, detCenter geometry.Point) (float64, bool) {
	if det.Label != track.Label {
		return 0, false
	}
	d := geometry.Distance(trackCenter, detCenter)
	return d, d < threshold
}

func centroids(tracks []model.Track, detections []model.Detection) ([]geometry.Point, []geometry.Point) {
	tc := make([]geometry.Point, len(tracks))
	for i := range tracks {
		tc[i] = tracks[i].Centroid()
	}
	dc := make([]geometry.Point, len(detections))
	for i := range detections {
		dc[i] = geometry.Centroid(detections[i].Box)
	}
	return tc, dc
}

// Greedy walks tracks in store order and lets each one claim the nearest
// still-unclaimed detection with the same label inside Threshold. It is not
// globally optimal: an earlier track can take a detection a later track
// needed more. Track order is the tie-break and must be preserved.
type Greedy struct {
	Threshold float64
}

// Associate implements Associator.
func (g *Greedy) Associate(tracks []model.Track, detections []model.Detection) Result {
	tc, dc := centroids(tracks, detections)
	claimed := make([]bool, len(detections))
	var res Result

	for ti := range tracks {
		best := -1
		bestDist := math.Inf(1)
		for di := range detections {
			if claimed[di] {
				continue
			}
			d, ok := eligible(g.Threshold, tracks[ti], tc[ti], detections[di], dc[di])
			if ok && d < bestDist {
				best, bestDist = di, d
			}
		}
		if best < 0 {
			res.UnmatchedTracks = append(res.UnmatchedTracks, ti)
			continue
		}
		claimed[best] = true
		res.Matches = append(res.Matches, Match{Track: ti, Detection: best})
	}

	for di := range detections {
		if !claimed[di] {
			res.UnmatchedDetections = append(res.UnmatchedDetections, di)
		}
	}
	return res
}

// Hungarian finds the gated matching with the most pairs and, among those,
// the smallest total centroid distance.
type Hungarian struct {
	Threshold float64
}

// Associate implements Associator.
func (h *Hungarian) Associate(tracks []model.Track, detections []model.Detection) Result {
	tc, dc := centroids(tracks, detections)
	forbidden := forbiddenCost(h.Threshold, len(tracks), len(detections))

	cost := make([][]float64, len(tracks))
	for ti := range tracks {
		cost[ti] = make([]float64, len(detections))
		for di := range detections {
			d, ok := eligible(h.Threshold, tracks[ti], tc[ti], detections[di], dc[di])
			if ok {
				cost[ti][di] = d
			} else {
				cost[ti][di] = forbidden
			}
		}
	}

	assign := solve(cost, forbidden)
	claimed := make([]bool, len(detections))
	var res Result
	for ti := range tracks {
		di := -1
		if ti < len(assign) {
			di = assign[ti]
		}
		if di < 0 {
			res.UnmatchedTracks = append(res.UnmatchedTracks, ti)
			continue
		}
		claimed[di] = true
		res.Matches = append(res.Matches, Match{Track: ti, Detection: di})
	}
	for di := range detections {
		if !claimed[di] {
			res.UnmatchedDetections = append(res.UnmatchedDetections, di)
		}
	}
	return res
}
