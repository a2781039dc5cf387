// Package zone turns consecutive observations of the same track into
// enter/exit events against a region of interest.
package zone

import (
	"github.com/okian/zonetrack/internal/domain/geometry"
	"github.com/okian/zonetrack/internal/domain/model"
)

// Event is one boundary crossing observed between two ticks.
type Event struct {
	TrackID   int64
	Label     string
	Direction model.Direction
	Position  geometry.Point // centroid after the crossing
}

// Delta is the per-tick result of Evaluate.
type Delta struct {
	Entered int
	Exited  int
	Events  []Event // in new-track order
}

// Evaluate compares each track in next against its previous state in prev
// (matched by id) and counts boundary crossings of poly. Tracks without a
// previous state contribute nothing, as do tracks that disappeared. An
// undefined polygon yields a zero Delta.
func Evaluate(prev, next []model.Track, poly geometry.Polygon) Delta {
	var d Delta
	if !poly.Defined() || len(prev) == 0 {
		return d
	}

	before := make(map[int64]geometry.Point, len(prev))
	for _, t := range prev {
		before[t.ID] = t.Centroid()
	}

	for _, t := range next {
		from, ok := before[t.ID]
		if !ok {
			continue
		}
		to := t.Centroid()
		wasIn := geometry.PointInPolygon(from, poly)
		isIn := geometry.PointInPolygon(to, poly)
		switch {
		case !wasIn && isIn:
			d.Entered++
			d.Events = append(d.Events, Event{TrackID: t.ID, Label: t.Label, Direction: model.DirectionEntered, Position: to})
		case wasIn && !isIn:
			d.Exited++
			d.Events = append(d.Events, Event{TrackID: t.ID, Label: t.Label, Direction: model.DirectionExited, Position: to})
		}
	}
	return d
}

// Occupancy counts the tracks whose centroid lies inside poly.
func Occupancy(tracks []model.Track, poly geometry.Polygon) int {
	if !poly.Defined() {
		return 0
	}
	n := 0
	for _, t := range tracks {
		if geometry.PointInPolygon(t.Centroid(), poly) {
			n++
		}
	}
	return n
}
