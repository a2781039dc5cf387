package types_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/okian/zonetrack/internal/domain/geometry"
	"github.com/okian/zonetrack/internal/domain/model"
	types "github.com/okian/zonetrack/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestFrameRequest(t *testing.T) {
	Convey("Given a frame request body", t, func() {
		body := `{"frame_id":"f-1","ts":1500,"detections":[
			{"label":"car","box":[100,200,300,400],"confidence":0.9},
			{"label":"person","box":[0,0,10,10]}
		]}`
		var req types.FrameRequest
		So(json.Unmarshal([]byte(body), &req), ShouldBeNil)

		Convey("When converting to a frame", func() {
			f, err := req.ToModel()

			Convey("Then boxes are read in detector order", func() {
				So(err, ShouldBeNil)
				So(f.ID, ShouldEqual, "f-1")
				So(f.Timestamp, ShouldEqual, 1500)
				So(f.Detections, ShouldHaveLength, 2)
				So(f.Detections[0].Box, ShouldResemble, geometry.BoundingBox{YMin: 100, XMin: 200, YMax: 300, XMax: 400})
				So(*f.Detections[0].Confidence, ShouldEqual, 0.9)
				So(f.Detections[1].Confidence, ShouldBeNil)
			})

			Convey("Then converting back gives the same request", func() {
				So(types.FrameFromModel(f), ShouldResemble, req)
			})
		})

		Convey("When a box has the wrong arity", func() {
			req.Detections[1].Box = []float64{1, 2, 3}
			_, err := req.ToModel()

			So(errors.Is(err, geometry.ErrBoxArity), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "detection 1")
		})
	})
}

func TestTrackViews(t *testing.T) {
	Convey("Given a track", t, func() {
		tr := model.Track{
			ID:         3,
			Label:      "car",
			Box:        geometry.BoundingBox{YMin: 0, XMin: 0, YMax: 100, XMax: 200},
			Trajectory: []geometry.Point{{X: 1, Y: 1}},
			Color:      "#fff",
			LastSeen:   9,
		}

		v := types.TrackFromModel(tr)

		Convey("Then the view carries the centroid and a copied trajectory", func() {
			So(v.Centroid, ShouldResemble, geometry.Point{X: 100, Y: 50})
			So(v.Box, ShouldResemble, []float64{0, 0, 100, 200})
			v.Trajectory[0].X = 42
			So(tr.Trajectory[0].X, ShouldEqual, 1)
		})

		Convey("Then empty snapshots encode as arrays", func() {
			b, err := json.Marshal(types.Snapshot{Tracks: types.TracksFromModel(nil)})
			So(err, ShouldBeNil)
			So(string(b), ShouldContainSubstring, `"tracks":[]`)

			b, _ = json.Marshal(types.TrackFromModel(model.Track{}))
			So(string(b), ShouldContainSubstring, `"trajectory":[]`)
		})
	})
}

func TestCrossingsFromModel(t *testing.T) {
	Convey("Given journal entries", t, func() {
		in := []model.Crossing{{
			SessionID: "s", TrackID: 1, Label: "car",
			Direction: model.DirectionExited, Timestamp: 10, Position: geometry.Point{X: 5, Y: 6},
		}}

		out := types.CrossingsFromModel(in)

		So(out, ShouldResemble, []types.Crossing{{
			SessionID: "s", TrackID: 1, Label: "car", Direction: "exited", TS: 10, Position: geometry.Point{X: 5, Y: 6},
		}})
		So(types.CrossingsFromModel(nil), ShouldNotBeNil)
	})
}
