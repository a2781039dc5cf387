package service_test

import (
	"context"
	"errors"
	"math"
	"testing"

	framequeue "github.com/okian/zonetrack/internal/adapters/mq/queue"
	repository "github.com/okian/zonetrack/internal/adapters/repository"
	service "github.com/okian/zonetrack/internal/app"
	"github.com/okian/zonetrack/internal/domain/filter"
	"github.com/okian/zonetrack/internal/domain/geometry"
	"github.com/okian/zonetrack/internal/domain/model"
	"github.com/okian/zonetrack/internal/domain/trackstore"
	"github.com/okian/zonetrack/internal/engine"
	"github.com/okian/zonetrack/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

var square = geometry.Polygon{{X: 100, Y: 100}, {X: 900, Y: 100}, {X: 900, Y: 900}, {X: 100, Y: 900}}

func det(label string, x, y float64) model.Detection {
	return model.Detection{Label: label, Box: geometry.BoundingBox{YMin: y - 10, XMin: x - 10, YMax: y + 10, XMax: x + 10}}
}

func frame(id string, ts int64, dets ...model.Detection) model.Frame {
	return model.Frame{ID: id, Timestamp: ts, Detections: dets}
}

func wideConfig() engine.Config {
	cfg := engine.DefaultConfig()
	cfg.MatchThreshold = 1000
	return cfg
}

func newService(opts ...service.Option) *service.Service {
	svc, err := service.New(opts...)
	So(err, ShouldBeNil)
	return svc
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := newService()

		Convey("Then it should have sensible defaults", func() {
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, false)
			So(stats["queueSize"], ShouldEqual, 1)
			So(stats["dedupeSize"], ShouldEqual, 4096)
			So(stats["association"], ShouldEqual, "greedy")
			So(stats["state"], ShouldEqual, "idle")
			So(svc.SessionID(), ShouldNotBeEmpty)
		})
	})

	Convey("Given a new service with custom options", t, func() {
		svc := newService(
			service.WithQueueSize(8),
			service.WithDedupeSize(16),
			service.WithEngineConfig(wideConfig()),
			service.WithROI(square),
		)

		Convey("Then it should be created successfully", func() {
			So(svc.GetStats()["queueSize"], ShouldEqual, 8)
			So(svc.ROI(), ShouldResemble, square)
		})
	})

	Convey("Given an invalid engine config", t, func() {
		cfg := engine.DefaultConfig()
		cfg.MatchThreshold = 0
		svc, err := service.New(service.WithEngineConfig(cfg))

		Convey("Then construction fails", func() {
			So(svc, ShouldBeNil)
			So(errors.Is(err, engine.ErrInvalidConfig), ShouldBeTrue)
		})
	})

	Convey("Given an initial ROI with two vertices", t, func() {
		_, err := service.New(service.WithROI(geometry.Polygon{{X: 1, Y: 1}, {X: 2, Y: 2}}))

		Convey("Then construction fails", func() {
			So(errors.Is(err, geometry.ErrInvalidPolygon), ShouldBeTrue)
		})
	})
}

func TestService_Start(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := newService()
		// Ensure service is stopped after test
		defer svc.Stop()

		Convey("When starting the service", func() {
			err := svc.Start(context.Background())

			Convey("Then it should start successfully", func() {
				So(err, ShouldBeNil)
			})

			Convey("And it should be marked as started", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
				So(stats["queueLength"], ShouldEqual, 0)
			})

			Convey("And starting again is a no-op", func() {
				So(svc.Start(context.Background()), ShouldBeNil)
			})
		})
	})
}

func TestService_Stop(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := newService()
		So(svc.Start(context.Background()), ShouldBeNil)

		Convey("When stopping the service", func() {
			svc.Stop()

			Convey("Then it should be marked as stopped", func() {
				So(svc.GetStats()["started"], ShouldEqual, false)
			})

			Convey("And frames are refused", func() {
				_, err := svc.Enqueue(context.Background(), frame("f", 0))
				So(errors.Is(err, framequeue.ErrClosed), ShouldBeTrue)
			})

			Convey("And stopping twice is safe", func() {
				So(func() { svc.Stop() }, ShouldNotPanic)
			})
		})
	})
}

func TestService_Enqueue(t *testing.T) {
	Convey("Given a service that was never started", t, func() {
		svc := newService()

		Convey("Then enqueue reports a closed queue", func() {
			id, err := svc.Enqueue(context.Background(), frame("", 0))
			So(errors.Is(err, framequeue.ErrClosed), ShouldBeTrue)
			So(id, ShouldNotBeEmpty)
		})
	})
}

func TestService_SeenAndRecord(t *testing.T) {
	Convey("Given a service", t, func() {
		svc := newService()
		ctx := context.Background()

		Convey("When recording a new frame id", func() {
			seen := svc.SeenAndRecord(ctx, "frame-1")

			Convey("Then it is new", func() {
				So(seen, ShouldBeFalse)
				So(svc.Size(), ShouldEqual, 1)
			})

			Convey("And recording it again reports a duplicate", func() {
				So(svc.SeenAndRecord(ctx, "frame-1"), ShouldBeTrue)
			})

			Convey("And after unrecording it is new again", func() {
				svc.Unrecord(ctx, "frame-1")
				So(svc.SeenAndRecord(ctx, "frame-1"), ShouldBeFalse)
			})
		})
	})
}

func TestService_Tick(t *testing.T) {
	Convey("Given a service with a square ROI", t, func() {
		journal := repository.NewMemoryJournal()
		svc := newService(
			service.WithEngineConfig(wideConfig()),
			service.WithROI(square),
			service.WithJournal(journal),
		)
		ctx := context.Background()

		Convey("When a car drives in", func() {
			_, err := svc.Tick(ctx, frame("a", 0, det("car", 50, 50)))
			So(err, ShouldBeNil)
			res, err := svc.Tick(ctx, frame("b", 1000, det("car", 500, 500)))
			So(err, ShouldBeNil)

			Convey("Then the latest result is published", func() {
				So(res.Entered, ShouldEqual, 1)
				So(svc.Latest().Entered, ShouldEqual, 1)
				So(svc.Snapshot(ctx).Tracks, ShouldHaveLength, 1)
			})

			Convey("And counters report it inside", func() {
				c := svc.Counters(ctx)
				So(c.Entered, ShouldEqual, 1)
				So(c.Exited, ShouldEqual, 0)
				So(c.Inside, ShouldEqual, 1)
				So(c.SessionID, ShouldEqual, svc.SessionID())
				So(c.Journaled, ShouldNotBeNil)
			})

			Convey("And journal totals are omitted once the journal is closed", func() {
				So(journal.Close(), ShouldBeNil)
				c := svc.Counters(ctx)
				So(c.Entered, ShouldEqual, 1)
				So(c.Journaled, ShouldBeNil)
			})

			Convey("And the last applied timestamp is tracked", func() {
				ts, ok := svc.LastApplied()
				So(ok, ShouldBeTrue)
				So(ts, ShouldEqual, 1000)
			})
		})

		Convey("When a tick carries a non-finite box", func() {
			bad := det("car", 50, 50)
			bad.Box.XMax = math.Inf(1)
			_, err := svc.Tick(ctx, frame("x", 0, bad))

			Convey("Then it is rejected and nothing changes", func() {
				So(errors.Is(err, engine.ErrInvalidInput), ShouldBeTrue)
				So(svc.Latest().Tracks, ShouldBeEmpty)
				_, ok := svc.LastApplied()
				So(ok, ShouldBeFalse)
			})
		})
	})

	Convey("Given a service with a confidence filter", t, func() {
		svc := newService(service.WithFilter(filter.WithMinConfidence(0.5)))
		low, high := 0.2, 0.9
		d1 := det("car", 100, 100)
		d1.Confidence = &low
		d2 := det("car", 600, 600)
		d2.Confidence = &high

		Convey("Then low-confidence detections never become tracks", func() {
			res, err := svc.Tick(context.Background(), frame("a", 0, d1, d2))
			So(err, ShouldBeNil)
			So(res.Tracks, ShouldHaveLength, 1)
			So(res.Skipped, ShouldEqual, 0)
		})
	})
}

func TestService_ROI(t *testing.T) {
	Convey("Given a service without a ROI", t, func() {
		svc := newService()
		ctx := context.Background()

		Convey("Then the ROI is undefined", func() {
			roi := svc.DescribeROI(ctx)
			So(roi.Defined, ShouldBeFalse)
			So(roi.Points, ShouldBeEmpty)
		})

		Convey("When a valid ROI is set", func() {
			roi, err := svc.SetROI(ctx, square)

			Convey("Then it is described", func() {
				So(err, ShouldBeNil)
				So(roi.Defined, ShouldBeTrue)
				So(roi.Simple, ShouldBeTrue)
				So(roi.Area, ShouldEqual, 640000)
				So(roi.Vertices, ShouldEqual, 4)
			})

			Convey("And it can be cleared with an empty polygon", func() {
				roi, err := svc.SetROI(ctx, nil)
				So(err, ShouldBeNil)
				So(roi.Defined, ShouldBeFalse)
				So(svc.ROI(), ShouldBeEmpty)
			})
		})

		Convey("When a bow-tie ROI is set", func() {
			roi, err := svc.SetROI(ctx, geometry.Polygon{{X: 0, Y: 0}, {X: 10, Y: 10}, {X: 10, Y: 0}, {X: 0, Y: 10}})

			Convey("Then it is accepted but reported as not simple", func() {
				So(err, ShouldBeNil)
				So(roi.Simple, ShouldBeFalse)
				So(roi.Problem, ShouldNotBeEmpty)
			})
		})

		Convey("When an ROI with two vertices is set", func() {
			_, err := svc.SetROI(ctx, geometry.Polygon{{X: 0, Y: 0}, {X: 10, Y: 10}})

			Convey("Then it is rejected and the old ROI stays", func() {
				So(errors.Is(err, geometry.ErrInvalidPolygon), ShouldBeTrue)
				So(svc.ROI(), ShouldBeEmpty)
			})
		})
	})
}

func TestService_Reset(t *testing.T) {
	Convey("Given a service with tracks and counters", t, func() {
		ids := trackstore.NewIDAllocator()
		pub := &recordingPublisher{}
		svc := newService(
			service.WithEngineConfig(wideConfig()),
			service.WithROI(square),
			service.WithIDAllocator(ids),
			service.WithPublisher(pub),
		)
		ctx := context.Background()
		_, err := svc.Tick(ctx, frame("a", 0, det("car", 50, 50)))
		So(err, ShouldBeNil)
		_, err = svc.Tick(ctx, frame("b", 1000, det("car", 500, 500)))
		So(err, ShouldBeNil)
		svc.SeenAndRecord(ctx, "b")
		before := svc.SessionID()

		Convey("When the service is reset", func() {
			snap := svc.Reset(ctx)

			Convey("Then counters and tracks are cleared under a new session", func() {
				So(snap.Entered, ShouldEqual, 0)
				So(snap.Tracks, ShouldBeEmpty)
				So(snap.SessionID, ShouldNotEqual, before)
				So(svc.Counters(ctx).Entered, ShouldEqual, 0)
				_, ok := svc.LastApplied()
				So(ok, ShouldBeFalse)
			})

			Convey("And the ROI and dedupe window behave as documented", func() {
				So(svc.ROI(), ShouldResemble, square)
				So(svc.Size(), ShouldEqual, 0)
			})

			Convey("And subscribers see the reset", func() {
				So(pub.last().SessionID, ShouldEqual, snap.SessionID)
			})

			Convey("And track ids keep counting", func() {
				res, err := svc.Tick(ctx, frame("c", 0, det("car", 50, 50)))
				So(err, ShouldBeNil)
				So(res.Tracks[0].ID, ShouldEqual, 2)
			})
		})
	})
}

func TestService_Crossings(t *testing.T) {
	Convey("Given a service whose journal holds crossings", t, func() {
		journal := repository.NewMemoryJournal()
		svc := newService(service.WithJournal(journal))
		ctx := context.Background()
		So(journal.Append(ctx, []model.Crossing{
			{SessionID: "s", TrackID: 1, Label: "car", Direction: model.DirectionEntered, Timestamp: 1000},
			{SessionID: "s", TrackID: 1, Label: "car", Direction: model.DirectionExited, Timestamp: 2000},
		}), ShouldBeNil)

		Convey("Then they are returned newest first", func() {
			got, err := svc.Crossings(ctx, 10)
			So(err, ShouldBeNil)
			So(got, ShouldHaveLength, 2)
			So(got[0].Direction, ShouldEqual, "exited")
			So(got[1].TS, ShouldEqual, 1000)
		})

		Convey("And a non-positive limit is rejected", func() {
			_, err := svc.Crossings(ctx, 0)
			So(errors.Is(err, repository.ErrInvalidLimit), ShouldBeTrue)
		})

		Convey("And stats report the journal size", func() {
			So(svc.GetStats()["journalEntries"], ShouldEqual, 2)
		})
	})
}
