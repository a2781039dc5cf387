package trackstore_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/okian/zonetrack/internal/domain/association"
	"github.com/okian/zonetrack/internal/domain/geometry"
	"github.com/okian/zonetrack/internal/domain/model"
	"github.com/okian/zonetrack/internal/domain/trackstore"
	. "github.com/smartystreets/goconvey/convey"
)

func boxAt(x, y float64) geometry.BoundingBox {
	return geometry.BoundingBox{YMin: y - 10, XMin: x - 10, YMax: y + 10, XMax: x + 10}
}

func det(label string, x, y float64) model.Detection {
	return model.Detection{Label: label, Box: boxAt(x, y)}
}

func newStore(cfg trackstore.Config, opts ...trackstore.Option) *trackstore.Store {
	s, err := trackstore.New(cfg, opts...)
	So(err, ShouldBeNil)
	return s
}

// spawnAll runs one Apply that creates a track per detection and installs it.
func spawnAll(s *trackstore.Store, dets []model.Detection, ts int64) []model.Track {
	res := association.Result{}
	for i := range dets {
		res.UnmatchedDetections = append(res.UnmatchedDetections, i)
	}
	next, _ := s.Apply(s.Current(), res, dets, ts)
	s.Replace(next)
	return next
}

func TestConfig(t *testing.T) {
	Convey("Given store tunables", t, func() {
		So(trackstore.DefaultConfig().Validate(), ShouldBeNil)
		So(trackstore.DefaultConfig().DropoutWindow(), ShouldEqual, 5000)

		bad := []trackstore.Config{
			{MaxDropoutTicks: -1, TrajectoryCapacity: 1, FrameUnitMs: 1},
			{MaxDropoutTicks: 0, TrajectoryCapacity: 0, FrameUnitMs: 1},
			{MaxDropoutTicks: 0, TrajectoryCapacity: 1, FrameUnitMs: 0},
		}
		for _, c := range bad {
			_, err := trackstore.New(c)
			So(errors.Is(err, trackstore.ErrInvalidConfig), ShouldBeTrue)
		}
	})
}

func TestSpawn(t *testing.T) {
	Convey("Given an empty store", t, func() {
		s := newStore(trackstore.DefaultConfig())

		next := spawnAll(s, []model.Detection{det("car", 100, 100), det("bus", 500, 500)}, 1000)

		Convey("Then each detection becomes a track in input order", func() {
			So(next, ShouldHaveLength, 2)
			So(next[0].ID, ShouldEqual, 1)
			So(next[1].ID, ShouldEqual, 2)
			So(next[0].Label, ShouldEqual, "car")
			So(next[1].Box, ShouldResemble, boxAt(500, 500))
			So(next[0].Trajectory, ShouldResemble, []geometry.Point{{X: 100, Y: 100}})
			So(next[1].LastSeen, ShouldEqual, 1000)
		})

		Convey("Then colors are a function of the id", func() {
			So(next[0].Color, ShouldEqual, s.ColorFor(1))
			So(next[1].Color, ShouldEqual, trackstore.DefaultPalette[2])
		})
	})

	Convey("Given a custom palette", t, func() {
		s := newStore(trackstore.DefaultConfig(), trackstore.WithPalette([]string{"red", "blue"}))
		next := spawnAll(s, []model.Detection{det("car", 1, 1), det("car", 900, 900), det("car", 500, 500)}, 0)

		So(next[0].Color, ShouldEqual, "blue")
		So(next[1].Color, ShouldEqual, "red")
		So(next[2].Color, ShouldEqual, "blue")
	})
}

func TestUpdate(t *testing.T) {
	Convey("Given a store with one track", t, func() {
		cfg := trackstore.DefaultConfig()
		cfg.TrajectoryCapacity = 3
		s := newStore(cfg)
		spawnAll(s, []model.Detection{det("car", 100, 100)}, 0)
		before := s.Snapshot()

		Convey("When it is matched several times", func() {
			for i := 1; i <= 5; i++ {
				dets := []model.Detection{det("car", 100+float64(i*10), 100)}
				res := association.Result{Matches: []association.Match{{Track: 0, Detection: 0}}}
				next, ch := s.Apply(s.Current(), res, dets, int64(i*100))
				So(ch.Updated, ShouldEqual, 1)
				s.Replace(next)
			}
			got := s.Snapshot()[0]

			Convey("Then identity is stable and the trajectory is capped", func() {
				So(got.ID, ShouldEqual, before[0].ID)
				So(got.Color, ShouldEqual, before[0].Color)
				So(got.LastSeen, ShouldEqual, 500)
				So(got.Box, ShouldResemble, boxAt(150, 100))
				So(got.Trajectory, ShouldResemble, []geometry.Point{{X: 130, Y: 100}, {X: 140, Y: 100}, {X: 150, Y: 100}})
			})
		})

		Convey("When Apply runs it leaves the input untouched", func() {
			cur := s.Current()
			res := association.Result{Matches: []association.Match{{Track: 0, Detection: 0}}}
			_, _ = s.Apply(cur, res, []model.Detection{det("car", 200, 200)}, 10)

			So(cur[0].Trajectory, ShouldHaveLength, 1)
			So(cur[0].Box, ShouldResemble, boxAt(100, 100))
			So(s.Snapshot(), ShouldResemble, before)
		})
	})
}

func TestRetirement(t *testing.T) {
	Convey("Given a track last seen at 1000ms", t, func() {
		s := newStore(trackstore.DefaultConfig())
		spawnAll(s, []model.Detection{det("car", 100, 100)}, 1000)
		idle := association.Result{UnmatchedTracks: []int{0}}

		Convey("Then it survives inside the dropout window", func() {
			next, ch := s.Apply(s.Current(), idle, nil, 5999)
			So(next, ShouldHaveLength, 1)
			So(ch.Retained, ShouldEqual, 1)
			So(next[0].LastSeen, ShouldEqual, 1000)
		})

		Convey("Then it is retired once the window has elapsed", func() {
			for _, ts := range []int64{6000, 6001} {
				next, ch := s.Apply(s.Current(), idle, nil, ts)
				So(next, ShouldBeEmpty)
				So(ch.RetiredIDs, ShouldResemble, []int64{1})
			}
		})

		Convey("Then a later detection gets a new id", func() {
			next, _ := s.Apply(s.Current(), idle, nil, 7000)
			s.Replace(next)
			next = spawnAll(s, []model.Detection{det("car", 100, 100)}, 7000)
			So(next[0].ID, ShouldEqual, 2)
		})
	})

	Convey("Given zero dropout ticks", t, func() {
		cfg := trackstore.DefaultConfig()
		cfg.MaxDropoutTicks = 0
		s := newStore(cfg)
		spawnAll(s, []model.Detection{det("car", 100, 100)}, 1000)

		next, _ := s.Apply(s.Current(), association.Result{UnmatchedTracks: []int{0}}, nil, 1000)
		So(next, ShouldBeEmpty)
	})
}

func TestIDAllocator(t *testing.T) {
	Convey("Given stores sharing an allocator", t, func() {
		ids := trackstore.NewIDAllocator()
		a := newStore(trackstore.DefaultConfig(), trackstore.WithIDAllocator(ids))
		b := newStore(trackstore.DefaultConfig(), trackstore.WithIDAllocator(ids))

		spawnAll(a, []model.Detection{det("car", 1, 1)}, 0)
		next := spawnAll(b, []model.Detection{det("car", 1, 1)}, 0)

		So(next[0].ID, ShouldEqual, 2)
		So(ids.Last(), ShouldEqual, 2)
		So(b.IDs(), ShouldPointTo, ids)
	})

	Convey("Given concurrent callers", t, func() {
		ids := trackstore.NewIDAllocator()
		var wg sync.WaitGroup
		seen := make(chan int64, 1000)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					seen <- ids.Next()
				}
			}()
		}
		wg.Wait()
		close(seen)

		unique := map[int64]bool{}
		for id := range seen {
			unique[id] = true
		}
		So(unique, ShouldHaveLength, 1000)
		So(ids.Last(), ShouldEqual, 1000)
	})
}
