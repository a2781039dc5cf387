package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/zonetrack/internal/domain/geometry"
	"github.com/okian/zonetrack/internal/domain/model"
	"github.com/okian/zonetrack/pkg/logger"
)

func crossing(session string, track int64, dir model.Direction, ts int64) model.Crossing {
	return model.Crossing{
		SessionID: session,
		TrackID:   track,
		Label:     "car",
		Direction: dir,
		Timestamp: ts,
		Position:  geometry.Point{X: float64(track), Y: float64(ts)},
	}
}

func journals(t *testing.T) map[string]Journal {
	t.Helper()
	if err := logger.Init(); err != nil {
		t.Fatalf("init logger: %v", err)
	}
	ctx := context.Background()
	sqlite, err := NewSQLiteJournal(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite journal: %v", err)
	}
	t.Cleanup(func() { _ = sqlite.Close() })
	return map[string]Journal{
		"memory": NewMemoryJournal(),
		"sqlite": sqlite,
	}
}

func TestJournal_AppendAndRecent(t *testing.T) {
	ctx := context.Background()
	for name, j := range journals(t) {
		t.Run(name, func(t *testing.T) {
			if n := j.Count(ctx); n != 0 {
				t.Fatalf("expected empty journal, got %d", n)
			}
			if err := j.Append(ctx, nil); err != nil {
				t.Fatalf("empty append: %v", err)
			}

			in := []model.Crossing{
				crossing("s1", 1, model.DirectionEntered, 1000),
				crossing("s1", 1, model.DirectionExited, 2000),
				crossing("s1", 2, model.DirectionEntered, 3000),
			}
			if err := j.Append(ctx, in); err != nil {
				t.Fatalf("append: %v", err)
			}
			if n := j.Count(ctx); n != 3 {
				t.Errorf("expected count 3, got %d", n)
			}

			got, err := j.Recent(ctx, 2)
			if err != nil {
				t.Fatalf("recent: %v", err)
			}
			if len(got) != 2 {
				t.Fatalf("expected 2 crossings, got %d", len(got))
			}
			if got[0] != in[2] || got[1] != in[1] {
				t.Errorf("expected newest first, got %+v", got)
			}

			all, err := j.Recent(ctx, 100)
			if err != nil {
				t.Fatalf("recent: %v", err)
			}
			if len(all) != 3 {
				t.Errorf("expected 3 crossings, got %d", len(all))
			}

			if _, err := j.Recent(ctx, 0); !errors.Is(err, ErrInvalidLimit) {
				t.Errorf("expected ErrInvalidLimit, got %v", err)
			}
		})
	}
}

func TestJournal_Totals(t *testing.T) {
	ctx := context.Background()
	for name, j := range journals(t) {
		t.Run(name, func(t *testing.T) {
			_ = j.Append(ctx, []model.Crossing{
				crossing("s1", 1, model.DirectionEntered, 1),
				crossing("s1", 1, model.DirectionExited, 2),
				crossing("s1", 2, model.DirectionEntered, 3),
				crossing("s2", 9, model.DirectionEntered, 4),
			})

			s1, err := j.Totals(ctx, "s1")
			if err != nil {
				t.Fatalf("totals: %v", err)
			}
			if s1 != (model.Counters{Entered: 2, Exited: 1}) {
				t.Errorf("unexpected s1 totals %+v", s1)
			}

			all, _ := j.Totals(ctx, "")
			if all != (model.Counters{Entered: 3, Exited: 1}) {
				t.Errorf("unexpected overall totals %+v", all)
			}

			none, _ := j.Totals(ctx, "missing")
			if none != (model.Counters{}) {
				t.Errorf("expected zero totals, got %+v", none)
			}
		})
	}
}

func TestJournal_Closed(t *testing.T) {
	ctx := context.Background()
	for name, j := range journals(t) {
		t.Run(name, func(t *testing.T) {
			if err := j.Close(); err != nil {
				t.Fatalf("close: %v", err)
			}
			if err := j.Append(ctx, []model.Crossing{crossing("s", 1, model.DirectionEntered, 1)}); !errors.Is(err, ErrClosed) {
				t.Errorf("expected ErrClosed, got %v", err)
			}
			if _, err := j.Recent(ctx, 1); !errors.Is(err, ErrClosed) {
				t.Errorf("expected ErrClosed, got %v", err)
			}
			if err := j.Close(); err != nil {
				t.Errorf("second close: %v", err)
			}
		})
	}
}

func TestMemoryJournal_RingEviction(t *testing.T) {
	ctx := context.Background()
	j := NewMemoryJournal(WithRingSize(3))

	for i := int64(1); i <= 5; i++ {
		_ = j.Append(ctx, []model.Crossing{crossing("s", i, model.DirectionEntered, i)})
	}

	if n := j.Count(ctx); n != 3 {
		t.Errorf("expected ring to hold 3, got %d", n)
	}
	got, _ := j.Recent(ctx, 10)
	if len(got) != 3 || got[0].TrackID != 5 || got[2].TrackID != 3 {
		t.Errorf("unexpected ring contents %+v", got)
	}
	// totals survive eviction
	totals, _ := j.Totals(ctx, "s")
	if totals.Entered != 5 {
		t.Errorf("expected 5 entered, got %d", totals.Entered)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	if err := logger.Init(); err != nil {
		t.Fatalf("init logger: %v", err)
	}

	j, err := Open(ctx, DriverMemory, "", 10)
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	if _, ok := j.(*MemoryJournal); !ok {
		t.Errorf("expected *MemoryJournal, got %T", j)
	}

	j, err = Open(ctx, DriverSQLite, ":memory:", 0)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	_ = j.Close()

	if _, err := Open(ctx, "postgres", "", 0); !errors.Is(err, ErrUnknownDriver) {
		t.Errorf("expected ErrUnknownDriver, got %v", err)
	}
}
