// Package engine runs one tracking tick at a time: association, track
// lifecycle and zone analytics over a detection batch.
//
// The engine does no I/O, takes no locks and starts no goroutines. Callers
// must serialize Tick, Reset and the read accessors.
package engine

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/okian/zonetrack/internal/domain/association"
	"github.com/okian/zonetrack/internal/domain/geometry"
	"github.com/okian/zonetrack/internal/domain/model"
	"github.com/okian/zonetrack/internal/domain/trackstore"
	"github.com/okian/zonetrack/internal/domain/zone"
)

// DefaultMatchThreshold is the default association distance on the 0..1000 plane.
const DefaultMatchThreshold = 150.0

// Config holds every tracking tunable.
type Config struct {
	MatchThreshold     float64
	MaxDropoutTicks    int
	TrajectoryCapacity int
	FrameUnitMs        int64
	Association        string // association.KindGreedy or association.KindHungarian
}

// DefaultConfig returns the stock tunables.
func DefaultConfig() Config {
	return Config{
		MatchThreshold:     DefaultMatchThreshold,
		MaxDropoutTicks:    trackstore.DefaultMaxDropoutTicks,
		TrajectoryCapacity: trackstore.DefaultTrajectoryCapacity,
		FrameUnitMs:        trackstore.DefaultFrameUnitMs,
		Association:        association.KindGreedy,
	}
}

func (c Config) store() trackstore.Config {
	return trackstore.Config{
		MaxDropoutTicks:    c.MaxDropoutTicks,
		TrajectoryCapacity: c.TrajectoryCapacity,
		FrameUnitMs:        c.FrameUnitMs,
	}
}

// Validate checks the tunables.
func (c Config) Validate() error {
	if _, err := association.New(c.Association, c.MatchThreshold); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.store().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// State of the engine.
type State string

// Engine states.
const (
	StateIdle   State = "idle"   // no live tracks
	StateActive State = "active" // at least one live track
)

// Result is what one tick returns. Tracks is a deep copy and Entered/Exited
// are cumulative for the session.
type Result struct {
	SessionID string
	Timestamp int64
	Tracks    []model.Track
	Entered   int64
	Exited    int64

	// Per-tick bookkeeping.
	EnteredDelta int
	ExitedDelta  int
	Created      int
	Retired      int
	Skipped      int // malformed detections ignored this tick
	Crossings    []model.Crossing
}

// Counters returns the cumulative counters in the result.
func (r Result) Counters() model.Counters {
	return model.Counters{Entered: r.Entered, Exited: r.Exited}
}

// Engine is the tick façade over association, the track store and zone
// analytics.
type Engine struct {
	cfg          Config
	assoc        association.Associator
	store        *trackstore.Store
	ids          *trackstore.IDAllocator
	palette      []string
	newSessionID func() string

	sessionID string
	counters  model.Counters
	ticks     int64
	lastTS    int64
}

// New builds an idle engine.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:          cfg,
		newSessionID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.ids == nil {
		e.ids = trackstore.NewIDAllocator()
	}

	assoc, err := association.New(cfg.Association, cfg.MatchThreshold)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	e.assoc = assoc

	storeOpts := []trackstore.Option{trackstore.WithIDAllocator(e.ids)}
	if len(e.palette) > 0 {
		storeOpts = append(storeOpts, trackstore.WithPalette(e.palette))
	}
	store, err := trackstore.New(cfg.store(), storeOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	e.store = store
	e.sessionID = e.newSessionID()
	return e, nil
}

// Tick ingests one detection batch taken at ts (milliseconds) and evaluates
// crossings of poly. Timestamps must be non-decreasing across calls.
//
// Detections with inverted boxes or coordinates off the 0..1000 plane are
// skipped. Non-finite numbers anywhere in the input reject the whole tick
// with ErrInvalidInput and leave the engine unchanged.
func (e *Engine) Tick(detections []model.Detection, ts int64, poly geometry.Polygon) (Result, error) {
	if err := validate(detections, poly); err != nil {
		return Result{}, err
	}

	valid := detections
	skipped := 0
	for i := range detections {
		if !detections[i].Box.Valid() {
			skipped++
		}
	}
	if skipped > 0 {
		valid = make([]model.Detection, 0, len(detections)-skipped)
		for _, d := range detections {
			if d.Box.Valid() {
				valid = append(valid, d)
			}
		}
	}

	prev := e.store.Current()
	match := e.assoc.Associate(prev, valid)
	next, changes := e.store.Apply(prev, match, valid, ts)
	delta := zone.Evaluate(prev, next, poly)

	e.counters.Entered += int64(delta.Entered)
	e.counters.Exited += int64(delta.Exited)
	e.store.Replace(next)
	e.ticks++
	e.lastTS = ts

	res := e.snapshot()
	res.EnteredDelta = delta.Entered
	res.ExitedDelta = delta.Exited
	res.Created = changes.Created
	res.Retired = len(changes.RetiredIDs)
	res.Skipped = skipped
	if len(delta.Events) > 0 {
		res.Crossings = make([]model.Crossing, len(delta.Events))
		for i, ev := range delta.Events {
			res.Crossings[i] = model.Crossing{
				SessionID: e.sessionID,
				TrackID:   ev.TrackID,
				Label:     ev.Label,
				Direction: ev.Direction,
				Timestamp: ts,
				Position:  ev.Position,
			}
		}
	}
	return res, nil
}

func validate(detections []model.Detection, poly geometry.Polygon) error {
	for i, d := range detections {
		if !d.Box.Finite() {
			return fmt.Errorf("%w: detection %d has a non-finite box", ErrInvalidInput, i)
		}
		if d.Confidence != nil && (math.IsNaN(*d.Confidence) || math.IsInf(*d.Confidence, 0)) {
			return fmt.Errorf("%w: detection %d has a non-finite confidence", ErrInvalidInput, i)
		}
	}
	if !poly.Finite() {
		return fmt.Errorf("%w: polygon has a non-finite vertex", ErrInvalidInput)
	}
	return nil
}

// Snapshot returns the current tracks and cumulative counters without
// ticking.
func (e *Engine) Snapshot() Result {
	return e.snapshot()
}

func (e *Engine) snapshot() Result {
	return Result{
		SessionID: e.sessionID,
		Timestamp: e.lastTS,
		Tracks:    e.store.Snapshot(),
		Entered:   e.counters.Entered,
		Exited:    e.counters.Exited,
	}
}

// Reset re-initializes the engine: tracks are cleared, counters return to
// zero and a new session begins. The id allocator keeps counting.
func (e *Engine) Reset() {
	e.store.Clear()
	e.counters = model.Counters{}
	e.ticks = 0
	e.lastTS = 0
	e.sessionID = e.newSessionID()
}

// State reports whether the engine holds live tracks.
func (e *Engine) State() State {
	if e.store.Len() == 0 {
		return StateIdle
	}
	return StateActive
}

// Counters returns the cumulative counters.
func (e *Engine) Counters() model.Counters {
	return e.counters
}

// SessionID identifies the current counter session.
func (e *Engine) SessionID() string {
	return e.sessionID
}

// Ticks returns how many ticks were applied in this session.
func (e *Engine) Ticks() int64 {
	return e.ticks
}

// LastTimestamp returns the timestamp of the last applied tick, or 0.
func (e *Engine) LastTimestamp() int64 {
	return e.lastTS
}

// TrackCount returns the number of live tracks.
func (e *Engine) TrackCount() int {
	return e.store.Len()
}

// Config returns the engine tunables.
func (e *Engine) Config() Config {
	return e.cfg
}

// IDs returns the id allocator so a replacement engine can share it.
func (e *Engine) IDs() *trackstore.IDAllocator {
	return e.ids
}
