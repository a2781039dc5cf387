// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	framequeue "github.com/okian/zonetrack/internal/adapters/mq/queue"
	tickworker "github.com/okian/zonetrack/internal/adapters/mq/worker"
	repository "github.com/okian/zonetrack/internal/adapters/repository"
	"github.com/okian/zonetrack/internal/domain/dedupe"
	"github.com/okian/zonetrack/internal/domain/filter"
	"github.com/okian/zonetrack/internal/domain/geometry"
	"github.com/okian/zonetrack/internal/domain/model"
	"github.com/okian/zonetrack/internal/domain/trackstore"
	"github.com/okian/zonetrack/internal/domain/types"
	"github.com/okian/zonetrack/internal/domain/zone"
	"github.com/okian/zonetrack/internal/engine"
	"github.com/okian/zonetrack/pkg/logger"
	"github.com/okian/zonetrack/pkg/metrics"
)

// Default service configuration constants.
const (
	defaultQueueSize       = 1
	defaultDedupeSize      = 4096
	defaultShutdownTimeout = 5 * time.Second
)

// Service owns the tracking engine and implements the API dependencies.
//
// The engine is not safe for concurrent use; every call into it goes through
// engineMu. The latest result is published through an atomic pointer so
// readers never wait on a tick.
type Service struct {
	mu sync.RWMutex

	// Core components
	engineMu   sync.Mutex
	engine     *engine.Engine
	latest     atomic.Pointer[engine.Result]
	deduper    dedupe.Deduper
	filter     *filter.Filter
	journal    repository.Journal
	frameQueue *framequeue.InMemoryQueue
	worker     *tickworker.TickWorker
	publishers []tickworker.Publisher
	publishMu  sync.Mutex // orders tick publishes against resets

	roiMu sync.RWMutex
	roi   geometry.Polygon

	// Configuration
	engineCfg   engine.Config
	queueSize   int
	dedupeSize  int
	filterOpts  []filter.Option
	ids         *trackstore.IDAllocator
	initialROI  geometry.Polygon
	shutdownTTL time.Duration

	// State
	started bool
	cancel  context.CancelFunc

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithQueueSize sets how many frames may wait for the tick worker.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many recent frame ids are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithEngineConfig sets the engine tunables.
func WithEngineConfig(cfg engine.Config) Option {
	return func(s *Service) {
		s.engineCfg = cfg
	}
}

// WithJournal records crossings in j. The caller keeps ownership of j.
func WithJournal(j repository.Journal) Option {
	return func(s *Service) {
		if j != nil {
			s.journal = j
		}
	}
}

// WithROI sets the initial region of interest.
func WithROI(poly geometry.Polygon) Option {
	return func(s *Service) {
		s.initialROI = poly.Clone()
	}
}

// WithFilter configures the detection filter applied before every tick.
func WithFilter(opts ...filter.Option) Option {
	return func(s *Service) {
		s.filterOpts = append(s.filterOpts, opts...)
	}
}

// WithIDAllocator shares a track id allocator with the engine.
func WithIDAllocator(ids *trackstore.IDAllocator) Option {
	return func(s *Service) {
		s.ids = ids
	}
}

// WithPublisher adds a subscriber for every tick result and reset.
func WithPublisher(p tickworker.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publishers = append(s.publishers, p)
		}
	}
}

// WithShutdownTimeout bounds how long Stop waits for the in-flight tick.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.shutdownTTL = d
		}
	}
}

// New constructs a Service. It fails when the engine configuration or the
// initial region of interest is invalid.
func New(opts ...Option) (*Service, error) {
	s := &Service{
		engineCfg:   engine.DefaultConfig(),
		queueSize:   defaultQueueSize,
		dedupeSize:  defaultDedupeSize,
		shutdownTTL: defaultShutdownTimeout,
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	var engineOpts []engine.Option
	if s.ids != nil {
		engineOpts = append(engineOpts, engine.WithIDAllocator(s.ids))
	}
	eng, err := engine.New(s.engineCfg, engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}
	s.engine = eng

	if len(s.initialROI) > 0 {
		if _, err := geometry.DescribeROI(s.initialROI); err != nil {
			return nil, fmt.Errorf("initial roi: %w", err)
		}
		s.roi = s.initialROI
	}
	metrics.UpdateROIVertices(len(s.roi))

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.filter = filter.New(s.filterOpts...)
	if s.journal == nil {
		s.journal = repository.NewMemoryJournal()
	}

	snap := eng.Snapshot()
	s.latest.Store(&snap)
	return s, nil
}

// Start creates the frame queue and launches the tick worker.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting tracking service...")

	s.frameQueue = framequeue.NewInMemoryQueue(framequeue.WithCapacity(s.queueSize))

	workerOpts := []tickworker.Option{
		tickworker.WithName("tick"),
		tickworker.WithJournal(s.journal),
	}
	if len(s.publishers) > 0 {
		workerOpts = append(workerOpts, tickworker.WithPublisher(sessionPublisher{s}))
	}
	s.worker = tickworker.NewTickWorker(s.frameQueue, s, workerOpts...)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	go s.worker.Run(runCtx)

	s.started = true
	s.logger.Info(ctx, "tracking service started",
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.String("association", s.engineCfg.Association),
		logger.String("session", s.SessionID()),
	)

	return nil
}

// Stop gracefully shuts down the service. Frames still queued are dropped.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTTL)
	defer cancel()

	s.logger.Info(ctx, "stopping tracking service...")

	if err := s.worker.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "tick worker did not stop in time", logger.Error(err))
	}
	s.cancel()
	_ = s.frameQueue.Close()

	s.started = false
	s.logger.Info(ctx, "tracking service stopped")
}

// Tick filters the frame and applies it to the engine with the current
// region of interest. It is called by the tick worker.
func (s *Service) Tick(ctx context.Context, f model.Frame) (engine.Result, error) { //nolint:gocritic // hugeParam: Frame is passed by value for channel semantics
	dets, dropped := s.filter.Apply(f.Detections)
	if dropped > 0 {
		metrics.RecordDetectionsFiltered(dropped)
	}
	roi := s.ROI()

	s.engineMu.Lock()
	defer s.engineMu.Unlock()

	res, err := s.engine.Tick(dets, f.Timestamp, roi)
	if err != nil {
		return engine.Result{}, err
	}
	latest := res
	s.latest.Store(&latest)
	return res, nil
}

// LastApplied returns the timestamp of the last tick in the current session.
func (s *Service) LastApplied() (int64, bool) {
	s.engineMu.Lock()
	defer s.engineMu.Unlock()

	if s.engine.Ticks() == 0 {
		return 0, false
	}
	return s.engine.LastTimestamp(), true
}

// SeenAndRecord atomically checks if a frame id was seen and records it if not.
// Returns true if the frame was already seen, false if it was newly recorded.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	seen := s.deduper.SeenAndRecord(ctx, id)
	if seen {
		metrics.RecordFrameDuplicate()
	}
	return seen
}

// Unrecord removes a frame ID from the seen list, allowing it to be retried.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.deduper.Unrecord(ctx, id)
}

// Enqueue submits a frame for the tick worker and returns the id it was
// queued under. Frames without an id get a random one. A full queue returns
// framequeue.ErrFull; a stopped service returns framequeue.ErrClosed.
func (s *Service) Enqueue(ctx context.Context, f model.Frame) (string, error) { //nolint:gocritic // hugeParam: Frame is passed by value for channel semantics
	s.mu.RLock()
	defer s.mu.RUnlock()

	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if !s.started || s.frameQueue.IsClosed() {
		return f.ID, fmt.Errorf("enqueue frame %s: %w", f.ID, framequeue.ErrClosed)
	}

	s.logger.Debug(ctx, "enqueueing frame",
		logger.String("frame_id", f.ID),
		logger.Int64("ts", f.Timestamp),
		logger.Int("detections", len(f.Detections)),
	)
	if !s.frameQueue.Enqueue(ctx, f) {
		if s.frameQueue.IsClosed() {
			return f.ID, fmt.Errorf("enqueue frame %s: %w", f.ID, framequeue.ErrClosed)
		}
		return f.ID, fmt.Errorf("enqueue frame %s: %w", f.ID, framequeue.ErrFull)
	}
	return f.ID, nil
}

// Latest returns the result of the most recent tick or reset.
func (s *Service) Latest() engine.Result {
	return *s.latest.Load()
}

// Snapshot returns the latest tracks and cumulative counters.
func (s *Service) Snapshot(ctx context.Context) types.Snapshot {
	return types.SnapshotFromResult(s.Latest())
}

// Counters returns the cumulative counters plus the current occupancy of
// the region of interest.
func (s *Service) Counters(ctx context.Context) types.Counters {
	res := s.Latest()
	out := types.Counters{
		SessionID: res.SessionID,
		Entered:   res.Entered,
		Exited:    res.Exited,
		Inside:    zone.Occupancy(res.Tracks, s.ROI()),
	}
	totals, err := s.journal.Totals(ctx, res.SessionID)
	if err != nil {
		s.logger.Warn(ctx, "journal totals unavailable", logger.String("session", res.SessionID), logger.Error(err))
		return out
	}
	out.Journaled = &types.JournalTotals{Entered: totals.Entered, Exited: totals.Exited}
	return out
}

// ROI returns a copy of the current region of interest.
func (s *Service) ROI() geometry.Polygon {
	s.roiMu.RLock()
	defer s.roiMu.RUnlock()
	return s.roi.Clone()
}

// DescribeROI returns the current region of interest with its properties.
func (s *Service) DescribeROI(ctx context.Context) types.ROI {
	poly := s.ROI()
	out := types.ROI{Points: []geometry.Point(poly), Vertices: len(poly)}
	if out.Points == nil {
		out.Points = []geometry.Point{}
	}
	if info, err := geometry.DescribeROI(poly); err == nil {
		out.Defined = true
		out.Area = info.Area
		out.Simple = info.Simple
		out.Problem = info.Problem
	}
	return out
}

// SetROI replaces the region of interest used from the next tick on. An
// empty polygon disables zone analytics. Anything else must pass
// geometry.DescribeROI.
func (s *Service) SetROI(ctx context.Context, poly geometry.Polygon) (types.ROI, error) {
	if len(poly) > 0 {
		if _, err := geometry.DescribeROI(poly); err != nil {
			return types.ROI{}, err
		}
	}

	s.roiMu.Lock()
	s.roi = poly.Clone()
	s.roiMu.Unlock()

	metrics.UpdateROIVertices(len(poly))
	s.logger.Info(ctx, "region of interest updated", logger.Int("vertices", len(poly)))
	return s.DescribeROI(ctx), nil
}

// Crossings returns up to limit journal entries, newest first.
func (s *Service) Crossings(ctx context.Context, limit int) ([]types.Crossing, error) {
	crossings, err := s.journal.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	return types.CrossingsFromModel(crossings), nil
}

// Reset re-initializes the engine: tracks are cleared, counters return to
// zero and a new session begins. Track ids keep counting and the region of
// interest is kept. Remembered frame ids are forgotten.
func (s *Service) Reset(ctx context.Context) types.Snapshot {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.engineMu.Lock()
	previous := s.engine.SessionID()
	s.engine.Reset()
	snap := s.engine.Snapshot()
	s.latest.Store(&snap)
	s.engineMu.Unlock()

	s.deduper.Reset(ctx)
	metrics.RecordEngineReset()
	metrics.UpdateTracksActive(0)
	s.logger.Info(ctx, "engine reset",
		logger.String("previous_session", previous),
		logger.String("session", snap.SessionID),
	)

	for _, p := range s.publishers {
		p.Publish(ctx, snap)
	}
	return types.SnapshotFromResult(snap)
}

// sessionPublisher forwards tick results from the worker, dropping results
// computed before the last reset.
type sessionPublisher struct {
	s *Service
}

func (p sessionPublisher) Publish(ctx context.Context, res engine.Result) { //nolint:gocritic // hugeParam: Result is a value snapshot
	p.s.publishMu.Lock()
	defer p.s.publishMu.Unlock()

	if current := p.s.SessionID(); res.SessionID != current {
		p.s.logger.Debug(ctx, "dropping result from a previous session",
			logger.String("session", res.SessionID),
			logger.String("current", current),
		)
		return
	}
	for _, pub := range p.s.publishers {
		pub.Publish(ctx, res)
	}
}

// SessionID identifies the current counter session.
func (s *Service) SessionID() string {
	return s.Latest().SessionID
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()

	s.engineMu.Lock()
	state := s.engine.State()
	ticks := s.engine.Ticks()
	s.engineMu.Unlock()

	res := s.Latest()
	stats := map[string]interface{}{
		"started":        s.started,
		"queueSize":      s.queueSize,
		"dedupeSize":     s.dedupeSize,
		"dedupeEntries":  s.Size(),
		"association":    s.engineCfg.Association,
		"sessionID":      res.SessionID,
		"state":          string(state),
		"ticks":          ticks,
		"tracks":         len(res.Tracks),
		"entered":        res.Entered,
		"exited":         res.Exited,
		"roiVertices":    len(s.ROI()),
		"journalEntries": s.journal.Count(ctx),
	}

	if s.started {
		queueLen := s.frameQueue.Len(ctx)
		stats["queueLength"] = queueLen
		metrics.UpdateQueueSize(queueLen)
	}

	return stats
}

// Size returns the current number of entries in the deduper.
func (s *Service) Size() int64 {
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}
