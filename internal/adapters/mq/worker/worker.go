// Package worker drains the frame queue and drives the tracking engine one
// tick at a time.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/zonetrack/internal/domain/model"
	"github.com/okian/zonetrack/internal/engine"
	"github.com/okian/zonetrack/pkg/logger"
	"github.com/okian/zonetrack/pkg/metrics"
)

// Frame abstracts what workers read off the queue.
type Frame = model.Frame

// Ticker applies one frame to the engine. Implementations own the region of
// interest and any pre-filtering.
type Ticker interface {
	Tick(ctx context.Context, f Frame) (engine.Result, error)
	// LastApplied returns the timestamp of the last applied tick in the
	// current session and false when nothing has been applied yet.
	LastApplied() (int64, bool)
}

// Journal persists crossings emitted by a tick.
type Journal interface {
	Append(ctx context.Context, crossings []model.Crossing) error
}

// Publisher receives every successful tick result.
type Publisher interface {
	Publish(ctx context.Context, res engine.Result)
}

// Queue defines how workers receive frames.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Frame
}

// Worker processes frames until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	Shutdown(ctx context.Context) error
}

// TickWorker is the single consumer of the frame queue. Having exactly one
// keeps exactly one tick in flight.
type TickWorker struct {
	queue      Queue
	ticker     Ticker
	journal    Journal
	publishers []Publisher
	name       string

	// Shutdown control
	shutdown chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	logger logger.Logger
}

// NewTickWorker creates a new worker with configuration options.
func NewTickWorker(queue Queue, ticker Ticker, opts ...Option) *TickWorker {
	w := &TickWorker{
		queue:    queue,
		ticker:   ticker,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop.
func (w *TickWorker) Run(ctx context.Context) {
	defer close(w.done)

	frames := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case f, ok := <-frames:
			if !ok {
				return
			}
			if err := w.processFrame(ctx, f); err != nil {
				w.logger.Error(ctx, "error processing frame",
					logger.String("frame_id", f.ID),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *TickWorker) Shutdown(ctx context.Context) error {
	w.stopOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed once Run returns.
func (w *TickWorker) Done() <-chan struct{} {
	return w.done
}

// processFrame ticks the engine with one frame and fans the result out.
func (w *TickWorker) processFrame(ctx context.Context, f Frame) error { //nolint:gocritic // hugeParam: Frame is passed by value for channel semantics
	if last, ok := w.ticker.LastApplied(); ok && f.Timestamp < last {
		metrics.RecordFrameStale()
		w.logger.Warn(ctx, "dropping out-of-order frame",
			logger.String("frame_id", f.ID),
			logger.Int64("ts", f.Timestamp),
			logger.Int64("last_ts", last),
		)
		return nil
	}

	start := time.Now()
	res, err := w.ticker.Tick(ctx, f)
	latency := float64(time.Since(start).Microseconds()) / 1000
	if err != nil {
		metrics.RecordTickRejected()
		metrics.RecordErrorByComponent("worker", "tick_rejected")
		metrics.RecordErrorByType("tick_rejected", "medium")
		return fmt.Errorf("tick frame %s: %w", f.ID, err)
	}

	metrics.RecordTick(latency)
	metrics.UpdateTracksActive(len(res.Tracks))
	metrics.RecordTracksCreated(res.Created)
	metrics.RecordTracksRetired(res.Retired)
	metrics.RecordDetections(len(f.Detections), res.Skipped)
	metrics.RecordZoneCrossings(res.EnteredDelta, res.ExitedDelta)

	if res.Skipped > 0 {
		w.logger.Debug(ctx, "skipped malformed detections",
			logger.String("frame_id", f.ID),
			logger.Int("skipped", res.Skipped),
		)
	}

	if w.journal != nil && len(res.Crossings) > 0 {
		if err := w.journal.Append(ctx, res.Crossings); err != nil {
			// the tick is applied; only history is lost
			metrics.RecordErrorByComponent("worker", "journal_error")
			w.logger.Error(ctx, "journal append failed",
				logger.String("frame_id", f.ID),
				logger.Int("crossings", len(res.Crossings)),
				logger.Error(err),
			)
		}
	}

	for _, p := range w.publishers {
		p.Publish(ctx, res)
	}
	return nil
}
