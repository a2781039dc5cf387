package replay

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/zonetrack/internal/domain/types"
	"github.com/okian/zonetrack/internal/engine"
	"github.com/okian/zonetrack/pkg/logger"
)

// RunLocal ticks an in-process engine once per frame. Frames that fail to
// convert or that the engine rejects are counted and skipped.
func RunLocal(ctx context.Context, cfg *Config, frames []types.FrameRequest) (Summary, error) {
	start := time.Now()
	log := logger.Get().Named("replay")

	eng, err := engine.New(cfg.Engine)
	if err != nil {
		return Summary{}, fmt.Errorf("create engine: %w", err)
	}

	sum := Summary{Mode: ModeLocal, Frames: len(frames), SessionID: eng.SessionID()}
	var last int64
	for i := range frames {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		f, err := frames[i].ToModel()
		if err != nil {
			sum.Rejected++
			log.Warn(ctx, "frame rejected", logger.Int("index", i), logger.Error(err))
			continue
		}
		if i > 0 && f.Timestamp < last {
			sum.Rejected++
			log.Warn(ctx, "frame out of order", logger.Int("index", i), logger.Int64("ts", f.Timestamp))
			continue
		}
		res, err := eng.Tick(f.Detections, f.Timestamp, cfg.ROI)
		if err != nil {
			sum.Rejected++
			log.Warn(ctx, "tick rejected", logger.Int("index", i), logger.Error(err))
			continue
		}
		last = f.Timestamp
		sum.Accepted++
		sum.Created += res.Created
		sum.Retired += res.Retired
		sum.Skipped += res.Skipped
		if cfg.Verbose {
			for _, c := range res.Crossings {
				log.Info(ctx, "crossing",
					logger.Int64("track", c.TrackID),
					logger.String("label", c.Label),
					logger.String("direction", string(c.Direction)),
					logger.Int64("ts", c.Timestamp))
			}
		}
	}

	c := eng.Counters()
	sum.Entered = c.Entered
	sum.Exited = c.Exited
	sum.Tracks = eng.TrackCount()
	sum.Duration = time.Since(start)
	return sum, nil
}
