package replay

import (
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/okian/zonetrack/internal/domain/types"
)

// Scenario layout on the 0..1000 plane.
const (
	sweepStart = 20.0
	sweepEnd   = 980.0
	laneTop    = 150.0
	laneSpan   = 700.0
	laneSingle = 500.0
	boxHalf    = 10.0

	defaultObjects     = 5
	defaultFrames      = 60
	defaultFrameUnitMs = 1000
)

var scenarioLabels = []string{"car", "person", "truck"}

// GenerateOptions shapes a synthetic scenario.
type GenerateOptions struct {
	Objects     int     // objects crossing the plane left to right
	Frames      int     // frames in the sweep, at least 2
	FrameUnitMs int64   // timestamp step between frames
	Seed        uint64  // drives frame ids and jitter
	Jitter      float64 // max centroid offset per axis, 0 disables
}

func (o GenerateOptions) withDefaults() GenerateOptions {
	if o.Objects <= 0 {
		o.Objects = defaultObjects
	}
	if o.Frames < 2 {
		o.Frames = defaultFrames
	}
	if o.FrameUnitMs <= 0 {
		o.FrameUnitMs = defaultFrameUnitMs
	}
	return o
}

// Generate builds a deterministic scenario: every object travels along its
// own horizontal lane from x=20 to x=980, lanes spread evenly over
// y=150..850. The same options always yield the same frames.
func Generate(opts GenerateOptions) []types.FrameRequest {
	opts = opts.withDefaults()
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))

	step := (sweepEnd - sweepStart) / float64(opts.Frames-1)
	frames := make([]types.FrameRequest, opts.Frames)
	for i := range frames {
		x := sweepStart + float64(i)*step
		dets := make([]types.Detection, opts.Objects)
		for j := range dets {
			cx, cy := x, lane(j, opts.Objects)
			if opts.Jitter > 0 {
				cx += (rng.Float64()*2 - 1) * opts.Jitter
				cy += (rng.Float64()*2 - 1) * opts.Jitter
			}
			dets[j] = types.Detection{
				Label: scenarioLabels[j%len(scenarioLabels)],
				Box:   []float64{clamp(cy - boxHalf), clamp(cx - boxHalf), clamp(cy + boxHalf), clamp(cx + boxHalf)},
			}
		}
		frames[i] = types.FrameRequest{
			FrameID:    frameID(opts.Seed, i),
			TS:         int64(i) * opts.FrameUnitMs,
			Detections: dets,
		}
	}
	return frames
}

func lane(j, n int) float64 {
	if n == 1 {
		return laneSingle
	}
	return laneTop + float64(j)*laneSpan/float64(n-1)
}

func clamp(v float64) float64 {
	return min(max(v, 0), 1000)
}

func frameID(seed uint64, i int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, fmt.Appendf(nil, "zonetrack/%d/%d", seed, i)).String()
}
