// Package replay feeds recorded or generated detection frames through the
// tracking engine, either in-process or against a running service.
package replay

import (
	"time"

	"github.com/okian/zonetrack/internal/domain/geometry"
	"github.com/okian/zonetrack/internal/engine"
)

// Replay modes.
const (
	ModeLocal = "local"
	ModeHTTP  = "http"
)

// Config holds configuration for a replay run.
type Config struct {
	Mode    string        // ModeLocal or ModeHTTP
	Input   string        // JSON-lines frame file; empty generates a scenario
	Output  string        // summary file; empty skips writing
	Save    string        // where to write generated frames; empty skips
	BaseURL string        // service URL in HTTP mode
	Timeout time.Duration // HTTP request timeout
	Reset   bool          // POST /reset before replaying
	Retries int           // attempts per frame on backpressure

	Engine engine.Config    // tunables in local mode
	ROI    geometry.Polygon // nil keeps the service ROI in HTTP mode

	Generate GenerateOptions
	Verbose  bool
}

// Summary is what a replay reports.
type Summary struct {
	Mode      string        `json:"mode"`
	Frames    int           `json:"frames"`
	Accepted  int           `json:"accepted"`
	Duplicate int           `json:"duplicate"`
	Rejected  int           `json:"rejected"`
	Skipped   int           `json:"skipped"`
	Created   int           `json:"created"`
	Retired   int           `json:"retired"`
	SessionID string        `json:"session_id"`
	Entered   int64         `json:"entered"`
	Exited    int64         `json:"exited"`
	Tracks    int           `json:"tracks"`
	Duration  time.Duration `json:"duration"`
}
