// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/zonetrack/internal/adapters/mq/queue"
	"github.com/okian/zonetrack/internal/domain/geometry"
	"github.com/okian/zonetrack/internal/domain/model"
	"github.com/okian/zonetrack/internal/domain/types"
)

// Default maximum for GET /crossings?limit=N.
const defaultMaxCrossings = 1000

// FrameDependencies accepts detection frames.
type FrameDependencies interface {
	// SeenAndRecord reports whether the frame id was already accepted and
	// records it otherwise. Unrecord forgets it again.
	SeenAndRecord(ctx context.Context, id string) bool
	Unrecord(ctx context.Context, id string)

	// Enqueue hands the frame to the tick worker and returns the id it was
	// queued under. Fails with queue.ErrFull on backpressure.
	Enqueue(ctx context.Context, f model.Frame) (string, error)
}

// TrackDependencies exposes the latest engine output.
type TrackDependencies interface {
	Snapshot(ctx context.Context) types.Snapshot
	Counters(ctx context.Context) types.Counters
}

// ROIDependencies reads and replaces the region of interest.
type ROIDependencies interface {
	DescribeROI(ctx context.Context) types.ROI
	SetROI(ctx context.Context, poly geometry.Polygon) (types.ROI, error)
}

// CrossingDependencies reads the crossing journal.
type CrossingDependencies interface {
	Crossings(ctx context.Context, limit int) ([]types.Crossing, error)
}

// ResetDependencies re-initializes the engine.
type ResetDependencies interface {
	Reset(ctx context.Context) types.Snapshot
}

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	FrameDependencies
	TrackDependencies
	ROIDependencies
	CrossingDependencies
	ResetDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	framesHandler   *FramesHandler
	tracksHandler   *TracksHandler
	roiHandler      *ROIHandler
	crossingHandler *CrossingsHandler
	resetHandler    *ResetHandler
	feedHandler     *FeedHandler
}

// NewServer creates a new API server with all handlers. A nil feed disables
// the websocket stream.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxCrossings int, feed *Feed) *Server {
	if maxCrossings < 1 {
		maxCrossings = defaultMaxCrossings
	}
	s := &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		framesHandler:   NewFramesHandler(deps),
		tracksHandler:   NewTracksHandler(deps),
		roiHandler:      NewROIHandler(deps),
		crossingHandler: NewCrossingsHandler(deps, maxCrossings),
		resetHandler:    NewResetHandler(deps),
	}
	if feed != nil {
		s.feedHandler = NewFeedHandler(feed, deps)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/frames", MetricsMiddleware(s.framesHandler.HandlePostFrame, "frames"))
	mux.HandleFunc("/tracks", MetricsMiddleware(s.tracksHandler.HandleGetTracks, "tracks"))
	mux.HandleFunc("/counters", MetricsMiddleware(s.tracksHandler.HandleGetCounters, "counters"))
	mux.HandleFunc("/roi", MetricsMiddleware(s.roiHandler.HandleROI, "roi"))
	mux.HandleFunc("/crossings", MetricsMiddleware(s.crossingHandler.HandleGetCrossings, "crossings"))
	mux.HandleFunc("/reset", MetricsMiddleware(s.resetHandler.HandlePostReset, "reset"))

	// The upgrade needs the raw ResponseWriter, so the feed is not wrapped.
	if s.feedHandler != nil {
		mux.HandleFunc("/ws", s.feedHandler.HandleFeed)
	}
}

type ackResponse struct {
	Status    string `json:"status"`
	FrameID   string `json:"frame_id"`
	Duplicate bool   `json:"duplicate"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// statusFor maps an error kind to an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ErrBackpressure), errors.Is(err, queue.ErrFull):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, ErrInvalidROI), errors.Is(err, geometry.ErrInvalidPolygon):
		return http.StatusUnprocessableEntity, "invalid_roi"
	case errors.Is(err, ErrUnavailable), errors.Is(err, queue.ErrClosed):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeKindError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	writeError(w, status, code, err)
}
