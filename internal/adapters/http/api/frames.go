package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/okian/zonetrack/internal/adapters/mq/queue"
	"github.com/okian/zonetrack/internal/domain/types"
)

// FramesHandler accepts detection frames.
type FramesHandler struct {
	deps FrameDependencies
}

// NewFramesHandler creates a new frames handler.
func NewFramesHandler(deps FrameDependencies) *FramesHandler {
	return &FramesHandler{deps: deps}
}

// HandlePostFrame handles POST /frames requests.
//
// Frames carrying a frame_id are accepted at most once. Frames without one
// are always queued under a generated id.
func (h *FramesHandler) HandlePostFrame(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_frame"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req types.FrameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeKindError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := validateFrame(req); err != nil {
		writeKindError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	frame, err := req.ToModel()
	if err != nil {
		writeKindError(w, WrapKind(op, ErrBadRequest, err))
		return
	}

	// Idempotency check - mark as seen first
	dedupe := req.FrameID != ""
	if dedupe && h.deps.SeenAndRecord(r.Context(), req.FrameID) {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", FrameID: req.FrameID, Duplicate: true})
		return
	}

	id, err := h.deps.Enqueue(r.Context(), frame)
	if err != nil {
		// Rollback the "seen" status so the client may retry
		if dedupe {
			h.deps.Unrecord(r.Context(), req.FrameID)
		}
		switch {
		case errors.Is(err, queue.ErrFull):
			writeKindError(w, WrapKind(op, ErrBackpressure, err))
		case errors.Is(err, queue.ErrClosed):
			writeKindError(w, WrapKind(op, ErrUnavailable, err))
		default:
			writeKindError(w, Wrap(op, err))
		}
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", FrameID: id})
}

func validateFrame(req types.FrameRequest) error {
	if req.TS < 0 {
		return fmt.Errorf("negative ts %d", req.TS)
	}
	for i, d := range req.Detections {
		if strings.TrimSpace(d.Label) == "" {
			return fmt.Errorf("detection %d: missing label", i)
		}
	}
	return nil
}
