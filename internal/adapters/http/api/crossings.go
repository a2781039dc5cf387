package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/okian/zonetrack/internal/adapters/repository"
)

// Default number of crossings returned when no limit is given.
const defaultCrossingsLimit = 50

// CrossingsHandler serves the crossing journal.
type CrossingsHandler struct {
	deps     CrossingDependencies
	maxLimit int
}

// NewCrossingsHandler creates a new crossings handler
func NewCrossingsHandler(deps CrossingDependencies, maxLimit int) *CrossingsHandler {
	return &CrossingsHandler{
		deps:     deps,
		maxLimit: maxLimit,
	}
}

// HandleGetCrossings handles GET /crossings?limit=N requests.
func (h *CrossingsHandler) HandleGetCrossings(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_crossings"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	n := min(defaultCrossingsLimit, h.maxLimit)
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		v, err := strconv.Atoi(limitStr)
		if err != nil || v < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		if v > h.maxLimit {
			writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrBadRequest))
			return
		}
		n = v
	}
	crossings, err := h.deps.Crossings(r.Context(), n)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, repository.ErrClosed) {
			writeKindError(w, WrapKind(op, ErrUnavailable, err))
			return
		}
		writeKindError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, crossings)
}
