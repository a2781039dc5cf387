package api

import "net/http"

// TracksHandler serves the latest tracks and counters.
type TracksHandler struct {
	deps TrackDependencies
}

// NewTracksHandler creates a new tracks handler.
func NewTracksHandler(deps TrackDependencies) *TracksHandler {
	return &TracksHandler{deps: deps}
}

// HandleGetTracks handles GET /tracks requests.
func (h *TracksHandler) HandleGetTracks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Snapshot(r.Context()))
}

// HandleGetCounters handles GET /counters requests.
func (h *TracksHandler) HandleGetCounters(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Counters(r.Context()))
}
