package api

import "net/http"

// ResetHandler re-initializes the engine.
type ResetHandler struct {
	deps ResetDependencies
}

// NewResetHandler creates a new reset handler.
func NewResetHandler(deps ResetDependencies) *ResetHandler {
	return &ResetHandler{deps: deps}
}

// HandlePostReset handles POST /reset requests. Counters return to zero,
// tracks are cleared and a new session begins.
func (h *ResetHandler) HandlePostReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Reset(r.Context()))
}
