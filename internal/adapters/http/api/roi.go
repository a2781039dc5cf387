package api

import (
	"encoding/json"
	"net/http"

	"github.com/okian/zonetrack/internal/domain/geometry"
	"github.com/okian/zonetrack/internal/domain/types"
)

// ROIHandler reads and replaces the region of interest.
type ROIHandler struct {
	deps ROIDependencies
}

// NewROIHandler creates a new ROI handler.
func NewROIHandler(deps ROIDependencies) *ROIHandler {
	return &ROIHandler{deps: deps}
}

// HandleROI handles GET /roi and PUT /roi requests. An empty point list
// disables zone analytics.
func (h *ROIHandler) HandleROI(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_roi"
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.deps.DescribeROI(r.Context()))
	case http.MethodPut:
		var req types.ROIRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeKindError(w, WrapKind(op, ErrBadRequest, err))
			return
		}
		roi, err := h.deps.SetROI(r.Context(), geometry.Polygon(req.Points))
		if err != nil {
			writeKindError(w, WrapKind(op, ErrInvalidROI, err))
			return
		}
		writeJSON(w, http.StatusOK, roi)
	default:
		http.NotFound(w, r)
	}
}
