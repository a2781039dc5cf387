package geometry

import (
	"fmt"

	"github.com/peterstace/simplefeatures/geom"
)

// ROIInfo describes a region of interest for operators configuring it.
type ROIInfo struct {
	Vertices int     `json:"vertices"`
	Area     float64 `json:"area"`
	Simple   bool    `json:"simple"`
	Problem  string  `json:"problem,omitempty"`
}

// DescribeROI checks that poly can be used as a region of interest and
// reports its area and whether the ring is simple. Self-intersection is
// reported, not rejected: the even-odd rule still yields an answer.
func DescribeROI(poly Polygon) (ROIInfo, error) {
	if !poly.Defined() {
		return ROIInfo{}, fmt.Errorf("%w: need at least %d vertices, got %d", ErrInvalidPolygon, MinPolygonVertices, len(poly))
	}
	if !poly.Finite() {
		return ROIInfo{}, fmt.Errorf("%w: non-finite vertex", ErrInvalidPolygon)
	}

	flat := make([]float64, 0, 2*(len(poly)+1))
	for _, p := range poly {
		flat = append(flat, p.X, p.Y)
	}
	flat = append(flat, poly[0].X, poly[0].Y)

	ring, err := geom.NewLineString(geom.NewSequence(flat, geom.DimXY), geom.DisableAllValidations)
	if err != nil {
		return ROIInfo{}, fmt.Errorf("%w: %w", ErrInvalidPolygon, err)
	}
	rings := []geom.LineString{ring}
	pg, err := geom.NewPolygon(rings, geom.DisableAllValidations)
	if err != nil {
		return ROIInfo{}, fmt.Errorf("%w: %w", ErrInvalidPolygon, err)
	}

	info := ROIInfo{
		Vertices: len(poly),
		Area:     pg.Area(),
		Simple:   true,
	}
	if _, err := geom.NewPolygon(rings); err != nil {
		info.Simple = false
		info.Problem = err.Error()
	}
	return info, nil
}
