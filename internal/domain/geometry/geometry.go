// Package geometry holds the point, box and polygon primitives shared by the
// tracking engine. All coordinates live on the detector's normalized
// 0..1000 plane.
package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Scale is the upper bound of the normalized coordinate plane.
const Scale = 1000.0

// MinPolygonVertices is the smallest vertex count that defines a region.
const MinPolygonVertices = 3

// Point is an immutable position on the normalized plane.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// BoundingBox is an axis-aligned box in detector order (ymin, xmin, ymax, xmax).
type BoundingBox struct {
	YMin float64 `json:"ymin"`
	XMin float64 `json:"xmin"`
	YMax float64 `json:"ymax"`
	XMax float64 `json:"xmax"`
}

// Polygon is an ordered vertex list treated as a closed loop.
type Polygon []Point

// BoxFromSlice builds a box from the detector's [ymin, xmin, ymax, xmax] array.
func BoxFromSlice(v []float64) (BoundingBox, error) {
	if len(v) != 4 {
		return BoundingBox{}, ErrBoxArity
	}
	return BoundingBox{YMin: v[0], XMin: v[1], YMax: v[2], XMax: v[3]}, nil
}

// Slice returns the box in detector order.
func (b BoundingBox) Slice() []float64 {
	return []float64{b.YMin, b.XMin, b.YMax, b.XMax}
}

// Finite reports whether every coordinate is a real number.
func (b BoundingBox) Finite() bool {
	return finite(b.YMin) && finite(b.XMin) && finite(b.YMax) && finite(b.XMax)
}

// Valid reports whether the box is ordered and lies on the normalized plane.
func (b BoundingBox) Valid() bool {
	if !b.Finite() {
		return false
	}
	if b.YMin > b.YMax || b.XMin > b.XMax {
		return false
	}
	return inRange(b.YMin) && inRange(b.XMin) && inRange(b.YMax) && inRange(b.XMax)
}

// Finite reports whether both coordinates are real numbers.
func (p Point) Finite() bool {
	return finite(p.X) && finite(p.Y)
}

// Defined reports whether the polygon has enough vertices to bound a region.
func (poly Polygon) Defined() bool {
	return len(poly) >= MinPolygonVertices
}

// Finite reports whether every vertex is finite.
func (poly Polygon) Finite() bool {
	for _, p := range poly {
		if !p.Finite() {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of the vertex list.
func (poly Polygon) Clone() Polygon {
	if poly == nil {
		return nil
	}
	out := make(Polygon, len(poly))
	copy(out, poly)
	return out
}

// Centroid returns the midpoint of the box.
func Centroid(b BoundingBox) Point {
	return Point{
		X: (b.XMin + b.XMax) / 2,
		Y: (b.YMin + b.YMax) / 2,
	}
}

// Distance returns the Euclidean distance between two points.
func Distance(p1, p2 Point) float64 {
	return r2.Norm(r2.Sub(r2.Vec{X: p1.X, Y: p1.Y}, r2.Vec{X: p2.X, Y: p2.Y}))
}

// PointInPolygon applies the even-odd rule by casting a ray towards +X.
// The last vertex connects back to the first. Points exactly on an edge
// fall on whichever side the edge formula puts them; callers must not pass
// polygons with fewer than three vertices.
func PointInPolygon(p Point, poly Polygon) bool {
	inside := false
	for i, j := 0, len(poly)-1; i < len(poly); j, i = i, i+1 {
		xi, yi := poly[i].X, poly[i].Y
		xj, yj := poly[j].X, poly[j].Y
		if (yi > p.Y) != (yj > p.Y) && p.X < (xj-xi)*(p.Y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func inRange(v float64) bool {
	return v >= 0 && v <= Scale
}
