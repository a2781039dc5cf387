package geometry

import "errors"

// Sentinel kinds for geometry errors.
var (
	ErrBoxArity       = errors.New("bounding box must have exactly 4 coordinates")
	ErrInvalidPolygon = errors.New("invalid polygon")
)
