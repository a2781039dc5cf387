package replay

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/okian/zonetrack/internal/domain/geometry"
	"github.com/okian/zonetrack/internal/domain/types"
)

// Sentinel kinds for replay errors.
var (
	ErrBadScenario = errors.New("bad scenario")
	ErrBadPolygon  = errors.New("bad polygon")
	ErrUnknownMode = errors.New("unknown replay mode")
)

const maxLineBytes = 4 << 20

// ReadFrames parses one JSON frame per line. Blank lines are skipped.
func ReadFrames(r io.Reader) ([]types.FrameRequest, error) {
	var frames []types.FrameRequest
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var f types.FrameRequest
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrBadScenario, line, err)
		}
		frames = append(frames, f)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadScenario, err)
	}
	return frames, nil
}

// WriteFrames writes frames as JSON lines.
func WriteFrames(w io.Writer, frames []types.FrameRequest) error {
	enc := json.NewEncoder(w)
	for i := range frames {
		if err := enc.Encode(frames[i]); err != nil {
			return fmt.Errorf("encode frame %d: %w", i, err)
		}
	}
	return nil
}

// ParsePolygon parses "x,y;x,y;..." into a polygon. An empty string yields
// nil.
func ParsePolygon(s string) (geometry.Polygon, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var poly geometry.Polygon
	for i, pair := range strings.Split(s, ";") {
		xy := strings.Split(strings.TrimSpace(pair), ",")
		if len(xy) != 2 {
			return nil, fmt.Errorf("%w: vertex %d: want x,y got %q", ErrBadPolygon, i, pair)
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(xy[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: vertex %d: %w", ErrBadPolygon, i, err)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(xy[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: vertex %d: %w", ErrBadPolygon, i, err)
		}
		poly = append(poly, geometry.Point{X: x, Y: y})
	}
	if _, err := geometry.DescribeROI(poly); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadPolygon, err)
	}
	return poly, nil
}
