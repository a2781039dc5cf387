// Package filter drops detections the deployment is not interested in before
// they reach the tracking engine.
package filter

import (
	"math"

	"github.com/okian/zonetrack/internal/domain/model"
)

// Option applies a configuration option to the Filter.
type Option func(*Filter)

// WithMinConfidence sets the default confidence floor. Values outside [0,1]
// are ignored.
func WithMinConfidence(minConfidence float64) Option {
	return func(f *Filter) {
		if minConfidence >= 0 && minConfidence <= 1 {
			f.defaultMin = minConfidence
		}
	}
}

// WithLabelThresholdsFromConfig sets per-label confidence floors from a
// configuration map. Out-of-range entries are skipped.
func WithLabelThresholdsFromConfig(thresholds map[string]float64) Option {
	return func(f *Filter) {
		// copy to avoid external modifications
		f.labelMin = make(map[string]float64, len(thresholds))
		for label, v := range thresholds {
			if v >= 0 && v <= 1 {
				f.labelMin[label] = v
			}
		}
	}
}

// WithAllowedLabels restricts detections to the listed labels. An empty list
// allows every label.
func WithAllowedLabels(labels []string) Option {
	return func(f *Filter) {
		if len(labels) == 0 {
			f.allowed = nil
			return
		}
		f.allowed = make(map[string]struct{}, len(labels))
		for _, l := range labels {
			f.allowed[l] = struct{}{}
		}
	}
}

// Filter keeps detections that pass the label allowlist and the confidence
// floor. Detections without a confidence always pass the floor, as do
// detections with a non-finite confidence so the engine can reject them.
type Filter struct {
	defaultMin float64
	labelMin   map[string]float64
	allowed    map[string]struct{}
}

// New creates a filter. With no options it keeps everything.
func New(opts ...Option) *Filter {
	f := &Filter{
		labelMin: make(map[string]float64),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Keep reports whether d passes.
func (f *Filter) Keep(d model.Detection) bool {
	if f.allowed != nil {
		if _, ok := f.allowed[d.Label]; !ok {
			return false
		}
	}
	if d.Confidence == nil {
		return true
	}
	c := *d.Confidence
	if math.IsNaN(c) || math.IsInf(c, 0) {
		return true
	}
	floor, ok := f.labelMin[d.Label]
	if !ok {
		floor = f.defaultMin
	}
	return c >= floor
}

// Apply returns the kept detections in input order and how many were dropped.
// The input slice is not modified.
func (f *Filter) Apply(detections []model.Detection) ([]model.Detection, int) {
	kept := make([]model.Detection, 0, len(detections))
	for _, d := range detections {
		if f.Keep(d) {
			kept = append(kept, d)
		}
	}
	return kept, len(detections) - len(kept)
}

// Passthrough reports whether the filter can never drop a detection.
func (f *Filter) Passthrough() bool {
	return f.allowed == nil && f.defaultMin == 0 && len(f.labelMin) == 0
}
