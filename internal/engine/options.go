package engine

import "github.com/okian/zonetrack/internal/domain/trackstore"

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithIDAllocator shares a track id allocator with the engine. Engines built
// for the same process should share one so ids are never reused.
func WithIDAllocator(ids *trackstore.IDAllocator) Option {
	return func(e *Engine) {
		e.ids = ids
	}
}

// WithPalette overrides the track display colors.
func WithPalette(colors []string) Option {
	return func(e *Engine) {
		e.palette = colors
	}
}

// WithSessionIDFunc sets the generator used for session ids. The default
// returns a random UUID.
func WithSessionIDFunc(fn func() string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newSessionID = fn
		}
	}
}
