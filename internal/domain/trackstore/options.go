// Package trackstore owns the authoritative set of tracks and applies
// association results to it.
package trackstore

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithIDAllocator shares an id allocator with the store. Stores that share an
// allocator never hand out the same id twice, which is how an engine keeps
// ids unique across re-initialization.
func WithIDAllocator(ids *IDAllocator) Option {
	return func(s *Store) {
		if ids != nil {
			s.ids = ids
		}
	}
}

// WithPalette overrides the display colors. Empty palettes are ignored.
func WithPalette(colors []string) Option {
	return func(s *Store) {
		if len(colors) > 0 {
			s.palette = append([]string(nil), colors...)
		}
	}
}
