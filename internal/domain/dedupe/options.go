package dedupe

const defaultMaxSize = 4096

// Option applies a configuration option to the in-memory deduper.
type Option func(*window)

// WithMaxSize sets how many frame ids are remembered.
// If maxSize > 0 the oldest id is evicted once the window is full.
// If maxSize <= 0 ids are never evicted.
func WithMaxSize(maxSize int) Option {
	return func(d *window) {
		d.maxSize = maxSize
	}
}
