package repository

// Default journal configuration constants.
const (
	defaultRingSize = 10000
)

// Option applies a configuration option to the MemoryJournal.
type Option func(*MemoryJournal)

// WithRingSize bounds how many crossings the in-memory journal retains.
// Totals are kept for every crossing regardless of eviction.
func WithRingSize(size int) Option {
	return func(j *MemoryJournal) {
		if size > 0 {
			j.size = size
		}
	}
}
