package worker

import (
	"github.com/okian/zonetrack/pkg/logger"
)

// Option applies a configuration option to the TickWorker.
type Option func(*TickWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *TickWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(logger logger.Logger) Option {
	return func(w *TickWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithJournal records crossings from every tick.
func WithJournal(j Journal) Option {
	return func(w *TickWorker) {
		w.journal = j
	}
}

// WithPublisher adds a subscriber for tick results.
func WithPublisher(p Publisher) Option {
	return func(w *TickWorker) {
		if p != nil {
			w.publishers = append(w.publishers, p)
		}
	}
}
