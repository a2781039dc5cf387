package engine

import "errors"

// Sentinel errors returned by the engine.
var (
	// ErrInvalidInput rejects a whole tick. Engine state is left untouched.
	ErrInvalidInput = errors.New("invalid tick input")
	// ErrInvalidConfig is returned by New for out-of-range tunables.
	ErrInvalidConfig = errors.New("invalid engine config")
)
