package trackstore

import "errors"

// ErrInvalidConfig is returned when store tunables are out of range.
var ErrInvalidConfig = errors.New("invalid track store config")
