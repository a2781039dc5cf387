package association

import "errors"

// Sentinel kinds for association errors.
var (
	ErrUnknownKind      = errors.New("unknown associator kind")
	ErrInvalidThreshold = errors.New("invalid match threshold")
)
