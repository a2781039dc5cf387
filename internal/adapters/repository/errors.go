package repository

import "errors"

// Sentinel kinds for journal errors.
var (
	ErrInvalidLimit  = errors.New("invalid crossings limit")
	ErrClosed        = errors.New("journal closed")
	ErrUnknownDriver = errors.New("unknown journal driver")
)
