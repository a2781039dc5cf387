// Package repository persists zone crossings produced by the tracking engine.
package repository

import (
	"context"

	"github.com/okian/zonetrack/internal/domain/model"
)

// Journal records crossings and answers history queries.
type Journal interface {
	// Append stores crossings in the given order. An empty slice is a no-op.
	Append(ctx context.Context, crossings []model.Crossing) error

	// Recent returns up to n crossings, newest first.
	// Returns ErrInvalidLimit if n < 1.
	Recent(ctx context.Context, n int) ([]model.Crossing, error)

	// Totals returns the crossing counts recorded for a session.
	// An empty sessionID totals every session.
	Totals(ctx context.Context, sessionID string) (model.Counters, error)

	// Count returns the number of crossings currently retained.
	Count(ctx context.Context) int

	// Close releases resources. Further calls return ErrClosed.
	Close() error
}

func tally(c *model.Counters, d model.Direction) {
	switch d {
	case model.DirectionEntered:
		c.Entered++
	case model.DirectionExited:
		c.Exited++
	}
}
