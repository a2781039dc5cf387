package repository

import (
	"context"
	"fmt"
)

// Journal drivers selectable from configuration.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Open builds the journal for driver. path is only used by the SQLite driver;
// size only by the memory driver.
func Open(ctx context.Context, driver, path string, size int) (Journal, error) {
	switch driver {
	case "", DriverMemory:
		return NewMemoryJournal(WithRingSize(size)), nil
	case DriverSQLite:
		return NewSQLiteJournal(ctx, path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}
