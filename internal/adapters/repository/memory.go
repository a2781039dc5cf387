package repository

import (
	"context"
	"sync"

	"github.com/okian/zonetrack/internal/domain/model"
	"github.com/okian/zonetrack/pkg/metrics"
)

// MemoryJournal keeps the most recent crossings in a fixed-size ring.
type MemoryJournal struct {
	mu     sync.RWMutex
	size   int
	ring   []model.Crossing
	next   int // slot for the next write
	filled bool
	totals map[string]model.Counters
	closed bool
}

// NewMemoryJournal creates an in-memory journal with configuration options.
func NewMemoryJournal(opts ...Option) *MemoryJournal {
	j := &MemoryJournal{
		size:   defaultRingSize,
		totals: make(map[string]model.Counters),
	}
	for _, opt := range opts {
		opt(j)
	}
	j.ring = make([]model.Crossing, j.size)
	return j
}

// Append implements Journal.
func (j *MemoryJournal) Append(ctx context.Context, crossings []model.Crossing) error {
	if len(crossings) == 0 {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return ErrClosed
	}
	for _, c := range crossings {
		j.ring[j.next] = c
		j.next = (j.next + 1) % j.size
		if j.next == 0 {
			j.filled = true
		}
		t := j.totals[c.SessionID]
		tally(&t, c.Direction)
		j.totals[c.SessionID] = t
	}
	metrics.RecordJournalWrite(len(crossings))
	return nil
}

// Recent implements Journal.
func (j *MemoryJournal) Recent(ctx context.Context, n int) ([]model.Crossing, error) {
	if n < 1 {
		return nil, ErrInvalidLimit
	}
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.closed {
		return nil, ErrClosed
	}
	count := j.countLocked()
	if n > count {
		n = count
	}
	out := make([]model.Crossing, 0, n)
	for i := 1; i <= n; i++ {
		idx := (j.next - i + j.size) % j.size
		out = append(out, j.ring[idx])
	}
	return out, nil
}

// Totals implements Journal.
func (j *MemoryJournal) Totals(ctx context.Context, sessionID string) (model.Counters, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.closed {
		return model.Counters{}, ErrClosed
	}
	if sessionID != "" {
		return j.totals[sessionID], nil
	}
	var all model.Counters
	for _, t := range j.totals {
		all.Entered += t.Entered
		all.Exited += t.Exited
	}
	return all, nil
}

// Count implements Journal.
func (j *MemoryJournal) Count(ctx context.Context) int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.countLocked()
}

func (j *MemoryJournal) countLocked() int {
	if j.filled {
		return j.size
	}
	return j.next
}

// Close implements Journal.
func (j *MemoryJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.closed = true
	return nil
}
