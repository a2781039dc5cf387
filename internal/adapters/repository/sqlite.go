package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"sync/atomic"

	"github.com/okian/zonetrack/internal/domain/geometry"
	"github.com/okian/zonetrack/internal/domain/model"
	"github.com/okian/zonetrack/pkg/logger"
	"github.com/okian/zonetrack/pkg/metrics"

	_ "modernc.org/sqlite"
)

// schema.sql creates the crossings table and its session index.
//
//go:embed schema.sql
var schemaSQL string

// SQLiteJournal stores crossings in a SQLite database.
type SQLiteJournal struct {
	db     *sql.DB
	closed atomic.Bool
	log    logger.Logger
}

// NewSQLiteJournal opens (or creates) the database at path and applies the
// schema. Use ":memory:" for a throwaway database.
func NewSQLiteJournal(ctx context.Context, path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite journal %q: %w", path, err)
	}
	// a single connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply journal schema: %w", err)
	}

	j := &SQLiteJournal{db: db, log: logger.Get().Named("journal")}
	j.log.Info(ctx, "initialized crossing journal", logger.String("path", path))
	return j, nil
}

// Append implements Journal. All crossings are written in one transaction.
func (j *SQLiteJournal) Append(ctx context.Context, crossings []model.Crossing) error {
	if len(crossings) == 0 {
		return nil
	}
	if j.closed.Load() {
		return ErrClosed
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		metrics.RecordJournalWriteError()
		return fmt.Errorf("begin journal tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO crossings (session_id, track_id, label, direction, ts_ms, x, y)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		metrics.RecordJournalWriteError()
		return fmt.Errorf("prepare journal insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range crossings {
		if _, err := stmt.ExecContext(ctx, c.SessionID, c.TrackID, c.Label, string(c.Direction), c.Timestamp, c.Position.X, c.Position.Y); err != nil {
			metrics.RecordJournalWriteError()
			return fmt.Errorf("insert crossing for track %d: %w", c.TrackID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		metrics.RecordJournalWriteError()
		return fmt.Errorf("commit journal tx: %w", err)
	}
	metrics.RecordJournalWrite(len(crossings))
	return nil
}

// Recent implements Journal.
func (j *SQLiteJournal) Recent(ctx context.Context, n int) ([]model.Crossing, error) {
	if n < 1 {
		return nil, ErrInvalidLimit
	}
	if j.closed.Load() {
		return nil, ErrClosed
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT session_id, track_id, label, direction, ts_ms, x, y
		FROM crossings
		ORDER BY id DESC
		LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("query recent crossings: %w", err)
	}
	defer rows.Close()

	out := make([]model.Crossing, 0, n)
	for rows.Next() {
		var (
			c   model.Crossing
			dir string
			p   geometry.Point
		)
		if err := rows.Scan(&c.SessionID, &c.TrackID, &c.Label, &dir, &c.Timestamp, &p.X, &p.Y); err != nil {
			return nil, fmt.Errorf("scan crossing: %w", err)
		}
		c.Direction = model.Direction(dir)
		c.Position = p
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate crossings: %w", err)
	}
	return out, nil
}

// Totals implements Journal.
func (j *SQLiteJournal) Totals(ctx context.Context, sessionID string) (model.Counters, error) {
	if j.closed.Load() {
		return model.Counters{}, ErrClosed
	}

	var c model.Counters
	err := j.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN direction = 'entered' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN direction = 'exited' THEN 1 ELSE 0 END), 0)
		FROM crossings
		WHERE ? = '' OR session_id = ?
	`, sessionID, sessionID).Scan(&c.Entered, &c.Exited)
	if err != nil {
		return model.Counters{}, fmt.Errorf("query crossing totals: %w", err)
	}
	return c, nil
}

// Count implements Journal.
func (j *SQLiteJournal) Count(ctx context.Context) int {
	if j.closed.Load() {
		return 0
	}
	var n int
	if err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM crossings`).Scan(&n); err != nil {
		j.log.Warn(ctx, "count crossings failed", logger.Error(err))
		return 0
	}
	return n
}

// Close implements Journal.
func (j *SQLiteJournal) Close() error {
	if !j.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := j.db.Close(); err != nil {
		return fmt.Errorf("close sqlite journal: %w", err)
	}
	return nil
}
