package repo

import (
	"context"
	"errors"

	"github.com/hamed0406/covidrefresh/internal/domain"
)

// ErrSessionDone is returned by a Session used after Commit or Rollback.
var ErrSessionDone = errors.New("session already committed or rolled back")

// Ports (interfaces); the memory and postgres adapters implement both.

// Warehouse holds the versioned tables. Every table write appends one entry
// to that table's commit history; the latest entry of the raw table is the
// refresh watermark.
type Warehouse interface {
	// Begin opens the per-run unit of work. Writes become visible, and their
	// history entries appear, only when the session commits.
	Begin(ctx context.Context, runID string) (Session, error)

	// LatestCommit returns an invalid Watermark when the table has no history.
	LatestCommit(ctx context.Context, table string) (domain.Watermark, error)

	// History returns up to limit commits, newest first. limit <= 0 means all.
	History(ctx context.Context, table string, limit int) ([]domain.Commit, error)
}

// Session stages full-overwrite writes for one run.
type Session interface {
	OverwriteRecords(ctx context.Context, table string, rows []domain.Record) error
	OverwriteTotals(ctx context.Context, table string, rows []domain.CountryTotal) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
