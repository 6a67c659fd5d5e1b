package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hamed0406/covidrefresh/internal/domain"
)

func (s *Store) AppendRun(ctx context.Context, o domain.RunOutcome) error {
	const q = `
		INSERT INTO runs (run_id, status, reason, remote_last_modified, records,
		                  latest_five_days, countries, archive, started_at, finished_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (run_id)
		DO UPDATE SET status=EXCLUDED.status, reason=EXCLUDED.reason,
		              remote_last_modified=EXCLUDED.remote_last_modified,
		              records=EXCLUDED.records, latest_five_days=EXCLUDED.latest_five_days,
		              countries=EXCLUDED.countries, archive=EXCLUDED.archive,
		              finished_at=EXCLUDED.finished_at
	`
	var finished *time.Time
	if !o.FinishedAt.IsZero() {
		finished = &o.FinishedAt
	}
	_, err := s.db.ExecContext(ctx, q,
		o.RunID, string(o.Status), o.Reason, o.RemoteLastModified, o.Records,
		o.LatestFiveDays, o.Countries, o.Archive, o.StartedAt, finished)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (s *Store) LatestRun(ctx context.Context) (*domain.RunOutcome, error) {
	const q = `
		SELECT run_id, status, reason, remote_last_modified, records,
		       latest_five_days, countries, archive, started_at, finished_at
		  FROM runs
		 ORDER BY started_at DESC, run_id DESC
		 LIMIT 1`
	var (
		o        domain.RunOutcome
		status   string
		remote   sql.NullTime
		finished sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, q).Scan(&o.RunID, &status, &o.Reason, &remote, &o.Records,
		&o.LatestFiveDays, &o.Countries, &o.Archive, &o.StartedAt, &finished)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest run: %w", err)
	}
	o.Status = domain.RunStatus(status)
	if remote.Valid {
		t := remote.Time.UTC()
		o.RemoteLastModified = &t
	}
	if finished.Valid {
		o.FinishedAt = finished.Time.UTC()
	}
	o.StartedAt = o.StartedAt.UTC()
	return &o, nil
}
