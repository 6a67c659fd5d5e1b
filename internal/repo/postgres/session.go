package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hamed0406/covidrefresh/internal/domain"
	"github.com/hamed0406/covidrefresh/internal/repo"
)

var recordColumns = []string{
	"table_name", "date_rep", "day", "month", "year", "cases", "deaths",
	"country", "geo_id", "country_code", "pop_data_2020", "continent",
}

var totalColumns = []string{"table_name", "country", "total_cases"}

type session struct {
	tx     *sql.Tx
	runID  string
	now    func() time.Time
	staged []historyRef
}

type historyRef struct {
	table   string
	version int64
}

func (s *session) OverwriteRecords(ctx context.Context, table string, rows []domain.Record) error {
	if _, err := s.tx.ExecContext(ctx, `DELETE FROM case_records WHERE table_name = $1`, table); err != nil {
		return fmt.Errorf("clear %s: %w", table, wrapDone(err))
	}
	err := s.copyIn(ctx, "case_records", recordColumns, len(rows), func(i int) []any {
		r := rows[i]
		var pop any
		if r.PopData2020 != nil {
			pop = *r.PopData2020
		}
		return []any{table, r.DateRep, r.Day, r.Month, r.Year, r.Cases, r.Deaths,
			r.Country, r.GeoID, r.CountryCode, pop, r.Continent}
	})
	if err != nil {
		return fmt.Errorf("load %s: %w", table, err)
	}
	return s.appendHistory(ctx, table, len(rows))
}

func (s *session) OverwriteTotals(ctx context.Context, table string, rows []domain.CountryTotal) error {
	if _, err := s.tx.ExecContext(ctx, `DELETE FROM country_totals WHERE table_name = $1`, table); err != nil {
		return fmt.Errorf("clear %s: %w", table, wrapDone(err))
	}
	err := s.copyIn(ctx, "country_totals", totalColumns, len(rows), func(i int) []any {
		return []any{table, rows[i].Country, rows[i].TotalCases}
	})
	if err != nil {
		return fmt.Errorf("load %s: %w", table, err)
	}
	return s.appendHistory(ctx, table, len(rows))
}

// copyIn streams n rows through COPY FROM STDIN.
func (s *session) copyIn(ctx context.Context, target string, cols []string, n int, row func(int) []any) error {
	stmt, err := s.tx.PrepareContext(ctx, pq.CopyIn(target, cols...))
	if err != nil {
		return fmt.Errorf("prepare copy: %w", wrapDone(err))
	}
	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, row(i)...); err != nil {
			stmt.Close()
			return fmt.Errorf("copy row %d: %w", i, err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("flush copy: %w", err)
	}
	return stmt.Close()
}

// appendHistory stages the history row; Commit sets its final committed_at.
func (s *session) appendHistory(ctx context.Context, table string, n int) error {
	var version int64
	err := s.tx.QueryRowContext(ctx,
		`INSERT INTO table_history (table_name, version, operation, row_count, run_id, committed_at)
		 SELECT $1, COALESCE(MAX(version), -1) + 1, $2, $3, $4, $5
		   FROM table_history
		  WHERE table_name = $1
		 RETURNING version`,
		table, domain.OperationOverwrite, n, s.runID, s.now().UTC()).Scan(&version)
	if err != nil {
		return fmt.Errorf("append history %s: %w", table, wrapDone(err))
	}
	s.staged = append(s.staged, historyRef{table: table, version: version})
	return nil
}

func (s *session) Commit(ctx context.Context) error {
	at := s.now().UTC()
	for _, h := range s.staged {
		_, err := s.tx.ExecContext(ctx,
			`UPDATE table_history SET committed_at = $1 WHERE table_name = $2 AND version = $3`,
			at, h.table, h.version)
		if err != nil {
			return fmt.Errorf("stamp history %s: %w", h.table, wrapDone(err))
		}
	}
	if err := s.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", wrapDone(err))
	}
	return nil
}

func (s *session) Rollback(ctx context.Context) error {
	if err := s.tx.Rollback(); err != nil {
		return fmt.Errorf("rollback: %w", wrapDone(err))
	}
	return nil
}

func wrapDone(err error) error {
	if errors.Is(err, sql.ErrTxDone) {
		return repo.ErrSessionDone
	}
	return err
}
