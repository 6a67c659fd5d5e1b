// Package postgres implements the repo ports on PostgreSQL. Each managed
// table is a partition (by table_name) of a physical table, and every write
// appends a row to table_history inside the same transaction.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/hamed0406/covidrefresh/internal/domain"
	"github.com/hamed0406/covidrefresh/internal/repo"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var (
	_ repo.Warehouse = (*Store)(nil)
	_ repo.RunStore  = (*Store)(nil)
)

type Store struct {
	db  *sql.DB
	log *zap.Logger
	now func() time.Time
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctxPing); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	log.Info("postgres_ready")
	return newWithDB(db, log), nil
}

func newWithDB(db *sql.DB, log *zap.Logger) *Store {
	return &Store{db: db, log: log, now: time.Now}
}

func runMigrations(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}
	drv, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", drv)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ---- Warehouse ----

func (s *Store) Begin(ctx context.Context, runID string) (repo.Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	return &session{tx: tx, runID: runID, now: s.now}, nil
}

func (s *Store) LatestCommit(ctx context.Context, table string) (domain.Watermark, error) {
	var at time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT committed_at
		   FROM table_history
		  WHERE table_name = $1
		  ORDER BY version DESC
		  LIMIT 1`, table).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Watermark{}, nil
	}
	if err != nil {
		return domain.Watermark{}, fmt.Errorf("latest commit: %w", err)
	}
	return domain.WatermarkAt(at.UTC()), nil
}

func (s *Store) History(ctx context.Context, table string, limit int) ([]domain.Commit, error) {
	q := `SELECT table_name, version, operation, row_count, run_id, committed_at
	        FROM table_history
	       WHERE table_name = $1
	       ORDER BY version DESC`
	args := []any{table}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	defer rows.Close()

	var out []domain.Commit
	for rows.Next() {
		var c domain.Commit
		if err := rows.Scan(&c.Table, &c.Version, &c.Operation, &c.RowCount, &c.RunID, &c.CommittedAt); err != nil {
			return nil, fmt.Errorf("scan commit: %w", err)
		}
		c.CommittedAt = c.CommittedAt.UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}
