package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hamed0406/covidrefresh/internal/domain"
	"github.com/hamed0406/covidrefresh/internal/repo"
)

var (
	_ repo.Warehouse = (*Store)(nil)
	_ repo.RunStore  = (*Store)(nil)
)

// Store is the in-process warehouse used when no DATABASE_URL is configured
// and in tests. Its history does not survive a restart, so every process
// start ingests once.
type Store struct {
	mu      sync.RWMutex
	now     func() time.Time
	records map[string][]domain.Record
	totals  map[string][]domain.CountryTotal
	history map[string][]domain.Commit
	runs    map[string]domain.RunOutcome
}

func New() *Store {
	return NewWithClock(time.Now)
}

func NewWithClock(now func() time.Time) *Store {
	return &Store{
		now:     now,
		records: make(map[string][]domain.Record),
		totals:  make(map[string][]domain.CountryTotal),
		history: make(map[string][]domain.Commit),
		runs:    make(map[string]domain.RunOutcome),
	}
}

// ---- Warehouse ----

func (m *Store) Begin(ctx context.Context, runID string) (repo.Session, error) {
	return &session{
		store:   m,
		runID:   runID,
		records: make(map[string][]domain.Record),
		totals:  make(map[string][]domain.CountryTotal),
	}, nil
}

func (m *Store) LatestCommit(ctx context.Context, table string) (domain.Watermark, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h := m.history[table]
	if len(h) == 0 {
		return domain.Watermark{}, nil
	}
	return domain.WatermarkAt(h[len(h)-1].CommittedAt), nil
}

func (m *Store) History(ctx context.Context, table string, limit int) ([]domain.Commit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h := m.history[table]
	out := make([]domain.Commit, 0, len(h))
	for i := len(h) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, h[i])
	}
	return out, nil
}

// Records returns a copy of a records table.
func (m *Store) Records(table string) []domain.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.Record(nil), m.records[table]...)
}

// Totals returns a copy of a totals table.
func (m *Store) Totals(table string) []domain.CountryTotal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.CountryTotal(nil), m.totals[table]...)
}

// ---- RunStore ----

func (m *Store) AppendRun(ctx context.Context, o domain.RunOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[o.RunID] = o
	return nil
}

func (m *Store) LatestRun(ctx context.Context) (*domain.RunOutcome, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.runs) == 0 {
		return nil, nil
	}
	all := make([]domain.RunOutcome, 0, len(m.runs))
	for _, r := range m.runs {
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].StartedAt.Equal(all[j].StartedAt) {
			return all[i].RunID > all[j].RunID
		}
		return all[i].StartedAt.After(all[j].StartedAt)
	})
	latest := all[0]
	return &latest, nil
}

// ---- Session ----

type session struct {
	store   *Store
	runID   string
	done    bool
	records map[string][]domain.Record
	totals  map[string][]domain.CountryTotal
	commits []domain.Commit
}

func (s *session) OverwriteRecords(ctx context.Context, table string, rows []domain.Record) error {
	if s.done {
		return repo.ErrSessionDone
	}
	s.records[table] = append([]domain.Record(nil), rows...)
	s.stage(table, len(rows))
	return nil
}

func (s *session) OverwriteTotals(ctx context.Context, table string, rows []domain.CountryTotal) error {
	if s.done {
		return repo.ErrSessionDone
	}
	s.totals[table] = append([]domain.CountryTotal(nil), rows...)
	s.stage(table, len(rows))
	return nil
}

func (s *session) stage(table string, n int) {
	s.commits = append(s.commits, domain.Commit{
		Table:       table,
		Operation:   domain.OperationOverwrite,
		RowCount:    n,
		RunID:       s.runID,
	})
}

func (s *session) Commit(ctx context.Context) error {
	if s.done {
		return repo.ErrSessionDone
	}
	s.done = true

	m := s.store
	m.mu.Lock()
	defer m.mu.Unlock()
	// One instant for the whole session, taken when it becomes visible.
	at := m.now().UTC()
	for t, rows := range s.records {
		m.records[t] = rows
	}
	for t, rows := range s.totals {
		m.totals[t] = rows
	}
	for _, c := range s.commits {
		c.Version = int64(len(m.history[c.Table]))
		c.CommittedAt = at
		m.history[c.Table] = append(m.history[c.Table], c)
	}
	return nil
}

func (s *session) Rollback(ctx context.Context) error {
	if s.done {
		return repo.ErrSessionDone
	}
	s.done = true
	return nil
}
