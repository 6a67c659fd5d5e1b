package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hamed0406/covidrefresh/internal/domain"
	"github.com/hamed0406/covidrefresh/internal/repo"
)

func fixedClock(start time.Time) func() time.Time {
	cur := start
	return func() time.Time {
		cur = cur.Add(time.Second)
		return cur
	}
}

func TestMemoryStore_EmptyHistory(t *testing.T) {
	s := New()
	w, err := s.LatestCommit(context.Background(), "covid")
	if err != nil {
		t.Fatalf("LatestCommit: %v", err)
	}
	if w.Valid {
		t.Fatalf("expected no watermark, got %v", w)
	}
	h, _ := s.History(context.Background(), "covid", 0)
	if len(h) != 0 {
		t.Fatalf("expected empty history, got %d", len(h))
	}
}

func TestMemoryStore_CommitAppendsHistory(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2025, 1, 22, 14, 0, 0, 0, time.UTC)
	s := NewWithClock(fixedClock(start))

	for run := 0; run < 2; run++ {
		sess, err := s.Begin(ctx, "run-x")
		if err != nil {
			t.Fatalf("Begin: %v", err)
		}
		rows := []domain.Record{{Country: "US", Cases: 5}, {Country: "FR", Cases: 2}}
		if err := sess.OverwriteRecords(ctx, "covid", rows); err != nil {
			t.Fatalf("OverwriteRecords: %v", err)
		}
		if err := sess.OverwriteTotals(ctx, "covid_total_cases", []domain.CountryTotal{{Country: "US", TotalCases: 5}}); err != nil {
			t.Fatalf("OverwriteTotals: %v", err)
		}
		if err := sess.Commit(ctx); err != nil {
			t.Fatalf("Commit: %v", err)
		}
	}

	h, err := s.History(ctx, "covid", 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(h) != 2 || h[0].Version != 1 || h[1].Version != 0 {
		t.Fatalf("unexpected history: %+v", h)
	}
	if h[0].Operation != domain.OperationOverwrite || h[0].RowCount != 2 || h[0].RunID != "run-x" {
		t.Fatalf("unexpected commit: %+v", h[0])
	}

	w, _ := s.LatestCommit(ctx, "covid")
	if !w.Valid || !w.At.Equal(h[0].CommittedAt) {
		t.Fatalf("watermark %v does not match latest commit %v", w, h[0].CommittedAt)
	}

	if got := s.Records("covid"); len(got) != 2 {
		t.Fatalf("overwrite should replace rows, got %d", len(got))
	}
	if limited, _ := s.History(ctx, "covid", 1); len(limited) != 1 || limited[0].Version != 1 {
		t.Fatalf("limit not applied: %+v", limited)
	}
}

func TestMemoryStore_CommitStampsCommitTime(t *testing.T) {
	ctx := context.Background()
	staged := time.Date(2025, 1, 22, 14, 0, 0, 0, time.UTC)
	now := staged
	s := NewWithClock(func() time.Time { return now })

	sess, err := s.Begin(ctx, "run-late")
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := sess.OverwriteRecords(ctx, "covid", []domain.Record{{Country: "US", Cases: 1}}); err != nil {
		t.Fatalf("OverwriteRecords: %v", err)
	}
	if err := sess.OverwriteTotals(ctx, "covid_total_cases", []domain.CountryTotal{{Country: "US", TotalCases: 1}}); err != nil {
		t.Fatalf("OverwriteTotals: %v", err)
	}

	// archive and exports happen between staging and commit
	now = staged.Add(2 * time.Minute)
	if err := sess.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	for _, table := range []string{"covid", "covid_total_cases"} {
		h, _ := s.History(ctx, table, 1)
		if len(h) != 1 || !h[0].CommittedAt.Equal(now) {
			t.Fatalf("%s: want commit time %v, got %+v", table, now, h)
		}
	}
	w, _ := s.LatestCommit(ctx, "covid")
	if !w.At.Equal(now) {
		t.Fatalf("watermark %v, want %v", w, now)
	}
}

func TestMemoryStore_RollbackLeavesNothing(t *testing.T) {
	ctx := context.Background()
	s := New()
	sess, _ := s.Begin(ctx, "r1")
	_ = sess.OverwriteRecords(ctx, "covid", []domain.Record{{Country: "US"}})
	if err := sess.Rollback(ctx); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	if w, _ := s.LatestCommit(ctx, "covid"); w.Valid {
		t.Fatalf("rolled back write must not move the watermark")
	}
	if len(s.Records("covid")) != 0 {
		t.Fatalf("rolled back rows are visible")
	}
	if err := sess.Commit(ctx); !errors.Is(err, repo.ErrSessionDone) {
		t.Fatalf("want ErrSessionDone after rollback, got %v", err)
	}
	if err := sess.OverwriteTotals(ctx, "t", nil); !errors.Is(err, repo.ErrSessionDone) {
		t.Fatalf("want ErrSessionDone, got %v", err)
	}
}

func TestMemoryStore_Runs(t *testing.T) {
	ctx := context.Background()
	s := New()
	if r, err := s.LatestRun(ctx); err != nil || r != nil {
		t.Fatalf("expected nil, got %+v err=%v", r, err)
	}

	t0 := time.Date(2025, 1, 22, 15, 0, 0, 0, time.UTC)
	_ = s.AppendRun(ctx, domain.RunOutcome{RunID: "a", Status: domain.RunSkipped, StartedAt: t0})
	_ = s.AppendRun(ctx, domain.RunOutcome{RunID: "b", Status: domain.RunFailed, StartedAt: t0.Add(time.Hour)})
	_ = s.AppendRun(ctx, domain.RunOutcome{RunID: "b", Status: domain.RunCompleted, StartedAt: t0.Add(time.Hour)})

	r, err := s.LatestRun(ctx)
	if err != nil || r == nil {
		t.Fatalf("LatestRun: %+v %v", r, err)
	}
	if r.RunID != "b" || r.Status != domain.RunCompleted {
		t.Fatalf("unexpected latest run: %+v", r)
	}
}
