package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/covidrefresh/internal/domain"
	"github.com/hamed0406/covidrefresh/internal/gate"
	apimw "github.com/hamed0406/covidrefresh/internal/httpapi/middleware"
	"github.com/hamed0406/covidrefresh/internal/repo/memory"
)

// ---- test helpers ----

type fakeGate struct{ d gate.Decision }

func (f *fakeGate) Evaluate(ctx context.Context) gate.Decision { return f.d }

type fakeTrigger struct {
	out   domain.RunOutcome
	err   error
	calls int
}

func (f *fakeTrigger) RunNow(ctx context.Context) (domain.RunOutcome, error) {
	f.calls++
	return f.out, f.err
}

var t1400 = time.Date(2025, 1, 22, 14, 0, 0, 0, time.UTC)

type fixture struct {
	store   *memory.Store
	trigger *fakeTrigger
	archive string
	ts      *httptest.Server
}

func setup(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewWithClock(func() time.Time { return t1400 })
	archive := filepath.Join(t.TempDir(), "covid.zip")
	trig := &fakeTrigger{out: domain.RunOutcome{RunID: "run-manual", Status: domain.RunSkipped, Reason: gate.ReasonNotModified}}

	srv := NewServer(zap.NewNop(), store, store, &fakeGate{d: gate.Decision{Proceed: true, Reason: gate.ReasonFirstRun}},
		archive, "covid", "covid_total_cases")
	srv.Trigger = trig

	keys := apimw.Keys{Read: []string{"read_test"}, Admin: []string{"adm_test"}}
	// very high rate limits to avoid flakiness in tests
	ts := httptest.NewServer(srv.Router(keys, nil, 10_000, 10_000))
	t.Cleanup(ts.Close)
	return &fixture{store: store, trigger: trig, archive: archive, ts: ts}
}

func (f *fixture) do(t *testing.T, method, path, key string) *http.Response {
	t.Helper()
	req, _ := http.NewRequest(method, f.ts.URL+path, nil)
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func commit(t *testing.T, s *memory.Store, runID string, tables ...string) {
	t.Helper()
	ctx := context.Background()
	sess, _ := s.Begin(ctx, runID)
	for _, tbl := range tables {
		if err := sess.OverwriteRecords(ctx, tbl, []domain.Record{{Country: "US"}}); err != nil {
			t.Fatalf("overwrite: %v", err)
		}
	}
	if err := sess.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

// ---- tests ----

func TestHealthz_NoAuth(t *testing.T) {
	f := setup(t)
	resp := f.do(t, http.MethodGet, "/healthz", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}
}

func TestAPI_RequiresKey(t *testing.T) {
	f := setup(t)
	if resp := f.do(t, http.MethodGet, "/api/history", ""); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("want 401, got %d", resp.StatusCode)
	}
}

func TestHistory_DefaultTableAndLimit(t *testing.T) {
	f := setup(t)
	commit(t, f.store, "run-a", "covid")
	commit(t, f.store, "run-b", "covid", "covid_total_cases")

	resp := f.do(t, http.MethodGet, "/api/history?limit=1", "read_test")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}
	var body struct {
		Table   string          `json:"table"`
		Commits []domain.Commit `json:"commits"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Table != "covid" || len(body.Commits) != 1 || body.Commits[0].Version != 1 || body.Commits[0].RunID != "run-b" {
		t.Fatalf("unexpected history: %+v", body)
	}

	resp = f.do(t, http.MethodGet, "/api/history/covid_total_cases", "read_test")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}
}

func TestHistory_UnknownTableAndBadLimit(t *testing.T) {
	f := setup(t)
	if resp := f.do(t, http.MethodGet, "/api/history/pg_shadow", "read_test"); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("want 404, got %d", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodGet, "/api/history?limit=-3", "read_test"); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", resp.StatusCode)
	}
}

func TestLatestRun(t *testing.T) {
	f := setup(t)
	if resp := f.do(t, http.MethodGet, "/api/runs/latest", "read_test"); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("want 404 before any run, got %d", resp.StatusCode)
	}

	_ = f.store.AppendRun(context.Background(), domain.RunOutcome{RunID: "run-1", Status: domain.RunCompleted, StartedAt: t1400})
	resp := f.do(t, http.MethodGet, "/api/runs/latest", "read_test")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}
	var run domain.RunOutcome
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if run.RunID != "run-1" || run.Status != domain.RunCompleted {
		t.Fatalf("unexpected run: %+v", run)
	}
}

func TestArchive(t *testing.T) {
	f := setup(t)
	if resp := f.do(t, http.MethodGet, "/api/archive", "read_test"); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("want 404 before archive exists, got %d", resp.StatusCode)
	}

	if err := os.WriteFile(f.archive, []byte("PK-data"), 0o644); err != nil {
		t.Fatal(err)
	}
	resp := f.do(t, http.MethodGet, "/api/archive", "read_test")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/zip" {
		t.Fatalf("content type %q", ct)
	}
	b, _ := io.ReadAll(resp.Body)
	if string(b) != "PK-data" {
		t.Fatalf("body %q", b)
	}
}

func TestGate(t *testing.T) {
	f := setup(t)
	resp := f.do(t, http.MethodGet, "/api/gate", "read_test")
	var d gate.Decision
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !d.Proceed || d.Reason != gate.ReasonFirstRun {
		t.Fatalf("unexpected decision %+v", d)
	}
}

func TestTrigger_AdminOnly(t *testing.T) {
	f := setup(t)
	if resp := f.do(t, http.MethodPost, "/api/runs", "read_test"); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("read key: want 403, got %d", resp.StatusCode)
	}
	if f.trigger.calls != 0 {
		t.Fatal("trigger ran for a read key")
	}

	resp := f.do(t, http.MethodPost, "/api/runs", "adm_test")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin: want 200, got %d", resp.StatusCode)
	}
	var out domain.RunOutcome
	_ = json.NewDecoder(resp.Body).Decode(&out)
	if out.RunID != "run-manual" || f.trigger.calls != 1 {
		t.Fatalf("unexpected outcome %+v calls=%d", out, f.trigger.calls)
	}

	f.trigger.err = errors.New("download failed")
	if resp := f.do(t, http.MethodPost, "/api/runs", "adm_test"); resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("failed run: want 502, got %d", resp.StatusCode)
	}
}
