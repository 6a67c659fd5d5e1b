package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSlack_OK(t *testing.T) {
	var got slackPayload
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type %q", ct)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(200)
	}))
	defer ts.Close()

	s := NewSlack(ts.URL)
	if s == nil {
		t.Fatal("expected slack client")
	}
	if err := s.Send(context.Background(), "COVID refresh FAILED", "Run: run-1\nStatus: failed"); err != nil {
		t.Fatalf("send err: %v", err)
	}
	if got.Text != "COVID refresh FAILED" || len(got.Blocks) != 2 {
		t.Fatalf("payload not as expected: %+v", got)
	}
	if got.Blocks[0].Type != "header" || got.Blocks[0].Text.Text != "COVID refresh FAILED" {
		t.Fatalf("header block: %+v", got.Blocks[0])
	}
}

func TestRefreshMessage_FieldsAndError(t *testing.T) {
	body := "Run: run-7\nStatus: failed\nSource modified: 2025-01-22T14:00:00Z\nError: parse data.csv: line 3: bad cases\nStarted: 2025-01-22T15:00:00Z"
	p := refreshMessage("COVID refresh FAILED", body)

	if p.Text != "COVID refresh FAILED: parse data.csv: line 3: bad cases" {
		t.Fatalf("fallback text: %q", p.Text)
	}
	if len(p.Blocks) != 3 {
		t.Fatalf("want header, fields, error blocks; got %+v", p.Blocks)
	}
	fields := p.Blocks[1].Fields
	if len(fields) != 4 || fields[0].Text != "*Run*\nrun-7" || fields[2].Text != "*Source modified*\n2025-01-22T14:00:00Z" {
		t.Fatalf("fields: %+v", fields)
	}
	if p.Blocks[2].Text == nil || p.Blocks[2].Text.Text != "```parse data.csv: line 3: bad cases```" {
		t.Fatalf("error block: %+v", p.Blocks[2])
	}
}

func TestRefreshMessage_SplitsLongFieldLists(t *testing.T) {
	var lines []string
	for i := 0; i < 12; i++ {
		lines = append(lines, fmt.Sprintf("K%d: v", i))
	}
	p := refreshMessage("t", strings.Join(lines, "\n"))
	if len(p.Blocks) != 3 || len(p.Blocks[1].Fields) != 10 || len(p.Blocks[2].Fields) != 2 {
		t.Fatalf("unexpected blocks: %+v", p.Blocks)
	}
}

func TestLog_RecordsAlertFields(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	n := NewLog(zap.New(core))

	if err := n.Send(context.Background(), "COVID refresh RECOVERED", "Run: run-9\nStatus: completed\nRecords: 120"); err != nil {
		t.Fatalf("log notifier should not fail: %v", err)
	}
	entries := logs.FilterMessage("refresh_alert").All()
	if len(entries) != 1 {
		t.Fatalf("want 1 alert entry, got %d", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["title"] != "COVID refresh RECOVERED" || ctx["run"] != "run-9" || ctx["records"] != "120" {
		t.Fatalf("unexpected fields: %+v", ctx)
	}
}

func TestSlack_Non2xx(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
	}))
	defer ts.Close()

	err := NewSlack(ts.URL).Send(context.Background(), "X", "Y")
	if err == nil || !strings.Contains(err.Error(), "500") {
		t.Fatalf("expected 500 error, got %v", err)
	}
}

func TestSlack_Disabled(t *testing.T) {
	s := NewSlack("")
	if s != nil {
		t.Fatal("expected nil slack for empty webhook")
	}
	if err := s.Send(context.Background(), "X", "Y"); !errors.Is(err, ErrSlackDisabled) {
		t.Fatalf("want ErrSlackDisabled, got %v", err)
	}
}

type recordingNotifier struct {
	n   int
	err error
}

func (r *recordingNotifier) Send(ctx context.Context, title, text string) error {
	r.n++
	return r.err
}

func TestMulti_SendsToAllAndCombinesErrors(t *testing.T) {
	a := &recordingNotifier{err: errors.New("a down")}
	b := &recordingNotifier{}
	c := &recordingNotifier{err: errors.New("c down")}

	err := Multi{a, nil, b, c}.Send(context.Background(), "t", "x")
	if a.n != 1 || b.n != 1 || c.n != 1 {
		t.Fatalf("every notifier should be called once: %d %d %d", a.n, b.n, c.n)
	}
	if got := len(multierr.Errors(err)); got != 2 {
		t.Fatalf("want 2 combined errors, got %d (%v)", got, err)
	}
}
