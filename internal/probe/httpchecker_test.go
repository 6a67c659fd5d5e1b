package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHTTPChecker_StatusOKWithLastModified(t *testing.T) {
	var method string
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		w.Header().Set("Last-Modified", "Wed, 22 Jan 2025 15:00:00 GMT")
		w.WriteHeader(200)
	}))
	defer s.Close()

	chk := NewHTTPChecker(2 * time.Second)
	out := chk.Check(context.Background(), s.URL)
	if method != http.MethodHead {
		t.Fatalf("want HEAD request, got %s", method)
	}
	if !out.Reachable || out.StatusCode != 200 {
		t.Fatalf("want reachable 200, got %+v", out)
	}
	want := time.Date(2025, 1, 22, 15, 0, 0, 0, time.UTC)
	if out.LastModified == nil || !out.LastModified.Equal(want) {
		t.Fatalf("want last modified %v, got %v", want, out.LastModified)
	}
}

func TestHTTPChecker_MissingLastModified(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
	}))
	defer s.Close()

	out := NewHTTPChecker(2*time.Second).Check(context.Background(), s.URL)
	if !out.Reachable {
		t.Fatalf("want reachable, got %+v", out)
	}
	if out.LastModified != nil {
		t.Fatalf("want nil last modified, got %v", out.LastModified)
	}
}

func TestHTTPChecker_GarbageLastModified(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Last-Modified", "yesterday-ish")
		w.WriteHeader(200)
	}))
	defer s.Close()

	out := NewHTTPChecker(2*time.Second).Check(context.Background(), s.URL)
	if !out.Reachable || out.LastModified != nil {
		t.Fatalf("want reachable with nil last modified, got %+v", out)
	}
	if !strings.Contains(out.Reason, "unparsable") {
		t.Fatalf("want reason to mention the bad header, got %q", out.Reason)
	}
}

func TestHTTPChecker_NonOKIsUnavailable(t *testing.T) {
	for _, code := range []int{204, 404, 500} {
		s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Last-Modified", "Wed, 22 Jan 2025 15:00:00 GMT")
			w.WriteHeader(code)
		}))

		out := NewHTTPChecker(2*time.Second).Check(context.Background(), s.URL)
		s.Close()
		if out.Reachable {
			t.Fatalf("status %d: want unreachable, got %+v", code, out)
		}
		if out.LastModified != nil {
			t.Fatalf("status %d: last modified should be ignored", code)
		}
	}
}

func TestHTTPChecker_TimeoutSetsStatusZero(t *testing.T) {
	// Server sleeps longer than client timeout
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(200)
	}))
	defer s.Close()

	chk := NewHTTPChecker(50 * time.Millisecond)
	out := chk.Check(context.Background(), s.URL)
	if out.Reachable {
		t.Fatalf("want failure due to timeout, got %+v", out)
	}
	if out.StatusCode != 0 {
		t.Fatalf("want status 0 on transport error, got %d", out.StatusCode)
	}
	if out.Reason == "" {
		t.Fatalf("want non-empty error reason")
	}
}

func TestHTTPChecker_BadURL(t *testing.T) {
	out := NewHTTPChecker(time.Second).Check(context.Background(), "://nope")
	if out.Reachable || out.Reason == "" {
		t.Fatalf("want unreachable with reason, got %+v", out)
	}
}

func TestDiagnose_LiteralIPAndInvalid(t *testing.T) {
	if d := Diagnose(context.Background(), "http://127.0.0.1:8080/data.csv"); d.Class != DNSResolves {
		t.Fatalf("literal ip should resolve, got %+v", d)
	}
	if d := Diagnose(context.Background(), ""); d.Class != DNSInvalidName {
		t.Fatalf("empty host should be invalid, got %+v", d)
	}
}
