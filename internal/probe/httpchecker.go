package probe

import (
	"context"
	"net/http"
	"time"

	"github.com/hamed0406/covidrefresh/internal/domain"
)

type HTTPChecker struct {
	Client *http.Client
}

func NewHTTPChecker(timeout time.Duration) *HTTPChecker {
	return &HTTPChecker{
		Client: &http.Client{Timeout: timeout},
	}
}

// Check issues a HEAD request. Only a 200 counts as available; the
// Last-Modified header is the single piece of metadata consumed.
func (h *HTTPChecker) Check(ctx context.Context, target string) domain.Availability {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return domain.Availability{Reason: err.Error()}
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		return domain.Availability{Reason: err.Error()}
	}
	defer resp.Body.Close()

	out := domain.Availability{
		Reachable:  resp.StatusCode == http.StatusOK,
		StatusCode: resp.StatusCode,
		Reason:     resp.Status,
	}
	if !out.Reachable {
		return out
	}

	if raw := resp.Header.Get("Last-Modified"); raw != "" {
		if t, err := http.ParseTime(raw); err == nil {
			t = t.UTC()
			out.LastModified = &t
		} else {
			out.Reason = resp.Status + " (unparsable Last-Modified " + raw + ")"
		}
	}
	return out
}
