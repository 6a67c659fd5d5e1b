package probe

import (
	"context"
	"time"

	"github.com/hamed0406/covidrefresh/internal/domain"
)

// RetryChecker retries failed probes. Timeout, when set, bounds the whole
// sequence of attempts and backoffs, not each attempt.
type RetryChecker struct {
	Inner    Checker
	Attempts int
	Backoff  time.Duration
	Timeout  time.Duration
}

func (r *RetryChecker) Check(ctx context.Context, target string) domain.Availability {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var last domain.Availability
	for i := 0; i < attempts; i++ {
		last = r.Inner.Check(ctx, target)
		if last.Reachable {
			return last
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			last.Reason += " (cancelled)"
			return last
		case <-time.After(r.Backoff):
		}
	}
	if attempts > 1 {
		last.Reason += " (after retries)"
	}
	return last
}
