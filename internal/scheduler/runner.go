package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/covidrefresh/internal/domain"
)

// Job is one refresh pass.
type Job interface {
	Run(ctx context.Context) (domain.RunOutcome, error)
}

// Observer is told about every finished pass.
type Observer interface {
	Observe(ctx context.Context, out domain.RunOutcome, err error)
}

type Runner struct {
	Logger   *zap.Logger
	Job      Job
	Interval time.Duration
	Timeout  time.Duration
	Observer Observer

	mu sync.Mutex
}

func NewRunner(logger *zap.Logger, job Job, interval, timeout time.Duration, obs Observer) *Runner {
	if interval < 0 {
		interval = 0
	}
	return &Runner{
		Logger:   logger,
		Job:      job,
		Interval: interval,
		Timeout:  timeout,
		Observer: obs,
	}
}

// Run does an immediate pass, then one pass per tick, until ctx is
// cancelled. A tick that fires during a long pass is dropped.
func (r *Runner) Run(ctx context.Context) {
	if r.Interval == 0 {
		r.Logger.Info("scheduler_disabled")
		return
	}
	t := time.NewTicker(r.Interval)
	defer t.Stop()

	r.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			r.Logger.Info("scheduler_stopped")
			return
		case <-t.C:
			r.runOnce(ctx)
		}
	}
}

func (r *Runner) runOnce(ctx context.Context) {
	_, _ = r.RunNow(ctx)
}

// RunNow performs one pass outside the ticker, waiting for any pass already
// in progress to finish first.
func (r *Runner) RunNow(ctx context.Context) (domain.RunOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	out, err := r.Job.Run(ctx)
	if err != nil {
		r.Logger.Warn("scheduler_pass_error",
			zap.String("run_id", out.RunID),
			zap.String("status", string(out.Status)),
			zap.Error(err),
		)
	} else {
		r.Logger.Debug("scheduler_pass",
			zap.String("run_id", out.RunID),
			zap.String("status", string(out.Status)),
			zap.String("reason", out.Reason),
		)
	}
	if r.Observer != nil {
		r.Observer.Observe(ctx, out, err)
	}
	return out, err
}
