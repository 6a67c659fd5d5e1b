package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/covidrefresh/internal/domain"
)

type AlerterConfig struct {
	AlertOnRecovery bool
	Cooldown        time.Duration
}

// Alerter notifies when refresh passes start failing and, optionally, when
// they recover. Skipped passes do not change the state.
type Alerter struct {
	logger   *zap.Logger
	notifier interface {
		Send(context.Context, string, string) error
	}
	cfg AlerterConfig
	now func() time.Time

	mu         sync.Mutex
	failing    bool
	known      bool
	lastSentAt time.Time
}

func NewAlerter(
	logger *zap.Logger,
	notifier interface {
		Send(context.Context, string, string) error
	},
	cfg AlerterConfig,
) *Alerter {
	return &Alerter{
		logger:   logger,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
	}
}

func (a *Alerter) Observe(ctx context.Context, out domain.RunOutcome, err error) {
	if out.Status == domain.RunSkipped && err == nil {
		return
	}
	failed := out.Status == domain.RunFailed || err != nil

	a.mu.Lock()
	now := a.now()
	stateChanged := !a.known || a.failing != failed

	// Cooldown only throttles repeated failure alerts.
	cooled := a.lastSentAt.IsZero() || now.Sub(a.lastSentAt) >= a.cfg.Cooldown
	failAlert := failed && (stateChanged || cooled)
	// A first-ever success is not a recovery.
	recoveryAlert := !failed && a.known && a.failing && a.cfg.AlertOnRecovery

	a.known = true
	a.failing = failed
	if failAlert || recoveryAlert {
		a.lastSentAt = now
	}
	a.mu.Unlock()

	if !failAlert && !recoveryAlert {
		return
	}
	title := "🔴 COVID refresh FAILED"
	if recoveryAlert {
		title = "🟢 COVID refresh RECOVERED"
	}
	if sendErr := a.notifier.Send(ctx, title, describe(out, err)); sendErr != nil {
		a.logger.Warn("alert_send_error", zap.String("run_id", out.RunID), zap.Error(sendErr))
	}
}

func describe(out domain.RunOutcome, err error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run: %s\nStatus: %s\n", out.RunID, out.Status)
	if out.RemoteLastModified != nil {
		fmt.Fprintf(&b, "Source modified: %s\n", out.RemoteLastModified.Format(time.RFC3339))
	}
	if out.Status == domain.RunCompleted {
		fmt.Fprintf(&b, "Records: %d\nCountries: %d\n", out.Records, out.Countries)
	}
	if err != nil {
		fmt.Fprintf(&b, "Error: %v\n", err)
	}
	fmt.Fprintf(&b, "Started: %s", out.StartedAt.Format(time.RFC3339))
	return b.String()
}
