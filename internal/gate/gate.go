// Package gate decides, once per run, whether the upstream dataset is newer
// than the last successful ingest.
package gate

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/covidrefresh/internal/domain"
	"github.com/hamed0406/covidrefresh/internal/probe"
)

// Decision reasons.
const (
	ReasonUnavailable = "source_unavailable"
	ReasonNotModified = "not_modified"
	ReasonFirstRun    = "first_run"
	ReasonUpdated     = "source_updated"
)

// WatermarkSource is the read side of the snapshot store the gate needs.
type WatermarkSource interface {
	LatestCommit(ctx context.Context, table string) (domain.Watermark, error)
}

type Decision struct {
	Proceed      bool                `json:"proceed"`
	Reason       string              `json:"reason"`
	Availability domain.Availability `json:"availability"`
	RemoteTime   time.Time           `json:"remote_time"`
	Watermark    domain.Watermark    `json:"-"`
}

type Gate struct {
	Logger    *zap.Logger
	Checker   probe.Checker
	History   WatermarkSource
	SourceURL string
	Table     string

	// Now substitutes for a missing Last-Modified header.
	Now func() time.Time
	// Diagnose, when set, is called after a transport-level probe failure.
	Diagnose func(ctx context.Context, rawURL string) probe.DNSStatus
}

func New(logger *zap.Logger, checker probe.Checker, history WatermarkSource, sourceURL, table string) *Gate {
	return &Gate{
		Logger:    logger,
		Checker:   checker,
		History:   history,
		SourceURL: sourceURL,
		Table:     table,
		Now:       time.Now,
	}
}

func (g *Gate) ShouldProcess(ctx context.Context) bool {
	return g.Evaluate(ctx).Proceed
}

// Evaluate never fails: an unreachable source closes the gate and an
// unreadable history counts as no history.
func (g *Gate) Evaluate(ctx context.Context) Decision {
	avail := g.Checker.Check(ctx, g.SourceURL)
	d := Decision{Availability: avail}
	if !avail.Reachable {
		d.Reason = ReasonUnavailable
		g.logUnavailable(ctx, avail)
		return d
	}

	if avail.LastModified != nil {
		d.RemoteTime = *avail.LastModified
	} else {
		d.RemoteTime = g.now()
		g.Logger.Warn("gate_last_modified_missing",
			zap.String("url", g.SourceURL),
			zap.String("reason", avail.Reason),
			zap.Time("substituted", d.RemoteTime),
		)
	}

	w, err := g.History.LatestCommit(ctx, g.Table)
	if err != nil {
		g.Logger.Warn("gate_history_unreadable", zap.String("table", g.Table), zap.Error(err))
		w = domain.Watermark{}
	}
	d.Watermark = w

	switch {
	case !w.Valid:
		d.Proceed, d.Reason = true, ReasonFirstRun
	case w.Before(d.RemoteTime):
		d.Proceed, d.Reason = true, ReasonUpdated
	default:
		d.Reason = ReasonNotModified
	}

	g.Logger.Info("gate_evaluated",
		zap.Bool("proceed", d.Proceed),
		zap.String("reason", d.Reason),
		zap.Time("remote_last_modified", d.RemoteTime),
		zap.Stringer("watermark", w),
	)
	return d
}

func (g *Gate) now() time.Time {
	if g.Now == nil {
		return time.Now().UTC()
	}
	return g.Now().UTC()
}

func (g *Gate) logUnavailable(ctx context.Context, avail domain.Availability) {
	fields := []zap.Field{
		zap.String("url", g.SourceURL),
		zap.Int("status", avail.StatusCode),
		zap.String("reason", avail.Reason),
	}
	if avail.StatusCode == 0 && g.Diagnose != nil {
		dns := g.Diagnose(ctx, g.SourceURL)
		fields = append(fields,
			zap.String("dns_class", dns.Class),
			zap.Strings("nameservers", dns.Nameservers),
			zap.String("resolver_error", dns.ResolverError),
		)
	}
	g.Logger.Warn("gate_source_unavailable", fields...)
}
