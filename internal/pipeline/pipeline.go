// Package pipeline runs one refresh: gate, ingest, aggregates, archive, commit.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/covidrefresh/internal/archive"
	"github.com/hamed0406/covidrefresh/internal/config"
	"github.com/hamed0406/covidrefresh/internal/domain"
	"github.com/hamed0406/covidrefresh/internal/events"
	"github.com/hamed0406/covidrefresh/internal/export"
	"github.com/hamed0406/covidrefresh/internal/gate"
	"github.com/hamed0406/covidrefresh/internal/idgen"
	"github.com/hamed0406/covidrefresh/internal/publish"
	"github.com/hamed0406/covidrefresh/internal/repo"
	"github.com/hamed0406/covidrefresh/internal/source"
	"github.com/hamed0406/covidrefresh/internal/transform"
)

type Evaluator interface {
	Evaluate(ctx context.Context) gate.Decision
}

type Fetcher interface {
	Fetch(ctx context.Context, url, dest string) (int64, error)
}

type Tables struct {
	Raw            string
	LatestFiveDays string
	TotalCases     string
}

type Paths struct {
	RawCSV            string
	LatestFiveDaysCSV string
	TotalCasesCSV     string
	Archive           string
}

type Pipeline struct {
	Logger    *zap.Logger
	Gate      Evaluator
	Warehouse repo.Warehouse
	Fetcher   Fetcher
	SourceURL string
	Tables    Tables
	Paths     Paths

	// Optional.
	Runs        repo.RunStore
	Destination publish.Destination
	Events      events.Publisher
	Subject     string

	Now   func() time.Time
	NewID func() (string, error)
}

func New(logger *zap.Logger, cfg config.Config, g Evaluator, wh repo.Warehouse, f Fetcher) *Pipeline {
	return &Pipeline{
		Logger:    logger,
		Gate:      g,
		Warehouse: wh,
		Fetcher:   f,
		SourceURL: cfg.SourceURL,
		Tables: Tables{
			Raw:            cfg.TableName,
			LatestFiveDays: cfg.LatestFiveDaysTable,
			TotalCases:     cfg.TotalCasesTable,
		},
		Paths: Paths{
			RawCSV:            cfg.RawCSVPath(),
			LatestFiveDaysCSV: cfg.LatestFiveDaysCSV(),
			TotalCasesCSV:     cfg.TotalCasesCSV(),
			Archive:           cfg.ArchivePath(),
		},
		Subject: cfg.NATSSubject,
		Now:     time.Now,
		NewID:   idgen.NewRunID,
	}
}

// Run performs a single pass. A closed gate is not an error. Any failure
// between the gate and the commit rolls the store session back, so the
// watermark only moves when every step succeeded. Failures of the optional
// publish steps are returned but leave the commit in place.
func (p *Pipeline) Run(ctx context.Context) (domain.RunOutcome, error) {
	out := domain.RunOutcome{StartedAt: p.now()}
	id, err := p.newID()
	if err != nil {
		out.Status, out.Reason, out.FinishedAt = domain.RunFailed, err.Error(), p.now()
		p.Logger.Error("run_failed", zap.Error(err))
		return out, err
	}
	out.RunID = id
	log := p.Logger.With(zap.String("run_id", id))

	d := p.Gate.Evaluate(ctx)
	if d.Availability.Reachable {
		rt := d.RemoteTime
		out.RemoteLastModified = &rt
	}
	if !d.Proceed {
		out.Status, out.Reason, out.FinishedAt = domain.RunSkipped, d.Reason, p.now()
		log.Info("gate_skip", zap.String("reason", d.Reason))
		p.record(ctx, log, out)
		return out, nil
	}

	if err := p.ingest(ctx, log, &out); err != nil {
		out.Status, out.Reason, out.FinishedAt = domain.RunFailed, err.Error(), p.now()
		log.Error("run_failed", zap.Error(err), zap.Duration("elapsed", out.Duration()))
		p.record(ctx, log, out)
		return out, err
	}

	out.Status, out.Reason, out.FinishedAt = domain.RunCompleted, d.Reason, p.now()
	log.Info("run_completed",
		zap.Int("records", out.Records),
		zap.Int("latest_five_days", out.LatestFiveDays),
		zap.Int("countries", out.Countries),
		zap.String("archive", out.Archive),
		zap.Duration("elapsed", out.Duration()),
	)

	perr := p.postCommit(ctx, out)
	if perr != nil {
		log.Warn("run_post_commit_failed", zap.Error(perr))
		perr = fmt.Errorf("post-commit: %w", perr)
	}
	p.record(ctx, log, out)
	return out, perr
}

func (p *Pipeline) ingest(ctx context.Context, log *zap.Logger, out *domain.RunOutcome) (err error) {
	sess, err := p.Warehouse.Begin(ctx, out.RunID)
	if err != nil {
		return fmt.Errorf("begin session: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := sess.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, repo.ErrSessionDone) {
			err = multierr.Append(err, fmt.Errorf("rollback: %w", rbErr))
		}
	}()

	if _, err := p.Fetcher.Fetch(ctx, p.SourceURL, p.Paths.RawCSV); err != nil {
		return err
	}
	records, err := source.ParseFile(p.Paths.RawCSV)
	if err != nil {
		return fmt.Errorf("parse %s: %w", p.Paths.RawCSV, err)
	}
	if err := sess.OverwriteRecords(ctx, p.Tables.Raw, records); err != nil {
		return fmt.Errorf("overwrite %s: %w", p.Tables.Raw, err)
	}
	out.Records = len(records)
	log.Info("raw_loaded", zap.String("table", p.Tables.Raw), zap.Int("rows", len(records)))

	latest := transform.LatestFiveDays(records)
	if err := sess.OverwriteRecords(ctx, p.Tables.LatestFiveDays, latest); err != nil {
		return fmt.Errorf("overwrite %s: %w", p.Tables.LatestFiveDays, err)
	}
	if err := export.WriteRecords(p.Paths.LatestFiveDaysCSV, latest); err != nil {
		return err
	}
	out.LatestFiveDays = len(latest)

	totals := transform.TotalCases(records)
	if err := sess.OverwriteTotals(ctx, p.Tables.TotalCases, totals); err != nil {
		return fmt.Errorf("overwrite %s: %w", p.Tables.TotalCases, err)
	}
	if err := export.WriteTotals(p.Paths.TotalCasesCSV, totals); err != nil {
		return err
	}
	out.Countries = len(totals)

	if err := archive.Write(p.Paths.Archive, p.Paths.LatestFiveDaysCSV, p.Paths.TotalCasesCSV); err != nil {
		return fmt.Errorf("archive: %w", err)
	}
	out.Archive = p.Paths.Archive

	if err := sess.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (p *Pipeline) postCommit(ctx context.Context, out domain.RunOutcome) error {
	var (
		errs error
		uri  string
	)
	if p.Destination != nil {
		u, err := p.Destination.Upload(ctx, out.Archive)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("upload archive: %w", err))
		} else {
			uri = u
			p.Logger.Info("archive_uploaded", zap.String("run_id", out.RunID), zap.String("uri", uri))
		}
	}
	if p.Events != nil {
		ev := events.NewRefreshCompleted(p.Tables.Raw, out, uri)
		if err := p.Events.Publish(ctx, p.subject(), ev); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("publish event: %w", err))
		}
	}
	return errs
}

// record stores the outcome even if the run's context was cancelled.
func (p *Pipeline) record(ctx context.Context, log *zap.Logger, out domain.RunOutcome) {
	if p.Runs == nil {
		return
	}
	if err := p.Runs.AppendRun(context.WithoutCancel(ctx), out); err != nil {
		log.Warn("run_record_error", zap.Error(err))
	}
}

func (p *Pipeline) subject() string {
	if p.Subject == "" {
		return events.TopicRefreshCompleted
	}
	return p.Subject
}

func (p *Pipeline) now() time.Time {
	if p.Now == nil {
		return time.Now().UTC()
	}
	return p.Now().UTC()
}

func (p *Pipeline) newID() (string, error) {
	if p.NewID == nil {
		return idgen.NewRunID()
	}
	return p.NewID()
}
