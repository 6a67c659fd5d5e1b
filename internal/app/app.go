// Package app wires configuration into the stores, gate and pipeline shared
// by the commands.
package app

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/covidrefresh/internal/config"
	"github.com/hamed0406/covidrefresh/internal/events"
	"github.com/hamed0406/covidrefresh/internal/gate"
	"github.com/hamed0406/covidrefresh/internal/pipeline"
	"github.com/hamed0406/covidrefresh/internal/probe"
	"github.com/hamed0406/covidrefresh/internal/publish"
	"github.com/hamed0406/covidrefresh/internal/repo"
	"github.com/hamed0406/covidrefresh/internal/repo/memory"
	pg "github.com/hamed0406/covidrefresh/internal/repo/postgres"
	"github.com/hamed0406/covidrefresh/internal/source"
)

type Store interface {
	repo.Warehouse
	repo.RunStore
}

type App struct {
	Logger   *zap.Logger
	Config   config.Config
	Store    Store
	Gate     *gate.Gate
	Pipeline *pipeline.Pipeline

	closers []func() error
}

func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (a *App, err error) {
	a = &App{Logger: logger, Config: cfg}
	defer func() {
		if err != nil {
			err = multierr.Append(err, a.Close())
			a = nil
		}
	}()

	if cfg.DatabaseURL != "" {
		s, err := pg.New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return a, fmt.Errorf("postgres: %w", err)
		}
		a.Store = s
		a.closers = append(a.closers, s.Close)
	} else {
		logger.Warn("store_memory", zap.String("hint", "set DATABASE_URL to keep history across restarts"))
		a.Store = memory.New()
	}

	checker := &probe.RetryChecker{
		Inner:    probe.NewHTTPChecker(cfg.ProbeTimeout),
		Attempts: cfg.RetryAttempts,
		Backoff:  cfg.RetryBackoff,
		Timeout:  cfg.ProbeTimeout,
	}
	a.Gate = gate.New(logger, checker, a.Store, cfg.SourceURL, cfg.TableName)
	a.Gate.Diagnose = probe.Diagnose

	p := pipeline.New(logger, cfg, a.Gate, a.Store, source.NewDownloader(cfg.DownloadTimeout, logger))
	p.Runs = a.Store

	if cfg.S3Bucket != "" {
		dest, err := publish.NewS3Destination(ctx, cfg.S3Bucket, cfg.S3Key, cfg.S3Region, cfg.S3Endpoint)
		if err != nil {
			return a, fmt.Errorf("s3: %w", err)
		}
		p.Destination = dest
	}
	if cfg.NATSURL != "" {
		pub, err := events.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			return a, err
		}
		p.Events = pub
		a.closers = append(a.closers, pub.Close)
	}
	a.Pipeline = p

	logger.Info("app_ready",
		zap.String("source", cfg.SourceURL),
		zap.String("table", cfg.TableName),
		zap.Bool("postgres", cfg.DatabaseURL != ""),
		zap.Bool("s3", p.Destination != nil),
		zap.Bool("nats", p.Events != nil),
	)
	return a, nil
}

// Close releases connections in reverse order of creation.
func (a *App) Close() error {
	var errs error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = multierr.Append(errs, a.closers[i]())
	}
	a.closers = nil
	return errs
}

// Shutdown is Close for deferred use: failures are logged, not returned.
func (a *App) Shutdown() {
	if err := a.Close(); err != nil {
		a.Logger.Warn("shutdown_error", zap.Error(err))
	}
}
