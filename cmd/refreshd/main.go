// Command refreshd runs the refresh on a schedule and serves the status API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/covidrefresh/internal/app"
	"github.com/hamed0406/covidrefresh/internal/config"
	"github.com/hamed0406/covidrefresh/internal/httpapi"
	apimw "github.com/hamed0406/covidrefresh/internal/httpapi/middleware"
	"github.com/hamed0406/covidrefresh/internal/logging"
	"github.com/hamed0406/covidrefresh/internal/notify"
	"github.com/hamed0406/covidrefresh/internal/scheduler"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger, err := logging.NewLogger(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := serve(cfg, logger); err != nil {
		logger.Error("refreshd_exit", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func serve(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Shutdown()

	notifiers := notify.Multi{notify.NewLog(logger)}
	if s := notify.NewSlack(cfg.SlackWebhook); s != nil {
		notifiers = append(notifiers, s)
	}
	alerter := scheduler.NewAlerter(logger, notifiers, scheduler.AlerterConfig{
		AlertOnRecovery: cfg.AlertOnRecovery,
		Cooldown:        cfg.RunInterval * 6,
	})
	runner := scheduler.NewRunner(logger, a.Pipeline, cfg.RunInterval, cfg.RunInterval, alerter)

	api := httpapi.NewServer(logger, a.Store, a.Store, a.Gate, cfg.ArchivePath(),
		cfg.TableName, cfg.LatestFiveDaysTable, cfg.TotalCasesTable)
	api.Trigger = runner
	keys := apimw.Keys{Read: cfg.APIKeys, Admin: cfg.APIAdminKeys}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Router(keys, cfg.AllowedOrigins, cfg.APIRatePerMin, max(cfg.APIRatePerMin/2, 1)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api_listen", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	done := make(chan struct{})
	go func() {
		runner.Run(ctx)
		close(done)
	}()

	select {
	case <-ctx.Done():
	case err = <-errCh:
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		logger.Warn("api_shutdown_error", zap.Error(serr))
	}
	<-done
	logger.Info("refreshd_stopped")
	return err
}
