// Command refresh runs a single gated refresh of the COVID dataset and exits.
// It takes no flags; configuration comes from the environment.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/hamed0406/covidrefresh/internal/app"
	"github.com/hamed0406/covidrefresh/internal/config"
	"github.com/hamed0406/covidrefresh/internal/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return 1
	}
	logger, err := logging.NewLogger(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup_failed", zap.Error(err))
		return 1
	}
	defer a.Shutdown()

	out, err := a.Pipeline.Run(ctx)
	if err != nil {
		logger.Error("refresh_failed", zap.String("run_id", out.RunID), zap.String("status", string(out.Status)), zap.Error(err))
		return 1
	}
	return 0
}
