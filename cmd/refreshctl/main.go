// Command refreshctl is the operator CLI: inspect the gate and history, or
// force a single pass.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hamed0406/covidrefresh/internal/app"
	"github.com/hamed0406/covidrefresh/internal/config"
	"github.com/hamed0406/covidrefresh/internal/logging"
)

// Commands annotated remote talk to refreshd and skip local wiring.
const annotationRemote = "remote"

var (
	jsonOutput bool
	verbose    bool

	cfg    config.Config
	logger *zap.Logger
	wired  *app.App
)

var rootCmd = &cobra.Command{
	Use:           "refreshctl <command>",
	Short:         "Operate the COVID dataset refresh",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.FromEnv(); err != nil {
			return err
		}
		if !cmd.Flags().Changed("json") {
			jsonOutput = !isTerminal()
		}
		if verbose {
			logger, err = logging.NewLogger(cfg.LogDir, "debug")
			if err != nil {
				return err
			}
		} else {
			logger = zap.NewNop()
		}
		if cmd.Annotations[annotationRemote] == "true" {
			return nil
		}
		wired, err = app.Build(cmd.Context(), cfg, logger)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON (default when stdout is not a terminal)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "write debug logs to LOG_DIR")

	rootCmd.AddCommand(gateCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(lastRunCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(triggerCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	// PersistentPostRun is skipped when RunE fails.
	if wired != nil {
		wired.Shutdown()
	}
	if logger != nil {
		_ = logger.Sync()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
