package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/hamed0406/covidrefresh/internal/domain"
	"github.com/hamed0406/covidrefresh/internal/gate"
)

var historyLimit int

var gateCmd = &cobra.Command{
	Use:   "gate",
	Short: "Probe the source and show whether a refresh would run",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d := wired.Gate.Evaluate(cmd.Context())
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), d)
		}
		printDecision(cmd.OutOrStdout(), d)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history [table]",
	Short: "List the commit history of a table (default: the raw table)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		table := cfg.TableName
		if len(args) == 1 {
			table = args[0]
		}
		h, err := wired.Store.History(cmd.Context(), table, historyLimit)
		if err != nil {
			return fmt.Errorf("history %s: %w", table, err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), h)
		}
		printHistory(cmd.OutOrStdout(), table, h)
		return nil
	},
}

var lastRunCmd = &cobra.Command{
	Use:   "last-run",
	Short: "Show the most recent recorded run",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		run, err := wired.Store.LatestRun(cmd.Context())
		if err != nil {
			return err
		}
		if run == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
			return nil
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), run)
		}
		printOutcome(cmd.OutOrStdout(), *run)
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one gated refresh now",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := wired.Pipeline.Run(cmd.Context())
		if jsonOutput {
			if perr := printJSON(cmd.OutOrStdout(), out); perr != nil {
				return perr
			}
		} else {
			printOutcome(cmd.OutOrStdout(), out)
		}
		return err
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "maximum commits to show (0 = all)")
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printDecision(w io.Writer, d gate.Decision) {
	verdict := "SKIP"
	if d.Proceed {
		verdict = "REFRESH"
	}
	fmt.Fprintf(w, "%s (%s)\n", verdict, d.Reason)
	if !d.Availability.Reachable {
		fmt.Fprintf(w, "  source:    unavailable (%s)\n", d.Availability.Reason)
		return
	}
	fmt.Fprintf(w, "  remote:    %s\n", d.RemoteTime.Format(time.RFC3339))
	fmt.Fprintf(w, "  watermark: %s\n", d.Watermark)
}

func printHistory(w io.Writer, table string, h []domain.Commit) {
	if len(h) == 0 {
		fmt.Fprintf(w, "No history for %s.\n", table)
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tCOMMITTED\tOPERATION\tROWS\tRUN")
	for _, c := range h {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n",
			c.Version, c.CommittedAt.Format(time.RFC3339), c.Operation, c.RowCount, c.RunID)
	}
	_ = tw.Flush()
}

func printOutcome(w io.Writer, o domain.RunOutcome) {
	fmt.Fprintf(w, "%s  %s", o.RunID, o.Status)
	if o.Reason != "" {
		fmt.Fprintf(w, " (%s)", o.Reason)
	}
	fmt.Fprintln(w)
	if o.RemoteLastModified != nil {
		fmt.Fprintf(w, "  source modified: %s\n", o.RemoteLastModified.Format(time.RFC3339))
	}
	if o.Status == domain.RunCompleted {
		fmt.Fprintf(w, "  records: %d  latest five days: %d  countries: %d\n", o.Records, o.LatestFiveDays, o.Countries)
		fmt.Fprintf(w, "  archive: %s\n", o.Archive)
	}
	fmt.Fprintf(w, "  took: %s\n", o.Duration().Round(time.Millisecond))
}
