package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/ems/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Limit    int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recorded runs, or show one run",
		Long: `List runs recorded with "ems run --db", newest first.

With a run ID, print that run's full report.

Example:
  ems history --db ./ems.db --limit 5
  ems history --db ./ems.db 01920c4e-7b1a-7cc3-9d2e-6b1f0d6c1a11`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runShow(opts, args[0], cmd)
			}
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum runs to list (0 = all)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func openHistory(formatter *OutputFormatter, path string) (*store.Store, error) {
	st, err := store.Open(path)
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	if formatter.Verbose {
		if v, err := st.SchemaVersion(context.Background()); err == nil {
			formatter.VerboseLog("Opened %s (schema v%d)", path, v)
		}
	}
	return st, nil
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	st, err := openHistory(formatter, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.ListRuns(context.Background(), opts.Limit)
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	if runs == nil {
		runs = []store.RunSummary{}
	}
	return formatter.Emit(runs, func(w io.Writer) error {
		return writeRunList(w, runs)
	})
}

func writeRunList(w io.Writer, runs []store.RunSummary) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No runs recorded")
		return err
	}
	for _, r := range runs {
		status := "ok"
		if !r.Consistent {
			status = "MISMATCH"
		}
		_, err := fmt.Fprintf(w, "%s  %s  workers=%d  transactions=%d  updates=%d  elapsed=%s  %s\n",
			r.ID,
			r.StartedAt.Local().Format(time.DateTime),
			r.Workers,
			r.Transactions,
			r.Updates,
			r.Elapsed.Round(time.Millisecond),
			status,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func runShow(opts *HistoryOptions, id string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	st, err := openHistory(formatter, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	run, err := st.GetRun(context.Background(), id)
	if errors.Is(err, store.ErrRunNotFound) {
		_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "run not found", err)
	}
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load run", err)
	}

	return formatter.Emit(run, func(w io.Writer) error {
		fmt.Fprintf(w, "Run %s (started %s)\n", run.ID, run.StartedAt.Local().Format(time.DateTime))
		return run.Report.WriteText(w)
	})
}
