package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/ems/internal/bench"
	"github.com/roach88/ems/internal/store"
	"github.com/roach88/ems/internal/workload"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	ConfigPath string
	Database   string

	// Workload overrides; applied only when the flag was set.
	Config workload.Config
}

// RunResult is the JSON payload of a completed run.
type RunResult struct {
	RunID  string        `json:"run_id,omitempty"`
	Report *bench.Report `json:"report"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts, Config: workload.DefaultConfig()}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the queue and transaction workload",
		Long: `Run the concurrent queue and transaction workload.

Worker 0 enqueues random transactions while every worker dequeues and performs
them. Afterwards all tables are summed in parallel and compared with the number
of committed updates. A mismatch exits with status 1.

Settings come from the defaults, then --config, then individual flags.

Example:
  ems run --workers 8 --transactions 1000000
  ems run --config workload.yaml --db ./ems.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkload(opts, cmd)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.ConfigPath, "config", "c", "", "path to YAML workload config")
	f.StringVar(&opts.Database, "db", "", "record the run in this SQLite database")
	f.IntVar(&opts.Config.Workers, "workers", opts.Config.Workers, "number of workers")
	f.IntVar(&opts.Config.Transactions, "transactions", opts.Config.Transactions, "transactions to generate")
	f.IntVar(&opts.Config.Tables, "tables", opts.Config.Tables, "number of tables")
	f.IntVar(&opts.Config.TableLength, "table-length", opts.Config.TableLength, "cells per table")
	f.IntVar(&opts.Config.MaxOps, "max-ops", opts.Config.MaxOps, "operations per transaction are drawn from [1, max-ops)")
	f.IntVar(&opts.Config.HeapPerTransaction, "heap-per-transaction", opts.Config.HeapPerTransaction, "queue heap bytes per transaction")
	f.IntVar(&opts.Config.QueueCapacity, "queue-capacity", opts.Config.QueueCapacity, "queue slots (0 = transactions + workers)")
	f.Uint32Var(&opts.Config.Seed, "seed", opts.Config.Seed, "generator seed (0 = from clock)")
	f.StringVar(&opts.Config.TableDir, "table-dir", opts.Config.TableDir, "directory for persistent tables")

	return cmd
}

// flagFields maps run flags to the config field they override.
var flagFields = map[string]func(dst, src *workload.Config){
	"workers":              func(d, s *workload.Config) { d.Workers = s.Workers },
	"transactions":         func(d, s *workload.Config) { d.Transactions = s.Transactions },
	"tables":               func(d, s *workload.Config) { d.Tables = s.Tables },
	"table-length":         func(d, s *workload.Config) { d.TableLength = s.TableLength },
	"max-ops":              func(d, s *workload.Config) { d.MaxOps = s.MaxOps },
	"heap-per-transaction": func(d, s *workload.Config) { d.HeapPerTransaction = s.HeapPerTransaction },
	"queue-capacity":       func(d, s *workload.Config) { d.QueueCapacity = s.QueueCapacity },
	"seed":                 func(d, s *workload.Config) { d.Seed = s.Seed },
	"table-dir":            func(d, s *workload.Config) { d.TableDir = s.TableDir },
}

func runWorkload(opts *RunOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := formatter.Logger()

	cfg, err := resolveConfig(opts, cmd)
	if err != nil {
		return outputConfigError(formatter, err)
	}
	if err := cfg.Validate(); err != nil {
		return outputConfigError(formatter, err)
	}

	// Setup signal handling for graceful shutdown
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, stopping generation", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	logger.Info("run starting",
		"workers", cfg.Workers,
		"transactions", cfg.Transactions,
		"tables", cfg.Tables,
		"table_length", cfg.TableLength,
	)
	report, runErr := bench.New(cfg, bench.WithLogger(logger)).Run(ctx)

	switch {
	case runErr == nil, bench.IsConsistencyError(runErr) && report != nil:
		// Reported below; inconsistent runs are recorded too.
	case errors.Is(runErr, context.Canceled):
		_ = formatter.Error(ErrCodeRunFailed, "run interrupted", nil)
		return WrapExitError(ExitFailure, "run interrupted", runErr)
	case bench.IsConsistencyError(runErr):
		_ = formatter.Error(ErrCodeInconsistent, runErr.Error(), nil)
		return WrapExitError(ExitFailure, "run inconsistent", runErr)
	default:
		_ = formatter.Error(ErrCodeRunFailed, runErr.Error(), nil)
		return WrapExitError(ExitFailure, "run failed", runErr)
	}

	result := RunResult{Report: report}
	if opts.Database != "" {
		id, err := recordRun(opts.Database, report, logger)
		if err != nil {
			_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to record run", err)
		}
		result.RunID = id
	}

	if runErr != nil {
		return outputInconsistentRun(formatter, result, runErr)
	}
	return outputRunResult(formatter, result)
}

// resolveConfig layers the config file and changed flags over the defaults.
func resolveConfig(opts *RunOptions, cmd *cobra.Command) (workload.Config, error) {
	cfg := workload.DefaultConfig()
	if opts.ConfigPath != "" {
		loaded, err := workload.LoadConfig(opts.ConfigPath)
		var verrs workload.ValidationErrors
		if err != nil && !errors.As(err, &verrs) {
			return cfg, err
		}
		// Flags may still fix values the file got wrong; Validate runs after.
		cfg = loaded
	}
	for name, apply := range flagFields {
		if cmd.Flags().Changed(name) {
			apply(&cfg, &opts.Config)
		}
	}
	return cfg, nil
}

func recordRun(path string, report *bench.Report, logger *slog.Logger) (string, error) {
	st, err := store.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	id, err := st.RecordRun(context.Background(), report)
	if err != nil {
		return "", err
	}
	logger.Info("run recorded", "id", id, "db", path)
	return id, nil
}

func outputRunResult(formatter *OutputFormatter, result RunResult) error {
	return formatter.Emit(result, func(w io.Writer) error {
		return writeRunText(w, result)
	})
}

// outputInconsistentRun reports a run whose checksum did not match. The
// report is still shown so the failing totals are visible.
func outputInconsistentRun(formatter *OutputFormatter, result RunResult, runErr error) error {
	err := formatter.Failure(ErrCodeInconsistent, runErr.Error(), result, func(w io.Writer) error {
		return writeRunText(w, result)
	})
	if err != nil {
		return err
	}
	return WrapExitError(ExitFailure, "run inconsistent", runErr)
}

func writeRunText(w io.Writer, result RunResult) error {
	if err := result.Report.WriteText(w); err != nil {
		return err
	}
	if result.RunID != "" {
		fmt.Fprintf(w, "Run recorded: %s\n", result.RunID)
	}
	return nil
}

// outputConfigError reports a config that could not be loaded or validated.
func outputConfigError(formatter *OutputFormatter, err error) error {
	var verrs workload.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		return outputValidationErrors(formatter, verrs)
	case errors.Is(err, os.ErrNotExist):
		_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "config not found", err)
	default:
		_ = formatter.Error(ErrCodeConfigParse, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
}
