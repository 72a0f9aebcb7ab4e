// Package bench runs the concurrent queue and transaction workload.
//
// One worker generates random transactions and enqueues them on a shared
// work queue while every worker, the generator included once it is done,
// dequeues and performs them. Each transaction reads every cell it names and
// increments the cells it holds read-write. A final checksum over all tables
// must equal the number of increments, otherwise the run fails with a
// ConsistencyError.
//
// Run phases:
//
//  1. tables initialized: create the tables, queue and counters
//  2. transactions performed: generate and consume the workload
//  3. elements checked: sum every table in parallel and compare
package bench

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/roach88/ems/internal/counter"
	"github.com/roach88/ems/internal/queue"
	"github.com/roach88/ems/internal/tagged"
	"github.com/roach88/ems/internal/txn"
	"github.com/roach88/ems/internal/worker"
	"github.com/roach88/ems/internal/workload"
)

// Counter cells.
const (
	updatesCell = 0
	readsCell   = 1
	checkCell   = 0
)

// Runner executes one workload.
type Runner struct {
	cfg    workload.Config
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger for phase and worker events.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

// WithClock replaces time.Now for phase timing.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

// New creates a Runner for cfg. The config is validated by Run.
func New(cfg workload.Config, opts ...Option) *Runner {
	r := &Runner{
		cfg:    cfg,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// shared is the state every worker of a run sees.
type shared struct {
	tables    []*tagged.Array
	work      *queue.Queue
	totalNops *counter.Counter
	checkNops *counter.Counter
	coord     *txn.Coordinator
	team      *worker.Team
}

// Run executes the workload and returns its report.
//
// A checksum mismatch returns the report together with a *ConsistencyError.
// Cancelling ctx stops transaction generation; workers drain what was
// already queued and Run returns ctx.Err() without a checksum.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	if err := r.cfg.Validate(); err != nil {
		return nil, err
	}

	report := &Report{Config: r.cfg, StartedAt: r.now()}

	start := r.now()
	s, err := r.setup()
	if err != nil {
		return nil, err
	}
	defer r.teardown(s)
	r.phase(report, PhaseTablesInitialized, int64(r.cfg.Tables), start)

	start = r.now()
	if err := r.perform(ctx, s, report); err != nil {
		return nil, err
	}
	elapsed := r.now().Sub(start)
	report.TxnStats = s.coord.Stats()
	report.Transactions = report.TxnStats.Committed
	if report.Updates, err = s.totalNops.ReadFF(updatesCell); err != nil {
		return nil, err
	}
	if report.Reads, err = s.totalNops.ReadFF(readsCell); err != nil {
		return nil, err
	}
	report.addPhase(PhaseTransactionsPerformed, report.Transactions, elapsed)
	report.addPhase(PhaseTableUpdates, report.Updates, elapsed)
	report.addPhase(PhaseElementsReferenced, report.Updates+report.Reads, elapsed)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start = r.now()
	if err := r.checksum(s); err != nil {
		return nil, err
	}
	r.phase(report, PhaseElementsChecked, int64(r.cfg.Tables)*int64(r.cfg.TableLength), start)

	if report.Checksum, err = s.checkNops.ReadFF(checkCell); err != nil {
		return nil, err
	}
	report.Consistent = report.Checksum == report.Updates
	if !report.Consistent {
		r.logger.Error("checksum mismatch",
			"sum", report.Checksum,
			"expected", report.Updates,
		)
		return report, NewChecksumError(report.Updates, report.Checksum)
	}

	r.logger.Info("run complete",
		"transactions", report.Transactions,
		"updates", report.Updates,
		"reads", report.Reads,
	)
	return report, nil
}

func (r *Runner) phase(report *Report, name string, ops int64, start time.Time) {
	elapsed := r.now().Sub(start)
	report.addPhase(name, ops, elapsed)
	r.logger.Info("phase complete",
		"phase", name,
		"ops", ops,
		"elapsed", elapsed,
	)
}

func (r *Runner) setup() (*shared, error) {
	s := &shared{
		coord: txn.NewCoordinator(txn.WithLogger(r.logger)),
		team:  worker.NewTeam(r.cfg.Workers),
	}

	if r.cfg.TableDir != "" {
		if err := os.MkdirAll(r.cfg.TableDir, 0o755); err != nil {
			return nil, fmt.Errorf("create table directory: %w", err)
		}
	}

	zero := tagged.Int(0)
	for n := 0; n < r.cfg.Tables; n++ {
		opts := tagged.Options{InitialTag: tagged.TagFull, Fill: &zero}
		if r.cfg.TableDir != "" {
			opts.Filename = filepath.Join(r.cfg.TableDir, fmt.Sprintf("ems_tm%d", n))
		}
		t, err := tagged.New(r.cfg.TableLength, opts)
		if err != nil {
			r.teardown(s)
			return nil, fmt.Errorf("create table %d: %w", n, err)
		}
		s.tables = append(s.tables, t)
	}

	var err error
	if s.work, err = queue.New(r.cfg.EffectiveQueueCapacity(), r.cfg.HeapSize()); err != nil {
		r.teardown(s)
		return nil, fmt.Errorf("create work queue: %w", err)
	}
	if s.totalNops, err = counter.New(2); err != nil {
		r.teardown(s)
		return nil, err
	}
	if s.checkNops, err = counter.New(1); err != nil {
		r.teardown(s)
		return nil, err
	}

	r.logger.Debug("shared data initialized",
		"tables", r.cfg.Tables,
		"table_length", r.cfg.TableLength,
		"queue_capacity", s.work.Cap(),
		"persistent", r.cfg.TableDir != "",
	)
	return s, nil
}

func (r *Runner) teardown(s *shared) {
	for n, t := range s.tables {
		if err := t.Sync(); err != nil {
			r.logger.Warn("table sync failed", "table", n, "error", err)
		}
		if err := t.Close(); err != nil {
			r.logger.Warn("table close failed", "table", n, "error", err)
		}
	}
	s.tables = nil
}

// perform runs the generate-and-consume phase on every worker.
func (r *Runner) perform(ctx context.Context, s *shared, report *Report) error {
	var enqueued phaseResult
	err := s.team.Run(func(id int) error {
		var genErr error
		if id == 0 {
			enqueued, genErr = r.generate(ctx, s)
		}
		if err := r.consume(id, s); err != nil {
			return err
		}
		return genErr
	})
	if enqueued.ops > 0 {
		report.addPhase(PhaseTransactionsEnqueued, enqueued.ops, enqueued.elapsed)
	}
	return err
}

type phaseResult struct {
	ops     int64
	elapsed time.Duration
}

// generate enqueues the workload followed by one sentinel per worker. The
// sentinels are enqueued even when generation fails so no consumer waits
// forever.
func (r *Runner) generate(ctx context.Context, s *shared) (phaseResult, error) {
	start := r.now()
	gen := workload.NewGenerator(r.cfg)

	var genErr error
	for n := 0; n < r.cfg.Transactions; n++ {
		if err := ctx.Err(); err != nil {
			genErr = err
			break
		}
		payload, err := workload.Encode(gen.Next())
		if err != nil {
			genErr = err
			break
		}
		if err := s.work.Enqueue(payload); err != nil {
			genErr = fmt.Errorf("enqueue transaction %d: %w", n, err)
			break
		}
	}
	res := phaseResult{ops: int64(gen.Generated()), elapsed: r.now().Sub(start)}

	if err := s.work.EnqueueSentinels(s.team.Size()); err != nil {
		return res, fmt.Errorf("enqueue sentinels: %w", err)
	}
	r.logger.Info("phase complete",
		"phase", PhaseTransactionsEnqueued,
		"ops", res.ops,
		"elapsed", res.elapsed,
	)
	return res, genErr
}

// consume performs dequeued transactions until this worker's sentinel.
// After the first failure the worker keeps draining without performing so
// the generator is never left blocked on a full queue.
func (r *Runner) consume(id int, s *shared) error {
	var (
		updates, reads int64
		firstErr       error
	)
	n, err := s.work.Consume(func(payload []byte) error {
		if firstErr != nil {
			return nil
		}
		u, rd, err := r.execute(s, payload)
		if err != nil {
			firstErr = err
			r.logger.Error("transaction failed", "worker", id, "error", err)
			return nil
		}
		updates += u
		reads += rd
		return nil
	})
	if err != nil {
		return err
	}

	if _, err := s.totalNops.FAA(updatesCell, updates); err != nil {
		return err
	}
	if _, err := s.totalNops.FAA(readsCell, reads); err != nil {
		return err
	}
	r.logger.Debug("worker done",
		"worker", id,
		"transactions", n,
		"updates", updates,
		"reads", reads,
	)
	return firstErr
}

// execute performs one transaction payload and returns its update and read
// counts.
func (r *Runner) execute(s *shared, payload []byte) (int64, int64, error) {
	ops, err := workload.Decode(payload)
	if err != nil {
		return 0, 0, NewBadTransactionError("%v", err)
	}

	refs := make([]txn.Ref, len(ops))
	for i, op := range ops {
		if op.Table < 0 || op.Table >= len(s.tables) {
			return 0, 0, NewBadTransactionError("table %d out of range", op.Table)
		}
		mode := txn.ReadWrite
		if op.ReadOnly {
			mode = txn.ReadOnly
		}
		refs[i] = txn.Ref{Array: s.tables[op.Table], Index: op.Index, Mode: mode}
	}

	var updates, reads int64
	err = s.coord.Do(txn.Dedupe(refs), func(h *txn.Handle) error {
		updates, reads = 0, 0
		for _, ref := range h.Refs() {
			v, err := h.Read(ref.Array, ref.Index)
			if err != nil {
				return err
			}
			if ref.Mode == txn.ReadOnly {
				reads++
				continue
			}
			if err := h.Write(ref.Array, ref.Index, tagged.Int(v.Int+1)); err != nil {
				return err
			}
			updates++
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return updates, reads, nil
}

// checksum sums every table in parallel into the check counter.
func (r *Runner) checksum(s *shared) error {
	return s.team.ParallelForEach(0, len(s.tables), func(n int) error {
		t := s.tables[n]
		var sum int64
		for i := 0; i < t.Len(); i++ {
			v, err := t.Read(i)
			if err != nil {
				return err
			}
			sum += v.Int
		}
		_, err := s.checkNops.FAA(checkCell, sum)
		return err
	})
}
