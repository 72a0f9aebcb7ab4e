package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sugawarayuuta/sonnet"

	"github.com/roach88/ems/internal/bench"
	"github.com/roach88/ems/internal/workload"
)

// timeLayout is fixed width so started_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrRunNotFound indicates a run ID with no recorded run.
var ErrRunNotFound = errors.New("run not found")

// RunSummary is the listing view of a recorded run.
type RunSummary struct {
	ID           string        `json:"id"`
	StartedAt    time.Time     `json:"started_at"`
	Workers      int           `json:"workers"`
	Transactions int64         `json:"transactions"`
	Updates      int64         `json:"updates"`
	Reads        int64         `json:"reads"`
	Checksum     int64         `json:"checksum"`
	Consistent   bool          `json:"consistent"`
	Elapsed      time.Duration `json:"elapsed_ns"`
}

// Run is a recorded run with its full config and report.
type Run struct {
	RunSummary
	Config workload.Config `json:"config"`
	Report *bench.Report   `json:"report"`
}

// RecordRun stores a report and its phases in one transaction and returns
// the new run's ID.
func (s *Store) RecordRun(ctx context.Context, report *bench.Report) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("record run: %w", err)
	}
	configJSON, err := sonnet.Marshal(report.Config)
	if err != nil {
		return "", fmt.Errorf("record run: marshal config: %w", err)
	}
	reportJSON, err := sonnet.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("record run: marshal report: %w", err)
	}

	var elapsed time.Duration
	if p, ok := report.Phase(bench.PhaseTransactionsPerformed); ok {
		elapsed = p.Elapsed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("record run: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, started_at, workers, transactions, updates, reads, checksum, consistent, elapsed_ns, config, report)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		id.String(),
		report.StartedAt.UTC().Format(timeLayout),
		report.Config.Workers,
		report.Transactions,
		report.Updates,
		report.Reads,
		report.Checksum,
		report.Consistent,
		int64(elapsed),
		string(configJSON),
		string(reportJSON),
	)
	if err != nil {
		return "", fmt.Errorf("record run: %w", err)
	}

	for seq, p := range report.Phases {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO run_phases (run_id, seq, name, ops, elapsed_ns)
			VALUES (?, ?, ?, ?, ?)
		`, id.String(), seq, p.Name, p.Ops, int64(p.Elapsed))
		if err != nil {
			return "", fmt.Errorf("record run phase %q: %w", p.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("record run: commit: %w", err)
	}
	return id.String(), nil
}

const summaryColumns = `id, started_at, workers, transactions, updates, reads, checksum, consistent, elapsed_ns`

// ListRuns returns up to limit runs, newest first. A limit of zero or less
// returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+summaryColumns+`
		FROM runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		r, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// GetRun returns a recorded run. Unknown IDs return ErrRunNotFound.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+summaryColumns+`, config, report
		FROM runs
		WHERE id = ?
	`, id)

	var (
		run                    Run
		startedAt              string
		elapsed                int64
		configJSON, reportJSON string
	)
	err := row.Scan(
		&run.ID, &startedAt, &run.Workers, &run.Transactions, &run.Updates,
		&run.Reads, &run.Checksum, &run.Consistent, &elapsed,
		&configJSON, &reportJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	if run.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
		return nil, fmt.Errorf("get run %s: started_at: %w", id, err)
	}
	run.Elapsed = time.Duration(elapsed)

	if err := sonnet.Unmarshal([]byte(configJSON), &run.Config); err != nil {
		return nil, fmt.Errorf("get run %s: config: %w", id, err)
	}
	run.Report = &bench.Report{}
	if err := sonnet.Unmarshal([]byte(reportJSON), run.Report); err != nil {
		return nil, fmt.Errorf("get run %s: report: %w", id, err)
	}
	return &run, nil
}

func scanSummary(rows *sql.Rows) (RunSummary, error) {
	var (
		r         RunSummary
		startedAt string
		elapsed   int64
	)
	if err := rows.Scan(
		&r.ID, &startedAt, &r.Workers, &r.Transactions, &r.Updates,
		&r.Reads, &r.Checksum, &r.Consistent, &elapsed,
	); err != nil {
		return r, err
	}
	t, err := time.Parse(timeLayout, startedAt)
	if err != nil {
		return r, fmt.Errorf("started_at: %w", err)
	}
	r.StartedAt = t
	r.Elapsed = time.Duration(elapsed)
	return r, nil
}
