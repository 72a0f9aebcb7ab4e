package bench

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ems/internal/tagged"
	"github.com/roach88/ems/internal/testutil"
	"github.com/roach88/ems/internal/workload"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func smallConfig() workload.Config {
	cfg := workload.DefaultConfig()
	cfg.Workers = 4
	cfg.Transactions = 2000
	cfg.Tables = 3
	cfg.TableLength = 64
	cfg.Seed = 17
	return cfg
}

func runWithin(t *testing.T, cfg workload.Config) (*Report, error) {
	t.Helper()
	var (
		report *Report
		err    error
	)
	testutil.CompletesWithin(t, 60*time.Second, func() {
		report, err = New(cfg, WithLogger(quietLogger())).Run(context.Background())
	})
	return report, err
}

func TestRun_ChecksumMatches(t *testing.T) {
	cfg := smallConfig()

	report, err := runWithin(t, cfg)
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.True(t, report.Consistent)
	assert.Equal(t, report.Updates, report.Checksum)
	assert.Equal(t, int64(cfg.Transactions), report.Transactions)
	assert.Equal(t, int64(cfg.Transactions), report.TxnStats.Committed)
	assert.Zero(t, report.TxnStats.Aborted)
	assert.Positive(t, report.Updates)
	assert.Positive(t, report.Reads)

	for _, name := range []string{
		PhaseTablesInitialized,
		PhaseTransactionsEnqueued,
		PhaseTransactionsPerformed,
		PhaseTableUpdates,
		PhaseElementsReferenced,
		PhaseElementsChecked,
	} {
		_, ok := report.Phase(name)
		assert.True(t, ok, "missing phase %q", name)
	}
	checked, _ := report.Phase(PhaseElementsChecked)
	assert.Equal(t, int64(cfg.Tables*cfg.TableLength), checked.Ops)
}

func TestRun_SingleWorker(t *testing.T) {
	cfg := smallConfig()
	cfg.Workers = 1

	report, err := runWithin(t, cfg)
	require.NoError(t, err)
	assert.True(t, report.Consistent)
}

func TestRun_QueueSmallerThanWorkload(t *testing.T) {
	cfg := smallConfig()
	cfg.QueueCapacity = 8

	report, err := runWithin(t, cfg)
	require.NoError(t, err)
	assert.True(t, report.Consistent)
	assert.Equal(t, int64(cfg.Transactions), report.Transactions)
}

func TestRun_PersistentTables(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("persistent tables need mmap")
	}
	cfg := smallConfig()
	cfg.TableDir = filepath.Join(t.TempDir(), "tables")

	report, err := runWithin(t, cfg)
	require.NoError(t, err)
	require.True(t, report.Consistent)

	// The table files hold the final state after the run.
	var sum int64
	for n := 0; n < cfg.Tables; n++ {
		path := filepath.Join(cfg.TableDir, fmt.Sprintf("ems_tm%d", n))
		table, err := tagged.New(cfg.TableLength, tagged.Options{Filename: path, UseExisting: true})
		require.NoError(t, err)
		for i := 0; i < table.Len(); i++ {
			v, err := table.Read(i)
			require.NoError(t, err)
			sum += v.Int
		}
		require.NoError(t, table.Close())
	}
	assert.Equal(t, report.Updates, sum)
}

func TestRun_RejectsInvalidConfig(t *testing.T) {
	cfg := smallConfig()
	cfg.Workers = 0

	_, err := New(cfg, WithLogger(quietLogger())).Run(context.Background())
	require.Error(t, err)

	var verrs workload.ValidationErrors
	assert.ErrorAs(t, err, &verrs)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var err error
	testutil.CompletesWithin(t, 30*time.Second, func() {
		_, err = New(smallConfig(), WithLogger(quietLogger())).Run(ctx)
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExecute_RejectsBadPayloads(t *testing.T) {
	cfg := smallConfig()
	r := New(cfg, WithLogger(quietLogger()))
	s, err := r.setup()
	require.NoError(t, err)
	defer r.teardown(s)

	_, _, err = r.execute(s, []byte("not json"))
	assert.True(t, IsConsistencyError(err))

	payload, err := workload.Encode([]workload.Op{{Table: cfg.Tables, Index: 0}})
	require.NoError(t, err)
	_, _, err = r.execute(s, payload)
	assert.True(t, IsConsistencyError(err))
}

func TestExecute_DuplicateCellsWriteOnce(t *testing.T) {
	cfg := smallConfig()
	r := New(cfg, WithLogger(quietLogger()))
	s, err := r.setup()
	require.NoError(t, err)
	defer r.teardown(s)

	payload, err := workload.Encode([]workload.Op{
		{Table: 0, Index: 5},
		{Table: 1, Index: 5},
		{Table: 0, Index: 5},
	})
	require.NoError(t, err)

	updates, reads, err := r.execute(s, payload)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updates)
	assert.Equal(t, int64(0), reads)

	v, err := s.tables[0].ReadFF(5)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.Int)
}

func TestRun_PhaseTimingFromClock(t *testing.T) {
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	clock := testutil.NewStepClock(start, time.Second)

	var (
		report *Report
		err    error
	)
	testutil.CompletesWithin(t, 60*time.Second, func() {
		report, err = New(smallConfig(), WithLogger(quietLogger()), WithClock(clock.Now)).Run(context.Background())
	})
	require.NoError(t, err)

	assert.Equal(t, start, report.StartedAt)

	// Readings: start, tables (2), perform start, enqueue (2), perform end,
	// checksum (2).
	assert.Equal(t, int64(9), clock.Calls())

	want := map[string]time.Duration{
		PhaseTablesInitialized:     time.Second,
		PhaseTransactionsEnqueued:  time.Second,
		PhaseTransactionsPerformed: 3 * time.Second,
		PhaseTableUpdates:          3 * time.Second,
		PhaseElementsReferenced:    3 * time.Second,
		PhaseElementsChecked:       time.Second,
	}
	for name, elapsed := range want {
		p, ok := report.Phase(name)
		require.True(t, ok, "missing phase %q", name)
		assert.Equal(t, elapsed, p.Elapsed, name)
	}
}
