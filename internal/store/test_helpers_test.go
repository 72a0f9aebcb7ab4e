package store

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/ems/internal/bench"
	"github.com/roach88/ems/internal/workload"
)

// createTestStore creates a new file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestReport creates a consistent report started at the given time.
func createTestReport(startedAt time.Time, workers int) *bench.Report {
	cfg := workload.DefaultConfig()
	cfg.Workers = workers
	cfg.Seed = 11
	return &bench.Report{
		Config:       cfg,
		StartedAt:    startedAt,
		Transactions: 1000,
		Updates:      740,
		Reads:        1510,
		Checksum:     740,
		Consistent:   true,
		Phases: []bench.Phase{
			{Name: bench.PhaseTablesInitialized, Ops: 6, Elapsed: 3 * time.Millisecond},
			{Name: bench.PhaseTransactionsPerformed, Ops: 1000, Elapsed: 40 * time.Millisecond},
			{Name: bench.PhaseElementsChecked, Ops: 600_000, Elapsed: 5 * time.Millisecond},
		},
	}
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// latestVersion is the schema version a fresh Open leaves behind.
func latestVersion() int {
	return migrations[len(migrations)-1].version
}

// verifyPragma checks that a pragma is set to the expected value.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow(fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
