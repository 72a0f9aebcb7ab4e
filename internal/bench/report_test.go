package bench

import (
	"bytes"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedReport(consistent bool) *Report {
	r := &Report{
		Transactions: 100_000,
		Updates:      125_003,
		Reads:        125_007,
		Checksum:     125_003,
		Consistent:   consistent,
	}
	if !consistent {
		r.Checksum = 125_001
	}
	r.addPhase(PhaseTablesInitialized, 6, 250*time.Millisecond)
	r.addPhase(PhaseTransactionsEnqueued, 100_000, 500*time.Millisecond)
	r.addPhase(PhaseTransactionsPerformed, 100_000, 2*time.Second)
	r.addPhase(PhaseTableUpdates, 125_003, 2*time.Second)
	r.addPhase(PhaseElementsReferenced, 250_010, 2*time.Second)
	r.addPhase(PhaseElementsChecked, 600_000, 250*time.Millisecond)
	return r
}

func TestReport_WriteText(t *testing.T) {
	tests := []struct {
		name       string
		consistent bool
	}{
		{"report_text", true},
		{"report_mismatch", false},
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, fixedReport(tt.consistent).WriteText(&buf))
			g.Assert(t, tt.name, buf.Bytes())
		})
	}
}

func TestPhase_OpsPerSec(t *testing.T) {
	assert.Equal(t, int64(0), Phase{Ops: 10}.OpsPerSec())
	assert.Equal(t, int64(40), Phase{Ops: 10, Elapsed: 250 * time.Millisecond}.OpsPerSec())
}

func TestReport_Phase(t *testing.T) {
	r := fixedReport(true)

	p, ok := r.Phase(PhaseElementsChecked)
	require.True(t, ok)
	assert.Equal(t, int64(600_000), p.Ops)

	_, ok = r.Phase("missing")
	assert.False(t, ok)
}
