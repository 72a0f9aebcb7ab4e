package bench

import (
	"fmt"
	"io"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/roach88/ems/internal/txn"
	"github.com/roach88/ems/internal/workload"
)

// Phase names reported by Run.
const (
	PhaseTablesInitialized     = "tables initialized"
	PhaseTransactionsEnqueued  = "transactions enqueued"
	PhaseTransactionsPerformed = "transactions performed"
	PhaseTableUpdates          = "table updates"
	PhaseElementsReferenced    = "elements referenced"
	PhaseElementsChecked       = "elements checked"
)

// Phase is one timed step of a run.
type Phase struct {
	Name    string        `json:"name"`
	Ops     int64         `json:"ops"`
	Elapsed time.Duration `json:"elapsed_ns"`
}

// OpsPerSec returns the phase throughput, zero when no time elapsed.
func (p Phase) OpsPerSec() int64 {
	if p.Elapsed <= 0 {
		return 0
	}
	return int64(float64(p.Ops) / p.Elapsed.Seconds())
}

// Report summarizes a run.
type Report struct {
	Config    workload.Config `json:"config"`
	StartedAt time.Time       `json:"started_at"`
	Phases    []Phase         `json:"phases"`

	// Transactions is the number of committed transactions.
	Transactions int64 `json:"transactions"`
	// Updates counts read-write cell references, Reads read-only ones.
	Updates int64 `json:"updates"`
	Reads   int64 `json:"reads"`
	// Checksum is the sum over every table cell after the run.
	Checksum   int64     `json:"checksum"`
	Consistent bool      `json:"consistent"`
	TxnStats   txn.Stats `json:"txn_stats"`
}

// Phase returns the named phase, if recorded.
func (r *Report) Phase(name string) (Phase, bool) {
	for _, p := range r.Phases {
		if p.Name == name {
			return p, true
		}
	}
	return Phase{}, false
}

func (r *Report) addPhase(name string, ops int64, elapsed time.Duration) {
	r.Phases = append(r.Phases, Phase{Name: name, Ops: ops, Elapsed: elapsed})
}

// WriteText renders the report as aligned text with grouped digits.
func (r *Report) WriteText(w io.Writer) error {
	p := message.NewPrinter(language.English)
	for _, ph := range r.Phases {
		ops := p.Sprintf("%d", ph.Ops)
		rate := p.Sprintf("%d", ph.OpsPerSec())
		if _, err := fmt.Fprintf(w, "%15s %-22s %15s ops/sec\n", ops, ph.Name, rate); err != nil {
			return err
		}
	}

	var err error
	if r.Consistent {
		_, err = fmt.Fprintln(w, "Results are correct")
	} else {
		_, err = p.Fprintf(w, "Checksum mismatch: sum=%d expected=%d\n", r.Checksum, r.Updates)
	}
	return err
}
