package workload

import (
	"github.com/valyala/fastrand"
)

// Generator produces random transactions. It is not safe for concurrent
// use; the benchmark drives it from a single worker.
type Generator struct {
	cfg Config
	rng fastrand.RNG
	n   int
}

// NewGenerator creates a generator for cfg. Equal non-zero seeds produce
// equal transaction streams.
func NewGenerator(cfg Config) *Generator {
	g := &Generator{cfg: cfg}
	g.rng.Seed(cfg.Seed)
	return g
}

// Generated returns the number of transactions produced so far.
func (g *Generator) Generated() int { return g.n }

// Next returns the next transaction.
//
// A transaction has between 1 and max_ops-1 operations on random cells of
// random tables. Every even-numbered transaction is read-only; in the others
// only every third operation writes. Operations may repeat a cell.
func (g *Generator) Next() []Op {
	nOps := 1
	if g.cfg.MaxOps > 1 {
		nOps += int(g.rng.Uint32n(uint32(g.cfg.MaxOps - 1)))
	}

	ops := make([]Op, nOps)
	for opN := range ops {
		ops[opN] = Op{
			Table:    int(g.rng.Uint32n(uint32(g.cfg.Tables))),
			Index:    int(g.rng.Uint32n(uint32(g.cfg.TableLength))),
			ReadOnly: g.n%2 == 0 || opN%3 > 0,
		}
	}
	g.n++
	return ops
}
