// Package counter provides shared numeric counters for cross-worker
// aggregation.
//
// A Counter is a small numeric tagged array. Every cell is written once at
// creation to zero and marked full; afterwards it is only updated with
// fetch-and-add or the full/empty accessors.
package counter

import (
	"fmt"

	"github.com/roach88/ems/internal/tagged"
)

// Counter is a fixed set of int64 counters shared by all workers.
type Counter struct {
	cells *tagged.Array
}

// New creates n counters, each initialized to zero and full.
func New(n int) (*Counter, error) {
	cells, err := tagged.New(n, tagged.Options{InitialTag: tagged.TagFull})
	if err != nil {
		return nil, fmt.Errorf("create counter: %w", err)
	}
	c := &Counter{cells: cells}
	for i := 0; i < n; i++ {
		if err := c.WriteXF(i, 0); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Len returns the number of counters.
func (c *Counter) Len() int { return c.cells.Len() }

// FAA adds delta to counter i and returns its previous value.
// Concurrent calls are linearizable.
func (c *Counter) FAA(i int, delta int64) (int64, error) {
	return c.cells.FAA(i, delta)
}

// ReadFF blocks until counter i is full and returns its value.
func (c *Counter) ReadFF(i int) (int64, error) {
	v, err := c.cells.ReadFF(i)
	if err != nil {
		return 0, err
	}
	return v.Int, nil
}

// WriteXF sets counter i to n and marks it full.
func (c *Counter) WriteXF(i int, n int64) error {
	return c.cells.WriteXF(i, tagged.Int(n))
}
