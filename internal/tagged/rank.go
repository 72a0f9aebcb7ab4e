package tagged

import "sync/atomic"

// rankClock is a monotonic logical clock handing out array identities.
//
// Ranks are strictly increasing in creation order and never reused, so
// (rank, index) is a total order over every cell in the process that all
// workers agree on without coordination.
type rankClock struct {
	seq atomic.Uint64
}

// Next returns the next rank. Calls are linearizable.
func (c *rankClock) Next() uint64 {
	return c.seq.Add(1)
}

var ranks rankClock
