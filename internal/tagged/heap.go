package tagged

import (
	"fmt"
	"sync/atomic"
)

// heap accounts for the bytes held by payload cells of one array.
//
// Payload memory itself is ordinary Go memory; the heap bounds how much of it
// an array may hold at once, the way a fixed-size shared segment would.
type heap struct {
	size int64
	used atomic.Int64
}

func newHeap(size int) *heap {
	return &heap{size: int64(size)}
}

// resize adjusts usage by delta bytes, failing if the heap would overflow.
func (h *heap) resize(delta int) error {
	if delta <= 0 {
		h.used.Add(int64(delta))
		return nil
	}
	for {
		u := h.used.Load()
		if u+int64(delta) > h.size {
			return fmt.Errorf("%w: need %d bytes, %d of %d in use", ErrHeapExhausted, delta, u, h.size)
		}
		if h.used.CompareAndSwap(u, u+int64(delta)) {
			return nil
		}
	}
}
