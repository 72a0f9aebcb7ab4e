package txn

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/roach88/ems/internal/tagged"
)

// Handle is an open transaction. It is owned by the worker that started it
// and must not be shared.
type Handle struct {
	idOnce sync.Once
	id     uuid.UUID

	refs   []Ref
	modes  map[cellKey]Mode
	writes int
	closed atomic.Bool
}

func newHandle(sorted []Ref) *Handle {
	modes := make(map[cellKey]Mode, len(sorted))
	for _, r := range sorted {
		modes[r.key()] = r.Mode
	}
	return &Handle{
		refs:  sorted,
		modes: modes,
	}
}

// ID returns the transaction's unique identifier. It is generated on first
// use, so transactions that are never logged or reported skip the uuid
// generator and its process-wide lock.
func (h *Handle) ID() string {
	h.idOnce.Do(func() {
		h.id = uuid.Must(uuid.NewV7())
	})
	return h.id.String()
}

// Refs returns the transaction's references in acquisition order.
func (h *Handle) Refs() []Ref {
	out := make([]Ref, len(h.refs))
	copy(out, h.refs)
	return out
}

// Read returns the value of a cell held by the transaction.
func (h *Handle) Read(arr *tagged.Array, i int) (tagged.Value, error) {
	if _, err := h.mode(arr, i); err != nil {
		return tagged.Value{}, err
	}
	return arr.Read(i)
}

// Write stores v into a cell the transaction holds read-write.
func (h *Handle) Write(arr *tagged.Array, i int, v tagged.Value) error {
	m, err := h.mode(arr, i)
	if err != nil {
		return err
	}
	if m != ReadWrite {
		return fmt.Errorf("%w: (%d,%d)", ErrReadOnly, arr.Rank(), i)
	}
	if err := arr.Write(i, v); err != nil {
		return err
	}
	h.writes++
	return nil
}

func (h *Handle) mode(arr *tagged.Array, i int) (Mode, error) {
	if h.closed.Load() {
		return 0, ErrHandleClosed
	}
	if arr == nil {
		return 0, ErrNilArray
	}
	m, ok := h.modes[cellKey{rank: arr.Rank(), index: i}]
	if !ok {
		return 0, fmt.Errorf("%w: (%d,%d)", ErrNotAcquired, arr.Rank(), i)
	}
	return m, nil
}
