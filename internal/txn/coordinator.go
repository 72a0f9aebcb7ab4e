package txn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
)

// Coordinator opens and closes transactions. It holds no per-transaction
// state; all exclusion lives in the cell tags, so one Coordinator may be
// shared by every worker.
type Coordinator struct {
	logger *slog.Logger

	started   atomic.Int64
	committed atomic.Int64
	aborted   atomic.Int64
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger used for transaction tracing at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = l
	}
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(opts ...Option) *Coordinator {
	c := &Coordinator{logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Stats counts transactions over the Coordinator's lifetime.
type Stats struct {
	Started   int64 `json:"started"`
	Committed int64 `json:"committed"`
	Aborted   int64 `json:"aborted"`
}

// Stats returns a snapshot of the transaction counts.
func (c *Coordinator) Stats() Stats {
	return Stats{
		Started:   c.started.Load(),
		Committed: c.committed.Load(),
		Aborted:   c.aborted.Load(),
	}
}

// Start acquires every referenced cell and returns a handle over them.
//
// refs must already be de-duplicated (see Dedupe). Start sorts a copy into the
// global order and blocks until each cell is acquired in turn. A reference set
// that still names a cell twice returns ErrDuplicateRef without acquiring
// anything.
func (c *Coordinator) Start(refs []Ref) (*Handle, error) {
	sorted := slices.Clone(refs)
	for _, r := range sorted {
		if r.Array == nil {
			return nil, ErrNilArray
		}
		if r.Index < 0 || r.Index >= r.Array.Len() {
			return nil, fmt.Errorf("transaction reference %s: index out of range (length %d)", r, r.Array.Len())
		}
	}
	Sort(sorted)
	for i := 1; i < len(sorted); i++ {
		if sorted[i].key() == sorted[i-1].key() {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateRef, sorted[i])
		}
	}

	h := newHandle(sorted)
	for n, r := range sorted {
		if err := acquire(r); err != nil {
			// Unreachable after validation, but never leave cells held.
			releaseErr := release(sorted[:n])
			return nil, errors.Join(fmt.Errorf("acquire %s: %w", r, err), releaseErr)
		}
	}
	c.started.Add(1)

	if c.tracing() {
		c.logger.Debug("transaction started",
			"id", h.ID(),
			"cells", len(sorted),
		)
	}
	return h, nil
}

// End releases the handle's cells in reverse acquisition order, restoring
// each tag to full.
//
// Ending without commit after a write returns ErrUncommittedWrites once the
// cells are released; the writes stay visible. Ending a handle twice returns
// ErrHandleClosed.
func (c *Coordinator) End(h *Handle, commit bool) error {
	if !h.closed.CompareAndSwap(false, true) {
		return ErrHandleClosed
	}
	if err := release(h.refs); err != nil {
		return fmt.Errorf("end transaction %s: %w", h.ID(), err)
	}

	if commit {
		c.committed.Add(1)
	} else {
		c.aborted.Add(1)
	}
	if c.tracing() {
		c.logger.Debug("transaction ended",
			"id", h.ID(),
			"commit", commit,
			"writes", h.writes,
		)
	}

	if !commit && h.writes > 0 {
		return fmt.Errorf("%w: %s wrote %d cells", ErrUncommittedWrites, h.ID(), h.writes)
	}
	return nil
}

// tracing reports whether per-transaction debug records would be emitted.
func (c *Coordinator) tracing() bool {
	return c.logger.Enabled(context.Background(), slog.LevelDebug)
}

// Do runs fn inside a transaction over refs. The transaction commits when fn
// returns nil; otherwise fn's error is returned joined with any error from
// ending the transaction.
func (c *Coordinator) Do(refs []Ref, fn func(*Handle) error) error {
	h, err := c.Start(refs)
	if err != nil {
		return err
	}
	if err := fn(h); err != nil {
		return errors.Join(err, c.End(h, false))
	}
	return c.End(h, true)
}

func acquire(r Ref) error {
	if r.Mode == ReadOnly {
		return r.Array.LockShared(r.Index)
	}
	return r.Array.LockExclusive(r.Index)
}

// release drops refs in reverse order.
func release(refs []Ref) error {
	var errs []error
	for i := len(refs) - 1; i >= 0; i-- {
		r := refs[i]
		var err error
		if r.Mode == ReadOnly {
			err = r.Array.UnlockShared(r.Index)
		} else {
			err = r.Array.UnlockExclusive(r.Index)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("release %s: %w", r, err))
		}
	}
	return errors.Join(errs...)
}
