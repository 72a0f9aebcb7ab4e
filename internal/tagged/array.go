package tagged

import (
	"fmt"
	"sync/atomic"
)

// Options configures a new Array.
type Options struct {
	// InitialTag is the tag every cell starts with: TagEmpty or TagFull.
	InitialTag Tag

	// Fill, when set, is written into every cell at creation.
	Fill *Value

	// HeapSize is the number of payload bytes the array may hold at once.
	// Zero creates a numeric-only array.
	HeapSize int

	// Filename selects a persistent backing file. Empty means ephemeral.
	Filename string

	// UseExisting reopens Filename keeping its contents when it already
	// holds an array of the same length. InitialTag and Fill are then ignored.
	UseExisting bool
}

// Array is a fixed-length sequence of tagged cells.
//
// Arrays are shared by all workers for their lifetime. Cell contents are only
// mutated by the worker that currently owns the cell through its tag.
type Array struct {
	rank   uint64
	length int

	tags  []uint32
	words []int64

	// Present only when the array has a heap.
	kinds []uint32
	blobs [][]byte
	heap  *heap

	backing *mapping
}

// New creates an array of length cells.
func New(length int, opts Options) (*Array, error) {
	if length <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLength, length)
	}
	initial, err := stateOf(opts.InitialTag)
	if err != nil {
		return nil, err
	}
	if opts.HeapSize < 0 {
		return nil, fmt.Errorf("heap size must not be negative: %d", opts.HeapSize)
	}

	a := &Array{
		rank:   ranks.Next(),
		length: length,
	}

	existed := false
	if opts.Filename != "" {
		if opts.HeapSize > 0 {
			return nil, fmt.Errorf("%w: %s", ErrPersistentHeap, opts.Filename)
		}
		m, ok, err := openMapping(opts.Filename, length, opts.UseExisting)
		if err != nil {
			return nil, err
		}
		a.backing, a.tags, a.words = m, m.tags, m.words
		existed = ok
	} else {
		a.tags = make([]uint32, length)
		a.words = make([]int64, length)
	}

	if opts.HeapSize > 0 {
		a.kinds = make([]uint32, length)
		a.blobs = make([][]byte, length)
		a.heap = newHeap(opts.HeapSize)
	}

	if existed {
		a.clearHolders()
		return a, nil
	}

	for i := range a.tags {
		if opts.Fill != nil {
			if err := a.store(i, *opts.Fill); err != nil {
				a.Close()
				return nil, fmt.Errorf("fill cell %d: %w", i, err)
			}
		}
		atomic.StoreUint32(&a.tags[i], initial)
	}
	return a, nil
}

// clearHolders resets holder states left in a reopened backing file by a worker
// that exited while owning cells. Their values are treated as committed.
func (a *Array) clearHolders() {
	for i := range a.tags {
		if s := atomic.LoadUint32(&a.tags[i]); s != stateEmpty && s != stateFull {
			atomic.StoreUint32(&a.tags[i], stateFull)
		}
	}
}

// Len returns the number of cells.
func (a *Array) Len() int { return a.length }

// Rank returns the array identity used to order cells across arrays.
func (a *Array) Rank() uint64 { return a.rank }

// Persistent reports whether the array is backed by a file.
func (a *Array) Persistent() bool { return a.backing != nil }

// HeapSize returns the payload capacity in bytes, zero for numeric-only arrays.
func (a *Array) HeapSize() int {
	if a.heap == nil {
		return 0
	}
	return int(a.heap.size)
}

// HeapUsed returns the payload bytes currently held.
func (a *Array) HeapUsed() int {
	if a.heap == nil {
		return 0
	}
	return int(a.heap.used.Load())
}

// Sync flushes a persistent array to its backing file.
func (a *Array) Sync() error {
	if a.backing == nil {
		return nil
	}
	return a.backing.sync()
}

// Close releases the backing file mapping. The array must not be used after
// Close. Closing an ephemeral array is a no-op.
func (a *Array) Close() error {
	if a.backing == nil {
		return nil
	}
	return a.backing.close()
}

// Tag returns a snapshot of cell i's tag.
func (a *Array) Tag(i int) (Tag, error) {
	if err := a.check(i); err != nil {
		return 0, err
	}
	return tagOf(atomic.LoadUint32(&a.tags[i])), nil
}

// ReadFF blocks until cell i is full and returns its value. The tag stays full.
func (a *Array) ReadFF(i int) (Value, error) {
	if err := a.check(i); err != nil {
		return Value{}, err
	}
	a.lockShared(i)
	v := a.load(i)
	a.unlockShared(i)
	return v, nil
}

// ReadFE blocks until cell i is full, returns its value and marks it empty.
// A payload's bytes are returned to the heap.
func (a *Array) ReadFE(i int) (Value, error) {
	if err := a.check(i); err != nil {
		return Value{}, err
	}
	a.acquire(i, func(s uint32) bool { return s == stateFull })
	v := a.load(i)
	a.clearPayload(i)
	atomic.StoreUint32(&a.tags[i], stateEmpty)
	return v, nil
}

// WriteEF blocks until cell i is empty, stores v and marks it full.
func (a *Array) WriteEF(i int, v Value) error {
	if err := a.check(i); err != nil {
		return err
	}
	a.acquire(i, func(s uint32) bool { return s == stateEmpty })
	if err := a.store(i, v); err != nil {
		atomic.StoreUint32(&a.tags[i], stateEmpty)
		return err
	}
	atomic.StoreUint32(&a.tags[i], stateFull)
	return nil
}

// WriteXF stores v into cell i and marks it full whatever its tag was.
// It waits only for a current holder of the cell to let go.
func (a *Array) WriteXF(i int, v Value) error {
	if err := a.check(i); err != nil {
		return err
	}
	prev := a.acquire(i, func(s uint32) bool { return s == stateEmpty || s == stateFull })
	if err := a.store(i, v); err != nil {
		atomic.StoreUint32(&a.tags[i], prev)
		return err
	}
	atomic.StoreUint32(&a.tags[i], stateFull)
	return nil
}

// Read returns cell i's value without looking at its tag. The caller must
// own the cell, typically through an open transaction.
func (a *Array) Read(i int) (Value, error) {
	if err := a.check(i); err != nil {
		return Value{}, err
	}
	return a.load(i), nil
}

// Write stores v into cell i without looking at or changing its tag. The
// caller must own the cell, typically through an open transaction.
func (a *Array) Write(i int, v Value) error {
	if err := a.check(i); err != nil {
		return err
	}
	return a.store(i, v)
}

// FAA atomically adds delta to numeric cell i and returns the previous value.
// The tag is not consulted.
func (a *Array) FAA(i int, delta int64) (int64, error) {
	if err := a.numeric(i); err != nil {
		return 0, err
	}
	return atomic.AddInt64(&a.words[i], delta) - delta, nil
}

// CAS atomically replaces numeric cell i with next if it holds old.
// The tag is not consulted.
func (a *Array) CAS(i int, old, next int64) (bool, error) {
	if err := a.numeric(i); err != nil {
		return false, err
	}
	return atomic.CompareAndSwapInt64(&a.words[i], old, next), nil
}

// LockExclusive blocks until cell i is full and takes sole ownership of it.
// The cell reads as busy until UnlockExclusive.
func (a *Array) LockExclusive(i int) error {
	if err := a.check(i); err != nil {
		return err
	}
	a.acquire(i, func(s uint32) bool { return s == stateFull })
	return nil
}

// UnlockExclusive releases ownership taken by LockExclusive and marks the
// cell full, publishing any writes made while it was held.
func (a *Array) UnlockExclusive(i int) error {
	if err := a.check(i); err != nil {
		return err
	}
	if !atomic.CompareAndSwapUint32(&a.tags[i], stateBusy, stateFull) {
		return fmt.Errorf("%w: cell %d exclusively", ErrNotHeld, i)
	}
	return nil
}

// LockShared blocks until cell i is readable and registers the caller as a
// reader. Other readers are not blocked; writers wait for all readers.
func (a *Array) LockShared(i int) error {
	if err := a.check(i); err != nil {
		return err
	}
	a.lockShared(i)
	return nil
}

// UnlockShared drops a reader registered by LockShared.
func (a *Array) UnlockShared(i int) error {
	if err := a.check(i); err != nil {
		return err
	}
	if !isShared(atomic.LoadUint32(&a.tags[i])) {
		return fmt.Errorf("%w: cell %d shared", ErrNotHeld, i)
	}
	a.unlockShared(i)
	return nil
}

func (a *Array) check(i int) error {
	if i < 0 || i >= a.length {
		return fmt.Errorf("%w: %d (length %d)", ErrIndexOutOfRange, i, a.length)
	}
	return nil
}

func (a *Array) numeric(i int) error {
	if err := a.check(i); err != nil {
		return err
	}
	if a.kinds == nil {
		return nil
	}
	// An undefined cell becomes numeric on its first arithmetic update.
	p := &a.kinds[i]
	if Kind(atomic.LoadUint32(p)) == KindUndefined {
		atomic.CompareAndSwapUint32(p, uint32(KindUndefined), uint32(KindInt))
	}
	if Kind(atomic.LoadUint32(p)) == KindBytes {
		return fmt.Errorf("%w: cell %d", ErrNotNumeric, i)
	}
	return nil
}

// acquire moves cell i to busy from any state accepted by ok, waiting until
// such a state is observed. It returns the state it replaced.
func (a *Array) acquire(i int, ok func(uint32) bool) uint32 {
	var b Backoff
	p := &a.tags[i]
	for {
		s := atomic.LoadUint32(p)
		if ok(s) && atomic.CompareAndSwapUint32(p, s, stateBusy) {
			return s
		}
		b.Wait()
	}
}

func (a *Array) lockShared(i int) {
	var b Backoff
	p := &a.tags[i]
	for {
		s := atomic.LoadUint32(p)
		switch {
		case s == stateFull:
			if atomic.CompareAndSwapUint32(p, s, stateShared|oneReader) {
				return
			}
		case isShared(s):
			if atomic.CompareAndSwapUint32(p, s, s+oneReader) {
				return
			}
		}
		b.Wait()
	}
}

func (a *Array) unlockShared(i int) {
	p := &a.tags[i]
	for {
		s := atomic.LoadUint32(p)
		next := s - oneReader
		if next>>readerShift == 0 {
			next = stateFull
		}
		if atomic.CompareAndSwapUint32(p, s, next) {
			return
		}
	}
}

// load reads cell i. The caller owns the cell.
func (a *Array) load(i int) Value {
	if a.kinds == nil {
		return Int(atomic.LoadInt64(&a.words[i]))
	}
	switch Kind(atomic.LoadUint32(&a.kinds[i])) {
	case KindBytes:
		return Value{Kind: KindBytes, Bytes: a.blobs[i]}
	case KindInt:
		return Int(atomic.LoadInt64(&a.words[i]))
	default:
		return Value{}
	}
}

// store writes v into cell i. The caller owns the cell. On error the cell
// keeps its previous value.
func (a *Array) store(i int, v Value) error {
	switch v.Kind {
	case KindBytes:
		if a.heap == nil {
			return fmt.Errorf("%w: cell %d", ErrNoHeap, i)
		}
		if err := a.heap.resize(len(v.Bytes) - len(a.blobs[i])); err != nil {
			return err
		}
		a.blobs[i] = append([]byte(nil), v.Bytes...)
		a.setKind(i, KindBytes)
	case KindInt:
		a.clearPayload(i)
		atomic.StoreInt64(&a.words[i], v.Int)
		a.setKind(i, KindInt)
	default:
		a.clearPayload(i)
		atomic.StoreInt64(&a.words[i], 0)
		a.setKind(i, KindUndefined)
	}
	return nil
}

func (a *Array) setKind(i int, k Kind) {
	if a.kinds != nil {
		atomic.StoreUint32(&a.kinds[i], uint32(k))
	}
}

// clearPayload returns cell i's payload bytes to the heap and leaves the cell
// undefined if it held a payload, including an empty one.
func (a *Array) clearPayload(i int) {
	if a.heap == nil || Kind(atomic.LoadUint32(&a.kinds[i])) != KindBytes {
		return
	}
	if n := len(a.blobs[i]); n > 0 {
		// Shrinking never fails.
		_ = a.heap.resize(-n)
	}
	a.blobs[i] = nil
	a.setKind(i, KindUndefined)
}
