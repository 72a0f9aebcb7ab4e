// Package queue implements a multi-producer, multi-consumer FIFO work queue
// on top of full/empty tagged memory.
//
// Producers reserve a position with fetch-and-add on the tail index and
// produce into the slot with WriteEF. Consumers reserve a position with
// compare-and-swap on the head index, only while head is behind tail, and
// consume the slot with ReadFE, which leaves it empty for the next lap.
//
// A consumer that finds head caught up with tail gets "no data yet" instead
// of blocking: a position nobody reserved cannot be told apart from a queue
// that stays empty forever, so callers poll. Once a position is reserved the
// consumer blocks on the slot tag until the producer has written it.
//
// Payload bytes come from a bounded heap. Producers are admitted to the heap
// strictly in tail position order, so the bytes a waiting producer needs can
// only be held by earlier positions, which consumers reach first.
//
// Ordering: positions are handed out in a single total order on each end.
// Delivery is FIFO by position within one lap of the ring. When producers run
// more than a full lap ahead of consumers, two payloads that share a slot may
// be delivered in either order; every payload is still delivered exactly once.
package queue

import (
	"bytes"
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/cpu"

	"github.com/roach88/ems/internal/tagged"
)

// Sentinel is the payload that tells one consumer to stop.
var Sentinel = []byte("DONE")

var (
	// ErrInvalidCapacity indicates a non-positive queue capacity.
	ErrInvalidCapacity = errors.New("queue capacity must be positive")

	// ErrInvalidHeap indicates a non-positive payload heap size.
	ErrInvalidHeap = errors.New("queue heap size must be positive")

	// ErrPayloadTooLarge indicates a payload that can never fit in the heap.
	ErrPayloadTooLarge = errors.New("payload larger than queue heap")
)

// The queue's control words live in one numeric array, a cache line apart:
// head and tail positions, the next position admitted to the heap, and the
// payload bytes admitted so far.
var (
	lineWords = int(unsafe.Sizeof(cpu.CacheLinePad{}) / 8)
	headCell  = 0
	tailCell  = lineWords
	turnCell  = 2 * lineWords
	usedCell  = 3 * lineWords
	indexSize = 4 * lineWords
)

// Queue is a FIFO of byte payloads shared by all workers.
type Queue struct {
	slots    *tagged.Array
	index    *tagged.Array
	capacity int64
	heapSize int64
}

// New creates a queue with capacity slots whose payloads may occupy up to
// heapSize bytes at once.
func New(capacity, heapSize int) (*Queue, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}
	if heapSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidHeap, heapSize)
	}

	slots, err := tagged.New(capacity, tagged.Options{
		InitialTag: tagged.TagEmpty,
		HeapSize:   heapSize,
	})
	if err != nil {
		return nil, fmt.Errorf("create queue slots: %w", err)
	}

	zero := tagged.Int(0)
	index, err := tagged.New(indexSize, tagged.Options{
		InitialTag: tagged.TagFull,
		Fill:       &zero,
	})
	if err != nil {
		return nil, fmt.Errorf("create queue index: %w", err)
	}

	return &Queue{
		slots:    slots,
		index:    index,
		capacity: int64(capacity),
		heapSize: int64(heapSize),
	}, nil
}

// Enqueue appends payload to the queue.
//
// The tail position is reserved first, so concurrent producers never collide.
// The producer then waits for its turn at the heap and for consumers to free
// enough bytes, and finally blocks until the slot is empty.
func (q *Queue) Enqueue(payload []byte) error {
	size := int64(len(payload))
	if size > q.heapSize {
		return fmt.Errorf("%w: %d > %d bytes", ErrPayloadTooLarge, size, q.heapSize)
	}

	pos, err := q.index.FAA(tailCell, 1)
	if err != nil {
		return err
	}
	if err := q.admit(pos, size); err != nil {
		return err
	}

	if err := q.slots.WriteEF(int(pos%q.capacity), tagged.Bytes(payload)); err != nil {
		_, _ = q.index.FAA(usedCell, -size)
		return fmt.Errorf("enqueue position %d: %w", pos, err)
	}
	return nil
}

// admit waits until position pos is next in line for the heap, reserves size
// bytes for it and passes the turn on. The turn is handed over only once the
// bytes are reserved, so a later position never takes space an earlier one is
// waiting for.
func (q *Queue) admit(pos, size int64) error {
	var b tagged.Backoff
	for {
		turn, err := q.load(turnCell)
		if err != nil {
			return err
		}
		if turn == pos {
			break
		}
		b.Wait()
	}

	b.Reset()
	for {
		used, err := q.load(usedCell)
		if err != nil {
			return err
		}
		if used+size <= q.heapSize {
			ok, err := q.index.CAS(usedCell, used, used+size)
			if err != nil {
				return err
			}
			if ok {
				break
			}
		}
		b.Wait()
	}

	_, err := q.index.FAA(turnCell, 1)
	return err
}

// Dequeue removes the payload at the head of the queue.
// It returns ok == false when no position is ready to be reserved.
func (q *Queue) Dequeue() (payload []byte, ok bool, err error) {
	var b tagged.Backoff
	for {
		head, err := q.load(headCell)
		if err != nil {
			return nil, false, err
		}
		tail, err := q.load(tailCell)
		if err != nil {
			return nil, false, err
		}
		if head >= tail {
			return nil, false, nil
		}
		won, err := q.index.CAS(headCell, head, head+1)
		if err != nil {
			return nil, false, err
		}
		if won {
			return q.take(head)
		}
		b.Wait()
	}
}

// take consumes the slot of a reserved head position and returns its bytes
// to the heap budget.
func (q *Queue) take(pos int64) ([]byte, bool, error) {
	v, err := q.slots.ReadFE(int(pos % q.capacity))
	if err != nil {
		return nil, false, fmt.Errorf("dequeue position %d: %w", pos, err)
	}
	if _, err := q.index.FAA(usedCell, -int64(len(v.Bytes))); err != nil {
		return nil, false, err
	}
	return v.Bytes, true, nil
}

// EnqueueSentinels enqueues one Sentinel per consumer.
func (q *Queue) EnqueueSentinels(consumers int) error {
	for i := 0; i < consumers; i++ {
		if err := q.Enqueue(Sentinel); err != nil {
			return fmt.Errorf("enqueue sentinel %d: %w", i, err)
		}
	}
	return nil
}

// Consume runs the consumer loop: it dequeues and passes every real payload
// to fn, polls with backoff while no data is ready, and returns when it takes
// a Sentinel. It returns the number of payloads handled. An error from fn
// stops the loop without consuming a sentinel.
func (q *Queue) Consume(fn func(payload []byte) error) (int, error) {
	var b tagged.Backoff
	n := 0
	for {
		payload, ok, err := q.Dequeue()
		if err != nil {
			return n, err
		}
		if !ok {
			b.Wait()
			continue
		}
		b.Reset()
		if IsSentinel(payload) {
			return n, nil
		}
		if err := fn(payload); err != nil {
			return n, err
		}
		n++
	}
}

// IsSentinel reports whether payload is the stop marker.
func IsSentinel(payload []byte) bool {
	return bytes.Equal(payload, Sentinel)
}

// Head returns the number of positions reserved by consumers.
func (q *Queue) Head() int64 { return q.word(headCell) }

// Tail returns the number of positions reserved by producers.
func (q *Queue) Tail() int64 { return q.word(tailCell) }

// Len returns the number of reserved but not yet dequeued positions.
// It is a snapshot and may be stale by the time it returns.
func (q *Queue) Len() int {
	n := q.Tail() - q.Head()
	if n < 0 {
		return 0
	}
	return int(n)
}

// Cap returns the number of slots.
func (q *Queue) Cap() int { return int(q.capacity) }

// HeapUsed returns the payload bytes currently admitted to the queue,
// including bytes reserved by producers that have not written yet.
func (q *Queue) HeapUsed() int { return int(q.word(usedCell)) }

func (q *Queue) load(cell int) (int64, error) {
	v, err := q.index.Read(cell)
	if err != nil {
		return 0, fmt.Errorf("queue index cell %d: %w", cell, err)
	}
	return v.Int, nil
}

// word is load for the observers. The control cells are fixed offsets
// inside the index array, so the read cannot go out of range.
func (q *Queue) word(cell int) int64 {
	v, err := q.load(cell)
	if err != nil {
		panic(err)
	}
	return v
}
