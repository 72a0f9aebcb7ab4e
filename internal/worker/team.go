// Package worker runs a fixed team of goroutines that share the module's
// tagged arrays.
//
// Workers are identified by a dense id in [0, Size()). There is no central
// scheduler: Run starts every worker on the same body and waits for all of
// them, and ParallelForEach hands out loop indices through a shared atomic
// counter so faster workers take more of the range.
package worker

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
)

// ErrPanic wraps a panic recovered from a worker body.
var ErrPanic = errors.New("worker panicked")

// Team is a fixed-size group of workers.
type Team struct {
	size int
}

// NewTeam creates a team of size workers. A size of zero or less uses one
// worker per CPU.
func NewTeam(size int) *Team {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	return &Team{size: size}
}

// Size returns the number of workers.
func (t *Team) Size() int { return t.size }

// Run executes body once on every worker and returns after all of them
// have returned. Errors from individual workers are joined.
func (t *Team) Run(body func(id int) error) error {
	errs := make([]error, t.size)

	var wg sync.WaitGroup
	for id := 0; id < t.size; id++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			errs[id] = safeCall(id, body)
		}(id)
	}
	wg.Wait()

	return errors.Join(errs...)
}

// ParallelForEach calls body(i) for every i in [lo, hi) spread across the
// team. Each index runs exactly once. After the first error no new indices
// are started; all errors that occurred are joined.
func (t *Team) ParallelForEach(lo, hi int, body func(i int) error) error {
	if hi <= lo {
		return nil
	}
	var (
		next   atomic.Int64
		failed atomic.Bool
	)
	next.Store(int64(lo))

	return t.Run(func(int) error {
		var errs []error
		for !failed.Load() {
			i := int(next.Add(1) - 1)
			if i >= hi {
				break
			}
			if err := body(i); err != nil {
				failed.Store(true)
				errs = append(errs, fmt.Errorf("index %d: %w", i, err))
			}
		}
		return errors.Join(errs...)
	})
}

func safeCall(id int, body func(int) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: worker %d: %v", ErrPanic, id, r)
		}
	}()
	if err := body(id); err != nil {
		return fmt.Errorf("worker %d: %w", id, err)
	}
	return nil
}
