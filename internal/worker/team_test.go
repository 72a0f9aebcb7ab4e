package worker

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTeam_DefaultsToCPUCount(t *testing.T) {
	assert.Equal(t, runtime.NumCPU(), NewTeam(0).Size())
	assert.Equal(t, 3, NewTeam(3).Size())
}

func TestRun_EveryWorkerOnce(t *testing.T) {
	team := NewTeam(6)
	var mu sync.Mutex
	seen := make(map[int]int)

	err := team.Run(func(id int) error {
		mu.Lock()
		defer mu.Unlock()
		seen[id]++
		return nil
	})
	require.NoError(t, err)

	require.Len(t, seen, 6)
	for id := 0; id < 6; id++ {
		assert.Equal(t, 1, seen[id], "worker %d", id)
	}
}

func TestRun_JoinsErrors(t *testing.T) {
	team := NewTeam(4)
	errOdd := errors.New("odd worker")

	err := team.Run(func(id int) error {
		if id%2 == 1 {
			return errOdd
		}
		return nil
	})
	require.ErrorIs(t, err, errOdd)
	assert.Contains(t, err.Error(), "worker 1")
	assert.Contains(t, err.Error(), "worker 3")
}

func TestRun_RecoversPanics(t *testing.T) {
	team := NewTeam(2)

	err := team.Run(func(id int) error {
		if id == 1 {
			panic("bad cell")
		}
		return nil
	})
	require.ErrorIs(t, err, ErrPanic)
	assert.Contains(t, err.Error(), "bad cell")
}

func TestParallelForEach_CoversRangeExactlyOnce(t *testing.T) {
	team := NewTeam(4)
	const lo, hi = 10, 1010
	counts := make([]atomic.Int32, hi)

	err := team.ParallelForEach(lo, hi, func(i int) error {
		counts[i].Add(1)
		return nil
	})
	require.NoError(t, err)

	for i := range counts {
		want := int32(0)
		if i >= lo {
			want = 1
		}
		require.Equal(t, want, counts[i].Load(), "index %d", i)
	}
}

func TestParallelForEach_EmptyRange(t *testing.T) {
	called := false
	err := NewTeam(2).ParallelForEach(5, 5, func(int) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called)
}

func TestParallelForEach_StopsAfterError(t *testing.T) {
	team := NewTeam(1)
	errStop := errors.New("stop")
	var calls int

	err := team.ParallelForEach(0, 100, func(i int) error {
		calls++
		if i == 3 {
			return errStop
		}
		return nil
	})
	require.ErrorIs(t, err, errStop)
	assert.Contains(t, err.Error(), "index 3")
	assert.Equal(t, 4, calls)
}
