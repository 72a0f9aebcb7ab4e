package tagged

import (
	"runtime"
	"time"
)

const (
	goschedEvery = 16   // yield frequency while spinning
	sleepAfter   = 1024 // spins before falling back to timed sleeps
	maxSleep     = time.Millisecond
)

// Backoff paces a worker waiting on a condition it cannot block on.
//
// It spins with periodic runtime.Gosched and escalates to short sleeps
// once the wait turns out to be long. The zero value is ready to use.
// A Backoff must not be shared between goroutines.
type Backoff struct {
	spins uint32
	sleep time.Duration
}

// Wait pauses the caller for one backoff step.
func (b *Backoff) Wait() {
	b.spins++
	if b.spins < sleepAfter {
		if b.spins%goschedEvery == 0 {
			runtime.Gosched()
		}
		return
	}
	if b.sleep == 0 {
		b.sleep = time.Microsecond
	} else if b.sleep < maxSleep {
		b.sleep *= 2
		if b.sleep > maxSleep {
			b.sleep = maxSleep
		}
	}
	time.Sleep(b.sleep)
}

// Reset returns the backoff to its initial spinning phase.
func (b *Backoff) Reset() {
	b.spins = 0
	b.sleep = 0
}
