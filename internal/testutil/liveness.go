package testutil

import (
	"testing"
	"time"
)

// CompletesWithin runs fn in its own goroutine and fails the test if fn has
// not returned after d.
//
// Blocking operations in this module have no timeout of their own, so a
// deadlock shows up as a goroutine that never returns. The goroutine is
// leaked on failure; the test binary exits shortly after anyway.
func CompletesWithin(t testing.TB, d time.Duration, fn func()) bool {
	t.Helper()

	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()

	select {
	case <-done:
		return true
	case <-time.After(d):
		t.Errorf("did not complete within %v (possible deadlock)", d)
		return false
	}
}
