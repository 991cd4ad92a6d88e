package element

import "sync"

// waker is a level-triggered wake signal between arbitrary callers and the
// single sleeping worker. Wakes issued while the worker is awake coalesce:
// the pending flag stays set until the next sleep consumes it, no matter
// how many times wake was called.
type waker struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending bool
}

func (w *waker) init() {
	w.cond = sync.NewCond(&w.mu)
}

// wake requests at least one more work iteration. Safe to call from any
// goroutine, any number of times.
func (w *waker) wake() {
	w.mu.Lock()
	w.pending = true
	w.cond.Broadcast()
	w.mu.Unlock()
}

// sleep blocks until a wake is pending and consumes it. The loop around
// Wait makes it safe against spurious wakeups.
func (w *waker) sleep() {
	w.mu.Lock()
	for !w.pending {
		w.cond.Wait()
	}
	w.pending = false
	w.mu.Unlock()
}
