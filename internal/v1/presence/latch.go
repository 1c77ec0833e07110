package presence

import "sync"

// Latch is a coalescing single-slot broadcast, the Go shape of the
// tokio::sync::watch channel the original gateway uses for room counts
// (original_source/src/presence.rs: count_tx/count_rx). Writers only ever
// care that readers eventually observe the latest value, never that they
// observe every intermediate one, so Set replaces the value in place and
// wakes every outstanding Watch call rather than queuing anything.
type Latch struct {
	mu      sync.Mutex
	value   int
	changed chan struct{}
}

// NewLatch creates a latch holding the given initial value.
func NewLatch(v int) *Latch {
	return &Latch{value: v, changed: make(chan struct{})}
}

// Set stores v and wakes any goroutine blocked in Watch, but only if v
// differs from the current value (original_source's send_count_if_diff:
// publishing an unchanged count would wake every session for nothing).
func (l *Latch) Set(v int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if v == l.value {
		return
	}
	l.value = v
	close(l.changed)
	l.changed = make(chan struct{})
}

// Value returns the current value without waiting.
func (l *Latch) Value() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value
}

// Watch returns the value in effect right now, plus a channel that closes
// the next time Set changes it. Callers select on the channel instead of
// polling; a fresh Watch call must be made after each wakeup to keep
// observing future changes.
func (l *Latch) Watch() (int, <-chan struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value, l.changed
}
