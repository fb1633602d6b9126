// Package spinlock provides busy-wait mutual exclusion primitives that are
// safe to use from restricted, time-critical execution contexts: acquiring
// and releasing never allocates, never issues a syscall, and never parks the
// goroutine. Holds are expected to span a handful of array operations; the
// locks do not guarantee fairness.
package spinlock

import (
	"runtime"
	"sync/atomic"
)

// Mutex is an exclusive busy-wait lock. The zero value is unlocked.
type Mutex struct {
	state atomic.Int32
}

// Lock spins until the lock is acquired.
func (m *Mutex) Lock() {
	for !m.state.CompareAndSwap(0, 1) {
		runtime.Gosched()
	}
}

// TryLock attempts to acquire the lock without spinning.
func (m *Mutex) TryLock() bool {
	return m.state.CompareAndSwap(0, 1)
}

// Unlock releases the lock. It must only be called by the current holder.
func (m *Mutex) Unlock() {
	m.state.Store(0)
}

// RWMutex is a busy-wait reader/writer lock. Any number of readers may hold
// it concurrently; a writer excludes readers and other writers. Writers get
// no priority over readers: exclusive holds in this package are short and
// infrequent, so writer starvation is acceptable.
//
// The zero value is unlocked.
type RWMutex struct {
	// state counts active readers; -1 marks an exclusive holder.
	state atomic.Int32
}

// RLock spins until a shared hold is acquired. Shared holds may be nested
// arbitrarily across goroutines as long as no exclusive holder is active.
func (m *RWMutex) RLock() {
	for {
		cur := m.state.Load()
		if cur >= 0 && m.state.CompareAndSwap(cur, cur+1) {
			return
		}

		runtime.Gosched()
	}
}

// RUnlock releases one shared hold.
func (m *RWMutex) RUnlock() {
	m.state.Add(-1)
}

// Lock spins until every reader has exited and the exclusive hold is
// acquired.
func (m *RWMutex) Lock() {
	for !m.state.CompareAndSwap(0, -1) {
		runtime.Gosched()
	}
}

// Unlock releases the exclusive hold.
func (m *RWMutex) Unlock() {
	m.state.Store(0)
}
