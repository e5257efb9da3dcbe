// File: core/cache/sleeplock.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Long-hold exclusive lock for buffer payloads. Unlike the short-hold
// bucket mutexes, acquiring it may block for the duration of a device
// transfer, and it tracks held-state so misuse is detectable.

package cache

import (
	"sync"
	"sync/atomic"
)

// sleepLock guards one buffer's payload while its ref count is nonzero.
// The held flag exists only so Write and Release can fault on callers
// that never acquired the lock; it does not record holder identity.
type sleepLock struct {
	mu   sync.Mutex
	held atomic.Bool
}

func (l *sleepLock) acquire() {
	l.mu.Lock()
	l.held.Store(true)
}

func (l *sleepLock) release() {
	l.held.Store(false)
	l.mu.Unlock()
}

func (l *sleepLock) isHeld() bool {
	return l.held.Load()
}
