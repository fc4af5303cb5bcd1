// Package runlock provides the non-blocking mutual exclusion gate for crawl runs.
package runlock

import "sync/atomic"

// Lock is a binary try-acquire gate. At most one holder exists at a time;
// losing callers get false immediately and are expected to walk away rather
// than wait. The zero value is an unheld lock.
type Lock struct {
	held atomic.Bool
}

// TryAcquire attempts to take the lock without blocking. It returns true if
// the caller now owns the lock and false if another holder exists.
func (l *Lock) TryAcquire() bool {
	return l.held.CompareAndSwap(false, true)
}

// Release clears the held state. Releasing an unheld lock is a caller bug but
// must not take the process down; it returns false so callers can log it.
func (l *Lock) Release() bool {
	return l.held.CompareAndSwap(true, false)
}

// Held reports whether the lock is currently owned.
func (l *Lock) Held() bool {
	return l.held.Load()
}
