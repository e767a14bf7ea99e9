package flashprog

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/flock"
)

// Default advisory-lock acquisition timeouts (spec.md §5): interactive
// callers wait longer than scripted ones before giving up.
const (
	LockTimeoutInteractive = 180 * time.Second
	LockTimeoutScripted    = 30 * time.Second
)

// SessionLock is the named, file-backed advisory lock that enforces
// single-actor access to the flash bus across processes (spec.md §5:
// "Cross-process mutual exclusion... shall acquire a named, file-backed
// advisory lock at start and release it in shutdown"). Built on
// github.com/gofrs/flock rather than hand-rolled flock(2) calls.
type SessionLock struct {
	fl *flock.Flock
}

// NewSessionLock opens (without acquiring) the advisory lock file at path.
func NewSessionLock(path string) *SessionLock {
	return &SessionLock{fl: flock.New(path)}
}

// Acquire blocks until the lock is obtained or timeout elapses. Failure to
// acquire is fatal per spec.md §5.
func (l *SessionLock) Acquire(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ok, err := l.fl.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return fmt.Errorf("%w: acquire session lock: %v", ErrFatal, err)
	}
	if !ok {
		return fmt.Errorf("%w: timed out acquiring session lock after %s", ErrFatal, timeout)
	}
	return nil
}

// Release drops the lock. Intended to be registered with a ShutdownRegistry
// so it runs on every exit path.
func (l *SessionLock) Release() error {
	return l.fl.Unlock()
}

// RegisterWith adds this lock's Release to a shutdown registry.
func (l *SessionLock) RegisterWith(hooks *ShutdownRegistry) {
	hooks.Register("release-session-lock", func(any) error { return l.Release() }, nil)
}
