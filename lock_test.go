package flashprog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSessionLockAcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flashprog.lock")
	lock := NewSessionLock(path)

	require.NoError(t, lock.Acquire(context.Background(), time.Second))
	require.NoError(t, lock.Release())
}

func TestSessionLockRegisterWithRunsOnShutdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flashprog.lock")
	lock := NewSessionLock(path)
	require.NoError(t, lock.Acquire(context.Background(), time.Second))

	hooks := NewShutdownRegistry()
	lock.RegisterWith(hooks)
	require.Equal(t, 1, hooks.Len())
	require.NoError(t, hooks.Run())
}

func TestSessionLockSecondAcquireTimesOut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flashprog.lock")
	first := NewSessionLock(path)
	require.NoError(t, first.Acquire(context.Background(), time.Second))
	defer first.Release()

	second := NewSessionLock(path)
	err := second.Acquire(context.Background(), 200*time.Millisecond)
	require.Error(t, err)
}
