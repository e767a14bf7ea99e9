package flashprog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnsureModeStaysIn24BitBelowBoundary(t *testing.T) {
	var s fourByteAddrState
	var entered, exited bool

	err := s.ensureMode(context.Background(), 0x001000, true,
		func(ctx context.Context) error { entered = true; return nil },
		func(ctx context.Context) error { exited = true; return nil },
	)
	require.NoError(t, err)
	require.False(t, entered)
	require.False(t, exited)
	require.Equal(t, Addr24, s.mode)
}

func TestEnsureModeEntersAndExits4BA(t *testing.T) {
	var s fourByteAddrState
	var entered, exited bool

	err := s.ensureMode(context.Background(), 0x01000000, true,
		func(ctx context.Context) error { entered = true; return nil },
		func(ctx context.Context) error { exited = true; return nil },
	)
	require.NoError(t, err)
	require.True(t, entered)
	require.Equal(t, Addr32, s.mode)

	err = s.ensureMode(context.Background(), 0x001000, true,
		func(ctx context.Context) error { entered = true; return nil },
		func(ctx context.Context) error { exited = true; return nil },
	)
	require.NoError(t, err)
	require.True(t, exited)
	require.Equal(t, Addr24, s.mode)
}

func TestEnsureModeNoopWhenAlreadyCorrect(t *testing.T) {
	s := fourByteAddrState{mode: Addr32}
	calls := 0

	err := s.ensureMode(context.Background(), 0x02000000, true,
		func(ctx context.Context) error { calls++; return nil },
		func(ctx context.Context) error { calls++; return nil },
	)
	require.NoError(t, err)
	require.Equal(t, 0, calls)
}

func TestEnsureModeIgnoresHighAddrWithout4BASupport(t *testing.T) {
	var s fourByteAddrState
	calls := 0

	err := s.ensureMode(context.Background(), 0x01000000, false,
		func(ctx context.Context) error { calls++; return nil },
		func(ctx context.Context) error { calls++; return nil },
	)
	require.NoError(t, err)
	require.Equal(t, 0, calls)
	require.Equal(t, Addr24, s.mode)
}

func TestEnsureModePropagatesEnterError(t *testing.T) {
	var s fourByteAddrState
	wantErr := ErrTransaction

	err := s.ensureMode(context.Background(), 0x01000000, true,
		func(ctx context.Context) error { return wantErr },
		func(ctx context.Context) error { return nil },
	)
	require.ErrorIs(t, err, wantErr)
	require.Equal(t, Addr24, s.mode)
}
