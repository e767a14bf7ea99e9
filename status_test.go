package flashprog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusManagerUnlockForSessionRestoresOnShutdown(t *testing.T) {
	m := &fakeStatusMaster{}
	wp := NewStatusRegisterWP(m, 1024*1024, 4096)
	require.NoError(t, wp.SetRange(context.Background(), 0, 8192))

	hooks := NewShutdownRegistry()
	sm := NewStatusManager(m, wp, hooks)

	require.NoError(t, sm.UnlockForSession(context.Background()))

	st, err := wp.Status(context.Background())
	require.NoError(t, err)
	require.False(t, st.Enabled)

	require.Equal(t, 1, hooks.Len())
	require.NoError(t, hooks.Run())

	st, err = wp.Status(context.Background())
	require.NoError(t, err)
	require.True(t, st.Enabled)
	require.Equal(t, uint32(8192), st.Len)
}

func TestStatusManagerUnlockForSessionNoopWhenAlreadyDisabled(t *testing.T) {
	m := &fakeStatusMaster{}
	wp := NewStatusRegisterWP(m, 1024*1024, 4096)
	hooks := NewShutdownRegistry()
	sm := NewStatusManager(m, wp, hooks)

	require.NoError(t, sm.UnlockForSession(context.Background()))
	require.Equal(t, 0, hooks.Len())
}

func TestStatusManagerApplyRangeDeniesOverlap(t *testing.T) {
	m := &fakeStatusMaster{}
	wp := NewStatusRegisterWP(m, 1024*1024, 4096)
	require.NoError(t, wp.SetRange(context.Background(), 0, 8192))

	sm := NewStatusManager(m, wp, NewShutdownRegistry())

	err := sm.ApplyRange(context.Background(), 4096, 4096, AccessWrite)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrAccessDenied)
}

func TestStatusManagerApplyRangeAllowsOutsideRange(t *testing.T) {
	m := &fakeStatusMaster{}
	wp := NewStatusRegisterWP(m, 1024*1024, 4096)
	require.NoError(t, wp.SetRange(context.Background(), 0, 8192))

	sm := NewStatusManager(m, wp, NewShutdownRegistry())

	require.NoError(t, sm.ApplyRange(context.Background(), 8192, 4096, AccessWrite))
}

func TestStatusManagerApplyRangeIgnoresReadAccess(t *testing.T) {
	m := &fakeStatusMaster{}
	wp := NewStatusRegisterWP(m, 1024*1024, 4096)
	require.NoError(t, wp.SetRange(context.Background(), 0, 8192))

	sm := NewStatusManager(m, wp, NewShutdownRegistry())

	require.NoError(t, sm.ApplyRange(context.Background(), 0, 8192, AccessRead))
}

func TestStatusManagerNilWriteProtectorIsNoop(t *testing.T) {
	m := &fakeStatusMaster{}
	sm := NewStatusManager(m, nil, NewShutdownRegistry())

	require.NoError(t, sm.UnlockForSession(context.Background()))
	require.NoError(t, sm.ApplyRange(context.Background(), 0, 4096, AccessWrite))
}
