package flashprog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeStatusMaster struct {
	fakeMaster
	sr StatusRegister
}

func (m *fakeStatusMaster) ReadStatus(ctx context.Context) (StatusRegister, error) { return m.sr, nil }
func (m *fakeStatusMaster) WriteStatus(ctx context.Context, sr StatusRegister) error {
	m.sr = sr
	return nil
}

func TestStatusRegisterWPDisableDoesNotRecurse(t *testing.T) {
	m := &fakeStatusMaster{sr: StatusRegister(0x1c)} // BP2:0 all set
	wp := NewStatusRegisterWP(m, 1024*1024, 4096)

	done := make(chan error, 1)
	go func() { done <- wp.Disable(context.Background()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Disable did not return: possible infinite recursion")
	}

	st, err := wp.Status(context.Background())
	require.NoError(t, err)
	require.False(t, st.Enabled)
}

func TestStatusRegisterWPSetRangeThenStatus(t *testing.T) {
	m := &fakeStatusMaster{}
	wp := NewStatusRegisterWP(m, 1024*1024, 4096)

	require.NoError(t, wp.SetRange(context.Background(), 0, 8192))
	st, err := wp.Status(context.Background())
	require.NoError(t, err)
	require.True(t, st.Enabled)
	require.Equal(t, uint32(0), st.Start)
	require.Equal(t, uint32(8192), st.Len)
}
