package flashprog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegionPermissionContains(t *testing.T) {
	r := RegionPermission{Name: "bios", Base: 0x1000, Limit: 0x1fff}

	require.True(t, r.contains(0x1000))
	require.True(t, r.contains(0x1fff))
	require.True(t, r.contains(0x1800))
	require.False(t, r.contains(0x0fff))
	require.False(t, r.contains(0x2000))
}

func TestRegionPermissionAllows(t *testing.T) {
	cases := []struct {
		level PermissionLevel
		mode  AccessMode
		want  bool
	}{
		{PermReadWrite, AccessRead, true},
		{PermReadWrite, AccessWrite, true},
		{PermReadOnly, AccessRead, true},
		{PermReadOnly, AccessWrite, false},
		{PermWriteOnly, AccessWrite, true},
		{PermWriteOnly, AccessRead, false},
		{PermLocked, AccessRead, false},
		{PermLocked, AccessWrite, false},
	}
	for _, c := range cases {
		r := RegionPermission{Level: c.level}
		require.Equal(t, c.want, r.Allows(c.mode))
	}
}
