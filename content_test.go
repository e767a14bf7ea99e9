package flashprog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildContentAppliesOverridesInOrder(t *testing.T) {
	base := make([]byte, 32)
	for i := range base {
		base[i] = 0xFF
	}

	overrides := []RegionOverride{
		{Region: LayoutRegion{Start: 16, End: 23, Name: "B"}, Data: bytesOf(8, 0xBB)},
		{Region: LayoutRegion{Start: 0, End: 7, Name: "A"}, Data: bytesOf(8, 0xAA)},
	}

	content, err := BuildContent(base, overrides)
	require.NoError(t, err)
	require.Equal(t, byte(0xAA), content[0])
	require.Equal(t, byte(0xAA), content[7])
	require.Equal(t, byte(0xFF), content[8])
	require.Equal(t, byte(0xBB), content[16])
	require.Equal(t, byte(0xBB), content[23])
}

func TestBuildContentRejectsOverlap(t *testing.T) {
	base := make([]byte, 32)
	overrides := []RegionOverride{
		{Region: LayoutRegion{Start: 0, End: 15, Name: "A"}, Data: bytesOf(16, 0xAA)},
		{Region: LayoutRegion{Start: 10, End: 20, Name: "B"}, Data: bytesOf(11, 0xBB)},
	}
	_, err := BuildContent(base, overrides)
	require.Error(t, err)
}

func TestBuildContentRejectsWrongLength(t *testing.T) {
	base := make([]byte, 32)
	overrides := []RegionOverride{
		{Region: LayoutRegion{Start: 0, End: 15, Name: "A"}, Data: bytesOf(4, 0xAA)},
	}
	_, err := BuildContent(base, overrides)
	require.Error(t, err)
}

func bytesOf(n int, v byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = v
	}
	return b
}
