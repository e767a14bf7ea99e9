package flashprog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDescriptorErasedValue(t *testing.T) {
	d := &Descriptor{}
	require.Equal(t, byte(0xFF), d.ErasedValue())

	d.FeatureBits = FeatureEraseToZero
	require.Equal(t, byte(0x00), d.ErasedValue())
}

func TestDescriptorChipSize(t *testing.T) {
	d := &Descriptor{TotalSizeKiB: 4096}
	require.Equal(t, 4096*1024, d.ChipSize())
}

func TestFeatureBitsHas(t *testing.T) {
	f := Feature4BASupport | FeatureNoErase
	require.True(t, f.Has(Feature4BASupport))
	require.True(t, f.Has(FeatureNoErase))
	require.False(t, f.Has(FeatureWRSRNeedsEWSR))
}

func TestLookupChipKnownAndUnknown(t *testing.T) {
	d, ok := LookupChip([3]byte{0x20, 0xBA, 0x16})
	require.True(t, ok)
	require.Equal(t, "N25Q32", d.Name)

	_, ok = LookupChip([3]byte{0xDE, 0xAD, 0xBE})
	require.False(t, ok)
}
