package flashprog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlanIdentityReturnsNoUnits(t *testing.T) {
	chip := testChip4KiB64KiB()
	size := chip.ChipSize()
	before := make([]byte, size)
	after := make([]byte, size)
	for i := range before {
		before[i] = 0xFF
		after[i] = 0xFF
	}

	units, err := Plan(chip, before, after)
	require.NoError(t, err)
	require.Nil(t, units)
}

func TestPlanSingleByteChangeUsesSmallestEraser(t *testing.T) {
	chip := testChip4KiB64KiB()
	size := chip.ChipSize()
	before := make([]byte, size)
	after := make([]byte, size)
	for i := range before {
		before[i] = 0xFF
		after[i] = 0xFF
	}
	after[10] = 0x00 // a single byte change within the first 4KiB block

	units, err := Plan(chip, before, after)
	require.NoError(t, err)
	require.Len(t, units, 1)
	require.Equal(t, uint32(4<<10), units[0].BlockSize)
	require.Equal(t, uint32(0), units[0].Offset)
	require.Equal(t, uint32(1), units[0].NumBlocks)
}

func TestPlanFoldsUpwardWhenThresholdCrossed(t *testing.T) {
	chip := testChip4KiB64KiB()
	size := chip.ChipSize()
	before := make([]byte, size)
	after := make([]byte, size)
	for i := range before {
		before[i] = 0xFF
		after[i] = 0xFF
	}

	// 64KiB block = 16 4KiB sub-blocks. Folding triggers above 70%, i.e. more
	// than 11 of 16 sub-blocks marked for erase. A sub-block is only
	// "needs erase" when its existing (before) content isn't already the
	// erased value, per buildRangeMaps' fold-threshold accounting.
	blockSize := 4 << 10
	for i := 0; i < 12; i++ {
		before[i*blockSize] = 0xAA
		after[i*blockSize] = 0x00
	}

	units, err := Plan(chip, before, after)
	require.NoError(t, err)
	require.Len(t, units, 1)
	require.Equal(t, uint32(64<<10), units[0].BlockSize)
	require.Equal(t, uint32(0), units[0].Offset)
}

func TestPlanDoesNotFoldBelowThreshold(t *testing.T) {
	chip := testChip4KiB64KiB()
	size := chip.ChipSize()
	before := make([]byte, size)
	after := make([]byte, size)
	for i := range before {
		before[i] = 0xFF
		after[i] = 0xFF
	}

	blockSize := 4 << 10
	// Only 2 of 16 sub-blocks marked; below the 70% fold threshold.
	before[0] = 0xAA
	after[0] = 0x00
	before[blockSize] = 0xAA
	after[blockSize] = 0x00

	units, err := Plan(chip, before, after)
	require.NoError(t, err)
	require.Len(t, units, 1)
	require.Equal(t, uint32(4<<10), units[0].BlockSize)
}

func TestPlanRejectsMismatchedSizes(t *testing.T) {
	chip := testChip4KiB64KiB()
	_, err := Plan(chip, make([]byte, 10), make([]byte, 10))
	require.Error(t, err)
}
