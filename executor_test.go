package flashprog

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeMaster is an in-memory Master backed by a byte slice, used to drive
// the executor without real hardware.
type fakeMaster struct {
	mem          []byte
	erasedValue  byte
	eraseCalls   []uint32
	writeCalls   []uint32
	deniedRanges []WPRange
}

func newFakeMaster(size int, erasedValue byte) *fakeMaster {
	m := &fakeMaster{mem: make([]byte, size), erasedValue: erasedValue}
	for i := range m.mem {
		m.mem[i] = erasedValue
	}
	return m
}

func (m *fakeMaster) Probe(ctx context.Context) (uint16, uint16, error) { return 0, 0, nil }

func (m *fakeMaster) Read(ctx context.Context, addr uint32, p []byte) error {
	copy(p, m.mem[addr:int(addr)+len(p)])
	return nil
}

func (m *fakeMaster) Write(ctx context.Context, addr uint32, p []byte) error {
	m.writeCalls = append(m.writeCalls, addr)
	copy(m.mem[addr:int(addr)+len(p)], p)
	return nil
}

func (m *fakeMaster) Erase(ctx context.Context, addr uint32, blockSize uint32) error {
	m.eraseCalls = append(m.eraseCalls, addr)
	for i := addr; i < addr+blockSize; i++ {
		m.mem[i] = m.erasedValue
	}
	return nil
}

func (m *fakeMaster) ReadStatus(ctx context.Context) (StatusRegister, error) { return 0, nil }
func (m *fakeMaster) WriteStatus(ctx context.Context, sr StatusRegister) error { return nil }

func (m *fakeMaster) CheckAccess(ctx context.Context, addr uint32, n uint32, mode AccessMode) error {
	for _, r := range m.deniedRanges {
		if addr < r.Start+r.Len && addr+n > r.Start {
			return ErrAccessDenied
		}
	}
	return nil
}

func (m *fakeMaster) MaxDataRead() int  { return len(m.mem) }
func (m *fakeMaster) MaxDataWrite() int { return len(m.mem) }

func TestExecutorRunWritesAndErases(t *testing.T) {
	chip := testChip4KiB64KiB()
	size := chip.ChipSize()
	before := make([]byte, size)
	after := make([]byte, size)
	for i := range before {
		before[i] = 0xFF
		after[i] = 0xFF
	}
	before[10] = 0xAA
	after[10] = 0x00

	master := newFakeMaster(size, 0xFF)
	copy(master.mem, before)

	units, err := Plan(chip, before, after)
	require.NoError(t, err)
	require.NotEmpty(t, units)

	exec := NewExecutor(master, chip, ExecConfig{Granularity: GranByteWise})
	result, err := exec.Run(context.Background(), units, before, after)
	require.NoError(t, err)
	require.Equal(t, StateDone, result.State)
	require.True(t, bytes.Equal(master.mem, after))
	require.NotEmpty(t, master.eraseCalls)
}

func TestExecutorSkipsIdenticalBlocks(t *testing.T) {
	chip := testChip4KiB64KiB()
	size := chip.ChipSize()
	before := make([]byte, size)
	after := make([]byte, size)
	for i := range before {
		before[i] = 0xFF
		after[i] = 0xFF
	}

	master := newFakeMaster(size, 0xFF)
	unit := ProcessingUnit{Offset: 0, BlockSize: 4 << 10, NumBlocks: 1}

	exec := NewExecutor(master, chip, ExecConfig{Granularity: GranByteWise})
	_, err := exec.Run(context.Background(), []ProcessingUnit{unit}, before, after)
	require.NoError(t, err)
	require.Empty(t, master.eraseCalls)
	require.Empty(t, master.writeCalls)
}

func TestNeedEraseByteWise(t *testing.T) {
	before := []byte{0xFF, 0xAA, 0xFF}
	afterNoChange := []byte{0xFF, 0xAA, 0xFF}
	require.False(t, needErase(before, afterNoChange, GranByteWise, 0, 0xFF, false))

	afterNeedsErase := []byte{0xFF, 0x00, 0xFF}
	require.True(t, needErase(before, afterNeedsErase, GranByteWise, 0, 0xFF, false))

	beforeErased := []byte{0xFF, 0xFF, 0xFF}
	afterWriteOnly := []byte{0xFF, 0x00, 0xFF}
	require.False(t, needErase(beforeErased, afterWriteOnly, GranByteWise, 0, 0xFF, false))
}

func TestNeedEraseNoEraseFeature(t *testing.T) {
	before := []byte{0xFF, 0x00, 0xFF}
	after := []byte{0xFF, 0x11, 0xFF}
	require.False(t, needErase(before, after, GranByteWise, 0, 0xFF, true))
}

func TestGetNextWrite(t *testing.T) {
	before := []byte{1, 1, 1, 2, 2, 1, 1}
	after := []byte{1, 1, 1, 9, 9, 1, 1}

	start, length := getNextWrite(before, after, 0, 1)
	require.Equal(t, 3, start)
	require.Equal(t, 2, length)

	start, length = getNextWrite(before, after, 5, 1)
	require.Equal(t, 0, length)
	_ = start
}

func TestExecutorTwoPassAccessDenied(t *testing.T) {
	chip := testChip4KiB64KiB()
	size := chip.ChipSize()
	before := make([]byte, size)
	after := make([]byte, size)
	for i := range before {
		before[i] = 0xFF
		after[i] = 0xFF
	}
	before[10] = 0xAA
	after[10] = 0x00

	master := newFakeMaster(size, 0xFF)
	copy(master.mem, before)
	master.deniedRanges = []WPRange{{Start: 0, Len: 4 << 10}}

	switcher := &switchingMaster{fakeMaster: master}

	units, err := Plan(chip, before, after)
	require.NoError(t, err)

	exec := NewExecutor(switcher, chip, ExecConfig{Granularity: GranByteWise, AccessDeniedPolicy: AccessDeniedIgnore})
	result, err := exec.Run(context.Background(), units, before, after)
	require.NoError(t, err)
	require.Equal(t, StateDone, result.State)
	require.True(t, switcher.switched)
}

func TestExecutorTwoPassRetriesOnlyDeniedBlocksWithinAUnit(t *testing.T) {
	chip := testChip4KiB64KiB()
	size := chip.ChipSize()
	before := make([]byte, size)
	after := make([]byte, size)
	for i := range before {
		before[i] = 0xFF
		after[i] = 0xFF
	}
	// Block 0 (denied) and block 1 (allowed) both change, mirroring a WP
	// boundary that falls mid-unit rather than on a unit boundary.
	before[10] = 0xAA
	after[10] = 0x00
	before[4096+10] = 0xAA
	after[4096+10] = 0x00

	master := newFakeMaster(size, 0xFF)
	copy(master.mem, before)
	master.deniedRanges = []WPRange{{Start: 0, Len: 4 << 10}}

	switcher := &switchingMaster{fakeMaster: master}

	// One processing unit spanning both the denied and the allowed block,
	// as the planner would emit when both blocks fold into the same run.
	unit := ProcessingUnit{Offset: 0, BlockSize: 4 << 10, NumBlocks: 2}

	exec := NewExecutor(switcher, chip, ExecConfig{Granularity: GranByteWise, AccessDeniedPolicy: AccessDeniedIgnore})
	result, err := exec.Run(context.Background(), []ProcessingUnit{unit}, before, after)
	require.NoError(t, err)
	require.Equal(t, StateDone, result.State)
	require.True(t, switcher.switched)
	// Property 1: the final buffer equals after, including the block that
	// was denied on the first pass and only succeeded on the retry.
	require.True(t, bytes.Equal(master.mem, after))
}

// switchingMaster wraps fakeMaster with a RunningImageSwitcher that clears
// the denied range after the first pass, modeling the alternate-boot-bank
// scenario from spec.md §4.4.
type switchingMaster struct {
	*fakeMaster
	switched bool
}

func (s *switchingMaster) SwitchImage(ctx context.Context) error {
	s.switched = true
	s.deniedRanges = nil
	return nil
}
