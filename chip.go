package flashprog

import "time"

// FeatureBits mirrors flashrom's FEATURE_* bitmask (flash.h), trimmed to the
// subset spec.md §3 names.
type FeatureBits uint32

const (
	FeatureEraseToZero FeatureBits = 1 << iota
	Feature4BASupport
	FeatureWRSRNeedsWREN
	FeatureWRSRNeedsEWSR
	FeatureUnboundRead
	FeatureNoErase
	FeatureRegisterMap
)

func (f FeatureBits) Has(bit FeatureBits) bool { return f&bit != 0 }

// TestState is one of {OK, NotTested, Bad, NotApplicable}, per flashchip.tested
// in the original (flash.h enum test_state, OK/NT/BAD/NA).
type TestState int

const (
	TestNotTested TestState = iota
	TestOK
	TestBad
	TestNotApplicable
)

// Tested records how well a chip's operations are known to work, flash.h's
// struct tested (probe/read/erase/write fields only — uread is folded into
// the chip's FeatureUnboundRead bit here).
type Tested struct {
	Probe TestState
	Read  TestState
	Erase TestState
	Write TestState
}

// VoltageRange is {min_mV, max_mV}.
type VoltageRange struct {
	MinMV, MaxMV uint16
}

// EraseRegion is one {size_bytes, count} pair in a block eraser's region
// array (spec.md §3). The sum size*count of the regions that fit gives the
// eraser's coverage.
type EraseRegion struct {
	SizeBytes uint32
	Count     uint32
}

// EraseFn tags the opcode and wire-protocol variant a BlockEraser uses.
// Named after the flashrom erase functions it stands in for.
type EraseFn int

const (
	EraseFnNone EraseFn = iota
	EraseFnSE           // Sector Erase, opcode 0x20
	EraseFnBE52         // Block Erase, opcode 0x52
	EraseFnBED8         // Block Erase, opcode 0xD8
	EraseFnBED7         // Block Erase, opcode 0xD7 (legacy alias of 64KB erase)
	EraseFnCE60         // Chip Erase, opcode 0x60
	EraseFnCEC7         // Chip Erase, opcode 0xC7
)

// BlockEraser is one entry of a chip's erase-command catalog (spec.md §3).
// Bound is at least 6 regions/erasers as in flashrom's NUM_ERASEFUNCTIONS and
// NUM_ERASEREGIONS, but Go slices make the static bound unnecessary; callers
// should still keep within len(Regions) <= 5 to match the grounding source's
// shape when hand-authoring catalog entries.
type BlockEraser struct {
	Regions []EraseRegion
	EraseFn EraseFn
}

// Descriptor is the immutable, process-wide chip descriptor (spec.md §3).
type Descriptor struct {
	Vendor string
	Name   string

	ManufactureID uint16
	ModelID       uint16

	TotalSizeKiB  uint32
	PageSizeBytes uint32

	FeatureBits FeatureBits

	BlockErasers []BlockEraser

	Tested       Tested
	VoltageRange VoltageRange

	// WP is an optional write-protect capability bundle; nil if the chip
	// has none.
	WP WriteProtector

	// Timing parameters used for SPICommandMaster's busy-wait bounds, adapted
	// from the teacher's flashParams (flash_params.go).
	Timing ChipTiming
}

// ChipTiming carries per-chip AC timing characteristics used to size
// busy-wait polls, adapted from the teacher's flashParams.
type ChipTiming struct {
	TRES1      time.Duration // CS high to standby without ID read
	TDP        time.Duration // CS high to power-down
	TPP        time.Duration // page program cycle time
	TErase4KiB time.Duration
	TErase32KiB time.Duration
	TErase64KiB time.Duration
	TEraseChip time.Duration
}

// ChipSize returns the chip's total size in bytes.
func (d *Descriptor) ChipSize() int { return int(d.TotalSizeKiB) << 10 }

// ErasedValue returns the byte value every bit settles to after an erase.
// Almost every chip erases to 0xFF; FeatureEraseToZero inverts this, per the
// Open Question in spec.md §9: the flag is authoritative when set.
func (d *Descriptor) ErasedValue() byte {
	if d.FeatureBits.Has(FeatureEraseToZero) {
		return 0x00
	}
	return 0xFF
}

// sentinel manufacture/model IDs, flash.h's GENERIC_DEVICE_ID etc.
const (
	IDGenericSFDPMatch uint16 = 0xFFFE
	IDGenericCFIMatch  uint16 = 0xFFFD
)
