package flashprog

import "context"

// AccessMode selects the direction of an access check (spec.md §3's Region
// permission / §4.5's check_access).
type AccessMode int

const (
	AccessRead AccessMode = iota
	AccessWrite
)

// PermissionLevel is the access level of a descriptor-derived region
// (spec.md §3).
type PermissionLevel int

const (
	PermLocked PermissionLevel = iota
	PermReadOnly
	PermWriteOnly
	PermReadWrite
)

// RegionPermission is {name, base, limit, level}, derived from the flash
// descriptor and the master-grant bits (spec.md §3).
type RegionPermission struct {
	Name  string
	Base  uint32
	Limit uint32 // inclusive
	Level PermissionLevel
}

func (r RegionPermission) contains(addr uint32) bool {
	return addr >= r.Base && addr <= r.Limit
}

// Allows reports whether the region permits the given access mode.
func (r RegionPermission) Allows(mode AccessMode) bool {
	switch r.Level {
	case PermReadWrite:
		return true
	case PermReadOnly:
		return mode == AccessRead
	case PermWriteOnly:
		return mode == AccessWrite
	default:
		return false
	}
}

// Master is the abstract operations contract every flash-access backend
// implements (spec.md §4.2): probe, read(range), write(range), erase(block),
// read_status, write_status, check_access(range, rw). Two concrete
// implementations are in scope: SPICommandMaster and HardwareSequencedMaster.
type Master interface {
	// Probe identifies the chip attached to this master, returning its
	// manufacture and model IDs (JEDEC RDID shape: 16 bits each).
	Probe(ctx context.Context) (manufactureID, modelID uint16, err error)

	// Read reads len(p) bytes starting at addr into p.
	Read(ctx context.Context, addr uint32, p []byte) error

	// Write programs p at addr. The executor passes whole differing runs
	// (spec.md §4.4 step 3), which may span several pages; the Master splits
	// p into as many transactions as its page size and MaxDataWrite need.
	Write(ctx context.Context, addr uint32, p []byte) error

	// Erase erases one block of size blockSize at addr. addr must be
	// block-aligned.
	Erase(ctx context.Context, addr uint32, blockSize uint32) error

	ReadStatus(ctx context.Context) (StatusRegister, error)
	WriteStatus(ctx context.Context, sr StatusRegister) error

	// CheckAccess returns ErrAccessDenied if any byte in [addr, addr+n) is
	// outside the master's/descriptor's permitted range for mode.
	CheckAccess(ctx context.Context, addr uint32, n uint32, mode AccessMode) error

	// MaxDataRead and MaxDataWrite are the largest single-transaction
	// payload sizes this master supports (spec.md §4.5); callers chunk
	// larger operations accordingly.
	MaxDataRead() int
	MaxDataWrite() int
}

// RunningImageSwitcher is implemented by masters that mediate access to a
// flash chip also hosting the currently-running firmware of an embedded
// controller (spec.md §4.4's two-pass execution). Blocks overlapping the
// running image return ErrAccessDenied from CheckAccess until SwitchImage
// has been called.
type RunningImageSwitcher interface {
	// SwitchImage asks the master to jump execution to the alternate boot
	// bank so the previously-protected region becomes writable.
	SwitchImage(ctx context.Context) error
}

// ParanoidMaster is implemented by masters that require per-block
// verification after every write (spec.md §4.4 step 4, §8 property 8).
type ParanoidMaster interface {
	Paranoid() bool
}
