package flashprog

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// Intel ICH9-style hardware-sequencing registers, grounded in ichspi.c's
// ICH9_REG_* constants (spec.md §4.6's "Hardware-sequenced master").
const (
	ich9RegHSFS  = 0x04 // 16 bits: Hardware Sequencing Flash Status
	ich9RegHSFC  = 0x06 // 16 bits: Hardware Sequencing Flash Control
	ich9RegFADDR = 0x08 // 32 bits: Flash Address
	ich9RegFDATA0 = 0x10 // 64 bytes: Flash Data 0..15
	ich9RegFREG0 = 0x54 // 32 bytes: Flash Region 0..7

	hsfsFDONE  = 1 << 0
	hsfsFCERR  = 1 << 1
	hsfsAEL    = 1 << 2
	hsfsSCIP   = 1 << 5
	hsfsFDOPSS = 1 << 13
	hsfsFDV    = 1 << 14
	hsfsFLOCKDN = 1 << 15

	hsfcFGO    = 1 << 0
	hsfcFCYCLEOff = 1
	hsfcFDBCOff   = 8

	hsfcCycleRead   = 0
	hsfcCycleWrite  = 2
	hsfcCycleErase  = 3
)

// HardwareSequencedMaster drives an Intel PCH-style flash controller via its
// memory-mapped HSFS/HSFC/FADDR/FREG/FDATA registers (spec.md §4.6), as
// opposed to SPICommandMaster's opcode-level bit-banging. Grounded in
// ichspi.c's ich_hwseq_* operations, adapted to a Go mmap-backed register
// window instead of the original's PCI BAR + inb/outb access.
type HardwareSequencedMaster struct {
	mmio []byte // memory-mapped register window, ich9RegHSFS onward
	data []byte // FDATA0..FDATAn window, up to 64 bytes per cycle

	Chip    *Descriptor
	regions []RegionPermission

	pollInterval time.Duration
	timeout      time.Duration
}

// OpenHardwareSequencedMaster mmaps the controller's register window at
// physAddr (the PCH's SPIBAR) via /dev/mem, golang.org/x/sys/unix.Mmap
// rather than hand-rolled syscall plumbing, matching the rest of the
// dependency pack's preference for x/sys over raw syscall numbers.
func OpenHardwareSequencedMaster(memFD int, physAddr int64, regionSize int, chip *Descriptor) (*HardwareSequencedMaster, error) {
	mem, err := unix.Mmap(memFD, physAddr, regionSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("%w: mmap SPIBAR: %v", ErrFatal, err)
	}
	return &HardwareSequencedMaster{
		mmio:         mem,
		data:         mem[ich9RegFDATA0:],
		Chip:         chip,
		pollInterval: 100 * time.Microsecond,
		timeout:      2 * time.Second,
	}, nil
}

// Close unmaps the register window.
func (h *HardwareSequencedMaster) Close() error {
	return unix.Munmap(h.mmio)
}

func (h *HardwareSequencedMaster) readReg16(off int) uint16 {
	return binary.LittleEndian.Uint16(h.mmio[off:])
}
func (h *HardwareSequencedMaster) writeReg16(off int, v uint16) {
	binary.LittleEndian.PutUint16(h.mmio[off:], v)
}
func (h *HardwareSequencedMaster) readReg32(off int) uint32 {
	return binary.LittleEndian.Uint32(h.mmio[off:])
}
func (h *HardwareSequencedMaster) writeReg32(off int, v uint32) {
	binary.LittleEndian.PutUint32(h.mmio[off:], v)
}

// loadRegions decodes one FREG register per entry of names, starting at
// FREG0, into RegionPermission records, treating
// every hardware-sequencer-visible region as read-write until a descriptor
// master-grant override narrows it (SetRegions).
func (h *HardwareSequencedMaster) loadRegions(names []string) {
	h.regions = h.regions[:0]
	for i, name := range names {
		reg := h.readReg32(ich9RegFREG0 + i*4)
		base := (reg & 0x7fff) << 12
		limit := ((reg>>16)&0x7fff)<<12 + 0xfff
		if base > limit {
			continue // unused region marker: base beyond limit
		}
		h.regions = append(h.regions, RegionPermission{
			Name: name, Base: base, Limit: limit, Level: PermReadWrite,
		})
	}
}

// SetRegions overrides the region table with descriptor-derived permissions
// (descriptor.go's ParseDescriptor output), narrowing loadRegions' default
// read-write grants to what the flash descriptor's master section actually
// allows this host.
func (h *HardwareSequencedMaster) SetRegions(regions []RegionPermission) {
	h.regions = regions
}

// runCycle triggers one hardware-sequenced flash cycle (spec.md §4.6):
// program FADDR/FDBC, set FCYCLE, set FGO, poll for FDONE/FCERR.
func (h *HardwareSequencedMaster) runCycle(ctx context.Context, addr uint32, byteCount int, cycle uint16) error {
	h.writeReg32(ich9RegFADDR, addr&0x7ffffff)

	hsfc := h.readReg16(ich9RegHSFC)
	hsfc &^= 0x3 << hsfcFCYCLEOff
	hsfc |= cycle << hsfcFCYCLEOff
	hsfc &^= 0x3f << hsfcFDBCOff
	if byteCount > 0 {
		hsfc |= uint16((byteCount-1)&0x3f) << hsfcFDBCOff
	}
	hsfc |= hsfcFGO
	h.writeReg16(ich9RegHSFC, hsfc)

	deadline := time.Now().Add(h.timeout)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		hsfs := h.readReg16(ich9RegHSFS)
		if hsfs&hsfsFCERR != 0 {
			h.writeReg16(ich9RegHSFS, hsfsFCERR)
			return fmt.Errorf("%w: hardware sequencing cycle error at 0x%x", ErrAccessDenied, addr)
		}
		if hsfs&hsfsFDONE != 0 {
			h.writeReg16(ich9RegHSFS, hsfsFDONE)
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: hardware sequencing cycle at 0x%x", ErrTimeout, addr)
		}
		time.Sleep(h.pollInterval)
	}
}

func (h *HardwareSequencedMaster) MaxDataRead() int  { return 64 }
func (h *HardwareSequencedMaster) MaxDataWrite() int { return 64 }

func (h *HardwareSequencedMaster) Probe(ctx context.Context) (manufactureID, modelID uint16, err error) {
	if h.Chip == nil {
		return 0, 0, fmt.Errorf("%w: no chip bound to hardware-sequenced master", ErrChipUnknown)
	}
	return h.Chip.ManufactureID, h.Chip.ModelID, nil
}

func (h *HardwareSequencedMaster) Read(ctx context.Context, addr uint32, p []byte) error {
	for off := 0; off < len(p); off += 64 {
		n := len(p) - off
		if n > 64 {
			n = 64
		}
		if err := h.runCycle(ctx, addr+uint32(off), n, hsfcCycleRead); err != nil {
			return err
		}
		copy(p[off:off+n], h.data[:n])
	}
	return nil
}

func (h *HardwareSequencedMaster) Write(ctx context.Context, addr uint32, p []byte) error {
	for off := 0; off < len(p); off += 64 {
		n := len(p) - off
		if n > 64 {
			n = 64
		}
		copy(h.data[:n], p[off:off+n])
		if err := h.runCycle(ctx, addr+uint32(off), n, hsfcCycleWrite); err != nil {
			return err
		}
	}
	return nil
}

func (h *HardwareSequencedMaster) Erase(ctx context.Context, addr uint32, blockSize uint32) error {
	return h.runCycle(ctx, addr, 0, hsfcCycleErase)
}

func (h *HardwareSequencedMaster) ReadStatus(ctx context.Context) (StatusRegister, error) {
	hsfs := h.readReg16(ich9RegHSFS)
	return StatusRegister(hsfs), nil
}

func (h *HardwareSequencedMaster) WriteStatus(ctx context.Context, sr StatusRegister) error {
	return fmt.Errorf("%w: status register is not writable on a hardware-sequenced master", ErrInvalidOpcode)
}

// CheckAccess vets addr..addr+n against the descriptor's region permission
// table, the hardware-sequenced master's distinguishing feature over the
// plain SPI master (spec.md §4.6).
func (h *HardwareSequencedMaster) CheckAccess(ctx context.Context, addr uint32, n uint32, mode AccessMode) error {
	end := addr + n - 1
	for _, r := range h.regions {
		if addr < r.Base || end > r.Limit {
			continue
		}
		if !r.Allows(mode) {
			return fmt.Errorf("%w: region %q does not allow this access", ErrAccessDenied, r.Name)
		}
		return nil
	}
	return fmt.Errorf("%w: 0x%x..0x%x not covered by any descriptor region", ErrAccessDenied, addr, end)
}
