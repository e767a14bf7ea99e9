package flashprog

import (
	"encoding/binary"
	"fmt"
)

// Flash descriptor field offsets within the descriptor map, spec.md §4.6's
// "Init: read descriptor region, parse {flash_size_0, flash_size_1,
// num_components, base_limits[5..9], master_grants}", grounded in ichspi.c's
// FREG0..FREG7 layout (32-bit base/limit pairs, 4KiB granularity).
const (
	descSignatureOffset = 0x10
	descSignature        = 0x0FF0A55A

	descNumRegions = 5 // FREG0..FREG4: descriptor, BIOS, ME, GbE, platform data
)

var descRegionNames = [descNumRegions]string{"descriptor", "bios", "me", "gbe", "platform_data"}

// FlashDescriptor is the parsed content of spec.md §4.6's Init step: the
// fields the hardware-sequenced master and access checks consume.
type FlashDescriptor struct {
	FlashSize0    uint32
	FlashSize1    uint32
	NumComponents int
	Regions       []RegionPermission
	MasterGrants  uint32
}

// ParseDescriptor decodes a raw flash descriptor region (typically the
// first 4KiB of the chip) into a FlashDescriptor, spec.md §4.6's "Descriptor
// reader" (10% component).
func ParseDescriptor(raw []byte) (*FlashDescriptor, error) {
	if len(raw) < descSignatureOffset+4 {
		return nil, fmt.Errorf("%w: descriptor region too short", ErrInvalidLength)
	}
	sig := binary.LittleEndian.Uint32(raw[descSignatureOffset:])
	if sig != descSignature {
		return nil, fmt.Errorf("%w: bad flash descriptor signature %#x", ErrInvalidArgument, sig)
	}

	flmap0 := binary.LittleEndian.Uint32(raw[0x14:])
	numComponents := int((flmap0>>8)&0x3) + 1

	const freg0Offset = 0x40
	regions := make([]RegionPermission, 0, descNumRegions)
	for i := 0; i < descNumRegions; i++ {
		off := freg0Offset + i*4
		if off+4 > len(raw) {
			break
		}
		reg := binary.LittleEndian.Uint32(raw[off:])
		base := (reg & 0x7fff) << 12
		limit := ((reg>>16)&0x7fff)<<12 + 0xfff
		if base > limit {
			continue // unused region marker: base beyond limit
		}
		regions = append(regions, RegionPermission{
			Name: descRegionNames[i], Base: base, Limit: limit, Level: PermReadWrite,
		})
	}

	const flmap1Offset = 0x18
	masterGrants := binary.LittleEndian.Uint32(raw[flmap1Offset:])
	applyMasterGrants(regions, masterGrants)

	return &FlashDescriptor{
		FlashSize0:    binary.LittleEndian.Uint32(raw[0x00:]),
		FlashSize1:    binary.LittleEndian.Uint32(raw[0x04:]),
		NumComponents: numComponents,
		Regions:       regions,
		MasterGrants:  masterGrants,
	}, nil
}

// applyMasterGrants narrows each region's PermissionLevel using the host
// CPU's read/write grant bits packed in the master section (spec.md §3's
// RegionPermission "derived from the flash descriptor and the master-grant
// bits").
func applyMasterGrants(regions []RegionPermission, grants uint32) {
	for i := range regions {
		readAllowed := grants&(1<<uint(i)) != 0
		writeAllowed := grants&(1<<uint(i+8)) != 0
		switch {
		case readAllowed && writeAllowed:
			regions[i].Level = PermReadWrite
		case readAllowed:
			regions[i].Level = PermReadOnly
		case writeAllowed:
			regions[i].Level = PermWriteOnly
		default:
			regions[i].Level = PermLocked
		}
	}
}
