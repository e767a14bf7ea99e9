package flashprog

import "time"

// chipsCatalog extends the teacher's knownFlash map (flash_params.go) from a
// bare {name, timings} pair keyed on JEDEC ID to the full Descriptor model
// spec.md §3 needs: erase-command catalog, feature bits, voltage range.
var chipsCatalog = map[[3]byte]Descriptor{
	{0x20, 0xBA, 0x16}: {
		Vendor: "Micron", Name: "N25Q32",
		ManufactureID: 0x20, ModelID: 0xBA16,
		TotalSizeKiB: 4096, PageSizeBytes: 256,
		FeatureBits: Feature4BASupport,
		BlockErasers: []BlockEraser{
			{EraseFn: EraseFnSE, Regions: []EraseRegion{{SizeBytes: 4 << 10, Count: 1024}}},
			{EraseFn: EraseFnBED8, Regions: []EraseRegion{{SizeBytes: 64 << 10, Count: 64}}},
			{EraseFn: EraseFnCEC7, Regions: []EraseRegion{{SizeBytes: 4096 << 10, Count: 1}}},
		},
		Tested:       Tested{Probe: TestOK, Read: TestOK, Erase: TestOK, Write: TestOK},
		VoltageRange: VoltageRange{MinMV: 2700, MaxMV: 3600},
		Timing: ChipTiming{
			// [N25Q32|Table 38: AC Characteristics and Operating Conditions]
			TPP:         5 * time.Millisecond,
			TErase4KiB:  800 * time.Millisecond,
			TErase64KiB: 3 * time.Second,
			TEraseChip:  60 * time.Second,
		},
	},
	{0xEF, 0x70, 0x18}: {
		Vendor: "Winbond", Name: "W25Q128",
		ManufactureID: 0xEF, ModelID: 0x7018,
		TotalSizeKiB: 16384, PageSizeBytes: 256,
		FeatureBits: Feature4BASupport | FeatureWRSRNeedsWREN,
		BlockErasers: []BlockEraser{
			{EraseFn: EraseFnSE, Regions: []EraseRegion{{SizeBytes: 4 << 10, Count: 4096}}},
			{EraseFn: EraseFnBE52, Regions: []EraseRegion{{SizeBytes: 32 << 10, Count: 512}}},
			{EraseFn: EraseFnBED8, Regions: []EraseRegion{{SizeBytes: 64 << 10, Count: 256}}},
			{EraseFn: EraseFnCE60, Regions: []EraseRegion{{SizeBytes: 16384 << 10, Count: 1}}},
		},
		Tested:       Tested{Probe: TestOK, Read: TestOK, Erase: TestOK, Write: TestOK},
		VoltageRange: VoltageRange{MinMV: 2700, MaxMV: 3600},
		Timing: ChipTiming{
			// [W25Q128|9.6 AC Electrical Characteristics]
			TRES1:       3 * time.Microsecond,
			TDP:         3 * time.Microsecond,
			TPP:         3 * time.Millisecond,
			TErase4KiB:  400 * time.Millisecond,
			TErase64KiB: 2000 * time.Millisecond,
			TEraseChip:  200 * time.Second,
		},
	},
	// Larger (>16MiB) part to exercise Feature4BASupport's 4-byte-address
	// path (spec.md §4.5's addressing subsection), modeled on the W25Q128
	// entry's timings scaled to a 32MiB part.
	{0xEF, 0x71, 0x19}: {
		Vendor: "Winbond", Name: "W25Q256",
		ManufactureID: 0xEF, ModelID: 0x7119,
		TotalSizeKiB: 32768, PageSizeBytes: 256,
		FeatureBits: Feature4BASupport | FeatureWRSRNeedsWREN,
		BlockErasers: []BlockEraser{
			{EraseFn: EraseFnSE, Regions: []EraseRegion{{SizeBytes: 4 << 10, Count: 8192}}},
			{EraseFn: EraseFnBE52, Regions: []EraseRegion{{SizeBytes: 32 << 10, Count: 1024}}},
			{EraseFn: EraseFnBED8, Regions: []EraseRegion{{SizeBytes: 64 << 10, Count: 512}}},
			{EraseFn: EraseFnCE60, Regions: []EraseRegion{{SizeBytes: 32768 << 10, Count: 1}}},
		},
		Tested:       Tested{Probe: TestOK, Read: TestOK, Erase: TestOK, Write: TestOK},
		VoltageRange: VoltageRange{MinMV: 2700, MaxMV: 3600},
		Timing: ChipTiming{
			TPP:         3 * time.Millisecond,
			TErase4KiB:  400 * time.Millisecond,
			TErase64KiB: 2000 * time.Millisecond,
			TEraseChip:  400 * time.Second,
		},
	},
}

// LookupChip resolves a JEDEC manufacture/model/capacity triple read back by
// Probe to a catalog Descriptor, flashrom.c's probe_flash equivalent
// trimmed to table lookup (no SFDP/CFI fallback probing, spec.md Non-goal).
func LookupChip(id [3]byte) (Descriptor, bool) {
	d, ok := chipsCatalog[id]
	return d, ok
}

// paramOrMax mirrors the teacher's Flash.paramOrMax fallback: when a chip's
// own timing field is zero (unset), fall back to the slowest known value
// across the whole catalog rather than a hardcoded worst case.
func paramOrMax(get func(*ChipTiming) time.Duration) time.Duration {
	var tmax time.Duration
	for _, c := range chipsCatalog {
		if t := get(&c.Timing); t > tmax {
			tmax = t
		}
	}
	return tmax
}
