package flashprog

import "fmt"

// sortedEraser is one (eraser_index, region_index) pair, ascending in block
// size, as produced by selectErasers. Named "eraser" after
// action_descriptor.c's struct eraser.
type sortedEraser struct {
	eraserIndex int
	regionIndex int
	blockSize   uint32
}

// highestModifiedOffset returns max(i | before[i] != after[i]) + 1, or 0 if
// the buffers are identical (spec.md §4.1's H).
func highestModifiedOffset(before, after []byte) int {
	h := 0
	for i := range before {
		if before[i] != after[i] {
			h = i + 1
		}
	}
	return h
}

// selectErasers builds the block-size-ascending, de-duplicated list of
// erasers restricted to those whose region coverage reaches h (spec.md
// §4.1), grounded in action_descriptor.c's fill_sorted_erasers.
//
// Tie-break rule: when two erasers have equal block size, the
// earlier-enumerated one wins; equality is detected on the resulting block
// size, not on the opcode/EraseFn tag.
func selectErasers(d *Descriptor, h int) ([]sortedEraser, error) {
	var result []sortedEraser

	for k, eraser := range d.BlockErasers {
		if eraser.EraseFn == EraseFnNone || len(eraser.Regions) == 0 {
			continue
		}

		regionIdx := -1
		for n, reg := range eraser.Regions {
			coverage := uint64(reg.SizeBytes) * uint64(reg.Count)
			if coverage >= uint64(h) {
				regionIdx = n
				break
			}
		}
		if regionIdx == -1 {
			// This eraser does not reach far enough into the chip.
			continue
		}

		newSize := eraser.Regions[regionIdx].SizeBytes

		inserted := false
		for m := range result {
			if result[m].blockSize < newSize {
				continue
			}
			if result[m].blockSize == newSize {
				// Drop the duplicate, retain the earlier eraser.
				inserted = true
				break
			}
			result = append(result, sortedEraser{})
			copy(result[m+1:], result[m:])
			result[m] = sortedEraser{eraserIndex: k, regionIndex: regionIdx, blockSize: newSize}
			inserted = true
			break
		}
		if !inserted {
			result = append(result, sortedEraser{eraserIndex: k, regionIndex: regionIdx, blockSize: newSize})
		}
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("%w: no eraser on %s:%s reaches offset 0x%x", ErrFatal, d.Vendor, d.Name, h)
	}
	return result, nil
}
