package flashprog

// ProcessingUnit is {offset, block_size, num_blocks, eraser_index,
// region_index} (spec.md §3). Invariants: offset % blockSize == 0;
// offset + numBlocks*blockSize <= chip size; blockSize equals
// eraser[eraserIndex].Regions[regionIndex].SizeBytes.
type ProcessingUnit struct {
	Offset      uint32
	BlockSize   uint32
	NumBlocks   uint32
	EraserIndex int
	RegionIndex int
}

func (pu ProcessingUnit) End() uint32 { return pu.Offset + pu.BlockSize*pu.NumBlocks }

// rangeBlock is one entry of a range map's block array (spec.md §3).
type rangeBlock struct {
	needChange bool
	needErase  bool
}

// rangeMap is one per distinct erase block size (spec.md §3).
type rangeMap struct {
	blockSize     uint32
	foldThreshold int
	blocks        []rangeBlock
}

// Plan produces the ordered list of processing units that, executed in
// order, transform before into after using chip's erase catalog (spec.md
// §4.2-§4.3). It is the composition of eraser selection, the diff+fold
// range-map planner, and the processing-unit emitter.
func Plan(chip *Descriptor, before, after []byte) ([]ProcessingUnit, error) {
	chipSize := chip.ChipSize()
	if len(before) != chipSize || len(after) != chipSize {
		return nil, errWrap(ErrInvalidArgument, "before/after must be sized chip_size")
	}

	h := highestModifiedOffset(before, after)
	if h == 0 {
		return nil, nil // Scenario A: identity, no processing units.
	}

	erasers, err := selectErasers(chip, h)
	if err != nil {
		return nil, err
	}

	maps, err := buildRangeMaps(chip, erasers, before, after)
	if err != nil {
		return nil, err
	}

	return emitProcessingUnits(erasers, maps), nil
}

// buildRangeMaps runs the fine-grained diff (step 1), the upward fold (step
// 2) and the downward prune (step 3) of spec.md §4.2.
func buildRangeMaps(chip *Descriptor, erasers []sortedEraser, before, after []byte) ([]rangeMap, error) {
	chipSize := uint32(chip.ChipSize())
	erasedValue := chip.ErasedValue()

	maps := make([]rangeMap, len(erasers))
	for i, e := range erasers {
		numBlocks := chipSize / e.blockSize
		maps[i].blockSize = e.blockSize
		maps[i].blocks = make([]rangeBlock, numBlocks)
		if i < len(erasers)-1 {
			largerBlockSize := erasers[i+1].blockSize
			// 70% of children is the fold threshold, spec.md §4.2.
			maps[i].foldThreshold = int((largerBlockSize / e.blockSize) * 7 / 10)
		}
	}

	// Step 1: fine-grained diff over maps[0].
	blockSize := maps[0].blockSize
	blocks := maps[0].blocks
	for i := 0; i < int(chipSize); i++ {
		if before[i] == after[i] {
			continue
		}
		blockIndex := uint32(i) / blockSize
		b := &blocks[blockIndex]
		if before[i] != erasedValue {
			b.needErase = true
		}
		if after[i] != erasedValue {
			b.needChange = true
		}
		if b.needErase && b.needChange {
			// No further evidence can change this block's fate;
			// skip to the next block boundary.
			i = int((blockIndex+1)*blockSize) - 1
		}
	}

	// Step 2: upward fold.
	for i := 1; i < len(maps); i++ {
		m := &maps[i]
		below := &maps[i-1]
		childrenPerParent := m.blockSize / below.blockSize
		for j := range m.blocks {
			lowStart := uint32(j) * childrenPerParent
			erase, change := 0, 0
			for k := lowStart; k < lowStart+childrenPerParent; k++ {
				if below.blocks[k].needErase {
					erase++
				}
				if below.blocks[k].needChange {
					change++
				}
			}
			if erase > below.foldThreshold {
				m.blocks[j].needErase = true
				m.blocks[j].needChange = change > 0
			}
		}
	}

	// Step 3: downward prune. Clear every descendant of a marked parent at
	// every smaller level.
	for i := len(maps) - 1; i > 0; i-- {
		m := &maps[i]
		for j := range m.blocks {
			if !m.blocks[j].needErase {
				continue
			}
			clearNested(maps, i, j)
		}
	}

	return maps, nil
}

// clearNested recursively clears all descendants of block j at level i.
func clearNested(maps []rangeMap, i, j int) {
	upper := &maps[i]
	below := &maps[i-1]
	childrenPerParent := int(upper.blockSize / below.blockSize)
	start := j * childrenPerParent
	for k := start; k < start+childrenPerParent; k++ {
		below.blocks[k].needChange = false
		below.blocks[k].needErase = false
		if i > 1 {
			clearNested(maps, i-1, k)
		}
	}
}

// emitProcessingUnits compacts the residual marked blocks into contiguous
// runs (spec.md §4.3). Smallest-size blocks first, addresses ascending
// within each size.
func emitProcessingUnits(erasers []sortedEraser, maps []rangeMap) []ProcessingUnit {
	var units []ProcessingUnit

	for i, m := range maps {
		consecutive := uint32(0)
		flush := func(endIdx uint32) {
			if consecutive == 0 {
				return
			}
			units = append(units, ProcessingUnit{
				Offset:      (endIdx - consecutive) * m.blockSize,
				BlockSize:   m.blockSize,
				NumBlocks:   consecutive,
				EraserIndex: erasers[i].eraserIndex,
				RegionIndex: erasers[i].regionIndex,
			})
			consecutive = 0
		}
		for j, b := range m.blocks {
			if b.needErase || b.needChange {
				consecutive++
				continue
			}
			flush(uint32(j))
		}
		flush(uint32(len(m.blocks)))
	}

	return units
}
