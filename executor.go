package flashprog

import (
	"bytes"
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// WriteGranularity mirrors flashrom.c's enum write_granularity, restricted
// to the three shapes spec.md §4.4 names: BitWise, ByteWise, and a
// page-aligned multi-byte granularity.
type WriteGranularity int

const (
	GranByteWise WriteGranularity = iota
	GranBitWise
	GranPage
)

// ExecutorState is the executor's state machine (spec.md §4.4):
// Idle -> Planning -> Executing(unit_i, block_j) -> Verifying -> Done |
// SecondPassNeeded -> Planning. Terminal states are Done and Failed.
type ExecutorState int

const (
	StateIdle ExecutorState = iota
	StatePlanning
	StateExecuting
	StateVerifying
	StateSecondPassNeeded
	StateDone
	StateFailed
)

// ExecConfig bundles the policy knobs the executor needs from the CLI layer
// (spec.md §6/§7).
type ExecConfig struct {
	Granularity       WriteGranularity
	PageSize          uint32 // only meaningful when Granularity == GranPage
	AccessDeniedPolicy AccessDeniedAction
	Verify            bool
}

// Executor walks processing units, decides per block whether erase/write is
// needed, invokes the master, and re-verifies (spec.md §4.4, the 14%
// component).
type Executor struct {
	master Master
	chip   *Descriptor
	cfg    ExecConfig

	state ExecutorState
}

// NewExecutor builds an executor bound to a master/chip pair.
func NewExecutor(m Master, chip *Descriptor, cfg ExecConfig) *Executor {
	return &Executor{master: m, chip: chip, cfg: cfg, state: StateIdle}
}

func (e *Executor) State() ExecutorState { return e.state }

// needErase implements spec.md §4.4 step 1.
func needErase(before, after []byte, gran WriteGranularity, pageSize uint32, erasedValue byte, noErase bool) bool {
	if noErase {
		return false
	}
	switch gran {
	case GranBitWise:
		for i := range before {
			if before[i]&after[i] != after[i] {
				return true
			}
		}
		return false
	case GranByteWise:
		for i := range before {
			if before[i] != after[i] && before[i] != erasedValue {
				return true
			}
		}
		return false
	case GranPage:
		stride := int(pageSize)
		if stride == 0 {
			stride = len(before)
		}
		for off := 0; off < len(before); off += stride {
			end := off + stride
			if end > len(before) {
				end = len(before)
			}
			if bytes.Equal(before[off:end], after[off:end]) {
				continue
			}
			for i := off; i < end; i++ {
				if before[i] != erasedValue {
					return true
				}
			}
		}
		return false
	default:
		return true
	}
}

// getNextWrite implements spec.md §4.4 step 3 / flashrom.c's get_next_write:
// find the first byte offset where before/after differ and the length of
// the first differing contiguous run, aligned to stride. Returns (start,
// length); length is 0 if no write is needed from searchFrom onward.
func getNextWrite(before, after []byte, searchFrom int, stride int) (start, length int) {
	if stride <= 0 {
		stride = 1
	}
	n := len(before)
	i := searchFrom - searchFrom%stride
	needWrite := false
	relStart := 0
	for ; i < n; i += stride {
		end := i + stride
		if end > n {
			end = n
		}
		if !bytes.Equal(before[i:end], after[i:end]) {
			if !needWrite {
				needWrite = true
				relStart = i
			}
			continue
		}
		if needWrite {
			return relStart, i - relStart
		}
	}
	if needWrite {
		return relStart, n - relStart
	}
	return 0, 0
}

// Result is returned by Run, carrying the final state and any accumulated
// non-fatal warnings (e.g. ignored AccessDenied blocks).
type Result struct {
	State    ExecutorState
	Warnings error // multierror, nil if none
}

// Run executes units against master, mutating before in place to track
// erase/write effects (spec.md §9: "keep this optimization... owned by the
// executor for the pass's duration"). after is never mutated.
//
// If master implements RunningImageSwitcher, blocks denied on the first
// pass are retried after a SwitchImage call, per spec.md §4.4's two-pass
// execution.
func (e *Executor) Run(ctx context.Context, units []ProcessingUnit, before, after []byte) (Result, error) {
	e.state = StatePlanning
	var warnings error

	deniedBlocks, err := e.runPass(ctx, units, before, after, &warnings)
	if err != nil {
		e.state = StateFailed
		return Result{State: e.state, Warnings: warnings}, err
	}

	if len(deniedBlocks) > 0 {
		switcher, ok := e.master.(RunningImageSwitcher)
		if !ok {
			e.state = StateFailed
			return Result{State: e.state, Warnings: warnings}, fmt.Errorf(
				"%w: %d blocks denied and master cannot switch running image", ErrAccessDenied, len(deniedBlocks))
		}
		e.state = StateSecondPassNeeded
		if err := switcher.SwitchImage(ctx); err != nil {
			e.state = StateFailed
			return Result{State: e.state, Warnings: warnings}, fmt.Errorf("switch running image: %w", err)
		}
		// Re-read before contents for the blocks we're about to retry:
		// the alternate bank may have different existing content.
		for _, b := range deniedBlocks {
			if err := e.master.Read(ctx, b.offset, before[b.offset:b.offset+b.blockSize]); err != nil {
				e.state = StateFailed
				return Result{State: e.state, Warnings: warnings}, fmt.Errorf("re-read before second pass: %w", err)
			}
		}
		e.state = StatePlanning
		if _, err := e.runPass(ctx, synthesizeUnits(deniedBlocks), before, after, &warnings); err != nil {
			e.state = StateFailed
			return Result{State: e.state, Warnings: warnings}, err
		}
	}

	e.state = StateDone
	return Result{State: e.state, Warnings: warnings}, nil
}

// blockRef identifies one denied block within a processing unit. Denial is
// tracked per block, not per unit (spec.md §4.4: "blocks that overlap the
// running image respond with AccessDenied... leaving those blocks
// untouched" for retry) since a WP range or descriptor region boundary need
// not align with a processing unit's boundary.
type blockRef struct {
	offset      uint32
	blockSize   uint32
	eraserIndex int
	regionIndex int
}

// synthesizeUnits re-compacts denied blocks (ordered by the pass that
// produced them, i.e. ascending offset within each size) back into
// ProcessingUnit runs for the second pass, mirroring the emitter's
// contiguous-run compaction (spec.md §4.3) at the granularity of exactly
// the blocks that were denied.
func synthesizeUnits(blocks []blockRef) []ProcessingUnit {
	var units []ProcessingUnit
	for _, b := range blocks {
		if n := len(units); n > 0 {
			last := &units[n-1]
			if last.BlockSize == b.blockSize && last.EraserIndex == b.eraserIndex &&
				last.RegionIndex == b.regionIndex && last.End() == b.offset {
				last.NumBlocks++
				continue
			}
		}
		units = append(units, ProcessingUnit{
			Offset: b.offset, BlockSize: b.blockSize, NumBlocks: 1,
			EraserIndex: b.eraserIndex, RegionIndex: b.regionIndex,
		})
	}
	return units
}

// runPass executes one erase/write pass over units, returning the blocks
// that were denied access (spec.md §4.4's per-block AccessDenied record,
// not per-unit) so the caller can retry exactly those blocks in a second
// pass.
func (e *Executor) runPass(ctx context.Context, units []ProcessingUnit, before, after []byte, warnings *error) ([]blockRef, error) {
	var denied []blockRef

	for _, pu := range units {
		for blk := uint32(0); blk < pu.NumBlocks; blk++ {
			addr := pu.Offset + blk*pu.BlockSize
			e.state = StateExecuting

			if err := e.master.CheckAccess(ctx, addr, pu.BlockSize, AccessWrite); err != nil {
				if !errorsIsAccessDenied(err) {
					return nil, err
				}
				if e.cfg.AccessDeniedPolicy == AccessDeniedFail {
					return nil, err
				}
				denied = append(denied, blockRef{
					offset: addr, blockSize: pu.BlockSize,
					eraserIndex: pu.EraserIndex, regionIndex: pu.RegionIndex,
				})
				*warnings = multierror.Append(*warnings, fmt.Errorf("block 0x%x: %w", addr, err))
				continue
			}

			if err := e.execBlock(ctx, addr, pu.BlockSize, before, after); err != nil {
				return nil, err
			}
		}
	}

	return denied, nil
}

func errorsIsAccessDenied(err error) bool {
	for err != nil {
		if err == ErrAccessDenied {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return false
}

// execBlock implements spec.md §4.4 steps 1-4 for one block.
func (e *Executor) execBlock(ctx context.Context, addr, blockSize uint32, before, after []byte) error {
	beforeSlice := before[addr : addr+blockSize]
	afterSlice := after[addr : addr+blockSize]
	erasedValue := e.chip.ErasedValue()

	if bytes.Equal(beforeSlice, afterSlice) {
		// Property 7: if before already equals after, issue no master
		// calls for this block.
		return nil
	}

	noErase := e.chip.FeatureBits.Has(FeatureNoErase)
	if needErase(beforeSlice, afterSlice, e.cfg.Granularity, e.cfg.PageSize, erasedValue, noErase) {
		if err := e.master.Erase(ctx, addr, blockSize); err != nil {
			return fmt.Errorf("erase 0x%x: %w", addr, err)
		}
		for i := range beforeSlice {
			beforeSlice[i] = erasedValue
		}
	}

	stride := writeStride(e.cfg.Granularity, e.cfg.PageSize)
	pos := 0
	for {
		start, length := getNextWrite(beforeSlice[pos:], afterSlice[pos:], 0, stride)
		if length == 0 {
			break
		}
		runOffset := addr + uint32(pos+start)
		runBytes := afterSlice[pos+start : pos+start+length]
		if err := e.master.Write(ctx, runOffset, runBytes); err != nil {
			return fmt.Errorf("write 0x%x: %w", runOffset, err)
		}
		copy(beforeSlice[pos+start:pos+start+length], runBytes)

		if pm, ok := e.master.(ParanoidMaster); ok && pm.Paranoid() {
			e.state = StateVerifying
			readback := make([]byte, length)
			if err := e.master.Read(ctx, runOffset, readback); err != nil {
				return fmt.Errorf("paranoid verify read 0x%x: %w", runOffset, err)
			}
			if !bytes.Equal(readback, runBytes) {
				return fmt.Errorf("%w: paranoid verify at 0x%x", ErrVerifyMismatch, runOffset)
			}
		}

		pos += start + length
		if pos >= len(beforeSlice) {
			break
		}
	}

	return nil
}

func writeStride(gran WriteGranularity, pageSize uint32) int {
	switch gran {
	case GranPage:
		if pageSize == 0 {
			return 1
		}
		return int(pageSize)
	default:
		return 1
	}
}
