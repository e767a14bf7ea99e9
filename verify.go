package flashprog

import (
	"bytes"
	"context"
	"fmt"
)

// VerifyMode selects full-chip or partial-range verification (spec.md
// §6's --noverify/--fast-verify and scenarios E/F).
type VerifyMode int

const (
	VerifyFull VerifyMode = iota
	VerifyPartial
)

// VerifyRange is an inclusive-start, exclusive-end byte range to verify.
type VerifyRange struct {
	Start, End uint32
}

// Verify performs byte-wise verification via master read (spec.md §4.9,
// the "Verifier" 5% component). For VerifyFull, ranges is ignored and the
// whole chip is read back; for VerifyPartial only the given ranges are
// checked, matching scenario F: "a differing byte [outside the ranges]
// does not cause failure."
func Verify(ctx context.Context, m Master, want []byte, mode VerifyMode, ranges []VerifyRange) error {
	if mode == VerifyFull {
		ranges = []VerifyRange{{Start: 0, End: uint32(len(want))}}
	}

	const chunk = 1 << 16
	for _, r := range ranges {
		for addr := r.Start; addr < r.End; addr += chunk {
			n := r.End - addr
			if n > chunk {
				n = chunk
			}
			got := make([]byte, n)
			if err := m.Read(ctx, addr, got); err != nil {
				return fmt.Errorf("verify read 0x%x: %w", addr, err)
			}
			if !bytes.Equal(got, want[addr:addr+n]) {
				off := firstDiff(got, want[addr:addr+n])
				return fmt.Errorf("%w: at 0x%x", ErrVerifyMismatch, addr+uint32(off))
			}
		}
	}
	return nil
}

func firstDiff(a, b []byte) int {
	for i := range a {
		if a[i] != b[i] {
			return i
		}
	}
	return 0
}

// RecoverFromMismatch implements spec.md §7's special handling after a
// write-verification failure: re-read the chip, compare to before; if
// unchanged, report "nothing happened, retry safe" (non-fatal), otherwise
// "flash may be in unknown state" (fatal). Mirrors flashrom.c's
// nonfatal_help_message/emergency_help_message split.
func RecoverFromMismatch(ctx context.Context, m Master, before []byte) (retrySafe bool, err error) {
	current := make([]byte, len(before))
	if err := m.Read(ctx, 0, current); err != nil {
		return false, fmt.Errorf("%w: re-read during mismatch recovery: %v", ErrFatal, err)
	}
	if bytes.Equal(current, before) {
		logWarn("write apparently did nothing; retry should be safe")
		return true, nil
	}
	logError("flash may be in unknown state")
	return false, fmt.Errorf("%w: flash contents changed and no longer match the before image", ErrFatal)
}
