package flashprog

import "context"

// AddrMode is the chip/master's current addressing width (spec.md §3's "4BA
// state"). Default is Addr24; chips with Feature4BASupport switch to Addr32
// when an operation's address exceeds 0xFFFFFF.
type AddrMode int

const (
	Addr24 AddrMode = iota
	Addr32
)

const addr24Max = 1<<24 - 1

// fourByteAddrState tracks whether the chip/master are currently in 24-bit
// or 32-bit addressing mode, owned by the flash context for the duration of
// an operation (spec.md §3, §4.5's "Addressing" subsection).
type fourByteAddrState struct {
	mode AddrMode
}

// ensureMode emits ENTER_4BA/EXIT_4BA via enter/exit when addr crosses the
// 24-bit boundary. The mode is kept in s between calls; nothing switches it
// back to 24-bit when the caller is done, only a later call with an address
// at or below 0xFFFFFF does.
// enter and exit are the wire-level opcode senders supplied by the SPI
// master; hwseq masters address the whole 32-bit space natively and do not
// need this at all.
func (s *fourByteAddrState) ensureMode(ctx context.Context, addr uint32, supports4BA bool,
	enter, exit func(ctx context.Context) error) error {

	wantMode := Addr24
	if supports4BA && addr > addr24Max {
		wantMode = Addr32
	}
	if wantMode == s.mode {
		return nil
	}
	if wantMode == Addr32 {
		if err := enter(ctx); err != nil {
			return err
		}
	} else {
		if err := exit(ctx); err != nil {
			return err
		}
	}
	s.mode = wantMode
	return nil
}
