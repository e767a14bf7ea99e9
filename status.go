package flashprog

import (
	"context"
	"fmt"
	"strings"
)

// StatusRegister mirrors the teacher's flash.go StatusRegister, generalized
// to cover both the Micron/Winbond bit layout it was grounded on (spec.md
// §3's "status & lock mgmt" component).
//
//	Bits| [N25Q32|Table 9]                     | [W25Q128|7.1 Status Registers]
//	----+--------------------------------------+-------------------------------
//	7   | Status register write enable/disable | SRP: Status Register Protect
//	6   | Reserved                             | SEC: Sector protect
//	5   | Top/bottom                           | TB: Top/Bottom protect
//	4:2 | Block protect 2-0                    | BP2-0: Block Protect bit 2-0
//	1   | Write enable latch                   | WEL: Write Enable Latch
//	0   | Write in progress                    | BUSY: Erase/Write in progress
type StatusRegister byte

func (sr StatusRegister) StatusRegisterProtect() bool { return sr&(1<<7) != 0 }
func (sr StatusRegister) SectorProtect() bool         { return sr&(1<<6) != 0 }
func (sr StatusRegister) TopBottom() bool             { return sr&(1<<5) != 0 }
func (sr StatusRegister) BlockProtect2() bool         { return sr&(1<<4) != 0 }
func (sr StatusRegister) BlockProtect1() bool         { return sr&(1<<3) != 0 }
func (sr StatusRegister) BlockProtect0() bool         { return sr&(1<<2) != 0 }
func (sr StatusRegister) WriteEnabled() bool          { return sr&(1<<1) != 0 }
func (sr StatusRegister) Busy() bool                  { return sr&(1<<0) != 0 }

func (sr StatusRegister) String() string {
	b := fmt.Sprintf("%08b", byte(sr))
	var s []string
	if sr.StatusRegisterProtect() {
		s = append(s, "SRP")
	}
	if sr.SectorProtect() {
		s = append(s, "SEC")
	}
	if sr.TopBottom() {
		s = append(s, "TB")
	}
	if sr.BlockProtect2() {
		s = append(s, "BP2")
	}
	if sr.BlockProtect1() {
		s = append(s, "BP1")
	}
	if sr.BlockProtect0() {
		s = append(s, "BP0")
	}
	if sr.WriteEnabled() {
		s = append(s, "WEL")
	}
	if sr.Busy() {
		s = append(s, "BUSY")
	}
	if len(s) == 0 {
		return b
	}
	return b + " " + strings.Join(s, ",")
}

// StatusManager reads/writes the SPI status register through a master and
// applies write-protection ranges (spec.md §3's "Status & lock mgmt", 5%
// component). It also owns the one-shot "unlock-for-session, re-lock-at-exit"
// behavior via the shutdown registry.
type StatusManager struct {
	m     Master
	wp    WriteProtector
	hooks *ShutdownRegistry
}

// NewStatusManager builds a manager bracketing wp unlock/relock with hooks.
func NewStatusManager(m Master, wp WriteProtector, hooks *ShutdownRegistry) *StatusManager {
	return &StatusManager{m: m, wp: wp, hooks: hooks}
}

// UnlockForSession disables the chip's write protection for the duration of
// the process and registers a shutdown hook that restores it, matching
// flashrom's pattern of pairing "enter mode" with guaranteed "exit mode" on
// every exit path (spec.md §9).
func (s *StatusManager) UnlockForSession(ctx context.Context) error {
	if s.wp == nil {
		return nil
	}
	before, err := s.wp.Status(ctx)
	if err != nil {
		return fmt.Errorf("read wp status: %w", err)
	}
	if !before.Enabled {
		return nil
	}
	if err := s.wp.Disable(ctx); err != nil {
		return fmt.Errorf("disable wp: %w", err)
	}
	s.hooks.Register("restore-wp", func(any) error {
		return s.wp.SetRange(ctx, before.Start, before.Len)
	}, nil)
	return nil
}

// ApplyRange rejects operations inside an active WP range, per spec.md
// §4.8: "The planner treats a flash with an active WP range as if any
// write/erase inside the range fails with AccessDenied."
func (s *StatusManager) ApplyRange(ctx context.Context, addr, n uint32, mode AccessMode) error {
	if s.wp == nil || mode == AccessRead {
		return nil
	}
	st, err := s.wp.Status(ctx)
	if err != nil || !st.Enabled {
		return err
	}
	rangeEnd := st.Start + st.Len
	opEnd := addr + n
	if addr < rangeEnd && opEnd > st.Start {
		return fmt.Errorf("%w: [0x%x,0x%x) inside wp range [0x%x,0x%x)", ErrAccessDenied, addr, opEnd, st.Start, rangeEnd)
	}
	return nil
}
