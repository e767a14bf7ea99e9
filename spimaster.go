package flashprog

import (
	"context"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"
)

// SPI opcodes, spec.md §4.5. Grounded in the teacher's flash.go command
// table ([N25Q32|Table 16], [W25Q128|8.1.2 Instruction Set Table 1]),
// extended with the block/chip erase and status-latch variants the
// catalog-driven planner needs.
const (
	opRDID    = 0x9F
	opREMS    = 0x90
	opRDSR    = 0x05
	opWRSR    = 0x01
	opRead    = 0x03
	opPP      = 0x02
	opSE      = 0x20
	opBE52    = 0x52
	opBED8    = 0xD8
	opBED7    = 0xD7
	opCE60    = 0x60
	opCEC7    = 0xC7
	opWREN    = 0x06
	opEWSR    = 0x50
	opEnter4BA = 0xB7
	opExit4BA  = 0xE9
)

// spiCmd is one entry of SPICommandMaster.sendMulticommand's argument list,
// spec.md §4.5's atomic-pair contract: a preop tagged command must be
// emitted within the same chip-select window as the op it guards.
type spiCmd struct {
	write []byte
	read  []byte // len(read) bytes appended to buf and returned in sendMulticommand's results
}

// SPICommandMaster maps opcode-level commands to master byte-level
// transactions of the form "write N bytes, then read M bytes", bracketed by
// chip-select assert/deassert (spec.md §4.5, the 10% component). Grounded
// in the teacher's flash.go/device.go tx() helper.
type SPICommandMaster struct {
	Conn spi.Conn
	CS   gpio.PinIO
	Chip *Descriptor

	maxRead  int
	maxWrite int
	paranoid bool

	fba fourByteAddrState
}

// NewSPICommandMaster builds a master over an already-connected SPI
// transport and chip-select pin. maxTx is the largest single transaction
// the underlying transport supports, [FTDI-AN_108]'s 65536-byte bound for
// the teacher's FT2232H backend.
func NewSPICommandMaster(conn spi.Conn, cs gpio.PinIO, chip *Descriptor, maxTx int, paranoid bool) *SPICommandMaster {
	return &SPICommandMaster{
		Conn:     conn,
		CS:       cs,
		Chip:     chip,
		maxRead:  maxTx,
		maxWrite: maxTx,
		paranoid: paranoid,
	}
}

func (s *SPICommandMaster) MaxDataRead() int  { return s.maxRead }
func (s *SPICommandMaster) MaxDataWrite() int { return s.maxWrite }
func (s *SPICommandMaster) Paranoid() bool    { return s.paranoid }

// tx wraps one SPI transaction with CS assertion, as the teacher's
// Flash.tx does.
func (s *SPICommandMaster) tx(buf []byte) (err error) {
	if err = s.CS.Out(gpio.Low); err != nil {
		return err
	}
	defer func() {
		if csErr := s.CS.Out(gpio.High); csErr != nil && err == nil {
			err = csErr
		}
	}()
	return s.Conn.Tx(buf, buf)
}

// sendMulticommand issues cmds within a single chip-select window, honoring
// atomic preop/op pairs without intervening bus activity (spec.md §4.5).
func (s *SPICommandMaster) sendMulticommand(cmds ...spiCmd) ([][]byte, error) {
	if err := s.CS.Out(gpio.Low); err != nil {
		return nil, err
	}
	defer s.CS.Out(gpio.High)

	results := make([][]byte, len(cmds))
	for i, c := range cmds {
		buf := append(append([]byte{}, c.write...), c.read...)
		if err := s.Conn.Tx(buf, buf); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTransaction, err)
		}
		if len(c.read) > 0 {
			results[i] = buf[len(c.write):]
		}
	}
	return results, nil
}

func be24(addr uint32) []byte {
	return []byte{byte(addr >> 16), byte(addr >> 8), byte(addr)}
}

func be32(addr uint32) []byte {
	return []byte{byte(addr >> 24), byte(addr >> 16), byte(addr >> 8), byte(addr)}
}

func (s *SPICommandMaster) addrBytes(addr uint32) []byte {
	if s.fba.mode == Addr32 {
		return be32(addr)
	}
	return be24(addr)
}

func (s *SPICommandMaster) ensure4BA(ctx context.Context, addr uint32) error {
	supports4BA := s.Chip != nil && s.Chip.FeatureBits.Has(Feature4BASupport)
	return s.fba.ensureMode(ctx, addr, supports4BA,
		func(ctx context.Context) error { return s.tx([]byte{opEnter4BA}) },
		func(ctx context.Context) error { return s.tx([]byte{opExit4BA}) })
}

// Probe issues RDID (spec.md §4.5's table).
func (s *SPICommandMaster) Probe(ctx context.Context) (manufactureID, modelID uint16, err error) {
	buf := make([]byte, 4)
	buf[0] = opRDID
	if err := s.tx(buf); err != nil {
		return 0, 0, fmt.Errorf("%w: RDID: %v", ErrTransaction, err)
	}
	return uint16(buf[1]), uint16(buf[2])<<8 | uint16(buf[3]), nil
}

// Read performs a READ, splitting into multiple transactions to stay within
// maxRead, grounded in the teacher's Flash.Read.
func (s *SPICommandMaster) Read(ctx context.Context, addr uint32, p []byte) error {
	off := 0
	for remaining := len(p); remaining > 0; {
		if err := s.ensure4BA(ctx, addr); err != nil {
			return err
		}
		ab := s.addrBytes(addr)
		cmdBytes := 1 + len(ab)
		chunk := remaining
		if chunk > s.maxRead-cmdBytes {
			chunk = s.maxRead - cmdBytes
		}
		buf := make([]byte, cmdBytes+chunk)
		buf[0] = opRead
		copy(buf[1:], ab)

		if err := s.tx(buf); err != nil {
			return fmt.Errorf("%w: READ at 0x%x: %v", ErrTransaction, addr, err)
		}
		copy(p[off:off+chunk], buf[cmdBytes:])

		addr += uint32(chunk)
		off += chunk
		remaining -= chunk
	}
	return nil
}

// Write performs PP (page program), bracketed with WREN, chunked to the
// chip's page size and the master's maxWrite (spec.md §4.4 step 3, §4.5).
func (s *SPICommandMaster) Write(ctx context.Context, addr uint32, p []byte) error {
	pageSize := 256
	if s.Chip != nil && s.Chip.PageSizeBytes > 0 {
		pageSize = int(s.Chip.PageSizeBytes)
	}
	off := 0
	for remaining := len(p); remaining > 0; {
		// Do not cross a page boundary within one PP.
		inPageRemaining := pageSize - int(addr)%pageSize
		chunk := remaining
		if chunk > inPageRemaining {
			chunk = inPageRemaining
		}
		if err := s.ensure4BA(ctx, addr); err != nil {
			return err
		}
		ab := s.addrBytes(addr)
		cmdBytes := 1 + len(ab)
		if chunk > s.maxWrite-cmdBytes {
			chunk = s.maxWrite - cmdBytes
		}
		buf := make([]byte, cmdBytes+chunk)
		buf[0] = opPP
		copy(buf[1:], ab)
		copy(buf[cmdBytes:], p[off:off+chunk])

		if _, err := s.sendMulticommand(
			spiCmd{write: []byte{opWREN}},
			spiCmd{write: buf},
		); err != nil {
			return fmt.Errorf("PP at 0x%x: %w", addr, err)
		}
		if err := s.busyWait(ctx, s.tppOr(3*time.Millisecond)); err != nil {
			return err
		}

		addr += uint32(chunk)
		off += chunk
		remaining -= chunk
	}
	return nil
}

// Erase dispatches to the opcode the chip's block eraser catalog names for
// blockSize: eraseFnFor takes the first eraser with a region of that size
// (the same one selectErasers keeps on a tie), and Erase fails with
// ErrInvalidOpcode when no eraser has a region of that size.
func (s *SPICommandMaster) Erase(ctx context.Context, addr uint32, blockSize uint32) error {
	fn, timing := s.eraseFnFor(blockSize)
	if err := s.ensure4BA(ctx, addr); err != nil {
		return err
	}
	var opcode byte
	var addrBytes []byte
	switch fn {
	case EraseFnSE:
		opcode = opSE
		addrBytes = s.addrBytes(addr)
	case EraseFnBE52:
		opcode = opBE52
		addrBytes = s.addrBytes(addr)
	case EraseFnBED8:
		opcode = opBED8
		addrBytes = s.addrBytes(addr)
	case EraseFnBED7:
		opcode = opBED7
		addrBytes = s.addrBytes(addr)
	case EraseFnCE60:
		opcode = opCE60
	case EraseFnCEC7:
		opcode = opCEC7
	default:
		return fmt.Errorf("%w: no erase function for block size %d", ErrInvalidOpcode, blockSize)
	}

	buf := append([]byte{opcode}, addrBytes...)
	if _, err := s.sendMulticommand(
		spiCmd{write: []byte{opWREN}},
		spiCmd{write: buf},
	); err != nil {
		return fmt.Errorf("erase at 0x%x: %w", addr, err)
	}
	return s.busyWait(ctx, timing)
}

func (s *SPICommandMaster) eraseFnFor(blockSize uint32) (EraseFn, time.Duration) {
	if s.Chip == nil {
		return EraseFnNone, 0
	}
	for _, e := range s.Chip.BlockErasers {
		for _, r := range e.Regions {
			if r.SizeBytes == blockSize {
				return e.EraseFn, s.eraseTiming(blockSize)
			}
		}
	}
	return EraseFnNone, 0
}

// eraseTiming picks the busy-wait bound for blockSize, falling back to the
// slowest known value across the whole catalog when this chip's own field
// is unset — the teacher's Flash.paramOrMax pattern (flash_params.go),
// generalized from a single programmer-supplied override to a per-chip
// Timing field.
func (s *SPICommandMaster) eraseTiming(blockSize uint32) time.Duration {
	if s.Chip == nil {
		return time.Second
	}
	var get func(*ChipTiming) time.Duration
	switch {
	case blockSize <= 4096:
		get = func(t *ChipTiming) time.Duration { return t.TErase4KiB }
	case blockSize <= 32768:
		get = func(t *ChipTiming) time.Duration { return t.TErase32KiB }
	case blockSize <= 65536:
		get = func(t *ChipTiming) time.Duration { return t.TErase64KiB }
	default:
		get = func(t *ChipTiming) time.Duration { return t.TEraseChip }
	}
	if t := get(&s.Chip.Timing); t > 0 {
		return t
	}
	return paramOrMax(get)
}

func (s *SPICommandMaster) tppOr(fallback time.Duration) time.Duration {
	get := func(t *ChipTiming) time.Duration { return t.TPP }
	if s.Chip != nil {
		if t := get(&s.Chip.Timing); t > 0 {
			return t
		}
		if t := paramOrMax(get); t > 0 {
			return t
		}
	}
	return fallback
}

// ReadStatus issues RDSR.
func (s *SPICommandMaster) ReadStatus(ctx context.Context) (StatusRegister, error) {
	buf := []byte{opRDSR, 0}
	if err := s.tx(buf); err != nil {
		return 0, fmt.Errorf("%w: RDSR: %v", ErrTransaction, err)
	}
	return StatusRegister(buf[1]), nil
}

// WriteStatus issues WRSR, preceded by WREN or EWSR per the chip's feature
// bits (spec.md §4.5's WRSR row).
func (s *SPICommandMaster) WriteStatus(ctx context.Context, sr StatusRegister) error {
	preop := byte(opWREN)
	if s.Chip != nil && s.Chip.FeatureBits.Has(FeatureWRSRNeedsEWSR) && !s.Chip.FeatureBits.Has(FeatureWRSRNeedsWREN) {
		preop = opEWSR
	}
	_, err := s.sendMulticommand(
		spiCmd{write: []byte{preop}},
		spiCmd{write: []byte{opWRSR, byte(sr)}},
	)
	if err != nil {
		return fmt.Errorf("WRSR: %w", err)
	}
	return nil
}

// CheckAccess is a no-op allow for the bare SPI master: descriptor-derived
// permissions are the hardware-sequenced master's concern (spec.md §4.6).
// Callers that need WP-range vetoing compose StatusManager.ApplyRange
// around this master instead.
func (s *SPICommandMaster) CheckAccess(ctx context.Context, addr uint32, n uint32, mode AccessMode) error {
	return nil
}

// busyWait polls the status register's BUSY bit, spec.md §5's "busy-wait
// polling (with a calibrated micro-delay helper) or a nanosleep back-off."
func (s *SPICommandMaster) busyWait(ctx context.Context, timeout time.Duration) error {
	sr, err := s.ReadStatus(ctx)
	if err == nil && !sr.Busy() {
		return nil
	}

	const pollInterval = 1 * time.Millisecond
	deadline := time.Now().Add(timeout)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if timeout > 0 && time.Now().After(deadline) {
			return fmt.Errorf("%w: busy-wait exceeded %s", ErrTimeout, timeout)
		}
		time.Sleep(pollInterval)
		sr, err := s.ReadStatus(ctx)
		if err != nil {
			return err
		}
		if !sr.Busy() {
			return nil
		}
	}
}
