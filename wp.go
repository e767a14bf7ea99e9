package flashprog

import "context"

// WPMode selects how write-protection is latched (spec.md §4.8).
type WPMode int

const (
	WPHardware WPMode = iota
	WPPowerCycle
	WPPermanent
)

// WPRange is a single protected byte range.
type WPRange struct {
	Start, Len uint32
}

// WPStatus is the result of WriteProtector.Status.
type WPStatus struct {
	Enabled bool
	Start   uint32
	Len     uint32
	SRPBits byte
}

// WriteProtector is the optional capability bundle exposed by a chip
// descriptor (spec.md §4.8, §3's "wp" field).
type WriteProtector interface {
	ListRanges(ctx context.Context) ([]WPRange, error)
	SetRange(ctx context.Context, start, length uint32) error
	Enable(ctx context.Context, mode WPMode) error
	Disable(ctx context.Context) error
	Status(ctx context.Context) (WPStatus, error)
}

// statusRegisterWP implements WriteProtector on top of a Master's status
// register, using the BP2:0/TB/SEC bits the way the teacher's
// StatusRegister exposes them (status.go). The descriptors in
// chips_catalog.go leave WP nil; this bundle is attached by building it with
// NewStatusRegisterWP.
type statusRegisterWP struct {
	m         Master
	chipSize  uint32
	blockSize uint32 // granularity of one BP step, chip-specific
}

// NewStatusRegisterWP builds a WriteProtector driven purely by the SPI
// status register's block-protect bits, without a dedicated SPRP/complement
// range register -- the common case for the chips in chips_catalog.go.
func NewStatusRegisterWP(m Master, chipSize, blockSize uint32) WriteProtector {
	return &statusRegisterWP{m: m, chipSize: chipSize, blockSize: blockSize}
}

func (w *statusRegisterWP) ListRanges(ctx context.Context) ([]WPRange, error) {
	st, err := w.Status(ctx)
	if err != nil {
		return nil, err
	}
	if !st.Enabled {
		return nil, nil
	}
	return []WPRange{{Start: st.Start, Len: st.Len}}, nil
}

func (w *statusRegisterWP) Status(ctx context.Context) (WPStatus, error) {
	sr, err := w.m.ReadStatus(ctx)
	if err != nil {
		return WPStatus{}, err
	}
	bp := uint32(sr&0x1c) >> 2 // BP2:0
	if bp == 0 {
		return WPStatus{Enabled: false}, nil
	}
	protected := w.blockSize << bp
	if protected > w.chipSize {
		protected = w.chipSize
	}
	start := uint32(0)
	if sr.TopBottom() {
		start = w.chipSize - protected
	}
	return WPStatus{Enabled: true, Start: start, Len: protected, SRPBits: byte(sr) & 0xa0}, nil
}

func (w *statusRegisterWP) SetRange(ctx context.Context, start, length uint32) error {
	// Only top-aligned or bottom-aligned ranges that are an exact power-of-two
	// multiple of blockSize are representable by BP2:0/TB; spec.md does not
	// require richer range encodings from this bundle.
	sr, err := w.m.ReadStatus(ctx)
	if err != nil {
		return err
	}
	if length == 0 {
		return w.m.WriteStatus(ctx, StatusRegister(byte(sr)&^0x3c))
	}
	bp := uint32(0)
	for (w.blockSize << bp) < length {
		bp++
	}
	newSR := StatusRegister(byte(sr)&^0x3c | byte(bp<<2))
	if start != 0 {
		newSR |= 1 << 5 // TB
	}
	return w.m.WriteStatus(ctx, newSR)
}

func (w *statusRegisterWP) Enable(ctx context.Context, mode WPMode) error {
	sr, err := w.m.ReadStatus(ctx)
	if err != nil {
		return err
	}
	newSR := sr
	if mode == WPPermanent || mode == WPHardware {
		newSR |= 1 << 7 // SRP
	}
	return w.m.WriteStatus(ctx, newSR)
}

func (w *statusRegisterWP) Disable(ctx context.Context) error {
	return w.SetRange(ctx, 0, 0)
}
