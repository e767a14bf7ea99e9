package flashprog

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/host/v3"
	"periph.io/x/host/v3/ftdi"
)

// Device opens an FTDI FT2232H-backed SPI connection and exposes it as a
// Master, adapted from the teacher's Device (device.go): same pin mapping
// and MPSSE clock, generalized from one hardcoded Flash to any cataloged
// chip via Probe.
type Device struct {
	FTDI *ftdi.FT232H

	cs    gpio.PinIO // ADBUS4 Chip Select
	reset gpio.PinIO // ADBUS7 Reset
	cdone gpio.PinIO // ADBUS6 Done

	clock physic.Frequency
	conn  spi.Conn

	Master *SPICommandMaster
}

var hostInitialized atomic.Bool

// NewDevice finds an FT2232H device, opens its MPSSE/SPI connection, probes
// the attached chip against the catalog, and returns a ready-to-use Device.
// maxTx is the largest single SPI transaction to issue (65536 per
// [FTDI-AN_108], the teacher's Flash.Read constant).
func NewDevice(ctx context.Context, maxTx int, paranoid bool) (*Device, error) {
	if hostInitialized.CompareAndSwap(false, true) {
		if _, err := host.Init(); err != nil {
			return nil, fmt.Errorf("host initialization failed: %w", err)
		}
	}

	d := &Device{
		clock: 30 * physic.MegaHertz, // [AN_135 3.2.1 Divisors]
	}
	if err := d.findFT2232H(); err != nil {
		return nil, err
	}

	// [EB82|Appendix A. Sheet 2 of 5 (USB to SPI/RS232)] / [icebreaker-sch.pdf]
	// ADBUS0 | SCK
	// ADBUS1 | MOSI / FLASH_MOSI
	// ADBUS2 | MISO / FLASH_MISO
	// ADBUS4 | SS_B
	// ADBUS6 | CDONE
	// ADBUS7 | CRESET / RESET
	d.cs = d.FTDI.D4
	d.reset = d.FTDI.D7
	d.cdone = d.FTDI.D6

	if err := d.connectSPI(); err != nil {
		return nil, err
	}

	d.Master = NewSPICommandMaster(d.conn, d.cs, nil, maxTx, paranoid)

	manufactureID, modelID, err := d.Master.Probe(ctx)
	if err != nil {
		return nil, fmt.Errorf("probe: %w", err)
	}
	id := [3]byte{byte(manufactureID), byte(modelID >> 8), byte(modelID)}
	chip, ok := LookupChip(id)
	if !ok {
		return nil, fmt.Errorf("%w: unrecognized JEDEC ID %02x %04x", ErrChipUnknown, manufactureID, modelID)
	}
	d.Master.Chip = &chip

	return d, nil
}

// ResetFPGA asserts (low) or deasserts (high) the target reset line, kept
// from the teacher's use of this FTDI pin pair: holding the attached FPGA
// in reset during a write/erase pass stops it from driving the SPI bus as
// a second master while this process is programming the chip
// (_examples/gentam-gice/cmd/gice/write.go's ResetFPGA(false)/defer
// ResetFPGA(true) bracket, restored around cmd/flashprog's write and erase
// subcommands).
func (d *Device) ResetFPGA(l gpio.Level) error {
	return d.reset.Out(l)
}

func (d *Device) findFT2232H() error {
	const (
		vendorID  = 0x0403 // FTDI
		productID = 0x6010 // FT2232H
	)

	info := ftdi.Info{}
	for _, dev := range ftdi.All() {
		dev.Info(&info)
		if info.VenID != vendorID || info.DevID != productID {
			continue
		}
		if ft, ok := dev.(*ftdi.FT232H); ok {
			d.FTDI = ft
			return nil
		}
	}

	return errors.New("FT2232H device not found")
}

func (d *Device) connectSPI() (err error) {
	if d.FTDI == nil {
		return errors.New("FT2232H device not found")
	}

	port, err := d.FTDI.SPI()
	if err != nil {
		return fmt.Errorf("failed to get SPI port: %w", err)
	}

	// [FTDI AN_114|1.2] the MPSSE engine only supports mode 0 and mode 2.
	mode := spi.Mode0
	d.conn, err = port.Connect(d.clock, mode, 8)
	return err
}
