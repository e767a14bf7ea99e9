package main

import (
	"fmt"

	"github.com/gentam/flashprog"
	"github.com/jessevdk/go-flags"
	"periph.io/x/conn/v3/gpio"
)

type eraseCmd struct {
	opts *options
}

func registerErase(parser *flags.Parser, opts *options) {
	cmd := &eraseCmd{opts: opts}
	parser.AddCommand("erase", "erase the whole chip", "", cmd)
}

func (c *eraseCmd) Execute(args []string) error {
	ctx, cancel := withTimeout()
	defer cancel()

	s, err := openSession(ctx, c.opts)
	if err != nil {
		return err
	}
	defer s.Close()

	if s.device != nil {
		s.device.ResetFPGA(gpio.Low) // prevent FPGA from acting as a second SPI master
		defer s.device.ResetFPGA(gpio.High)
	}

	before, err := readChipImage(ctx, s.master, s.chip)
	if err != nil {
		return fmt.Errorf("read current contents: %w", err)
	}
	after := make([]byte, len(before))
	erasedValue := s.chip.ErasedValue()
	for i := range after {
		after[i] = erasedValue
	}

	units, err := flashprog.Plan(s.chip, before, after)
	if err != nil {
		return fmt.Errorf("plan: %w", err)
	}
	if len(units) == 0 {
		fmt.Println("chip is already erased")
		return nil
	}

	exec := flashprog.NewExecutor(s.master, s.chip, flashprog.ExecConfig{
		Granularity:        flashprog.GranByteWise,
		AccessDeniedPolicy: accessDeniedPolicy(c.opts),
	})
	if _, err := exec.Run(ctx, units, before, after); err != nil {
		return fmt.Errorf("erase failed: %w", err)
	}

	fmt.Printf("erased %s (%d processing units)\n", s.chip.Name, len(units))
	return nil
}
