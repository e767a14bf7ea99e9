package main

import (
	"fmt"
	"os"

	"github.com/gentam/flashprog"
	"github.com/jessevdk/go-flags"
	"periph.io/x/conn/v3/gpio"
)

type writeCmd struct {
	opts *options
	Args struct {
		File string `positional-arg-name:"file"`
	} `positional-args:"yes" required:"yes"`
}

func registerWrite(parser *flags.Parser, opts *options) {
	cmd := &writeCmd{opts: opts}
	parser.AddCommand("write", "write an image to the chip", "", cmd)
}

func (c *writeCmd) Execute(args []string) error {
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

	after, err := os.ReadFile(c.Args.File)
	if err != nil {
		return err
	}
	if len(after) != s.chip.ChipSize() {
		return fmt.Errorf("image is %d bytes, chip is %d bytes", len(after), s.chip.ChipSize())
	}

	before, err := readChipImage(ctx, s.master, s.chip)
	if err != nil {
		return fmt.Errorf("read current contents: %w", err)
	}

	var units []flashprog.ProcessingUnit
	if c.opts.DoNotDiff {
		units = []flashprog.ProcessingUnit{{
			Offset: 0, BlockSize: uint32(s.chip.ChipSize()), NumBlocks: 1,
		}}
	} else {
		units, err = flashprog.Plan(s.chip, before, after)
		if err != nil {
			return fmt.Errorf("plan: %w", err)
		}
	}
	if len(units) == 0 {
		fmt.Println("chip already matches the requested image, nothing to do")
		return nil
	}

	exec := flashprog.NewExecutor(s.master, s.chip, flashprog.ExecConfig{
		Granularity:        flashprog.GranByteWise,
		AccessDeniedPolicy: accessDeniedPolicy(c.opts),
		Verify:             !c.opts.NoVerify,
	})

	result, err := exec.Run(ctx, units, before, after)
	if err != nil {
		if retrySafe, recErr := flashprog.RecoverFromMismatch(ctx, s.master, before); recErr == nil && retrySafe {
			return fmt.Errorf("write failed but chip is unchanged, retry is safe: %w", err)
		}
		return fmt.Errorf("write failed: %w", err)
	}
	if result.Warnings != nil {
		fmt.Fprintf(os.Stderr, "warnings: %v\n", result.Warnings)
	}

	if !c.opts.NoVerify {
		mode := flashprog.VerifyFull
		if c.opts.FastVerify {
			mode = flashprog.VerifyPartial
		}
		var ranges []flashprog.VerifyRange
		if mode == flashprog.VerifyPartial {
			for _, u := range units {
				ranges = append(ranges, flashprog.VerifyRange{Start: u.Offset, End: u.End()})
			}
		}
		if err := flashprog.Verify(ctx, s.master, after, mode, ranges); err != nil {
			return fmt.Errorf("verify: %w", err)
		}
	}

	fmt.Printf("wrote %d processing units to %s\n", len(units), s.chip.Name)
	return nil
}

func accessDeniedPolicy(opts *options) flashprog.AccessDeniedAction {
	if opts.Force {
		return flashprog.AccessDeniedIgnore
	}
	return flashprog.AccessDeniedFail
}
