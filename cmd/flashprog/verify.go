package main

import (
	"fmt"
	"os"

	"github.com/gentam/flashprog"
	"github.com/jessevdk/go-flags"
)

type verifyCmd struct {
	opts *options
	Args struct {
		File string `positional-arg-name:"file"`
	} `positional-args:"yes" required:"yes"`
}

func registerVerify(parser *flags.Parser, opts *options) {
	cmd := &verifyCmd{opts: opts}
	parser.AddCommand("verify", "verify the chip against a reference image", "", cmd)
}

func (c *verifyCmd) Execute(args []string) error {
	ctx, cancel := withTimeout()
	defer cancel()

	s, err := openSession(ctx, c.opts)
	if err != nil {
		return err
	}
	defer s.Close()

	want, err := os.ReadFile(c.Args.File)
	if err != nil {
		return err
	}
	if len(want) != s.chip.ChipSize() {
		return fmt.Errorf("reference image is %d bytes, chip is %d bytes", len(want), s.chip.ChipSize())
	}

	mode := flashprog.VerifyFull
	if c.opts.FastVerify {
		mode = flashprog.VerifyPartial
	}
	if err := flashprog.Verify(ctx, s.master, want, mode, nil); err != nil {
		return fmt.Errorf("verify: %w", err)
	}

	fmt.Println("chip contents match", c.Args.File)
	return nil
}
