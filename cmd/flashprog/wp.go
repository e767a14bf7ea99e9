package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/gentam/flashprog"
	"github.com/jessevdk/go-flags"
)

type wpCmd struct {
	opts *options

	Status wpStatusCmd `command:"status" description:"print whether write-protect is enabled and its range"`
	Enable wpEnableCmd `command:"enable" description:"enable write-protect over a range"`
	Disable wpDisableCmd `command:"disable" description:"disable write-protect"`
}

type wpStatusCmd struct{ parent *wpCmd }
type wpEnableCmd struct {
	parent *wpCmd
	Start  string `long:"start" description:"hex start address" required:"yes"`
	Length string `long:"length" description:"hex length" required:"yes"`
}
type wpDisableCmd struct{ parent *wpCmd }

func registerWP(parser *flags.Parser, opts *options) {
	cmd := &wpCmd{opts: opts}
	wpGroup, _ := parser.AddCommand("wp", "write-protect range management", "", cmd)
	cmd.Status.parent = cmd
	cmd.Enable.parent = cmd
	cmd.Disable.parent = cmd
	_ = wpGroup
}

func (c *wpStatusCmd) Execute(args []string) error {
	ctx, cancel := withTimeout()
	defer cancel()
	s, err := openSession(ctx, c.parent.opts)
	if err != nil {
		return err
	}
	defer s.Close()

	if s.chip.WP == nil {
		fmt.Println("chip has no write-protect capability")
		return nil
	}
	st, err := s.chip.WP.Status(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("enabled=%v range=[0x%x, 0x%x) length=%s\n",
		st.Enabled, st.Start, st.Start+st.Len, humanize.IBytes(uint64(st.Len)))
	return nil
}

func (c *wpEnableCmd) Execute(args []string) error {
	ctx, cancel := withTimeout()
	defer cancel()
	s, err := openSession(ctx, c.parent.opts)
	if err != nil {
		return err
	}
	defer s.Close()

	if s.chip.WP == nil {
		return fmt.Errorf("chip has no write-protect capability")
	}
	var start, length uint32
	if _, err := fmt.Sscanf(c.Start, "%x", &start); err != nil {
		return fmt.Errorf("parse --start: %w", err)
	}
	if _, err := fmt.Sscanf(c.Length, "%x", &length); err != nil {
		return fmt.Errorf("parse --length: %w", err)
	}
	if err := s.chip.WP.SetRange(ctx, start, length); err != nil {
		return err
	}
	return s.chip.WP.Enable(ctx, flashprog.WPHardware)
}

func (c *wpDisableCmd) Execute(args []string) error {
	ctx, cancel := withTimeout()
	defer cancel()
	s, err := openSession(ctx, c.parent.opts)
	if err != nil {
		return err
	}
	defer s.Close()

	if s.chip.WP == nil {
		return fmt.Errorf("chip has no write-protect capability")
	}
	return s.chip.WP.Disable(ctx)
}
