package main

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
)

type readCmd struct {
	opts *options
	Args struct {
		File string `positional-arg-name:"file"`
	} `positional-args:"yes" required:"yes"`
}

func registerRead(parser *flags.Parser, opts *options) {
	cmd := &readCmd{opts: opts}
	parser.AddCommand("read", "read the whole chip to a file", "", cmd)
}

func (c *readCmd) Execute(args []string) error {
	ctx, cancel := withTimeout()
	defer cancel()

	s, err := openSession(ctx, c.opts)
	if err != nil {
		return err
	}
	defer s.Close()

	data, err := readChipImage(ctx, s.master, s.chip)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}

	if err := os.WriteFile(c.Args.File, data, 0o644); err != nil {
		return err
	}
	fmt.Printf("read %d bytes from %s to %s\n", len(data), s.chip.Name, c.Args.File)
	return nil
}
