package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jessevdk/go-flags"
)

type infoCmd struct {
	opts *options
}

func registerInfo(parser *flags.Parser, opts *options) {
	cmd := &infoCmd{opts: opts}
	parser.AddCommand("info", "print chip identification and capabilities", "", cmd)
}

func (c *infoCmd) Execute(args []string) error {
	ctx, cancel := withTimeout()
	defer cancel()

	s, err := openSession(ctx, c.opts)
	if err != nil {
		return err
	}
	defer s.Close()

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"field", "value"})
	t.AppendRows([]table.Row{
		{"vendor", s.chip.Vendor},
		{"name", s.chip.Name},
		{"manufacture id", fmt.Sprintf("0x%02x", s.chip.ManufactureID)},
		{"model id", fmt.Sprintf("0x%04x", s.chip.ModelID)},
		{"size", humanize.IBytes(uint64(s.chip.ChipSize()))},
		{"page size", humanize.IBytes(uint64(s.chip.PageSizeBytes))},
		{"voltage", fmt.Sprintf("%d-%d mV", s.chip.VoltageRange.MinMV, s.chip.VoltageRange.MaxMV)},
	})
	t.Render()

	et := table.NewWriter()
	et.SetOutputMirror(os.Stdout)
	et.AppendHeader(table.Row{"eraser", "block size", "blocks"})
	for i, e := range s.chip.BlockErasers {
		for _, r := range e.Regions {
			et.AppendRow(table.Row{i, humanize.IBytes(uint64(r.SizeBytes)), r.Count})
		}
	}
	et.Render()

	return nil
}
