package main

import (
	"fmt"
	"os"

	"github.com/gentam/flashprog"
	"github.com/jessevdk/go-flags"
)

type extractCmd struct {
	opts *options
	Args struct {
		Image  string `positional-arg-name:"image"`
		Region string `positional-arg-name:"region"`
		Out    string `positional-arg-name:"out"`
	} `positional-args:"yes" required:"yes"`
}

func registerExtract(parser *flags.Parser, opts *options) {
	cmd := &extractCmd{opts: opts}
	parser.AddCommand("extract", "extract a named region from an image file", "", cmd)
}

// Execute pulls one named region out of an on-disk image, resolving the
// name against --layout if given, else against the image's own FMAP
// (spec.md §6's layout/FMAP external collaborators, §4.7's content model).
func (c *extractCmd) Execute(args []string) error {
	image, err := os.ReadFile(c.Args.Image)
	if err != nil {
		return err
	}

	var start, end uint32
	switch {
	case c.opts.Layout != "":
		f, err := os.Open(c.opts.Layout)
		if err != nil {
			return err
		}
		defer f.Close()
		regions, err := flashprog.ParseLayoutFile(f)
		if err != nil {
			return err
		}
		r, ok := flashprog.FindRegion(regions, c.Args.Region)
		if !ok {
			return fmt.Errorf("region %q not found in layout", c.Args.Region)
		}
		start, end = r.Start, r.End
	case !c.opts.IgnoreFMap:
		m, ok := flashprog.FindFMap(image)
		if !ok {
			return fmt.Errorf("no FMAP found in %s and no --layout given", c.Args.Image)
		}
		a, ok := flashprog.FindFMapArea(m, c.Args.Region)
		if !ok {
			return fmt.Errorf("region %q not found in FMAP", c.Args.Region)
		}
		start, end = a.Offset, a.Offset+a.Size-1
	default:
		return fmt.Errorf("no --layout given and --ignore-fmap set, cannot resolve region %q", c.Args.Region)
	}

	if int(end) >= len(image) {
		return fmt.Errorf("region %q extends past end of image", c.Args.Region)
	}
	if err := os.WriteFile(c.Args.Out, image[start:end+1], 0o644); err != nil {
		return err
	}
	fmt.Printf("extracted %q (%d bytes) to %s\n", c.Args.Region, end-start+1, c.Args.Out)
	return nil
}
