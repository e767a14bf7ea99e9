// Command flashprog drives a SPI/LPC/FWH flash chip through the flashprog
// planner/executor core, adapted from the teacher's cmd/gice dispatch
// shape (one subcommand struct per verb, registered with go-flags).
package main

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
)

type options struct {
	Chip       string `long:"chip" description:"chip name (accepted but not used; the chip is always probed)"`
	Layout     string `long:"layout" description:"layout file"`
	Programmer string `long:"programmer" description:"programmer name[:key=value,...]" default:"ftdi"`
	NoVerify   bool   `long:"noverify" description:"skip post-write verification"`
	FastVerify bool   `long:"fast-verify" description:"verify only the regions that were written"`
	Force      bool   `long:"force" description:"override chip safety checks"`
	DoNotDiff  bool   `long:"do-not-diff" description:"skip the diff/fold planner and treat the whole chip as one block"`
	IgnoreFMap bool   `long:"ignore-fmap" description:"do not search for an FMAP in the image"`
	IgnoreLock bool   `long:"ignore-lock" description:"skip the cross-process advisory lock"`
	Output     string `long:"output" description:"log file (accepted but not used; log output always goes to stderr)"`
}

func main() {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	parser.SubcommandsOptional = false

	registerRead(parser, &opts)
	registerWrite(parser, &opts)
	registerVerify(parser, &opts)
	registerErase(parser, &opts)
	registerInfo(parser, &opts)
	registerWP(parser, &opts)
	registerExtract(parser, &opts)

	if _, err := parser.Parse(); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
