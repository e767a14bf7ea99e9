package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gentam/flashprog"
)

// openSession builds the shared state every subcommand needs: a session
// lock (unless --ignore-lock), a probed master/chip pair, and a shutdown
// registry that unwinds both on exit. Grounded in spec.md §5's session
// lifecycle and the teacher's cmd/gice subcommands, which each opened their
// own *gice.Device inline; here that setup is centralized once.
type session struct {
	master flashprog.Master
	chip   *flashprog.Descriptor
	hooks  *flashprog.ShutdownRegistry
	lock   *flashprog.SessionLock
	device *flashprog.Device
}

func openSession(ctx context.Context, opts *options) (*session, error) {
	hooks := flashprog.NewShutdownRegistry()

	s := &session{hooks: hooks}

	if !opts.IgnoreLock {
		lock := flashprog.NewSessionLock(os.TempDir() + "/flashprog.lock")
		if err := lock.Acquire(ctx, flashprog.LockTimeoutInteractive); err != nil {
			return nil, fmt.Errorf("acquire session lock: %w", err)
		}
		lock.RegisterWith(hooks)
		s.lock = lock
	}

	_, paramList, _ := strings.Cut(opts.Programmer, ":")
	params, err := flashprog.ParseProgrammerParams(paramList)
	if err != nil {
		return nil, err
	}
	_ = params // not used further: the FTDI-backed device below is opened whatever --programmer names

	dev, err := flashprog.NewDevice(ctx, 65536, false)
	if err != nil {
		hooks.Run()
		return nil, fmt.Errorf("open device: %w", err)
	}
	s.device = dev
	s.master = dev.Master
	s.chip = dev.Master.Chip

	return s, nil
}

func (s *session) Close() error {
	return s.hooks.Run()
}

func readChipImage(ctx context.Context, m flashprog.Master, chip *flashprog.Descriptor) ([]byte, error) {
	buf := make([]byte, chip.ChipSize())
	if err := m.Read(ctx, 0, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func withTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Minute)
}
