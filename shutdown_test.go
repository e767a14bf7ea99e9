package flashprog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShutdownRegistryRunsLIFO(t *testing.T) {
	r := NewShutdownRegistry()
	var order []string
	r.Register("first", func(data any) error {
		order = append(order, "first")
		return nil
	}, nil)
	r.Register("second", func(data any) error {
		order = append(order, "second")
		return nil
	}, nil)

	require.Equal(t, 2, r.Len())
	require.NoError(t, r.Run())
	require.Equal(t, []string{"second", "first"}, order)
}

func TestShutdownRegistryAggregatesFailures(t *testing.T) {
	r := NewShutdownRegistry()
	r.Register("bad1", func(data any) error { return errors.New("bad1 failed") }, nil)
	r.Register("bad2", func(data any) error { return errors.New("bad2 failed") }, nil)

	err := r.Run()
	require.Error(t, err)
	require.Contains(t, err.Error(), "bad1 failed")
	require.Contains(t, err.Error(), "bad2 failed")
}

func TestShutdownRegistryContinuesPastFailure(t *testing.T) {
	r := NewShutdownRegistry()
	ran := false
	// Registered first so that it runs after the failing hook (LIFO).
	r.Register("runs-anyway", func(data any) error {
		ran = true
		return nil
	}, nil)
	r.Register("fails", func(data any) error { return errors.New("boom") }, nil)

	_ = r.Run()
	require.True(t, ran)
}
