package flashprog

import (
	"sync"

	"github.com/hashicorp/go-multierror"
)

// shutdownHook pairs a function with an opaque context argument, flashrom's
// register_shutdown(function, data) (flash.h).
type shutdownHook struct {
	name string
	fn   func(data any) error
	data any
}

// ShutdownRegistry is a LIFO stack of shutdown hooks, flushed on successful
// or failed exit (spec.md §3's "Shutdown registry", §4.13, §9's guidance to
// replace jump-to-label cleanup with scoped acquisition + guaranteed
// release). Used by master init, lock acquisition and WP restoration.
type ShutdownRegistry struct {
	mu    sync.Mutex
	hooks []shutdownHook
}

// NewShutdownRegistry returns an empty registry.
func NewShutdownRegistry() *ShutdownRegistry {
	return &ShutdownRegistry{}
}

// Register pushes a hook to run at shutdown. Hooks run in LIFO order: the
// most recently registered resource is released first.
func (r *ShutdownRegistry) Register(name string, fn func(data any) error, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, shutdownHook{name: name, fn: fn, data: data})
}

// Run executes every registered hook in LIFO order, continuing past
// individual hook failures so that one broken resource does not strand the
// rest of the teardown. Failures are aggregated, not abandoned.
func (r *ShutdownRegistry) Run() error {
	r.mu.Lock()
	hooks := r.hooks
	r.hooks = nil
	r.mu.Unlock()

	var result error
	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		if err := h.fn(h.data); err != nil {
			logWarn("shutdown hook failed", "hook", h.name, "err", err)
			result = multierror.Append(result, err)
		}
	}
	return result
}

// Len reports the number of pending hooks, mainly for tests.
func (r *ShutdownRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.hooks)
}
