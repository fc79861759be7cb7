package eventloop

import "sync"

// Runtime bundles the two well-known loops: the network loop owns I/O, the
// object loop owns method dispatch. They are always distinct. Components
// take a *Runtime by reference; the package-level Default runtime is a thin
// convenience over that handle.
type Runtime struct {
	network *EventLoop
	object  *EventLoop
}

// NewRuntime starts a network and an object loop.
func NewRuntime() *Runtime {
	return &Runtime{
		network: New("network"),
		object:  New("object"),
	}
}

// Network returns the I/O loop.
func (r *Runtime) Network() *EventLoop { return r.network }

// Object returns the method-dispatch loop.
func (r *Runtime) Object() *EventLoop { return r.object }

// Stop stops both loops.
func (r *Runtime) Stop() {
	r.network.Stop()
	r.object.Stop()
}

var (
	defaultOnce    sync.Once
	defaultRuntime *Runtime
)

// Default returns the process-wide runtime, starting it on first use.
func Default() *Runtime {
	defaultOnce.Do(func() {
		defaultRuntime = NewRuntime()
	})
	return defaultRuntime
}

// DefaultNetworkLoop returns the default runtime's network loop.
func DefaultNetworkLoop() *EventLoop { return Default().Network() }

// DefaultObjectLoop returns the default runtime's object loop.
func DefaultObjectLoop() *EventLoop { return Default().Object() }
