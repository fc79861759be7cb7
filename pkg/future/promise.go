package future

// Promise is the write side of a Future. All Promise handles returned for
// one logical value share the same state; the zero Promise is not usable,
// construct one with NewPromise or NewCancelablePromise.
type Promise[T any] struct {
	s *sharedState[T]
}

// NewPromise creates a promise whose future is Running and not canceleable.
func NewPromise[T any]() *Promise[T] {
	return &Promise[T]{s: &sharedState[T]{
		state: Running,
		done:  make(chan struct{}),
	}}
}

// NewCancelablePromise creates a promise whose future accepts Cancel.
// Cancel invokes onCancel with the promise; the callback chooses the
// terminal state (value, error, canceled) or leaves the future running.
func NewCancelablePromise[T any](onCancel func(*Promise[T])) *Promise[T] {
	p := NewPromise[T]()
	p.s.onCancel = onCancel
	return p
}

// Future returns a read handle sharing this promise's state.
func (p *Promise[T]) Future() Future[T] {
	return Future[T]{s: p.s}
}

// SetValue fulfils the promise with a value. Setting a terminal state twice
// without Reset is a programming error and panics with ErrPromiseAlreadySet.
func (p *Promise[T]) SetValue(v T) {
	p.finish(FinishedWithValue, v, "")
}

// SetError fulfils the promise with an error message. The message travels
// verbatim to every reader as a *UserError.
func (p *Promise[T]) SetError(msg string) {
	var zero T
	p.finish(FinishedWithError, zero, msg)
}

// SetCanceled moves the promise to the Canceled state.
func (p *Promise[T]) SetCanceled() {
	var zero T
	p.finish(Canceled, zero, "")
}

// Reset returns the shared state to Running so the promise can be fulfilled
// again. Futures already handed out observe the fresh Running state.
func (p *Promise[T]) Reset() {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	var zero T
	p.s.state = Running
	p.s.value = zero
	p.s.errMsg = ""
	p.s.callbacks = nil
	p.s.done = make(chan struct{})
}

// ErrPromiseAlreadySet is the panic value of a double set without Reset.
var ErrPromiseAlreadySet = &FutureError{Reason: "promise already set"}

func (p *Promise[T]) finish(st State, v T, errMsg string) {
	p.s.mu.Lock()
	if p.s.state.IsTerminal() {
		p.s.mu.Unlock()
		panic(ErrPromiseAlreadySet)
	}
	p.s.state = st
	p.s.value = v
	p.s.errMsg = errMsg
	callbacks := p.s.callbacks
	p.s.callbacks = nil
	close(p.s.done)
	p.s.mu.Unlock()

	// Continuations run on the fulfilling goroutine, outside the lock, and
	// observe the terminal state set above.
	fut := Future[T]{s: p.s}
	for _, cb := range callbacks {
		cb(fut)
	}
}
