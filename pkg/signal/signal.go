// Package signal implements the multicast typed event of the qi object
// model. A Signal holds a parameter signature and a subscriber table;
// Trigger dispatches to a snapshot of the table, directly or through each
// subscriber's event loop.
package signal

import (
	"sync"
	"sync/atomic"

	"github.com/dmerejkowsky/libqi/pkg/eventloop"
	"github.com/dmerejkowsky/libqi/pkg/signature"
	"github.com/dmerejkowsky/libqi/pkg/value"
)

// DispatchMode selects where a subscriber's callback runs.
type DispatchMode int

const (
	// Direct runs the callback synchronously on the triggering goroutine.
	Direct DispatchMode = iota
	// Queued posts the callback to the subscriber's event loop.
	Queued
)

// Subscriber is one connection to a signal. Alive is the optional weak
// handle hook: when set and returning false the subscriber is skipped and
// dropped, which breaks object/signal reference cycles.
type Subscriber struct {
	Callback func(params []value.Value)
	Mode     DispatchMode
	Loop     *eventloop.EventLoop
	Alive    func() bool
}

// subscription is the signal-owned state of one subscriber. The removed
// flag and the dispatching-goroutine id make disconnect safe both from
// outside a trigger and from inside the subscriber's own callback.
type subscription struct {
	id  uint32
	sub Subscriber

	mu       sync.Mutex
	removed  atomic.Bool
	dispatch atomic.Uint64
}

// invoke runs the callback unless the subscription was removed. It holds
// the subscription mutex for the whole call so a concurrent Disconnect can
// wait for in-flight delivery. A re-entrant trigger from inside the
// callback skips the lock, so triggering a signal from its own subscriber
// is safe.
func (s *subscription) invoke(params []value.Value) {
	gid := eventloop.CurrentGoroutineID()
	if s.dispatch.Load() == gid {
		if !s.removed.Load() {
			s.sub.Callback(params)
		}
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removed.Load() {
		return
	}
	s.dispatch.Store(gid)
	defer s.dispatch.Store(0)
	s.sub.Callback(params)
}

// Signal is a multicast event with a fixed parameter signature.
type Signal struct {
	sig signature.Signature

	mu     sync.RWMutex
	subs   map[uint32]*subscription
	order  []uint32
	nextID uint32
}

// New creates a signal whose parameters carry the given signature.
func New(sig signature.Signature) *Signal {
	return &Signal{sig: sig, subs: make(map[uint32]*subscription)}
}

// Signature returns the parameter signature.
func (s *Signal) Signature() signature.Signature { return s.sig }

// Connect appends a subscriber and returns its id, unique within this
// signal. A nil callback panics: there is nothing meaningful to deliver to.
func (s *Signal) Connect(sub Subscriber) uint32 {
	if sub.Callback == nil {
		panic("signal: subscriber callback cannot be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs[id] = &subscription{id: id, sub: sub}
	s.order = append(s.order, id)
	return id
}

// Disconnect removes the subscriber and reports whether the id was known.
// After Disconnect returns the callback will not be invoked again; when
// called from inside that same callback it returns without waiting, so
// self-disconnecting subscribers do not deadlock.
func (s *Signal) Disconnect(id uint32) bool {
	s.mu.Lock()
	sub, ok := s.subs[id]
	if ok {
		delete(s.subs, id)
		for i, oid := range s.order {
			if oid == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
	s.mu.Unlock()
	if !ok {
		return false
	}

	sub.removed.Store(true)
	if sub.dispatch.Load() == eventloop.CurrentGoroutineID() {
		// Re-entrant disconnect from the subscriber's own callback.
		return true
	}
	// Wait for any in-flight delivery to drain.
	sub.mu.Lock()
	sub.mu.Unlock() //nolint:staticcheck // empty critical section is the drain
	return true
}

// Len returns the current number of subscribers.
func (s *Signal) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

// Trigger delivers params to the subscribers present when it is entered;
// subscribers connected during delivery are not invoked by this call.
// Direct subscribers run in registration order on the calling goroutine;
// Queued subscribers are posted to their loop, preserving registration
// order per loop.
func (s *Signal) Trigger(params []value.Value) {
	s.mu.RLock()
	snapshot := make([]*subscription, 0, len(s.order))
	for _, id := range s.order {
		if sub, ok := s.subs[id]; ok {
			snapshot = append(snapshot, sub)
		}
	}
	s.mu.RUnlock()

	for _, sub := range snapshot {
		if sub.sub.Alive != nil && !sub.sub.Alive() {
			// The weak handle is gone; drop the subscriber.
			s.Disconnect(sub.id)
			continue
		}
		switch sub.sub.Mode {
		case Queued:
			loop := sub.sub.Loop
			if loop == nil {
				loop = eventloop.DefaultObjectLoop()
			}
			target := sub
			loop.Post(func() { target.invoke(params) })
		default:
			sub.invoke(params)
		}
	}
}
