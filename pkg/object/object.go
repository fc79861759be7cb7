// Package object implements the two backends of the qi object model: the
// DynamicObject, whose method table is populated at runtime, and the
// StaticObject, registered once from a fixed description. Both present the
// same call/emit/connect surface and bridge to event loops for queued
// versus direct dispatch.
package object

import (
	"fmt"

	"github.com/dmerejkowsky/libqi/pkg/eventloop"
	"github.com/dmerejkowsky/libqi/pkg/future"
	"github.com/dmerejkowsky/libqi/pkg/metaobject"
	"github.com/dmerejkowsky/libqi/pkg/metrics"
	"github.com/dmerejkowsky/libqi/pkg/signal"
	"github.com/dmerejkowsky/libqi/pkg/value"
)

// MetaCallType selects where a metaCall executes.
type MetaCallType int

const (
	// MetaCallAuto behaves as MetaCallDirect when the calling goroutine
	// already is the object's loop (or the object has no loop), and as
	// MetaCallQueued otherwise. This keeps an object calling itself from
	// deadlocking.
	MetaCallAuto MetaCallType = iota
	// MetaCallDirect executes on the calling goroutine and returns an
	// already-finished future.
	MetaCallDirect
	// MetaCallQueued posts to the object's event loop and returns a
	// pending future.
	MetaCallQueued
)

// Error messages surfaced through the returned future's error channel.
const (
	errNoSuchMethod    = "No such method"
	errNilSignalGetter = "Signal getter returned NULL"
	errNoSuchSignal    = "No such signal"
	errAutoWithoutLoop = "Auto call refused: object has no event loop"
	errLinkIDOverflow  = "subscriber id overflows the link encoding"
)

// Callable is a bound method: it receives the call parameters and returns
// the result value or an error string carried to the caller's future.
type Callable func(params []value.Value) (value.Value, error)

// Manageable is the capability of exposing a preferred event loop; both
// backends honor it for Auto and Queued dispatch.
type Manageable interface {
	EventLoop() *eventloop.EventLoop
}

// Instrumentable is the capability of reporting emission counts and
// subscriber gauges under a service label; the transport server hands
// registered objects its collectors through it.
type Instrumentable interface {
	SetMetrics(met *metrics.Metrics, service string)
}

// Object is the uniform surface over both backends.
type Object interface {
	MetaObject() *metaobject.MetaObject
	MetaCall(methodID uint32, params []value.Value, callType MetaCallType) future.Future[value.Value]
	MetaEmit(signalID uint32, params []value.Value)
	Connect(signalID uint32, sub signal.Subscriber) future.Future[uint32]
	Disconnect(link uint32) future.Future[future.Void]
}

// signalLabel names a signal for metric labels, falling back to the
// numeric id when the description does not know it.
func signalLabel(mo *metaobject.MetaObject, signalID uint32) string {
	if mo != nil {
		if ms, ok := mo.Signal(signalID); ok {
			return ms.Name
		}
	}
	return fmt.Sprint(signalID)
}

// MakeLink composes the identifier returned by Connect from the signal id
// and the signal-local subscriber id.
func MakeLink(signalID, localID uint32) uint32 {
	return signalID<<16 | localID
}

// SplitLink decomposes a link identifier.
func SplitLink(link uint32) (signalID, localID uint32) {
	return link >> 16, link & 0xFFFF
}

// maxLocalID is the largest subscriber id the link encoding can carry.
const maxLocalID = 1<<16 - 1

// finishedCall returns an already-finished future for a direct call.
func finishedCall(v value.Value, err error) future.Future[value.Value] {
	p := future.NewPromise[value.Value]()
	if err != nil {
		p.SetError(err.Error())
	} else {
		p.SetValue(v)
	}
	return p.Future()
}

// errorCall returns an already-failed future carrying msg.
func errorCall(msg string) future.Future[value.Value] {
	p := future.NewPromise[value.Value]()
	p.SetError(msg)
	return p.Future()
}

// dispatch runs fn according to callType, marshaling onto loop when
// needed. A nil loop downgrades Auto to Direct unless strictAuto is set,
// in which case the call is refused; Queued with a nil loop uses the
// default object loop.
func dispatch(loop *eventloop.EventLoop, callType MetaCallType, strictAuto bool, fn Callable, params []value.Value) future.Future[value.Value] {
	switch callType {
	case MetaCallDirect:
		return finishedCall(fn(params))
	case MetaCallQueued:
		if loop == nil {
			loop = eventloop.DefaultObjectLoop()
		}
		return queuedCall(loop, fn, params)
	default: // MetaCallAuto
		if loop == nil {
			if strictAuto {
				return errorCall(errAutoWithoutLoop)
			}
			return finishedCall(fn(params))
		}
		if loop.IsInLoopGoroutine() {
			return finishedCall(fn(params))
		}
		return queuedCall(loop, fn, params)
	}
}

func queuedCall(loop *eventloop.EventLoop, fn Callable, params []value.Value) future.Future[value.Value] {
	p := future.NewPromise[value.Value]()
	loop.Post(func() {
		v, err := fn(params)
		if err != nil {
			p.SetError(err.Error())
			return
		}
		p.SetValue(v)
	})
	return p.Future()
}

// connectSignal implements the Connect contract shared by both backends:
// subscribe, validate the local id against the link encoding, compose the
// link.
func connectSignal(sb *signal.Signal, signalID uint32, sub signal.Subscriber) future.Future[uint32] {
	p := future.NewPromise[uint32]()
	localID := sb.Connect(sub)
	if localID > maxLocalID {
		sb.Disconnect(localID)
		p.SetError(errLinkIDOverflow)
		return p.Future()
	}
	p.SetValue(MakeLink(signalID, localID))
	return p.Future()
}

// disconnectSignal implements the Disconnect contract shared by both
// backends.
func disconnectSignal(sb *signal.Signal, localID uint32) future.Future[future.Void] {
	p := future.NewPromise[future.Void]()
	if !sb.Disconnect(localID) {
		p.SetError(fmt.Sprintf("no subscriber with link id %d", localID))
		return p.Future()
	}
	p.SetValue(future.Void{})
	return p.Future()
}
