package object

import (
	"sync"
	"sync/atomic"

	"github.com/dmerejkowsky/libqi/pkg/eventloop"
	"github.com/dmerejkowsky/libqi/pkg/future"
	"github.com/dmerejkowsky/libqi/pkg/metaobject"
	"github.com/dmerejkowsky/libqi/pkg/metrics"
	"github.com/dmerejkowsky/libqi/pkg/signal"
	"github.com/dmerejkowsky/libqi/pkg/value"
)

// DynamicObject handles all method and signal operations itself: the
// method table is a runtime map populated with SetMethod, and one Signal
// is created per meta-signal when the meta-object is installed.
//
// The method table is copy-on-write: MetaCall reads it without locking
// while SetMethod swaps in a fresh copy, so installing methods never
// stalls in-flight calls.
type DynamicObject struct {
	meta    *metaobject.MetaObject
	methods atomic.Value // map[uint32]Callable

	mu      sync.Mutex
	signals map[uint32]*signal.Signal

	loop       *eventloop.EventLoop
	strictAuto bool

	met     *metrics.Metrics
	service string
}

// NewDynamicObject creates a dynamic object described by mo.
func NewDynamicObject(mo *metaobject.MetaObject) *DynamicObject {
	d := &DynamicObject{signals: make(map[uint32]*signal.Signal)}
	d.methods.Store(map[uint32]Callable{})
	d.SetMetaObject(mo)
	return d
}

// SetMetaObject installs the description and creates a signal per
// meta-signal entry.
func (d *DynamicObject) SetMetaObject(mo *metaobject.MetaObject) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.meta = mo
	for id, ms := range mo.Signals() {
		if _, ok := d.signals[id]; !ok {
			d.signals[id] = signal.New(ms.Parameters)
		}
	}
}

// SetEventLoop associates the object with a dispatch loop; Auto and Queued
// calls execute there.
func (d *DynamicObject) SetEventLoop(loop *eventloop.EventLoop) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.loop = loop
}

// EventLoop returns the associated loop, implementing Manageable.
func (d *DynamicObject) EventLoop() *eventloop.EventLoop {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loop
}

// SetStrictAuto makes Auto calls fail instead of degrading to Direct when
// the object has no loop.
func (d *DynamicObject) SetStrictAuto(strict bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.strictAuto = strict
}

// SetMetrics makes the object report emissions and subscriber counts
// under a service label, implementing Instrumentable.
func (d *DynamicObject) SetMetrics(met *metrics.Metrics, service string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.met = met
	d.service = service
}

// instrumentation returns the collector, service label and signal label in
// one lock acquisition; the collector is nil when the object is not
// instrumented.
func (d *DynamicObject) instrumentation(signalID uint32) (*metrics.Metrics, string, string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.met == nil {
		return nil, "", ""
	}
	return d.met, d.service, signalLabel(d.meta, signalID)
}

// SetMethod installs the callable for a method id, replacing any previous
// entry.
func (d *DynamicObject) SetMethod(id uint32, fn Callable) {
	d.mu.Lock()
	defer d.mu.Unlock()
	old := d.methods.Load().(map[uint32]Callable)
	next := make(map[uint32]Callable, len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	next[id] = fn
	d.methods.Store(next)
}

// Method returns the callable installed for id.
func (d *DynamicObject) Method(id uint32) (Callable, bool) {
	fn, ok := d.methods.Load().(map[uint32]Callable)[id]
	return fn, ok
}

// SignalBase returns the signal backing id, or nil.
func (d *DynamicObject) SignalBase(id uint32) *signal.Signal {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.signals[id]
}

// MetaObject returns the installed description.
func (d *DynamicObject) MetaObject() *metaobject.MetaObject {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.meta
}

// MetaCall looks up methodID and executes it according to callType. An
// unknown id fails the returned future with "No such method"; a failing
// callable fails it with the callable's own error string.
func (d *DynamicObject) MetaCall(methodID uint32, params []value.Value, callType MetaCallType) future.Future[value.Value] {
	fn, ok := d.Method(methodID)
	if !ok {
		return errorCall(errNoSuchMethod)
	}
	d.mu.Lock()
	loop, strict := d.loop, d.strictAuto
	d.mu.Unlock()
	return dispatch(loop, callType, strict, fn, params)
}

// MetaEmit triggers the signal registered under signalID. Emitting an
// unknown signal is logged by callers and otherwise ignored, matching the
// advisory error contract of emission.
func (d *DynamicObject) MetaEmit(signalID uint32, params []value.Value) {
	sb := d.SignalBase(signalID)
	if sb == nil {
		return
	}
	if met, service, label := d.instrumentation(signalID); met != nil {
		met.RecordSignal(service, label)
	}
	sb.Trigger(params)
}

// Connect subscribes to signalID and resolves to the composed link id.
func (d *DynamicObject) Connect(signalID uint32, sub signal.Subscriber) future.Future[uint32] {
	sb := d.SignalBase(signalID)
	if sb == nil {
		p := future.NewPromise[uint32]()
		p.SetError(errNoSuchSignal)
		return p.Future()
	}
	f := connectSignal(sb, signalID, sub)
	if met, service, label := d.instrumentation(signalID); met != nil {
		met.SetSubscribers(service, label, sb.Len())
	}
	return f
}

// Disconnect removes the subscriber identified by link.
func (d *DynamicObject) Disconnect(link uint32) future.Future[future.Void] {
	signalID, localID := SplitLink(link)
	sb := d.SignalBase(signalID)
	if sb == nil {
		p := future.NewPromise[future.Void]()
		p.SetError(errNoSuchSignal)
		return p.Future()
	}
	f := disconnectSignal(sb, localID)
	if met, service, label := d.instrumentation(signalID); met != nil {
		met.SetSubscribers(service, label, sb.Len())
	}
	return f
}

var _ Object = (*DynamicObject)(nil)
var _ Manageable = (*DynamicObject)(nil)
var _ Instrumentable = (*DynamicObject)(nil)
