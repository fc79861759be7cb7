package object

import (
	"github.com/dmerejkowsky/libqi/pkg/eventloop"
	"github.com/dmerejkowsky/libqi/pkg/future"
	"github.com/dmerejkowsky/libqi/pkg/metaobject"
	"github.com/dmerejkowsky/libqi/pkg/metrics"
	"github.com/dmerejkowsky/libqi/pkg/signal"
	"github.com/dmerejkowsky/libqi/pkg/signature"
	"github.com/dmerejkowsky/libqi/pkg/value"
)

// GenericMethod is a statically-registered method: it receives the
// instance it is bound to plus the call parameters.
type GenericMethod func(instance interface{}, params []value.Value) (value.Value, error)

// SignalGetter resolves a signal id to the SignalBase living inside an
// instance.
type SignalGetter func(instance interface{}) *signal.Signal

// ParentType links a static type to one of its bases with the pointer
// adjustment the original layout required. Offsets survive the
// re-architecture so inheritance checks can report them.
type ParentType struct {
	Type   value.Type
	Offset int
}

// ObjectTypeData is the registration payload of a static type: its method
// map, its signal accessors, its bases and the optional loop accessor.
type ObjectTypeData struct {
	Methods       map[uint32]GenericMethod
	SignalGetters map[uint32]SignalGetter
	ParentTypes   []ParentType
	// Loop exposes the instance's preferred event loop; nil means the
	// type is not manageable.
	Loop func(instance interface{}) *eventloop.EventLoop
}

// StaticObjectType is the descriptor shared by every instance of one
// statically-described object type. The method table and signal accessors
// are fixed at registration and never change, so reads need no locking.
type StaticObjectType struct {
	meta       *metaobject.MetaObject
	data       ObjectTypeData
	strictAuto bool
}

// NewStaticObjectType registers a static type from its description and
// data. The returned descriptor is immutable.
func NewStaticObjectType(mo *metaobject.MetaObject, data ObjectTypeData) *StaticObjectType {
	return &StaticObjectType{meta: mo, data: data}
}

// SetStrictAuto makes Auto calls on instances of this type fail instead of
// degrading to Direct when the instance has no loop. Call it before
// sharing the descriptor.
func (t *StaticObjectType) SetStrictAuto(strict bool) { t.strictAuto = strict }

// Kind implements value.Type.
func (t *StaticObjectType) Kind() signature.Kind { return signature.KindObject }

// Signature implements value.Type.
func (t *StaticObjectType) Signature() signature.Signature {
	return signature.FromKind(signature.KindObject)
}

// Clone implements value.Type. Object identity is (instance, descriptor),
// so cloning shares the instance.
func (t *StaticObjectType) Clone(v interface{}) interface{} { return v }

// MetaObject returns the type description.
func (t *StaticObjectType) MetaObject() *metaobject.MetaObject { return t.meta }

// ParentTypes returns the registered bases with their offsets.
func (t *StaticObjectType) ParentTypes() []ParentType { return t.data.ParentTypes }

// Inherits walks the parent graph breadth-first and returns the
// accumulated pointer offset to other, or -1 when other is not a base of
// this type.
func (t *StaticObjectType) Inherits(other value.Type) int {
	if other == nil {
		return -1
	}
	if value.Type(t) == other {
		return 0
	}
	type visit struct {
		t      value.Type
		offset int
	}
	queue := make([]visit, 0, len(t.data.ParentTypes))
	for _, p := range t.data.ParentTypes {
		queue = append(queue, visit{t: p.Type, offset: p.Offset})
	}
	seen := map[value.Type]bool{value.Type(t): true}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		if seen[v.t] {
			continue
		}
		seen[v.t] = true
		if v.t == other {
			return v.offset
		}
		if st, ok := v.t.(*StaticObjectType); ok {
			for _, p := range st.data.ParentTypes {
				queue = append(queue, visit{t: p.Type, offset: v.offset + p.Offset})
			}
		}
	}
	return -1
}

// loopFor resolves the instance's loop through the manageable accessor.
func (t *StaticObjectType) loopFor(instance interface{}) *eventloop.EventLoop {
	if t.data.Loop == nil {
		return nil
	}
	return t.data.Loop(instance)
}

// getSignal resolves a signal id for an instance. It returns nil with the
// reason as an error message when the id is unknown or the getter comes
// back empty.
func (t *StaticObjectType) getSignal(instance interface{}, signalID uint32) (*signal.Signal, string) {
	getter, ok := t.data.SignalGetters[signalID]
	if !ok {
		return nil, errNoSuchSignal
	}
	sb := getter(instance)
	if sb == nil {
		return nil, errNilSignalGetter
	}
	return sb, ""
}

// MetaCall executes methodID on instance according to callType.
func (t *StaticObjectType) MetaCall(instance interface{}, methodID uint32, params []value.Value, callType MetaCallType) future.Future[value.Value] {
	method, ok := t.data.Methods[methodID]
	if !ok {
		return errorCall(errNoSuchMethod)
	}
	bound := func(p []value.Value) (value.Value, error) {
		return method(instance, p)
	}
	return dispatch(t.loopFor(instance), callType, t.strictAuto, bound, params)
}

// MetaEmit triggers signalID on instance. Missing signals are ignored, the
// error surfaces through Connect where a caller can observe it.
func (t *StaticObjectType) MetaEmit(instance interface{}, signalID uint32, params []value.Value) {
	sb, _ := t.getSignal(instance, signalID)
	if sb == nil {
		return
	}
	sb.Trigger(params)
}

// Connect subscribes to signalID on instance and resolves to the link id.
func (t *StaticObjectType) Connect(instance interface{}, signalID uint32, sub signal.Subscriber) future.Future[uint32] {
	sb, errMsg := t.getSignal(instance, signalID)
	if sb == nil {
		p := future.NewPromise[uint32]()
		p.SetError(errMsg)
		return p.Future()
	}
	return connectSignal(sb, signalID, sub)
}

// Disconnect removes the subscriber identified by link on instance.
func (t *StaticObjectType) Disconnect(instance interface{}, link uint32) future.Future[future.Void] {
	signalID, localID := SplitLink(link)
	sb, errMsg := t.getSignal(instance, signalID)
	if sb == nil {
		p := future.NewPromise[future.Void]()
		p.SetError(errMsg)
		return p.Future()
	}
	return disconnectSignal(sb, localID)
}

// StaticObject binds a static type descriptor to one instance, presenting
// the uniform Object surface. Its identity is the (instance, descriptor)
// pair.
type StaticObject struct {
	objectType *StaticObjectType
	instance   interface{}

	met     *metrics.Metrics
	service string
}

// NewStaticObject binds t to instance.
func NewStaticObject(t *StaticObjectType, instance interface{}) *StaticObject {
	return &StaticObject{objectType: t, instance: instance}
}

// Instance returns the bound instance.
func (o *StaticObject) Instance() interface{} { return o.instance }

// ObjectType returns the shared descriptor.
func (o *StaticObject) ObjectType() *StaticObjectType { return o.objectType }

// Value wraps the object as a type-erased value whose descriptor is the
// object type.
func (o *StaticObject) Value() value.Value {
	return value.New(o.instance, o.objectType)
}

// SetMetrics makes the bound instance report emissions and subscriber
// counts under a service label, implementing Instrumentable. The shared
// type descriptor stays untouched.
func (o *StaticObject) SetMetrics(met *metrics.Metrics, service string) {
	o.met = met
	o.service = service
}

func (o *StaticObject) signalLabel(signalID uint32) string {
	return signalLabel(o.objectType.MetaObject(), signalID)
}

// subscriberCount reads the current subscriber count of a signal, or -1
// when the signal cannot be resolved on this instance.
func (o *StaticObject) subscriberCount(signalID uint32) int {
	sb, _ := o.objectType.getSignal(o.instance, signalID)
	if sb == nil {
		return -1
	}
	return sb.Len()
}

// MetaObject implements Object.
func (o *StaticObject) MetaObject() *metaobject.MetaObject {
	return o.objectType.MetaObject()
}

// MetaCall implements Object.
func (o *StaticObject) MetaCall(methodID uint32, params []value.Value, callType MetaCallType) future.Future[value.Value] {
	return o.objectType.MetaCall(o.instance, methodID, params, callType)
}

// MetaEmit implements Object.
func (o *StaticObject) MetaEmit(signalID uint32, params []value.Value) {
	if o.met != nil {
		if _, errMsg := o.objectType.getSignal(o.instance, signalID); errMsg == "" {
			o.met.RecordSignal(o.service, o.signalLabel(signalID))
		}
	}
	o.objectType.MetaEmit(o.instance, signalID, params)
}

// Connect implements Object.
func (o *StaticObject) Connect(signalID uint32, sub signal.Subscriber) future.Future[uint32] {
	f := o.objectType.Connect(o.instance, signalID, sub)
	if o.met != nil {
		if n := o.subscriberCount(signalID); n >= 0 {
			o.met.SetSubscribers(o.service, o.signalLabel(signalID), n)
		}
	}
	return f
}

// Disconnect implements Object.
func (o *StaticObject) Disconnect(link uint32) future.Future[future.Void] {
	f := o.objectType.Disconnect(o.instance, link)
	if o.met != nil {
		signalID, _ := SplitLink(link)
		if n := o.subscriberCount(signalID); n >= 0 {
			o.met.SetSubscribers(o.service, o.signalLabel(signalID), n)
		}
	}
	return f
}

var _ Object = (*StaticObject)(nil)
var _ Instrumentable = (*StaticObject)(nil)
var _ value.Type = (*StaticObjectType)(nil)
