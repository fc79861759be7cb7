package main

import (
	"fmt"
	"time"

	"github.com/dmerejkowsky/libqi/pkg/eventloop"
	"github.com/dmerejkowsky/libqi/pkg/metaobject"
	"github.com/dmerejkowsky/libqi/pkg/object"
	"github.com/dmerejkowsky/libqi/pkg/value"
)

// Method and signal ids of the demo clock service, above the reserved
// range.
const (
	clockMethodNow    = metaobject.ReservedIDLimit
	clockMethodSleep  = metaobject.ReservedIDLimit + 1
	clockSignalTick   = metaobject.ReservedIDLimit
	clockTickInterval = time.Second
)

// newClockService builds the demo service: a dynamic object with a now()
// method, a sleep(ms) method and a tick signal firing every second.
func newClockService(loop *eventloop.EventLoop) object.Object {
	mo := metaobject.NewBuilder().
		AddMethod(clockMethodNow, "s now::()").
		AddMethod(clockMethodSleep, "v sleep::(l)").
		AddSignal(clockSignalTick, "tick", "(s)").
		MustFreeze()

	obj := object.NewDynamicObject(mo)
	obj.SetEventLoop(loop)

	obj.SetMethod(clockMethodNow, func(params []value.Value) (value.Value, error) {
		return value.String(time.Now().Format(time.RFC3339Nano)), nil
	})
	obj.SetMethod(clockMethodSleep, func(params []value.Value) (value.Value, error) {
		if len(params) != 1 {
			return value.Value{}, fmt.Errorf("sleep takes one duration in milliseconds")
		}
		ms, ok := params[0].Interface().(int64)
		if !ok {
			return value.Value{}, fmt.Errorf("sleep takes an int64, got %T", params[0].Interface())
		}
		time.Sleep(time.Duration(ms) * time.Millisecond)
		return value.Void(), nil
	})

	go func() {
		ticker := time.NewTicker(clockTickInterval)
		defer ticker.Stop()
		for t := range ticker.C {
			obj.MetaEmit(clockSignalTick, []value.Value{
				value.String(t.Format(time.RFC3339)),
			})
		}
	}()
	return obj
}
