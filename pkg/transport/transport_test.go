package transport

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmerejkowsky/libqi/pkg/future"
	"github.com/dmerejkowsky/libqi/pkg/metaobject"
	"github.com/dmerejkowsky/libqi/pkg/metrics"
	"github.com/dmerejkowsky/libqi/pkg/object"
	"github.com/dmerejkowsky/libqi/pkg/value"
)

const (
	echoMethod = metaobject.ReservedIDLimit
	failMethod = metaobject.ReservedIDLimit + 1
	pingSignal = metaobject.ReservedIDLimit
)

func newEchoService(t *testing.T) *object.DynamicObject {
	t.Helper()
	mo, err := metaobject.NewBuilder().
		AddMethod(echoMethod, "s echo::(s)").
		AddMethod(failMethod, "v fail::()").
		AddSignal(pingSignal, "ping", "(i)").
		Freeze()
	require.NoError(t, err)

	obj := object.NewDynamicObject(mo)
	obj.SetMethod(echoMethod, func(params []value.Value) (value.Value, error) {
		s, _ := params[0].Interface().(string)
		return value.String("echo: " + s), nil
	})
	obj.SetMethod(failMethod, func([]value.Value) (value.Value, error) {
		return value.Value{}, &echoError{}
	})
	return obj
}

type echoError struct{}

func (*echoError) Error() string { return "echo service is unhappy" }

// startTestNode serves an echo service over a real websocket and returns
// a connected client plus the service object.
func startTestNode(t *testing.T) (*Client, *object.DynamicObject) {
	t.Helper()
	obj := newEchoService(t)

	server := NewServer(ServerOptions{Metrics: metrics.New(metrics.DefaultConfig())})
	server.RegisterService("echo", obj)

	ts := httptest.NewServer(server)
	t.Cleanup(ts.Close)

	endpoint := "ws" + strings.TrimPrefix(ts.URL, "http")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := Dial(ctx, endpoint, ClientOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client, obj
}

func TestTransport_CallRoundTrip(t *testing.T) {
	client, _ := startTestNode(t)

	f := client.Send("echo", echoMethod, []value.Value{value.String("hello")})
	require.Equal(t, future.FinishedWithValue, f.Wait(5*time.Second))
	v, err := f.Value()
	require.NoError(t, err)
	assert.Equal(t, "echo: hello", v.Interface())
}

func TestTransport_CallErrorPropagates(t *testing.T) {
	client, _ := startTestNode(t)

	f := client.Send("echo", failMethod, nil)
	require.Equal(t, future.FinishedWithError, f.Wait(5*time.Second))
	msg, err := f.Error()
	require.NoError(t, err)
	assert.Equal(t, "echo service is unhappy", msg)
}

func TestTransport_NoSuchMethod(t *testing.T) {
	client, _ := startTestNode(t)

	f := client.Send("echo", 999, nil)
	require.Equal(t, future.FinishedWithError, f.Wait(5*time.Second))
	msg, err := f.Error()
	require.NoError(t, err)
	assert.Equal(t, "No such method", msg)
}

func TestTransport_UnknownService(t *testing.T) {
	client, _ := startTestNode(t)

	f := client.Send("nope", echoMethod, nil)
	require.Equal(t, future.FinishedWithError, f.Wait(5*time.Second))
	msg, err := f.Error()
	require.NoError(t, err)
	assert.Contains(t, msg, "service not found")
}

func TestTransport_SignalSubscription(t *testing.T) {
	client, obj := startTestNode(t)

	var got atomic.Int32
	seen := make(chan struct{}, 16)
	link, err := client.Subscribe("echo", pingSignal, func(params []value.Value) {
		v, _ := params[0].Interface().(int32)
		got.Store(v)
		seen <- struct{}{}
	}).Value()
	require.NoError(t, err)

	obj.MetaEmit(pingSignal, []value.Value{value.Int32(31)})
	select {
	case <-seen:
	case <-time.After(5 * time.Second):
		t.Fatal("event never arrived")
	}
	assert.EqualValues(t, 31, got.Load())

	require.NoError(t, client.Unsubscribe("echo", link))
	// Give the unsubscribe a moment to land, then emit again.
	time.Sleep(100 * time.Millisecond)
	obj.MetaEmit(pingSignal, []value.Value{value.Int32(99)})
	select {
	case <-seen:
		t.Fatal("event delivered after unsubscribe")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestServer_RegisterServiceInstrumentsObject(t *testing.T) {
	met := metrics.New(metrics.DefaultConfig())
	server := NewServer(ServerOptions{Metrics: met})
	obj := newEchoService(t)
	server.RegisterService("echo", obj)

	obj.MetaEmit(pingSignal, []value.Value{value.Int32(7)})

	n, err := testutil.GatherAndCount(met.Registry(), "qi_signal_emissions_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n, "registered object must report emissions through the server collectors")
}

func TestTransport_ClientCloseFailsPending(t *testing.T) {
	client, obj := startTestNode(t)

	block := make(chan struct{})
	obj.SetMethod(echoMethod, func([]value.Value) (value.Value, error) {
		<-block
		return value.Void(), nil
	})
	defer close(block)

	f := client.Send("echo", echoMethod, []value.Value{value.String("x")})
	require.NoError(t, client.Close())
	require.Equal(t, future.FinishedWithError, f.Wait(5*time.Second))
}
