package eventloop

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmerejkowsky/libqi/pkg/future"
)

func TestEventLoop_AsyncRunsTask(t *testing.T) {
	loop := New("test")
	defer loop.Stop()

	var ran atomic.Bool
	f := loop.Async(func() { ran.Store(true) }, 0)
	require.Equal(t, future.FinishedWithValue, f.Wait(time.Second))
	assert.True(t, ran.Load())
}

func TestEventLoop_DelayedTask(t *testing.T) {
	loop := New("test")
	defer loop.Stop()

	start := time.Now()
	f := loop.Async(func() {}, 50*time.Millisecond)
	require.Equal(t, future.FinishedWithValue, f.Wait(time.Second))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestEventLoop_FIFOPerDeadline(t *testing.T) {
	loop := New("test")
	defer loop.Stop()

	var mu sync.Mutex
	var order []int
	var futures []future.Future[future.Void]
	for i := 0; i < 100; i++ {
		i := i
		futures = append(futures, loop.Async(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}, 0))
	}
	future.WaitForAll(futures)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 100)
	for i, got := range order {
		assert.Equal(t, i, got)
	}
}

func TestEventLoop_CancelBeforeStart(t *testing.T) {
	loop := New("test")
	defer loop.Stop()

	var ran atomic.Bool
	f := loop.Async(func() { ran.Store(true) }, 200*time.Millisecond)
	require.True(t, f.IsCanceleable())
	require.NoError(t, f.Cancel())
	assert.False(t, f.IsFinished())

	time.Sleep(400 * time.Millisecond)
	assert.False(t, ran.Load())
	assert.True(t, f.IsFinished())
	hasError, err := f.HasError(future.TimeoutNone)
	require.NoError(t, err)
	assert.True(t, hasError)
}

func TestEventLoop_IsInLoopGoroutine(t *testing.T) {
	loop := New("test")
	defer loop.Stop()

	assert.False(t, loop.IsInLoopGoroutine())

	var inside atomic.Bool
	f := loop.Async(func() { inside.Store(loop.IsInLoopGoroutine()) }, 0)
	require.Equal(t, future.FinishedWithValue, f.Wait(time.Second))
	assert.True(t, inside.Load())
}

func TestEventLoop_StopFailsQueuedTasks(t *testing.T) {
	loop := New("test")
	f := loop.Async(func() {}, time.Hour)
	loop.Stop()

	require.Equal(t, future.FinishedWithError, f.Wait(time.Second))
	msg, err := f.Error()
	require.NoError(t, err)
	assert.Contains(t, msg, "stopped")

	// Posting after Stop fails immediately.
	f = loop.Async(func() {}, 0)
	assert.Equal(t, future.FinishedWithError, f.Wait(future.TimeoutNone))
}

func TestRuntime_DistinctLoops(t *testing.T) {
	rt := NewRuntime()
	defer rt.Stop()

	assert.NotSame(t, rt.Network(), rt.Object())
	assert.Equal(t, "network", rt.Network().Name())
	assert.Equal(t, "object", rt.Object().Name())
}
