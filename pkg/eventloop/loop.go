// Package eventloop provides the cooperative dispatchers the qi runtime
// marshals work onto. A loop is a single goroutine draining a deadline
// ordered task queue; tasks with equal deadlines run in posting order.
package eventloop

import (
	"container/heap"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmerejkowsky/libqi/pkg/future"
)

// task is one queued callable plus its completion promise.
type task struct {
	fn       func()
	deadline time.Time
	seq      uint64
	canceled atomic.Bool
	promise  *future.Promise[future.Void]
	index    int
}

// taskQueue orders tasks by deadline, then by posting sequence.
type taskQueue []*task

func (q taskQueue) Len() int { return len(q) }

func (q taskQueue) Less(i, j int) bool {
	if q[i].deadline.Equal(q[j].deadline) {
		return q[i].seq < q[j].seq
	}
	return q[i].deadline.Before(q[j].deadline)
}

func (q taskQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *taskQueue) Push(x interface{}) {
	t := x.(*task)
	t.index = len(*q)
	*q = append(*q, t)
}

func (q *taskQueue) Pop() interface{} {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return t
}

// EventLoop is a single-goroutine dispatcher. Work posted with Async runs
// in FIFO order per deadline; the loop goroutine identifies itself so
// callers can tell whether they are already inside it.
type EventLoop struct {
	name string

	mu      sync.Mutex
	queue   taskQueue
	nextSeq uint64
	stopped bool

	notify chan struct{}
	done   chan struct{}
	gid    atomic.Uint64
}

// New creates and starts an event loop. The name only shows up in
// diagnostics.
func New(name string) *EventLoop {
	l := &EventLoop{
		name:   name,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go l.run()
	return l
}

// Name returns the loop's diagnostic name.
func (l *EventLoop) Name() string { return l.name }

// IsInLoopGoroutine reports whether the caller is running on this loop's
// dispatch goroutine.
func (l *EventLoop) IsInLoopGoroutine() bool {
	return l.gid.Load() == curGoroutineID()
}

// Pending returns the number of tasks waiting to run.
func (l *EventLoop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Async schedules fn to run after delay and returns a future that completes
// when fn has run. Canceling the future before fn starts prevents the run
// and resolves the future with an error once the deadline is reached.
func (l *EventLoop) Async(fn func(), delay time.Duration) future.Future[future.Void] {
	t := &task{fn: fn, deadline: time.Now().Add(delay)}
	t.promise = future.NewCancelablePromise(func(*future.Promise[future.Void]) {
		t.canceled.Store(true)
	})

	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		t.promise.SetError("event loop is stopped")
		return t.promise.Future()
	}
	t.seq = l.nextSeq
	l.nextSeq++
	heap.Push(&l.queue, t)
	l.mu.Unlock()
	l.wake()
	return t.promise.Future()
}

// Post schedules fn to run as soon as possible, discarding the completion
// future.
func (l *EventLoop) Post(fn func()) {
	l.Async(fn, 0)
}

// Stop shuts the loop down. Queued tasks that have not started resolve
// with an error. Stop blocks until the dispatch goroutine has exited and
// is idempotent.
func (l *EventLoop) Stop() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		<-l.done
		return
	}
	l.stopped = true
	dropped := make([]*task, len(l.queue))
	copy(dropped, l.queue)
	l.queue = nil
	l.mu.Unlock()
	l.wake()

	for _, t := range dropped {
		t.promise.SetError("event loop is stopped")
	}
	<-l.done
}

func (l *EventLoop) wake() {
	select {
	case l.notify <- struct{}{}:
	default:
	}
}

func (l *EventLoop) run() {
	l.gid.Store(curGoroutineID())
	defer close(l.done)

	for {
		l.mu.Lock()
		if l.stopped {
			l.mu.Unlock()
			return
		}
		if len(l.queue) == 0 {
			l.mu.Unlock()
			<-l.notify
			continue
		}
		wait := time.Until(l.queue[0].deadline)
		if wait > 0 {
			l.mu.Unlock()
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-l.notify:
			}
			timer.Stop()
			continue
		}
		t := heap.Pop(&l.queue).(*task)
		l.mu.Unlock()

		l.execute(t)
	}
}

func (l *EventLoop) execute(t *task) {
	if t.canceled.Load() {
		t.promise.SetError("async call canceled")
		return
	}
	t.fn()
	t.promise.SetValue(future.Void{})
}
