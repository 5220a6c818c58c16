package timeline

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
)

// SerialExecutor is a single-goroutine task queue. All model cache mutations
// happen on its loop goroutine, which stands in for a dedicated model-build
// thread: tasks run strictly in post order, one at a time.
type SerialExecutor struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool

	done   chan struct{}
	loopID atomic.Uint64
}

// NewSerialExecutor starts the loop goroutine and returns the executor.
func NewSerialExecutor() *SerialExecutor {
	e := &SerialExecutor{done: make(chan struct{})}
	e.cond = sync.NewCond(&e.mu)

	ready := make(chan struct{})
	go e.run(ready)
	<-ready
	return e
}

func (e *SerialExecutor) run(ready chan<- struct{}) {
	e.loopID.Store(goroutineID())
	close(ready)
	defer close(e.done)

	e.mu.Lock()
	for {
		for len(e.queue) == 0 && !e.closed {
			e.cond.Wait()
		}
		if len(e.queue) == 0 {
			e.mu.Unlock()
			return
		}
		task := e.queue[0]
		e.queue = e.queue[1:]
		e.mu.Unlock()
		task()
		e.mu.Lock()
	}
}

// Post enqueues a task for execution on the loop goroutine. The queue is
// unbounded, so posting from within a task cannot deadlock. Returns false if
// the executor has been closed.
func (e *SerialExecutor) Post(task func()) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	e.queue = append(e.queue, task)
	e.cond.Signal()
	return true
}

// OnLoop reports whether the caller is running on the executor's loop
// goroutine.
func (e *SerialExecutor) OnLoop() bool {
	return goroutineID() == e.loopID.Load()
}

// Close drains already-posted tasks, stops the loop goroutine and waits for
// it to exit. Further Posts return false.
func (e *SerialExecutor) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		<-e.done
		return
	}
	e.closed = true
	e.cond.Signal()
	e.mu.Unlock()
	<-e.done
}

// goroutineID parses the current goroutine's id from a stack header of the
// form "goroutine 123 [running]:". Used only for the loop-affinity check.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		return 0
	}
	id, err := strconv.ParseUint(string(fields[1]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
