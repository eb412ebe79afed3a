package execctx

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

// ErrQueueClosed is returned when work is submitted to a closed Queue.
var ErrQueueClosed = errors.New("execctx: queue closed")

// Queue is a serial execution context backed by a single worker goroutine.
//
// Every function submitted with Perform or PerformAndWait runs on the worker,
// one at a time, in submission order. IsCurrent reports true only while code
// runs on the worker, so objects affiliated with a Queue may be touched
// exclusively from inside submitted work.
//
// Thread Safety: All methods are safe for concurrent calls.
type Queue struct {
	name string

	// gid is the worker goroutine ID, published before NewQueue returns.
	gid atomic.Int64

	// pending is unbounded so that work scheduled from the worker itself
	// never blocks it.
	mu      sync.Mutex
	cond    *sync.Cond
	pending []func()
	closed  bool

	done chan struct{}
}

// NewQueue starts a serial queue.
//
// The worker goroutine is running and its identity is known by the time
// NewQueue returns. Call Close to stop it.
func NewQueue(name string) *Queue {
	q := &Queue{
		name: name,
		done: make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)

	ready := make(chan struct{})
	go q.run(ready)
	<-ready

	return q
}

func (q *Queue) run(ready chan<- struct{}) {
	defer close(q.done)

	q.gid.Store(CurrentGoroutineID())
	close(ready)

	for {
		fn, ok := q.next()
		if !ok {
			return
		}
		fn()
	}
}

// next blocks until work is queued. It returns false once the queue is
// closed and empty.
func (q *Queue) next() (func(), bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.pending) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.pending) == 0 {
		return nil, false
	}
	fn := q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]
	return fn, true
}

// Perform schedules fn on the queue and returns immediately. It never
// blocks, including when called from the worker.
func (q *Queue) Perform(fn func()) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return errors.Wrapf(ErrQueueClosed, "perform on %s", q.name)
	}
	q.pending = append(q.pending, fn)
	q.cond.Signal()
	return nil
}

// PerformAndWait runs fn on the queue and blocks until it returns.
//
// Calling PerformAndWait from the queue's own worker runs fn inline, so
// nested calls do not deadlock. A panic inside fn is re-raised in the caller.
func (q *Queue) PerformAndWait(fn func()) error {
	if q.IsCurrent() {
		fn()
		return nil
	}

	var panicked any
	finished := make(chan struct{})
	err := q.Perform(func() {
		defer close(finished)
		defer func() { panicked = recover() }()
		fn()
	})
	if err != nil {
		return err
	}

	<-finished
	if panicked != nil {
		panic(panicked)
	}
	return nil
}

// Close stops accepting work, drains queued functions and waits for the
// worker to exit. Close is idempotent. Calling Close from the worker itself
// would deadlock and is reported as an error instead.
func (q *Queue) Close() error {
	if q.IsCurrent() {
		return errors.Newf("execctx: %s closed from its own worker", q.name)
	}

	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()

	<-q.done
	return nil
}

// IsCurrent reports whether the caller is the queue's worker goroutine.
func (q *Queue) IsCurrent() bool {
	return CurrentGoroutineID() == q.gid.Load()
}

// GoroutineID returns the worker goroutine ID.
func (q *Queue) GoroutineID() int64 {
	return q.gid.Load()
}

func (q *Queue) String() string {
	return fmt.Sprintf("%s (queue, goroutine %d)", q.name, q.gid.Load())
}
