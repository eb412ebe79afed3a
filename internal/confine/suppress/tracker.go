// Package suppress implements the suppression-window tracker.
//
// Deferred cleanup (releasing temporary references, draining a release pool)
// legitimately touches managed objects outside their home context. Bracketing
// that cleanup with Begin/End disables violation reporting for its duration
// on the goroutine that opened the window; every other goroutine keeps being
// checked. Windows nest: reporting resumes only after the outermost End.
package suppress

import (
	"sync"
	"sync/atomic"

	"github.com/kolkov/confinement/internal/confine/execctx"
)

// Tracker keeps one nesting counter per goroutine.
//
// Invariant: no counter is ever negative. An unbalanced End is clamped at
// zero and reported through its return value instead of corrupting future
// nesting.
//
// Thread Safety: All methods except Reset are safe for concurrent calls.
type Tracker struct {
	// depths maps goroutine ID to *atomic.Int64.
	depths sync.Map

	// open counts goroutines with a window open. Zero lets Suppressed skip
	// the goroutine ID lookup.
	open atomic.Int64
}

// New creates a tracker with no active window.
func New() *Tracker {
	return &Tracker{}
}

// counter returns the depth counter of goroutine gid, creating it if needed.
func (t *Tracker) counter(gid int64) *atomic.Int64 {
	if c, ok := t.depths.Load(gid); ok {
		return c.(*atomic.Int64)
	}
	c, _ := t.depths.LoadOrStore(gid, new(atomic.Int64))
	return c.(*atomic.Int64)
}

// Begin opens a suppression window on the calling goroutine.
func (t *Tracker) Begin() {
	t.begin(execctx.CurrentGoroutineID())
}

func (t *Tracker) begin(gid int64) {
	if t.counter(gid).Add(1) == 1 {
		t.open.Add(1)
	}
}

// End closes the calling goroutine's innermost suppression window.
//
// Returns false if no window was open; the counter stays at zero.
func (t *Tracker) End() bool {
	return t.end(execctx.CurrentGoroutineID())
}

func (t *Tracker) end(gid int64) bool {
	v, ok := t.depths.Load(gid)
	if !ok {
		return false
	}
	c := v.(*atomic.Int64)
	for {
		cur := c.Load()
		if cur <= 0 {
			return false
		}
		if c.CompareAndSwap(cur, cur-1) {
			if cur == 1 {
				t.open.Add(-1)
				// Only the owner may drop its entry; a concurrent Begin by
				// the owner cannot race with itself.
				if gid == execctx.CurrentGoroutineID() {
					t.depths.CompareAndDelete(gid, c)
				}
			}
			return true
		}
	}
}

// Suppressed reports whether the calling goroutine has a window open.
//
// This is on the hot path of every intercepted call: one atomic load while
// no window is open anywhere.
func (t *Tracker) Suppressed() bool {
	if t.open.Load() == 0 {
		return false
	}
	return t.Depth() > 0
}

// Depth returns the calling goroutine's nesting depth.
func (t *Tracker) Depth() int64 {
	c, ok := t.depths.Load(execctx.CurrentGoroutineID())
	if !ok {
		return 0
	}
	return c.(*atomic.Int64).Load()
}

// Open returns the number of goroutines holding at least one window.
func (t *Tracker) Open() int64 {
	return t.open.Load()
}

// Reset closes every window on every goroutine.
//
// Thread Safety: NOT safe for concurrent access.
func (t *Tracker) Reset() {
	t.depths.Range(func(k, _ any) bool {
		t.depths.Delete(k)
		return true
	})
	t.open.Store(0)
}

// Window opens a suppression window and returns its handle. Closing the
// handle ends the window of the goroutine that opened it, whichever
// goroutine calls Close.
//
// Example:
//
//	w := tracker.Window()
//	defer w.Close()
//	pool.Drain()
func (t *Tracker) Window() *Window {
	gid := execctx.CurrentGoroutineID()
	t.begin(gid)
	return &Window{tracker: t, gid: gid}
}

// Do runs fn inside a suppression window. The window is closed on every exit
// path of fn: normal return, error and panic.
func (t *Tracker) Do(fn func() error) error {
	w := t.Window()
	defer w.Close()
	return fn()
}

// Window is one open suppression window.
type Window struct {
	tracker *Tracker
	gid     int64
	closed  atomic.Bool
}

// Close ends the window. Only the first call has an effect, so a deferred
// Close next to an explicit one cannot unbalance the tracker.
func (w *Window) Close() {
	if w.closed.CompareAndSwap(false, true) {
		w.tracker.end(w.gid)
	}
}
