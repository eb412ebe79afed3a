package model

import (
	"sync"
)

// Suppressor opens a suppression window around fn.
// *confine.Runtime satisfies it.
type Suppressor interface {
	Suppress(fn func())
}

// ReleasePool collects deferred cleanup that may touch managed objects from
// any goroutine. Drain runs the queued functions inside a suppression window,
// so those accesses are never reported.
//
// Thread Safety: All methods are safe for concurrent calls.
type ReleasePool struct {
	suppressor Suppressor

	mu      sync.Mutex
	pending []func()
}

// NewReleasePool creates an empty pool.
func NewReleasePool(s Suppressor) *ReleasePool {
	return &ReleasePool{suppressor: s}
}

// Defer queues fn for the next Drain.
func (p *ReleasePool) Defer(fn func()) {
	p.mu.Lock()
	p.pending = append(p.pending, fn)
	p.mu.Unlock()
}

// Len returns the number of queued functions.
func (p *ReleasePool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// Drain runs every queued function on the calling goroutine and returns how
// many ran. Functions queued during Drain wait for the next call.
//
// If a function panics, the functions queued after it go back to the front
// of the pool before the panic propagates; the panicking one is dropped.
func (p *ReleasePool) Drain() int {
	p.mu.Lock()
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()

	if len(pending) == 0 {
		return 0
	}

	started := 0
	finished := false
	defer func() {
		if finished {
			return
		}
		p.mu.Lock()
		p.pending = append(pending[started:len(pending):len(pending)], p.pending...)
		p.mu.Unlock()
	}()

	p.suppressor.Suppress(func() {
		for _, fn := range pending {
			started++
			fn()
		}
	})
	finished = true
	return len(pending)
}
