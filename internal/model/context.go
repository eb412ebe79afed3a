package model

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kolkov/confinement/internal/confine/execctx"
)

// Errors returned by Context.
var (
	ErrAlreadyInserted = errors.New("model: object already inserted")
	ErrContextClosed   = errors.New("model: context closed")
)

// Context owns a serial queue and the objects affiliated with it. Managed
// objects must only be touched from the queue, via Perform or
// PerformAndWait.
//
// Thread Safety: All methods are safe for concurrent calls.
type Context struct {
	name   string
	queue  *execctx.Queue
	pool   *ReleasePool
	logger *zap.Logger

	mu      sync.Mutex
	closed  bool
	order   []uuid.UUID
	objects map[uuid.UUID]Entity
}

// ContextOption configures a Context.
type ContextOption func(*Context)

// WithLogger sets the context's logger.
func WithLogger(l *zap.Logger) ContextOption {
	return func(c *Context) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewContext starts a context with its own queue. Deferred releases are
// drained inside windows opened by s.
func NewContext(name string, s Suppressor, opts ...ContextOption) *Context {
	c := &Context{
		name:    name,
		queue:   execctx.NewQueue(name),
		pool:    NewReleasePool(s),
		logger:  zap.NewNop(),
		objects: make(map[uuid.UUID]Entity),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("context", name))
	return c
}

// Name returns the context name.
func (c *Context) Name() string {
	return c.name
}

// Queue returns the context's execution context. Inserted objects report it
// as their home.
func (c *Context) Queue() *execctx.Queue {
	return c.queue
}

// Pool returns the context's release pool.
func (c *Context) Pool() *ReleasePool {
	return c.pool
}

// Perform schedules fn on the context's queue.
func (c *Context) Perform(fn func()) error {
	if err := c.queue.Perform(fn); err != nil {
		return errors.Wrapf(err, "model: perform on %s", c.name)
	}
	return nil
}

// PerformAndWait runs fn on the context's queue and waits for it.
func (c *Context) PerformAndWait(fn func()) error {
	if err := c.queue.PerformAndWait(fn); err != nil {
		return errors.Wrapf(err, "model: perform on %s", c.name)
	}
	return nil
}

// Insert affiliates e with this context. Inserting an object twice into the
// same context is a no-op; inserting it into a second context fails.
func (c *Context) Insert(e Entity) error {
	obj := e.base()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrContextClosed
	}
	if _, ok := c.objects[obj.id]; ok {
		return nil
	}
	if home := obj.HomeContext(); home != nil {
		return errors.Wrapf(ErrAlreadyInserted, "%s %s belongs to %s", obj.entity, obj.id, home)
	}

	obj.SetHomeContext(c.queue)
	c.objects[obj.id] = e
	c.order = append(c.order, obj.id)

	c.logger.Debug("inserted object",
		zap.String("entity", obj.entity),
		zap.Stringer("id", obj.id))
	return nil
}

// Object returns the inserted object with the given ID.
func (c *Context) Object(id uuid.UUID) (Entity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.objects[id]
	return e, ok
}

// Objects returns the inserted objects in insertion order.
func (c *Context) Objects() []Entity {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entity, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.objects[id])
	}
	return out
}

// Release removes e from the context and queues cleanup on the release pool.
// cleanup may be nil. It runs on whichever goroutine drains the pool.
func (c *Context) Release(e Entity, cleanup func()) {
	obj := e.base()

	c.mu.Lock()
	if _, ok := c.objects[obj.id]; ok {
		delete(c.objects, obj.id)
		for i, id := range c.order {
			if id == obj.id {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
	}
	c.mu.Unlock()

	c.pool.Defer(func() {
		if cleanup != nil {
			cleanup()
		}
		obj.SetHomeContext(nil)
	})
}

// Close stops the queue and drains the release pool on the calling
// goroutine. Close is idempotent.
func (c *Context) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	if err := c.queue.Close(); err != nil {
		return errors.Wrapf(err, "model: close %s", c.name)
	}
	if n := c.pool.Drain(); n > 0 {
		c.logger.Debug("drained release pool", zap.Int("released", n))
	}
	return nil
}
