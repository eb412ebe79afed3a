package model

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/kolkov/confinement/internal/confine/execctx"
)

// Entity is a managed object that can be inserted into a Context.
// Types satisfy it by embedding *Object.
type Entity interface {
	HomeContext() execctx.Context
	EntityName() string
	ObjectID() uuid.UUID
	base() *Object
}

// homeRef boxes the home context so it can be swapped atomically.
type homeRef struct {
	ctx execctx.Context
}

// Object is the state shared by every managed entity: identity, home
// context and attribute storage.
//
// The primitive accessors bypass confinement checks. Generated wrappers call
// them after the probe has run.
//
// Thread Safety: All methods are safe for concurrent calls.
type Object struct {
	id     uuid.UUID
	entity string

	home atomic.Pointer[homeRef]

	mu    sync.RWMutex
	attrs map[string]any
}

// NewObject creates an unaffiliated object of the named entity.
func NewObject(entity string) *Object {
	return &Object{
		id:     uuid.New(),
		entity: entity,
		attrs:  make(map[string]any),
	}
}

func (o *Object) base() *Object { return o }

// ObjectID returns the object's identity.
func (o *Object) ObjectID() uuid.UUID {
	return o.id
}

// EntityName returns the entity the object belongs to.
func (o *Object) EntityName() string {
	return o.entity
}

// HomeContext returns the execution context the object is affiliated with,
// or nil before insertion.
func (o *Object) HomeContext() execctx.Context {
	if ref := o.home.Load(); ref != nil {
		return ref.ctx
	}
	return nil
}

// SetHomeContext reassigns the object's home. Checks that start after
// SetHomeContext returns see the new context.
func (o *Object) SetHomeContext(ctx execctx.Context) {
	if ctx == nil {
		o.home.Store(nil)
		return
	}
	o.home.Store(&homeRef{ctx: ctx})
}

// PrimitiveValue returns the stored value of key without any check.
func (o *Object) PrimitiveValue(key string) any {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.attrs[key]
}

// SetPrimitiveValue stores v under key without any check. A nil v removes
// the attribute.
func (o *Object) SetPrimitiveValue(key string, v any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if v == nil {
		delete(o.attrs, key)
		return
	}
	o.attrs[key] = v
}

// Attributes returns the names of the stored attributes.
func (o *Object) Attributes() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	keys := make([]string, 0, len(o.attrs))
	for k := range o.attrs {
		keys = append(keys, k)
	}
	return keys
}
