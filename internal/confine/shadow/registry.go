package shadow

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/singleflight"
)

// ErrConfiguration marks errors caused by a class that cannot be
// instrumented. Such errors are fatal for instrumentation setup.
var ErrConfiguration = errors.New("shadow: configuration error")

// shadowSuffix is appended to the base class name to name the shadow class.
const shadowSuffix = "_Confined"

// Registry caches one Variant per Class.
//
// Implementation:
//   - sync.Map for lock-free reads of already synthesized variants
//   - singleflight collapses concurrent first-time synthesis of a class
//   - LoadOrStore keeps the cache authoritative: exactly one variant per
//     class is ever observable
//
// Thread Safety: All methods are safe for concurrent calls.
type Registry struct {
	checker Checker

	// variants maps *Class to *Variant.
	variants sync.Map
	count    atomic.Int64

	group singleflight.Group
}

// NewRegistry creates an empty registry whose probes report to checker.
func NewRegistry(checker Checker) *Registry {
	return &Registry{checker: checker}
}

// VariantFor returns the shadow variant for c, synthesizing it on first use.
//
// Repeated calls for the same class return the identical *Variant, even when
// the first calls race from several goroutines. Passing the shadow class of
// an existing variant returns that variant.
//
// Performance:
//   - Cached: one sync.Map load
//   - First call: operation enumeration + one allocation per probe
func (r *Registry) VariantFor(c *Class) (*Variant, error) {
	if c == nil {
		return nil, errors.Mark(errors.New("shadow: nil class"), ErrConfiguration)
	}
	if c.variant != nil {
		return c.variant, nil
	}

	if val, ok := r.variants.Load(c); ok {
		return val.(*Variant), nil
	}

	val, err, _ := r.group.Do(classKey(c), func() (any, error) {
		// Another flight may have finished between Load and Do.
		if val, ok := r.variants.Load(c); ok {
			return val, nil
		}

		v, err := r.synthesize(c)
		if err != nil {
			return nil, err
		}

		actual, loaded := r.variants.LoadOrStore(c, v)
		if !loaded {
			r.count.Add(1)
		}
		return actual, nil
	})
	if err != nil {
		return nil, err
	}
	return val.(*Variant), nil
}

// Lookup returns the cached variant for c without synthesizing one.
func (r *Registry) Lookup(c *Class) (*Variant, bool) {
	if c == nil {
		return nil, false
	}
	if c.variant != nil {
		return c.variant, true
	}
	val, ok := r.variants.Load(c)
	if !ok {
		return nil, false
	}
	return val.(*Variant), true
}

// Len returns the number of synthesized variants.
func (r *Registry) Len() int {
	return int(r.count.Load())
}

// Reset drops every cached variant.
//
// Thread Safety: NOT safe for concurrent access. Used between test cases.
func (r *Registry) Reset() {
	r.variants = sync.Map{}
	r.count.Store(0)
}

// synthesize builds the variant for c.
//
// It walks the Super chain collecting declared operations until it reaches an
// ancestor that already has a variant; that variant becomes the parent.
// A subclass declaration overrides an inherited one of the same name.
func (r *Registry) synthesize(c *Class) (*Variant, error) {
	if c.Name == "" {
		return nil, errors.Mark(
			errors.WithHint(errors.New("shadow: class has no name"),
				"give every managed-object class a non-empty Name"),
			ErrConfiguration,
		)
	}

	var (
		parent  *Variant
		chain   []*Class
		visited = make(map[*Class]bool)
	)
	for cur := c; cur != nil; cur = cur.Super {
		if visited[cur] {
			return nil, errors.Mark(
				errors.Newf("shadow: class %s has a cycle in its superclass chain at %s", c.Name, cur.Name),
				ErrConfiguration,
			)
		}
		visited[cur] = true

		if cur != c {
			if pv, ok := r.Lookup(cur); ok {
				parent = pv
				break
			}
		}
		chain = append(chain, cur)
	}

	v := &Variant{
		base:   c,
		parent: parent,
		probes: make(map[string]*Probe),
	}

	// chain[0] is c itself; walking it first lets subclasses win.
	for _, cls := range chain {
		declared := make(map[string]bool, len(cls.Operations))
		for _, op := range cls.Operations {
			if op.Name == "" {
				return nil, errors.Mark(
					errors.Newf("shadow: class %s declares an operation without a name", cls.Name),
					ErrConfiguration,
				)
			}
			if declared[op.Name] {
				return nil, errors.Mark(
					errors.WithHint(
						errors.Newf("shadow: class %s declares operation %q twice", cls.Name, op.Name),
						"operation identifiers must be unique within a class",
					),
					ErrConfiguration,
				)
			}
			declared[op.Name] = true

			if _, overridden := v.probes[op.Name]; overridden {
				continue
			}
			v.probes[op.Name] = &Probe{op: op, class: c, checker: r.checker}
		}
	}

	if parent != nil {
		inherited := parent.Operations()
		v.inherited = make(map[string]*Probe, len(inherited))
		for _, name := range inherited {
			if _, overridden := v.probes[name]; overridden {
				continue
			}
			pp, _ := parent.Probe(name)
			v.inherited[name] = &Probe{op: pp.op, class: c, checker: r.checker}
		}
	}

	v.shadow = &Class{
		Name:    c.Name + shadowSuffix,
		Super:   c,
		variant: v,
	}
	return v, nil
}

// classKey identifies a class for singleflight. Pointer identity keeps two
// classes with the same name apart.
func classKey(c *Class) string {
	return fmt.Sprintf("%s@%p", c.Name, c)
}
