package shadow

import (
	"sort"

	"github.com/cockroachdb/errors"
)

// Variant is the synthesized shadow of a base class.
//
// A Variant owns one Probe per operation declared on its base class and on
// every ancestor up to, but not including, the nearest ancestor that was
// already instrumented when the variant was synthesized. Operations of that
// ancestor come from the parent variant and are rebound to the base class, so
// a violation always names the class that was instantiated, whatever order
// the variants were built in.
//
// Variants are immutable after synthesis and safe for concurrent use.
type Variant struct {
	base   *Class
	shadow *Class
	parent *Variant
	probes map[string]*Probe

	// inherited holds the parent chain's operations bound to base.
	inherited map[string]*Probe
}

// Base returns the class this variant shadows.
func (v *Variant) Base() *Class {
	return v.base
}

// Class returns the shadow class. Asking the registry for the variant of the
// shadow class returns v itself.
func (v *Variant) Class() *Class {
	return v.shadow
}

// Parent returns the variant of the nearest instrumented ancestor, or nil.
func (v *Variant) Parent() *Variant {
	return v.parent
}

// Probe returns the probe for the named operation, inherited ones included.
func (v *Variant) Probe(name string) (*Probe, bool) {
	if p, ok := v.probes[name]; ok {
		return p, true
	}
	p, ok := v.inherited[name]
	return p, ok
}

// MustProbe is like Probe but panics if the operation is not intercepted.
//
// Generated wrappers resolve their probes once at construction, so a
// missing operation is a configuration error surfaced at startup.
func (v *Variant) MustProbe(name string) *Probe {
	p, ok := v.Probe(name)
	if !ok {
		panic(errors.Mark(
			errors.Newf("shadow: class %s does not intercept operation %q", v.base.Name, name),
			ErrConfiguration,
		))
	}
	return p
}

// Intercepts reports whether the named operation is wrapped by v or one of
// its ancestors.
func (v *Variant) Intercepts(name string) bool {
	_, ok := v.Probe(name)
	return ok
}

// Operations returns the sorted identifiers of every intercepted operation,
// inherited ones included.
func (v *Variant) Operations() []string {
	names := make([]string, 0, len(v.probes)+len(v.inherited))
	for name := range v.probes {
		names = append(names, name)
	}
	for name := range v.inherited {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Probe is the wrapper installed for one operation.
type Probe struct {
	op      Operation
	class   *Class
	checker Checker
}

// Operation returns the intercepted operation.
func (p *Probe) Operation() Operation {
	return p.op
}

// Enter runs the affiliation check for obj. The caller then executes the
// original operation unconditionally: a violation is reported, never
// blocked (unless the checker's policy panics).
//
// This is the hot path of every intercepted call.
func (p *Probe) Enter(obj Managed) {
	p.checker.Check(obj, p.class, &p.op)
}
