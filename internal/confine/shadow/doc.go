// Package shadow implements the shadow-class registry.
//
// A Class describes a managed-object type by the operations its instances
// expose. The Registry lazily synthesizes, once per class, a Variant whose
// probes run the affiliation check before the caller delegates to the
// original behavior. Generated wrappers hold Probes and call Enter on every
// intercepted operation.
//
// Operations are declared explicitly (a capability-registration table)
// instead of being discovered by reflection, so a class that cannot be
// instrumented fails when its variant is synthesized, not on some later call.
//
// Memory model:
//   - Key: *Class (pointer identity)
//   - Value: *Variant (never freed; bounded by the number of entity types)
package shadow
