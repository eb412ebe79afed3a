package shadow

import (
	"github.com/kolkov/confinement/internal/confine/execctx"
)

// OpKind classifies an intercepted operation.
type OpKind int

const (
	// Getter reads an attribute.
	Getter OpKind = iota
	// Setter writes an attribute.
	Setter
	// Method is any other operation that may run from a foreign context.
	Method
)

// String returns the string representation of an OpKind.
func (k OpKind) String() string {
	switch k {
	case Getter:
		return "getter"
	case Setter:
		return "setter"
	case Method:
		return "method"
	default:
		return "unknown"
	}
}

// Operation is one intercept-able operation of a class.
type Operation struct {
	// Name identifies the operation in violation reports, e.g. "name" or
	// "setName".
	Name string

	// Kind is informational; every kind is checked the same way.
	Kind OpKind
}

// Class describes a managed-object type.
//
// Classes are compared by pointer: two Class values with the same Name are
// distinct classes. Declare each class once, usually as a package-level
// variable next to the entity type.
type Class struct {
	// Name is the entity or type name.
	Name string

	// Super is the parent class, or nil for a root class.
	Super *Class

	// Operations lists the operations declared on this class only.
	// Inherited operations are found through Super.
	Operations []Operation

	// variant is set on the synthesized shadow class of a Variant.
	variant *Variant
}

// NewClass declares a class.
//
// Example:
//
//	var EntityClass = shadow.NewClass("Entity", nil,
//		shadow.Operation{Name: "name", Kind: shadow.Getter},
//		shadow.Operation{Name: "setName", Kind: shadow.Setter},
//	)
func NewClass(name string, super *Class, ops ...Operation) *Class {
	return &Class{Name: name, Super: super, Operations: ops}
}

// IsShadow reports whether c is the shadow class of a synthesized Variant.
func (c *Class) IsShadow() bool {
	return c.variant != nil
}

// Managed is an object affiliated with an execution context.
//
// HomeContext may return nil for an object that is not yet affiliated; such
// objects are never reported.
type Managed interface {
	HomeContext() execctx.Context
}

// Checker performs the affiliation check for one intercepted call.
//
// The registry does not decide what a violation is or how it is reported;
// it only guarantees that every probe calls the Checker before the original
// behavior runs.
type Checker interface {
	Check(obj Managed, class *Class, op *Operation)
}
