package confine

import (
	"go.uber.org/zap"

	"github.com/kolkov/confinement/internal/confine/detector"
	"github.com/kolkov/confinement/internal/confine/execctx"
	"github.com/kolkov/confinement/internal/confine/shadow"
)

// Class describes a managed-object type and its intercepted operations.
type Class = shadow.Class

// Operation is one intercepted operation of a Class.
type Operation = shadow.Operation

// OpKind classifies an Operation.
type OpKind = shadow.OpKind

// Operation kinds.
const (
	Getter = shadow.Getter
	Setter = shadow.Setter
	Method = shadow.Method
)

// Variant is the shadow variant of a Class.
type Variant = shadow.Variant

// Probe is the installed wrapper for one operation.
type Probe = shadow.Probe

// Managed is an object affiliated with an execution context.
type Managed = shadow.Managed

// ExecutionContext is a confinement domain.
type ExecutionContext = execctx.Context

// Queue is a serial execution context.
type Queue = execctx.Queue

// Policy selects what happens after a violation is reported.
type Policy = detector.Policy

// Policies.
const (
	PolicyReport = detector.PolicyReport
	PolicyPanic  = detector.PolicyPanic
)

// ViolationError is the panic value under PolicyPanic.
type ViolationError = detector.ViolationError

// FailureHandler receives the identifier of the violating operation.
type FailureHandler = detector.Handler

// NewClass declares a managed-object class.
func NewClass(name string, super *Class, ops ...Operation) *Class {
	return shadow.NewClass(name, super, ops...)
}

// NewQueue starts a serial execution context.
func NewQueue(name string) *Queue {
	return execctx.NewQueue(name)
}

// Bind returns an execution context pinned to the calling goroutine.
func Bind(name string) ExecutionContext {
	return execctx.Bind(name)
}

// Option configures a Runtime.
type Option func(*detector.Options)

// WithPolicy sets the violation policy.
func WithPolicy(p Policy) Option {
	return func(o *detector.Options) { o.Policy = p }
}

// WithDedup deduplicates logged reports per call site.
func WithDedup(on bool) Option {
	return func(o *detector.Options) { o.Dedup = on }
}

// WithStacks captures a stack trace for every report.
func WithStacks(on bool) Option {
	return func(o *detector.Options) { o.CaptureStacks = on }
}

// WithLogger sets the logger that receives violation reports.
func WithLogger(l *zap.Logger) Option {
	return func(o *detector.Options) { o.Logger = l }
}
