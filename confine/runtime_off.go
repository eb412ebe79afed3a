//go:build noconfine

package confine

import (
	"io"
)

// Enabled reports whether the checker is compiled in.
const Enabled = false

// Runtime is empty when the checker is compiled out. Every method is a
// no-op and no state is ever allocated.
type Runtime struct{}

// New returns an inert runtime.
func New(...Option) *Runtime { return &Runtime{} }

// Configure ignores opts.
func (r *Runtime) Configure(...Option) {}

// ShadowVariantForClass returns nil: no variant is synthesized.
func (r *Runtime) ShadowVariantForClass(*Class) *Variant { return nil }

// VariantFor returns a nil variant and no error.
func (r *Runtime) VariantFor(*Class) (*Variant, error) { return nil, nil }

// SetFailureHandler discards the handler; it is never called.
func (r *Runtime) SetFailureHandler(FailureHandler) {}

// SetPolicy does nothing.
func (r *Runtime) SetPolicy(Policy) {}

// BeginTrackingSuppressionWindow does nothing.
func (r *Runtime) BeginTrackingSuppressionWindow() {}

// EndTrackingSuppressionWindow does nothing.
func (r *Runtime) EndTrackingSuppressionWindow() {}

// IsSuppressed always returns false.
func (r *Runtime) IsSuppressed() bool { return false }

// Suppress calls fn directly.
func (r *Runtime) Suppress(fn func()) { fn() }

// SuppressErr calls fn directly and returns its error.
func (r *Runtime) SuppressErr(fn func() error) error { return fn() }

// ViolationsDetected always returns 0.
func (r *Runtime) ViolationsDetected() int64 { return 0 }

// ShadowVariants always returns 0.
func (r *Runtime) ShadowVariants() int { return 0 }

// Summary writes nothing.
func (r *Runtime) Summary(io.Writer) {}

// Reset does nothing.
func (r *Runtime) Reset() {}

// Init does nothing when the checker is compiled out.
func Init() error { return nil }

// Fini does nothing when the checker is compiled out.
func Fini() {}
