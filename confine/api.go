package confine

import "io"

// defaultRuntime is the process-wide runtime used by the package-level
// functions. It starts with an empty cache, no open window and no handler;
// Init attaches logging from the environment.
var defaultRuntime = New()

// Default returns the process-wide runtime.
func Default() *Runtime {
	return defaultRuntime
}

// ShadowVariantForClass returns the cached shadow variant of c, creating it
// on first use. Repeated calls return the identical *Variant.
//
// Panics if c is misdeclared (nil, unnamed, duplicate or unnamed operations,
// cyclic superclass chain). Returns nil when the checker is compiled out.
func ShadowVariantForClass(c *Class) *Variant {
	return defaultRuntime.ShadowVariantForClass(c)
}

// SetFailureHandler replaces the process-wide violation callback. Passing nil
// clears it; violations are then silently discarded. Last write wins.
//
// Example:
//
//	confine.SetFailureHandler(func(op string) {
//		panic("confinement violation in " + op)
//	})
func SetFailureHandler(h FailureHandler) {
	defaultRuntime.SetFailureHandler(h)
}

// SetPolicy switches the default runtime between report-only and panic.
func SetPolicy(p Policy) {
	defaultRuntime.SetPolicy(p)
}

// BeginTrackingSuppressionWindow opens a suppression window on the calling
// goroutine. Every call must
// be paired with exactly one EndTrackingSuppressionWindow on all exit paths;
// prefer Suppress, which guarantees that.
func BeginTrackingSuppressionWindow() {
	defaultRuntime.BeginTrackingSuppressionWindow()
}

// EndTrackingSuppressionWindow closes the innermost suppression window.
// An unbalanced call is ignored rather than driving the depth negative.
func EndTrackingSuppressionWindow() {
	defaultRuntime.EndTrackingSuppressionWindow()
}

// IsSuppressed reports whether the calling goroutine has a suppression window
// open.
func IsSuppressed() bool {
	return defaultRuntime.IsSuppressed()
}

// Suppress runs fn inside a suppression window.
func Suppress(fn func()) {
	defaultRuntime.Suppress(fn)
}

// SuppressErr runs fn inside a suppression window and returns its error.
func SuppressErr(fn func() error) error {
	return defaultRuntime.SuppressErr(fn)
}

// ViolationsDetected returns the number of violations reported by the
// default runtime.
func ViolationsDetected() int64 {
	return defaultRuntime.ViolationsDetected()
}

// Summary writes the default runtime's report to w.
func Summary(w io.Writer) {
	defaultRuntime.Summary(w)
}

// Reset clears the default runtime's state for testing.
//
// Thread Safety: NOT safe for concurrent access.
func Reset() {
	defaultRuntime.Reset()
}
