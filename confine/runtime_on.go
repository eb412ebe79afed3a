//go:build !noconfine

package confine

import (
	"io"
	"os"

	"github.com/kolkov/confinement/internal/confine/config"
	"github.com/kolkov/confinement/internal/confine/detector"
	"github.com/kolkov/confinement/internal/confine/shadow"
	"github.com/kolkov/confinement/internal/confine/suppress"
)

// Enabled reports whether the checker is compiled in.
const Enabled = true

// configEnv names the environment variable holding the config file path.
const configEnv = "CONFINE_CONFIG"

// Runtime bundles the shadow-class registry, the suppression tracker and the
// detector. The package-level functions use a process-wide default Runtime;
// tests construct their own with New.
//
// Thread Safety: All methods except Reset are safe for concurrent calls.
type Runtime struct {
	registry *shadow.Registry
	tracker  *suppress.Tracker
	detector *detector.Detector
}

// New creates an isolated runtime: empty cache, zero suppression depth,
// no failure handler.
func New(opts ...Option) *Runtime {
	var o detector.Options
	for _, opt := range opts {
		opt(&o)
	}

	tracker := suppress.New()
	det := detector.New(tracker, o)
	return &Runtime{
		registry: shadow.NewRegistry(det),
		tracker:  tracker,
		detector: det,
	}
}

// Configure applies opts on top of the runtime's current reporting options.
// Settings that no option names keep their value; Configure() with no
// options changes nothing.
func (r *Runtime) Configure(opts ...Option) {
	o := r.detector.Options()
	for _, opt := range opts {
		opt(&o)
	}
	r.detector.Configure(o)
}

// ShadowVariantForClass returns the shadow variant of c, synthesizing it on
// first use. It panics if c cannot be instrumented: a misdeclared class is a
// configuration error that must stop instrumentation setup.
func (r *Runtime) ShadowVariantForClass(c *Class) *Variant {
	v, err := r.registry.VariantFor(c)
	if err != nil {
		panic(err)
	}
	return v
}

// VariantFor is ShadowVariantForClass with an error return.
func (r *Runtime) VariantFor(c *Class) (*Variant, error) {
	return r.registry.VariantFor(c)
}

// SetFailureHandler installs the violation callback; nil clears it.
func (r *Runtime) SetFailureHandler(h FailureHandler) {
	r.detector.SetHandler(h)
}

// SetPolicy switches between report-only and panic.
func (r *Runtime) SetPolicy(p Policy) {
	r.detector.SetPolicy(p)
}

// BeginTrackingSuppressionWindow opens a suppression window on the calling
// goroutine.
func (r *Runtime) BeginTrackingSuppressionWindow() {
	r.tracker.Begin()
}

// EndTrackingSuppressionWindow closes the calling goroutine's innermost
// suppression window. Unbalanced calls are ignored; the depth never drops below zero.
func (r *Runtime) EndTrackingSuppressionWindow() {
	r.tracker.End()
}

// IsSuppressed reports whether the calling goroutine has a suppression window
// open.
func (r *Runtime) IsSuppressed() bool {
	return r.tracker.Suppressed()
}

// Suppress runs fn inside a suppression window, closing it even if fn
// panics.
func (r *Runtime) Suppress(fn func()) {
	_ = r.tracker.Do(func() error {
		fn()
		return nil
	})
}

// SuppressErr runs fn inside a suppression window and returns its error.
func (r *Runtime) SuppressErr(fn func() error) error {
	return r.tracker.Do(fn)
}

// ViolationsDetected returns the number of violations reported so far.
func (r *Runtime) ViolationsDetected() int64 {
	return r.detector.ViolationsDetected()
}

// ShadowVariants returns the number of synthesized variants.
func (r *Runtime) ShadowVariants() int {
	return r.registry.Len()
}

// Summary writes the end-of-run report to w.
func (r *Runtime) Summary(w io.Writer) {
	r.detector.Summary(w)
}

// Reset clears the variant cache, suppression depth and violation counters.
// The failure handler and options are kept.
//
// Thread Safety: NOT safe for concurrent access.
func (r *Runtime) Reset() {
	r.registry.Reset()
	r.tracker.Reset()
	r.detector.Reset()
}

// Init configures the default runtime from the environment.
//
// CONFINE_CONFIG names an optional config file; CONFINE_* variables override
// it (see internal/confine/config). Init is safe to call more than once; each
// call re-reads the configuration but keeps the failure handler.
//
// Example:
//
//	func main() {
//		if err := confine.Init(); err != nil {
//			log.Fatal(err)
//		}
//		defer confine.Fini()
//		// ... rest of program
//	}
func Init() error {
	cfg, err := config.Load(os.Getenv(configEnv))
	if err != nil {
		return err
	}
	logger, err := config.NewLogger(cfg)
	if err != nil {
		return err
	}
	opts, err := cfg.DetectorOptions(logger)
	if err != nil {
		return err
	}

	defaultRuntime.detector.Configure(opts)
	return nil
}

// Fini prints a summary of detected violations to stderr.
func Fini() {
	defaultRuntime.Summary(os.Stderr)
}
