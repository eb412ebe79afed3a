package detector

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/kolkov/confinement/internal/confine/execctx"
	"github.com/kolkov/confinement/internal/confine/shadow"
	"github.com/kolkov/confinement/internal/confine/suppress"
)

// Handler is the failure callback. It receives the identifier of the
// operation that was called outside its object's home context.
type Handler func(op string)

// Options configures a Detector.
type Options struct {
	// Logger receives one warning per distinct violation site.
	// Nil means zap.NewNop().
	Logger *zap.Logger

	// Policy selects report-only or panic.
	Policy Policy

	// Dedup logs each deduplication key once. The handler is always
	// called, regardless of Dedup.
	Dedup bool

	// CaptureStacks records the call stack in every report.
	CaptureStacks bool
}

// Detector implements shadow.Checker.
//
// The handler, logger and policy can be replaced at any time; readers always
// see a fully written value (atomic pointer swap, last write wins).
//
// Thread Safety: All methods are safe for concurrent calls.
type Detector struct {
	tracker *suppress.Tracker

	handler atomic.Pointer[Handler]
	logger  atomic.Pointer[zap.Logger]
	policy  atomic.Int32

	dedup         atomic.Bool
	captureStacks atomic.Bool

	// violations counts every reported violation.
	violations atomic.Int64

	// reported tracks logged deduplication keys.
	reported sync.Map

	// last is the most recent report, for Summary.
	last atomic.Pointer[ViolationReport]
}

// New creates a Detector that consults tracker before reporting.
func New(tracker *suppress.Tracker, opts Options) *Detector {
	d := &Detector{tracker: tracker}
	d.Configure(opts)
	return d
}

// Configure replaces the logger, policy and reporting switches.
func (d *Detector) Configure(opts Options) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	d.logger.Store(logger)
	d.policy.Store(int32(opts.Policy))
	d.dedup.Store(opts.Dedup)
	d.captureStacks.Store(opts.CaptureStacks)
}

// Options returns the settings currently in effect. The logger is never nil.
func (d *Detector) Options() Options {
	return Options{
		Logger:        d.logger.Load(),
		Policy:        d.Policy(),
		Dedup:         d.dedup.Load(),
		CaptureStacks: d.captureStacks.Load(),
	}
}

// SetHandler installs the failure handler. Nil clears it; violations are then
// still counted and logged but nobody is called back.
func (d *Detector) SetHandler(h Handler) {
	if h == nil {
		d.handler.Store(nil)
		return
	}
	d.handler.Store(&h)
}

// SetPolicy switches between report-only and panic.
func (d *Detector) SetPolicy(p Policy) {
	d.policy.Store(int32(p))
}

// Policy returns the active policy.
func (d *Detector) Policy() Policy {
	return Policy(d.policy.Load())
}

// Check runs the affiliation check for one intercepted call.
//
// This is the CRITICAL HOT PATH: for a legal call it costs one interface
// call to HomeContext, one goroutine ID lookup and one atomic load.
func (d *Detector) Check(obj shadow.Managed, class *shadow.Class, op *shadow.Operation) {
	if obj == nil {
		return
	}

	home := obj.HomeContext()
	if home == nil || home.IsCurrent() {
		return
	}

	if d.tracker.Suppressed() {
		return
	}

	d.report(home, class, op)
}

// report records a violation. Off the hot path.
func (d *Detector) report(home execctx.Context, class *shadow.Class, op *shadow.Operation) {
	d.violations.Add(1)

	r := NewViolationReport(class, op, home.String(), execctx.CurrentGoroutineID(), d.captureStacks.Load())
	d.last.Store(r)

	logIt := true
	if d.dedup.Load() {
		_, seen := d.reported.LoadOrStore(r.DeduplicationKey, struct{}{})
		logIt = !seen
	}
	if logIt {
		fields := []zap.Field{
			zap.String("op", r.Operation),
			zap.Stringer("kind", r.Kind),
			zap.String("class", r.Class),
			zap.String("home", r.Home),
			zap.Int64("goroutine", r.GoroutineID),
		}
		if len(r.StackTrace) > 0 {
			fields = append(fields, zap.String("stack", formatStackTrace(r.StackTrace)))
		}
		d.logger.Load().Warn("confinement violation", fields...)
	}

	if h := d.handler.Load(); h != nil {
		(*h)(op.Name)
	}

	if d.Policy() == PolicyPanic {
		panic(&ViolationError{Report: r})
	}
}

// ViolationsDetected returns the number of violations reported since
// creation or the last Reset.
func (d *Detector) ViolationsDetected() int64 {
	return d.violations.Load()
}

// LastReport returns the most recent violation, or nil.
func (d *Detector) LastReport() *ViolationReport {
	return d.last.Load()
}

// Reset clears counters and deduplication state. The handler and options
// are kept.
//
// Thread Safety: NOT safe for concurrent access.
func (d *Detector) Reset() {
	d.violations.Store(0)
	d.reported = sync.Map{}
	d.last.Store(nil)
}

// Summary writes the end-of-run report.
//
//nolint:errcheck // Error handling omitted for summary output
func (d *Detector) Summary(w io.Writer) {
	n := d.ViolationsDetected()

	fmt.Fprintf(w, "\n==================\n")
	fmt.Fprintf(w, "Confinement Checker Report\n")
	fmt.Fprintf(w, "==================\n")
	if n == 0 {
		fmt.Fprintf(w, "No confinement violations detected.\n")
	} else {
		fmt.Fprintf(w, "WARNING: %d confinement violation(s) detected!\n", n)
		if last := d.LastReport(); last != nil {
			fmt.Fprintf(w, "\nMost recent:\n")
			last.Format(w)
		}
	}
	fmt.Fprintf(w, "==================\n\n")
}
