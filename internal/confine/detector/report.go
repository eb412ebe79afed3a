package detector

import (
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/kolkov/confinement/internal/confine/shadow"
)

// maxStackDepth is the maximum number of stack frames to capture.
const maxStackDepth = 32

// ViolationReport describes one confinement violation.
type ViolationReport struct {
	// Operation is the identifier of the intercepted operation.
	Operation string

	// Kind is the operation kind (getter, setter, method).
	Kind shadow.OpKind

	// Class is the name of the instrumented class.
	Class string

	// Home describes the object's home context.
	Home string

	// GoroutineID is the goroutine that performed the access.
	GoroutineID int64

	// StackTrace holds program counters of the offending call, if captured.
	StackTrace []uintptr

	// DeduplicationKey identifies the violation site for log deduplication.
	// Format: "{class}.{op}:{home}:{goroutine}".
	DeduplicationKey string
}

// NewViolationReport builds a report for an access from goroutine gid.
//
// When withStack is true the current stack is captured, skipping the
// detector's own frames.
func NewViolationReport(class *shadow.Class, op *shadow.Operation, home string, gid int64, withStack bool) *ViolationReport {
	r := &ViolationReport{
		Operation:   op.Name,
		Kind:        op.Kind,
		Class:       class.Name,
		Home:        home,
		GoroutineID: gid,
	}
	if withStack {
		// Skip runtime.Callers, captureStackTrace, NewViolationReport.
		r.StackTrace = captureStackTrace(3)
	}
	r.DeduplicationKey = generateDeduplicationKey(r.Class, r.Operation, home, gid)
	return r
}

// generateDeduplicationKey returns "{class}.{op}:{home}:{goroutine}".
func generateDeduplicationKey(class, op, home string, gid int64) string {
	return fmt.Sprintf("%s.%s:%s:%d", class, op, home, gid)
}

func captureStackTrace(skip int) []uintptr {
	pcs := make([]uintptr, maxStackDepth)
	n := runtime.Callers(skip, pcs)
	return pcs[:n]
}

// formatStackTrace renders program counters the way Go tracebacks do,
// dropping runtime frames and the checker's own frames.
func formatStackTrace(pcs []uintptr) string {
	if len(pcs) == 0 {
		return "  (no stack trace available)\n"
	}

	frames := runtime.CallersFrames(pcs)
	var buf strings.Builder

	for {
		frame, more := frames.Next()

		if !isInternalFrame(frame.Function) {
			fmt.Fprintf(&buf, "  %s()\n      %s:%d\n", frame.Function, frame.File, frame.Line)
		}

		if !more {
			break
		}
	}

	if buf.Len() == 0 {
		return "  (all frames filtered)\n"
	}
	return buf.String()
}

func isInternalFrame(fn string) bool {
	return strings.HasPrefix(fn, "runtime.") ||
		strings.Contains(fn, "/internal/confine/detector.(*Detector).") ||
		strings.Contains(fn, "/internal/confine/detector.NewViolationReport") ||
		strings.Contains(fn, "/internal/confine/shadow.(*Probe).Enter")
}

// Format writes the report in the style of the Go race detector:
//
//	==================
//	WARNING: CONFINEMENT VIOLATION
//	Getter name on Entity by goroutine 7
//	Home context: viewContext (queue, goroutine 5)
//	  main.worker()
//	      /path/to/file.go:25
//	==================
//
//nolint:errcheck // Error handling omitted for report formatting
func (r *ViolationReport) Format(w io.Writer) {
	fmt.Fprintf(w, "==================\n")
	fmt.Fprintf(w, "WARNING: CONFINEMENT VIOLATION\n")
	fmt.Fprintf(w, "%s %s on %s by goroutine %d\n",
		titleKind(r.Kind), r.Operation, r.Class, r.GoroutineID)
	fmt.Fprintf(w, "Home context: %s\n", r.Home)

	if len(r.StackTrace) > 0 {
		fmt.Fprint(w, formatStackTrace(r.StackTrace))
	} else {
		fmt.Fprintf(w, "  (no stack trace captured)\n")
	}

	fmt.Fprintf(w, "==================\n")
}

// String returns the formatted report.
func (r *ViolationReport) String() string {
	var buf strings.Builder
	r.Format(&buf)
	return buf.String()
}

func titleKind(k shadow.OpKind) string {
	s := k.String()
	return strings.ToUpper(s[:1]) + s[1:]
}

// ViolationError is the panic value used by PolicyPanic.
type ViolationError struct {
	Report *ViolationReport
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("confinement violation: %s.%s called from goroutine %d outside home context %s",
		e.Report.Class, e.Report.Operation, e.Report.GoroutineID, e.Report.Home)
}
