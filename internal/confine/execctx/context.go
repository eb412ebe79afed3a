package execctx

import (
	"fmt"
)

// Context is a confinement domain.
//
// Implementations must be safe for concurrent use: IsCurrent is called from
// arbitrary goroutines on every intercepted operation.
type Context interface {
	// IsCurrent reports whether the calling goroutine executes inside
	// this context.
	IsCurrent() bool

	// String returns a human-readable name used in violation reports.
	String() string
}

// Bound is a Context pinned to a single goroutine.
//
// It is immutable after creation.
type Bound struct {
	name string
	gid  int64
}

// Bind returns a Context affiliated with the calling goroutine.
//
// Example:
//
//	func main() {
//		mainCtx := execctx.Bind("main")
//		obj.SetHomeContext(mainCtx) // obj may now only be touched from main
//	}
func Bind(name string) *Bound {
	return &Bound{name: name, gid: CurrentGoroutineID()}
}

// IsCurrent reports whether the caller runs on the bound goroutine.
func (b *Bound) IsCurrent() bool {
	return CurrentGoroutineID() == b.gid
}

// GoroutineID returns the ID of the goroutine this context is bound to.
func (b *Bound) GoroutineID() int64 {
	return b.gid
}

func (b *Bound) String() string {
	return fmt.Sprintf("%s (goroutine %d)", b.name, b.gid)
}
