// Package confine detects access to managed objects from outside the
// execution context they are affiliated with.
//
// A managed object belongs to one execution context: a serial queue or a
// single goroutine. Touching it from anywhere else is a latent data race that
// usually goes unnoticed until production. confine wraps every declared
// operation of an instrumented class with a check that fires a failure
// handler the moment that happens.
//
// # Quick Start
//
// Entities are wrapped by code generated with cmd/confinegen. By hand:
//
//	var EntityClass = confine.NewClass("Entity", nil,
//		confine.Operation{Name: "name", Kind: confine.Getter},
//	)
//
//	func (w *checkedEntity) Name() string {
//		w.name.Enter(w.inner) // affiliation check
//		return w.inner.Name() // original behavior, unchanged
//	}
//
//	func main() {
//		confine.SetFailureHandler(func(op string) {
//			log.Printf("confinement violation in %s", op)
//		})
//		// ...
//	}
//
// # Suppression Windows
//
// Deferred cleanup that legitimately runs elsewhere is bracketed. A window
// covers only the goroutine that opened it:
//
//	confine.BeginTrackingSuppressionWindow()
//	defer confine.EndTrackingSuppressionWindow()
//
// or, releasing the window on every exit path:
//
//	confine.Suppress(releaseCaches)
//
// # Build Mode
//
// The checker is compiled in by default. Building with
//
//	go build -tags noconfine
//
// sets [Enabled] to false: every entry point becomes a no-op, no shadow
// variant is ever synthesized, and generated wrappers hand out the
// unchecked objects directly.
//
// # Report, Don't Block
//
// A violation is reported and then the operation runs normally. Set
// CONFINE_POLICY=panic before [Init] (or call [SetPolicy]) to abort at the offending call
// site instead.
package confine
