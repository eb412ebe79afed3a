// Package execctx implements execution contexts: the confinement domains that
// managed objects are affiliated with.
//
// A Context answers a single question for the checker: is the calling
// goroutine executing inside this domain right now? Two implementations are
// provided:
//   - Bound: a context pinned to the goroutine that created it (the classic
//     "main thread" confinement)
//   - Queue: a serial queue backed by one worker goroutine; work submitted with
//     Perform or PerformAndWait runs inside the context
//
// Goroutine identity comes from github.com/petermattis/goid. The slow
// runtime.Stack parser is kept as a cross-check for tests and for platforms
// where the fast path is unavailable.
package execctx
