// Package detector implements the affiliation check run by every probe.
//
// The Detector decides whether an intercepted call is a confinement
// violation and reports it:
//
//  1. If the object has no home context, or the caller runs inside it, the
//     call is legal.
//  2. If a suppression window is open, the call is legal.
//  3. Otherwise the violation is counted, logged once per deduplication key,
//     and handed to the failure handler (every time, never deduplicated).
//
// Detection is observational by default: after reporting, the original
// operation still runs. PolicyPanic turns violations into panics for test
// suites that want a hard failure at the offending call site.
package detector
