// Package model is a minimal managed-object host: contexts that own a serial
// queue, objects affiliated with a context, and a release pool for deferred
// cleanup.
//
// It is not a persistence layer. Objects live in memory for as long as their
// context does.
package model
