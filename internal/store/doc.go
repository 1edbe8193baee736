// Package store holds the search state and the single-writer loop that
// applies intents to it.
//
// A Store is constructed explicitly with New; there is no package-level
// instance. Views call Dispatch and read State or Subscribe. Effects such as
// the search pipeline receive every processed intent and dispatch their
// outcomes back into the same store.
//
// Production code drives the loop with Run in its own goroutine.
// Deterministic drivers (tests, the scenario harness) call Drain instead.
package store
