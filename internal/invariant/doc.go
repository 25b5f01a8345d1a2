// Package invariant switches representation-invariant checks on and off at
// build time. Checks guarded by Enabled are programming-error assertions: a
// violation panics, and release builds skip them entirely.
package invariant
