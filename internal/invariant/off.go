//go:build !invariants

package invariant

// Enabled reports whether expensive representation checks are compiled in.
// Build with -tags invariants to turn them on.
const Enabled = false
