//go:build invariants

package invariant

// Enabled reports whether expensive representation checks are compiled in.
const Enabled = true
