// Package preflight validates the runtime environment before a worker is
// spawned. A failed check is a configuration problem reported to the
// operator up front, never a mid-run extraction failure.
package preflight
