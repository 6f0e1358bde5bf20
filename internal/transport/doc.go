// Package transport owns the boundary to the target machine.
//
// Ownership boundary:
// - the Transport interface the run loop drives (allocate, load, start,
//   barrier wait/signal, read back)
// - the in-memory implementation used by tests and dry runs
//
// Retry policy, routing of control messages and interpreter images are
// all the implementation's business; callers see errors unchanged.
package transport
