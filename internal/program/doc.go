// Package program builds instruction streams for the on-chip traffic
// interpreter.
//
// Ownership boundary:
// - opcode values and instruction word layout
// - the diff-based stream builder (parameter instructions are emitted
//   only when the target register value actually changes)
// - router wait-time pseudo-float encoding
// - stream framing (little-endian words behind a self-length prefix)
//
// The builder owns a shadow copy of every interpreter register it can
// write. Callers restate the full desired state each phase; the wire
// stream carries only the deltas.
package program
