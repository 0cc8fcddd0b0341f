// Package protocol owns the vault wire contract.
//
// Ownership boundary:
// - message value type (direction, ordered headers, body)
// - byte-level encode/decode of one frame
//
// The package performs no I/O; frame reassembly over a stream lives in
// internal/transport.
package protocol
