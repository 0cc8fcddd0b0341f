// Package transport moves whole protocol frames over one stream
// connection, plaintext or TLS.
//
// Ownership boundary:
// - per-exchange connection acquisition (Dialer)
// - exact-length reads and framed receive
// - certificate trust policy
// - portable classification of transport faults
package transport
