// Package session orchestrates a pairwise session: the triple
// Diffie-Hellman handshake on both ends, pre-key versus normal framing, and
// encrypt/decrypt over the owned double ratchet.
//
// Concurrency: a Session is not safe for concurrent use. Different sessions
// are independent.
package session
