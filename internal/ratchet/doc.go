// Package ratchet implements the pairwise double ratchet: a root chain
// advanced by fresh Curve25519 outputs, one sending chain, a bounded set of
// receiving chains and a bounded cache of skipped message keys for
// out-of-order delivery.
//
// Decryption is transactional: no chain state advances and no skipped key is
// stored until the message MAC has verified.
//
// Concurrency: a Ratchet is not safe for concurrent use. Callers serialise
// access per session.
package ratchet
