// Package crypto wraps the elliptic-curve primitives the protocol engine is
// built on: Curve25519 key agreement and Ed25519 signing. Key generation
// always draws from a caller-supplied entropy source; nothing in this
// package reads a global RNG.
package crypto
