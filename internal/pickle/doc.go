// Package pickle serializes session state in a fixed big-endian, length-free
// byte layout and wraps it in an encrypted, authenticated container keyed by
// a user-supplied key. The container is what crosses process boundaries;
// the raw layout is never exposed.
package pickle
