// Package store persists pickled protocol state under a home directory.
// Blobs are already encrypted by the pickle container; the store's job is
// atomic file handling and turning a passphrase into the container key via
// a per-store scrypt salt.
package store
