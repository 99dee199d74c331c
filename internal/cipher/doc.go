// Package cipher implements the authenticated encryption construction used
// for message bodies and pickled state: HKDF-SHA-256 expands a single input
// key into an AES-256 key, an HMAC-SHA-256 key and a CBC IV; plaintexts are
// padded with PKCS#7 and the MAC covers the framed message.
package cipher
