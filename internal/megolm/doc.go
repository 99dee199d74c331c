// Package megolm implements the group ratchet and the sessions built on it.
// The ratchet maps a 32-bit counter onto four 32-byte sub-ratchets advanced
// at staggered cadences, so a jump to any future counter costs at most 1026
// HMAC computations. Outbound sessions sign and encrypt group messages;
// inbound sessions keep both the earliest and the latest known ratchet so
// old-but-not-too-old indices stay decryptable.
package megolm
