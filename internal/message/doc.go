// Package message encodes and decodes the compact tag-length-value wire
// formats: normal ratchet messages, pre-key handshake envelopes and group
// messages. Decoders are total: malformed input yields a format error and
// never panics, and unknown fields are skipped.
package message
