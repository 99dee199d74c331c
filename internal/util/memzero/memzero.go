package memzero

import "crypto/subtle"

// Zero overwrites b with zeros. subtle.ConstantTimeCopy keeps the write from
// being elided by the compiler.
func Zero(b []byte) {
	if len(b) == 0 {
		return
	}
	zero := make([]byte, len(b))
	subtle.ConstantTimeCopy(1, b, zero)
}

// ZeroAll wipes every buffer in bufs.
func ZeroAll(bufs ...[]byte) {
	for _, b := range bufs {
		Zero(b)
	}
}
