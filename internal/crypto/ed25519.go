package crypto

import (
	"crypto/ed25519"
	"fmt"
	"io"

	"olmcore/internal/domain"
)

// GenerateEd25519 returns a fresh Ed25519 signing key pair drawn from random.
func GenerateEd25519(random io.Reader) (domain.Ed25519KeyPair, error) {
	var pair domain.Ed25519KeyPair
	pub, priv, err := ed25519.GenerateKey(random)
	if err != nil {
		return pair, fmt.Errorf("generate ed25519 key: %w", domain.ErrNotEnoughRandom)
	}
	copy(pair.Public[:], pub)
	copy(pair.Private[:], priv)
	return pair, nil
}

// Sign signs message with the pair's private key.
func Sign(pair domain.Ed25519KeyPair, message []byte) []byte {
	return ed25519.Sign(pair.Private.Slice(), message)
}

// Verify reports whether sig is a valid signature of message under pub.
func Verify(pub domain.Ed25519Public, message, sig []byte) bool {
	if len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(pub.Slice(), message, sig)
}
