package crypto

import (
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"

	"olmcore/internal/domain"
)

// GenerateCurve25519 returns a fresh Curve25519 key pair drawn from random.
// The private key is clamped per RFC 7748.
func GenerateCurve25519(random io.Reader) (domain.Curve25519KeyPair, error) {
	var pair domain.Curve25519KeyPair
	if _, err := io.ReadFull(random, pair.Private[:]); err != nil {
		return pair, fmt.Errorf("generate curve25519 key: %w", domain.ErrNotEnoughRandom)
	}
	clamp(&pair.Private)
	pub, err := curve25519.X25519(pair.Private.Slice(), curve25519.Basepoint)
	if err != nil {
		return pair, err
	}
	copy(pair.Public[:], pub)
	return pair, nil
}

// DH computes the X25519 shared secret between priv and pub.
func DH(priv domain.Curve25519Private, pub domain.Curve25519Public) ([32]byte, error) {
	var out [32]byte
	secret, err := curve25519.X25519(priv.Slice(), pub.Slice())
	if err != nil {
		return out, err
	}
	copy(out[:], secret)
	return out, nil
}

func clamp(k *domain.Curve25519Private) {
	k[0] &= 248
	k[31] &= 127
	k[31] |= 64
}
