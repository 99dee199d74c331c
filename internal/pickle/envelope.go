package pickle

import (
	"crypto/sha256"
	"encoding/base64"

	"olmcore/internal/cipher"
	"olmcore/internal/domain"
	"olmcore/internal/util/memzero"
)

// kdfInfo is the domain separation for the container's key derivation.
var kdfInfo = []byte("Pickle")

// Seal encrypts a raw pickle layout under key and returns the unpadded
// base64 container: AES-256-CBC ciphertext followed by a full HMAC-SHA-256
// over the ciphertext.
func Seal(key, raw []byte) ([]byte, error) {
	c, err := cipher.NewAESSHA256(key, kdfInfo)
	if err != nil {
		return nil, err
	}
	defer c.Zero()
	ciphertext, err := c.Encrypt(raw)
	if err != nil {
		return nil, err
	}
	sealed := append(ciphertext, c.MAC(ciphertext)...)
	out := make([]byte, base64.RawStdEncoding.EncodedLen(len(sealed)))
	base64.RawStdEncoding.Encode(out, sealed)
	return out, nil
}

// Open is the inverse of Seal: base64-decode, verify the MAC in constant
// time, decrypt. A MAC mismatch means the wrong key or a tampered blob.
func Open(key, pickled []byte) ([]byte, error) {
	sealed := make([]byte, base64.RawStdEncoding.DecodedLen(len(pickled)))
	if _, err := base64.RawStdEncoding.Decode(sealed, pickled); err != nil {
		return nil, domain.ErrInvalidBase64
	}
	if len(sealed) < sha256.Size {
		return nil, domain.ErrCorruptedPickle
	}
	c, err := cipher.NewAESSHA256(key, kdfInfo)
	if err != nil {
		return nil, err
	}
	defer c.Zero()
	ciphertext := sealed[:len(sealed)-sha256.Size]
	tag := sealed[len(sealed)-sha256.Size:]
	if !c.VerifyMAC(ciphertext, tag) {
		return nil, domain.ErrBadAccountKey
	}
	raw, err := c.Decrypt(ciphertext)
	if err != nil {
		memzero.Zero(sealed)
		return nil, domain.ErrCorruptedPickle
	}
	return raw, nil
}
