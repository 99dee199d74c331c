package cipher

import (
	"bytes"
	"crypto/aes"
	stdcipher "crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"olmcore/internal/domain"
	"olmcore/internal/util/memzero"
)

const (
	keyLength = 32
	ivLength  = aes.BlockSize

	// MACLength is the truncated tag appended to wire messages.
	MACLength = 8
)

// AESSHA256 holds the derived key material for one input key. The zero value
// is not usable; call NewAESSHA256.
type AESSHA256 struct {
	aesKey [keyLength]byte
	macKey [keyLength]byte
	iv     [ivLength]byte
}

// NewAESSHA256 derives the AES key, HMAC key and IV from key using
// HKDF-SHA-256 with a zero salt and the given domain-separation info.
func NewAESSHA256(key, kdfInfo []byte) (*AESSHA256, error) {
	c := &AESSHA256{}
	r := hkdf.New(sha256.New, key, nil, kdfInfo)
	derived := make([]byte, 2*keyLength+ivLength)
	if _, err := io.ReadFull(r, derived); err != nil {
		return nil, fmt.Errorf("derive cipher keys: %w", err)
	}
	copy(c.aesKey[:], derived[:keyLength])
	copy(c.macKey[:], derived[keyLength:2*keyLength])
	copy(c.iv[:], derived[2*keyLength:])
	memzero.Zero(derived)
	return c, nil
}

// Encrypt CBC-encrypts plaintext with PKCS#7 padding and returns the
// ciphertext. The MAC is computed separately over the framed message.
func (c *AESSHA256) Encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(c.aesKey[:])
	if err != nil {
		return nil, err
	}
	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	stdcipher.NewCBCEncrypter(block, c.iv[:]).CryptBlocks(ciphertext, padded)
	memzero.Zero(padded)
	return ciphertext, nil
}

// Decrypt CBC-decrypts ciphertext and strips the PKCS#7 padding.
func (c *AESSHA256) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, domain.ErrBadMessageFormat
	}
	block, err := aes.NewCipher(c.aesKey[:])
	if err != nil {
		return nil, err
	}
	plaintext := make([]byte, len(ciphertext))
	stdcipher.NewCBCDecrypter(block, c.iv[:]).CryptBlocks(plaintext, ciphertext)
	unpadded, err := pkcs7Unpad(plaintext, aes.BlockSize)
	if err != nil {
		memzero.Zero(plaintext)
		return nil, err
	}
	return unpadded, nil
}

// MAC returns the full HMAC-SHA-256 of message under the derived MAC key.
// Wire messages keep the first MACLength bytes; pickles keep all of it.
func (c *AESSHA256) MAC(message []byte) []byte {
	h := hmac.New(sha256.New, c.macKey[:])
	h.Write(message)
	return h.Sum(nil)
}

// VerifyTruncatedMAC reports whether tag matches the first MACLength bytes
// of the MAC of message, in constant time.
func (c *AESSHA256) VerifyTruncatedMAC(message, tag []byte) bool {
	if len(tag) != MACLength {
		return false
	}
	return hmac.Equal(c.MAC(message)[:MACLength], tag)
}

// VerifyMAC reports whether tag matches the full MAC of message.
func (c *AESSHA256) VerifyMAC(message, tag []byte) bool {
	if len(tag) != sha256.Size {
		return false
	}
	return hmac.Equal(c.MAC(message), tag)
}

// Zero wipes the derived key material.
func (c *AESSHA256) Zero() {
	memzero.ZeroAll(c.aesKey[:], c.macKey[:], c.iv[:])
}

// EncryptedLength returns the ciphertext length for a plaintext of n bytes.
func EncryptedLength(n int) int {
	return aes.BlockSize * (n/aes.BlockSize + 1)
}

// EncryptOutputLength returns the ciphertext-plus-tag length for a plaintext
// of n bytes.
func EncryptOutputLength(n int) int {
	return EncryptedLength(n) + MACLength
}

func pkcs7Pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	return append(append([]byte{}, b...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte, blockSize int) ([]byte, error) {
	if len(b) == 0 || len(b)%blockSize != 0 {
		return nil, domain.ErrBadMessageFormat
	}
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize || n > len(b) {
		return nil, domain.ErrBadMessageFormat
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, domain.ErrBadMessageFormat
		}
	}
	return b[:len(b)-n], nil
}
