package crypto_test

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"
	"testing"

	"olmcore/internal/crypto"
	"olmcore/internal/domain"
)

// fixedReader hands out a fixed byte string as entropy.
type fixedReader struct {
	data []byte
}

func (r *fixedReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func mustDecodeHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("DecodeString(%q): %v", s, err)
	}
	return b
}

func TestGenerateCurve25519_KnownVector(t *testing.T) {
	// RFC 7748 test vector: Alice's private key and the matching public key.
	priv := mustDecodeHex(t, "77076d0a7318a57d3c16c17251b26645df4c2f87ebc0992ab177fba51db92c2a")
	wantPub := mustDecodeHex(t, "8520f0098930a754748b7ddcb43ef75a0dbf3a0d26381af4eba4a98eaa9b4e6a")

	pair, err := crypto.GenerateCurve25519(&fixedReader{data: priv})
	if err != nil {
		t.Fatalf("GenerateCurve25519: %v", err)
	}
	if !bytes.Equal(pair.Public[:], wantPub) {
		t.Fatalf("public key = %x, want %x", pair.Public[:], wantPub)
	}
}

func TestGenerateCurve25519_ShortEntropy(t *testing.T) {
	_, err := crypto.GenerateCurve25519(&fixedReader{data: []byte{1, 2, 3}})
	if err == nil {
		t.Fatal("expected error for short entropy")
	}
}

func TestDH_Agreement(t *testing.T) {
	a, err := crypto.GenerateCurve25519(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateCurve25519: %v", err)
	}
	b, err := crypto.GenerateCurve25519(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateCurve25519: %v", err)
	}

	ab, err := crypto.DH(a.Private, b.Public)
	if err != nil {
		t.Fatalf("DH: %v", err)
	}
	ba, err := crypto.DH(b.Private, a.Public)
	if err != nil {
		t.Fatalf("DH: %v", err)
	}
	if ab != ba {
		t.Fatalf("shared secrets differ: %x vs %x", ab, ba)
	}
}

func TestEd25519_SignVerify(t *testing.T) {
	pair, err := crypto.GenerateEd25519(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateEd25519: %v", err)
	}
	msg := []byte("group message frame")
	sig := crypto.Sign(pair, msg)
	if !crypto.Verify(pair.Public, msg, sig) {
		t.Fatal("signature did not verify")
	}
	sig[0] ^= 0x01
	if crypto.Verify(pair.Public, msg, sig) {
		t.Fatal("tampered signature verified")
	}
	if crypto.Verify(pair.Public, msg, sig[:10]) {
		t.Fatal("truncated signature verified")
	}
}

func TestErrorsWrapTaxonomy(t *testing.T) {
	_, err := crypto.GenerateCurve25519(&fixedReader{})
	if !errors.Is(err, domain.ErrNotEnoughRandom) {
		t.Fatalf("err = %v, want ErrNotEnoughRandom", err)
	}
}
