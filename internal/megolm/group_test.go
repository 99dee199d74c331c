package megolm_test

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"testing"

	"olmcore/internal/domain"
	"olmcore/internal/megolm"
)

func newGroupPair(t *testing.T) (*megolm.OutboundGroupSession, *megolm.InboundGroupSession) {
	t.Helper()
	outbound, err := megolm.NewOutboundGroupSession(rand.Reader)
	if err != nil {
		t.Fatalf("NewOutboundGroupSession: %v", err)
	}
	inbound, err := megolm.NewInboundGroupSession(outbound.SessionKey())
	if err != nil {
		t.Fatalf("NewInboundGroupSession: %v", err)
	}
	return outbound, inbound
}

func TestGroup_RoundTrip(t *testing.T) {
	outbound, inbound := newGroupPair(t)
	if outbound.ID() != inbound.ID() {
		t.Fatalf("session ids differ: %s vs %s", outbound.ID(), inbound.ID())
	}

	for i := 0; i < 5; i++ {
		want := fmt.Sprintf("group msg %d", i)
		raw, err := outbound.Encrypt([]byte(want))
		if err != nil {
			t.Fatalf("Encrypt: %v", err)
		}
		got, index, err := inbound.Decrypt(raw)
		if err != nil {
			t.Fatalf("Decrypt: %v", err)
		}
		if string(got) != want {
			t.Fatalf("got %q, want %q", got, want)
		}
		if index != uint32(i) {
			t.Fatalf("index = %d, want %d", index, i)
		}
	}
}

func TestGroup_OutOfOrder(t *testing.T) {
	outbound, inbound := newGroupPair(t)

	var raws [][]byte
	for i := 0; i < 6; i++ {
		raw, err := outbound.Encrypt([]byte(fmt.Sprintf("msg %d", i)))
		if err != nil {
			t.Fatalf("Encrypt: %v", err)
		}
		raws = append(raws, raw)
	}
	// Deliver newest first; earlier indices are reachable from the initial
	// ratchet even after the latest has moved past them.
	for i := len(raws) - 1; i >= 0; i-- {
		got, index, err := inbound.Decrypt(raws[i])
		if err != nil {
			t.Fatalf("Decrypt msg %d: %v", i, err)
		}
		if string(got) != fmt.Sprintf("msg %d", i) || index != uint32(i) {
			t.Fatalf("msg %d decoded as %q at %d", i, got, index)
		}
	}
}

func TestGroup_LateJoinerCannotReadBackwards(t *testing.T) {
	outbound, err := megolm.NewOutboundGroupSession(rand.Reader)
	if err != nil {
		t.Fatalf("NewOutboundGroupSession: %v", err)
	}
	early, err := outbound.Encrypt([]byte("before the join"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	// Join at index 1: index 0 is before the initial ratchet.
	inbound, err := megolm.NewInboundGroupSession(outbound.SessionKey())
	if err != nil {
		t.Fatalf("NewInboundGroupSession: %v", err)
	}
	if inbound.FirstKnownIndex() != 1 {
		t.Fatalf("FirstKnownIndex = %d, want 1", inbound.FirstKnownIndex())
	}
	if _, _, err := inbound.Decrypt(early); !errors.Is(err, domain.ErrUnknownMessageIndex) {
		t.Fatalf("err = %v, want ErrUnknownMessageIndex", err)
	}

	late, err := outbound.Encrypt([]byte("after the join"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	got, index, err := inbound.Decrypt(late)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if string(got) != "after the join" || index != 1 {
		t.Fatalf("got %q at %d", got, index)
	}
}

func TestGroup_SignatureTamperRejected(t *testing.T) {
	outbound, inbound := newGroupPair(t)
	raw, err := outbound.Encrypt([]byte("authentic"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	frame := make([]byte, base64.RawStdEncoding.DecodedLen(len(raw)))
	if _, err := base64.RawStdEncoding.Decode(frame, raw); err != nil {
		t.Fatalf("Decode: %v", err)
	}

	// Flip a bit inside the signature.
	frame[len(frame)-1] ^= 0x01
	tampered := make([]byte, base64.RawStdEncoding.EncodedLen(len(frame)))
	base64.RawStdEncoding.Encode(tampered, frame)
	if _, _, err := inbound.Decrypt(tampered); !errors.Is(err, domain.ErrBadSignature) {
		t.Fatalf("err = %v, want ErrBadSignature", err)
	}

	// Strip the signature entirely.
	stripped := make([]byte, base64.RawStdEncoding.EncodedLen(len(frame)-64))
	base64.RawStdEncoding.Encode(stripped, frame[:len(frame)-64])
	if _, _, err := inbound.Decrypt(stripped); err == nil {
		t.Fatal("signature-stripped message decrypted")
	}

	// The untampered message still decrypts: nothing advanced.
	if got, _, err := inbound.Decrypt(raw); err != nil || string(got) != "authentic" {
		t.Fatalf("Decrypt after rejects: %q, %v", got, err)
	}
}

func TestGroup_MACTamperRejected(t *testing.T) {
	outbound, inbound := newGroupPair(t)
	raw, err := outbound.Encrypt([]byte("authentic"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	frame := make([]byte, base64.RawStdEncoding.DecodedLen(len(raw)))
	if _, err := base64.RawStdEncoding.Decode(frame, raw); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	// A tampered MAC invalidates the signature as well, so resign is not
	// possible without the key; what reaches the MAC check must fail it.
	// Here we only assert the frame no longer decrypts.
	frame[len(frame)-70] ^= 0x01 // inside the 8-byte MAC
	tampered := make([]byte, base64.RawStdEncoding.EncodedLen(len(frame)))
	base64.RawStdEncoding.Encode(tampered, frame)
	if _, _, err := inbound.Decrypt(tampered); err == nil {
		t.Fatal("MAC-tampered message decrypted")
	}
}

func TestGroup_InvalidBase64(t *testing.T) {
	_, inbound := newGroupPair(t)
	if _, _, err := inbound.Decrypt([]byte("!!!")); !errors.Is(err, domain.ErrInvalidBase64) {
		t.Fatalf("err = %v, want ErrInvalidBase64", err)
	}
}

func TestGroup_SessionKeyTamperRejected(t *testing.T) {
	outbound, err := megolm.NewOutboundGroupSession(rand.Reader)
	if err != nil {
		t.Fatalf("NewOutboundGroupSession: %v", err)
	}
	key := outbound.SessionKey()
	raw := make([]byte, base64.RawStdEncoding.DecodedLen(len(key)))
	if _, err := base64.RawStdEncoding.Decode(raw, key); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	raw[10] ^= 0x01
	tampered := make([]byte, base64.RawStdEncoding.EncodedLen(len(raw)))
	base64.RawStdEncoding.Encode(tampered, raw)
	if _, err := megolm.NewInboundGroupSession(tampered); !errors.Is(err, domain.ErrBadSignature) {
		t.Fatalf("err = %v, want ErrBadSignature", err)
	}
}

func TestGroup_ExportImport(t *testing.T) {
	outbound, inbound := newGroupPair(t)

	var raws [][]byte
	for i := 0; i < 4; i++ {
		raw, err := outbound.Encrypt([]byte(fmt.Sprintf("msg %d", i)))
		if err != nil {
			t.Fatalf("Encrypt: %v", err)
		}
		raws = append(raws, raw)
	}

	exported, err := inbound.Export(2)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	imported, err := megolm.ImportInboundGroupSession(exported)
	if err != nil {
		t.Fatalf("ImportInboundGroupSession: %v", err)
	}
	if imported.FirstKnownIndex() != 2 {
		t.Fatalf("FirstKnownIndex = %d, want 2", imported.FirstKnownIndex())
	}
	if imported.SigningKeyVerified {
		t.Fatal("unsigned export marked as verified")
	}

	// Index 2 and later decrypt; index 1 is out of reach.
	for i := 2; i < 4; i++ {
		got, _, err := imported.Decrypt(raws[i])
		if err != nil || string(got) != fmt.Sprintf("msg %d", i) {
			t.Fatalf("msg %d: %q, %v", i, got, err)
		}
	}
	if _, _, err := imported.Decrypt(raws[1]); !errors.Is(err, domain.ErrUnknownMessageIndex) {
		t.Fatalf("err = %v, want ErrUnknownMessageIndex", err)
	}

	// Plain init accepts only the signed sharing blob, so the unsigned
	// export blob is rejected.
	if _, err := megolm.NewInboundGroupSession(exported); !errors.Is(err, domain.ErrBadSessionKey) {
		t.Fatalf("err = %v, want ErrBadSessionKey", err)
	}
}

func TestGroup_ExportBeforeFirstKnownIndex(t *testing.T) {
	outbound, err := megolm.NewOutboundGroupSession(rand.Reader)
	if err != nil {
		t.Fatalf("NewOutboundGroupSession: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := outbound.Encrypt([]byte("x")); err != nil {
			t.Fatalf("Encrypt: %v", err)
		}
	}
	inbound, err := megolm.NewInboundGroupSession(outbound.SessionKey())
	if err != nil {
		t.Fatalf("NewInboundGroupSession: %v", err)
	}
	if _, err := inbound.Export(1); !errors.Is(err, domain.ErrUnknownMessageIndex) {
		t.Fatalf("err = %v, want ErrUnknownMessageIndex", err)
	}
}

func TestGroup_PickleRoundTrip(t *testing.T) {
	outbound, inbound := newGroupPair(t)
	if _, err := outbound.Encrypt([]byte("before pickling")); err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	key := []byte("group pickle key")

	pickledOut, err := outbound.Pickle(key)
	if err != nil {
		t.Fatalf("Pickle: %v", err)
	}
	restoredOut, err := megolm.UnpickleOutboundGroupSession(key, pickledOut)
	if err != nil {
		t.Fatalf("UnpickleOutboundGroupSession: %v", err)
	}
	if restoredOut.ID() != outbound.ID() || restoredOut.MessageIndex() != outbound.MessageIndex() {
		t.Fatal("outbound pickle round trip mismatch")
	}

	pickledIn, err := inbound.Pickle(key)
	if err != nil {
		t.Fatalf("Pickle: %v", err)
	}
	restoredIn, err := megolm.UnpickleInboundGroupSession(key, pickledIn)
	if err != nil {
		t.Fatalf("UnpickleInboundGroupSession: %v", err)
	}

	// Cross-check: a message from the restored outbound decrypts on the
	// restored inbound.
	raw, err := restoredOut.Encrypt([]byte("after pickling"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	got, index, err := restoredIn.Decrypt(raw)
	if err != nil || string(got) != "after pickling" || index != 1 {
		t.Fatalf("Decrypt: %q at %d, %v", got, index, err)
	}

	if _, err := megolm.UnpickleInboundGroupSession([]byte("wrong"), pickledIn); !errors.Is(err, domain.ErrBadAccountKey) {
		t.Fatalf("err = %v, want ErrBadAccountKey", err)
	}
}
