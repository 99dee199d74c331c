package pickle_test

import (
	"bytes"
	"errors"
	"testing"

	"olmcore/internal/domain"
	"olmcore/internal/pickle"
)

func TestCodec_RoundTrip(t *testing.T) {
	e := pickle.NewEncoder()
	e.WriteUInt32(1)
	e.WriteBool(true)
	e.WriteBool(false)
	e.WriteUInt8(0xAB)
	e.Write([]byte{1, 2, 3, 4})
	e.WriteEmptyBytes(3)

	d := pickle.NewDecoder(e.Bytes())
	if v, err := d.ReadUInt32(); err != nil || v != 1 {
		t.Fatalf("ReadUInt32 = %d, %v", v, err)
	}
	if v, err := d.ReadBool(); err != nil || !v {
		t.Fatalf("ReadBool = %v, %v", v, err)
	}
	if v, err := d.ReadBool(); err != nil || v {
		t.Fatalf("ReadBool = %v, %v", v, err)
	}
	if v, err := d.ReadUInt8(); err != nil || v != 0xAB {
		t.Fatalf("ReadUInt8 = %x, %v", v, err)
	}
	if b, err := d.ReadBytes(4); err != nil || !bytes.Equal(b, []byte{1, 2, 3, 4}) {
		t.Fatalf("ReadBytes = %x, %v", b, err)
	}
	if b, err := d.ReadBytes(3); err != nil || !bytes.Equal(b, []byte{0, 0, 0}) {
		t.Fatalf("ReadBytes = %x, %v", b, err)
	}
	if d.Remaining() != 0 {
		t.Fatalf("Remaining = %d, want 0", d.Remaining())
	}
}

func TestCodec_BigEndian(t *testing.T) {
	e := pickle.NewEncoder()
	e.WriteUInt32(0x01020304)
	if !bytes.Equal(e.Bytes(), []byte{1, 2, 3, 4}) {
		t.Fatalf("layout = %x, want 01020304", e.Bytes())
	}
}

func TestCodec_ShortRead(t *testing.T) {
	d := pickle.NewDecoder([]byte{1, 2})
	if _, err := d.ReadUInt32(); !errors.Is(err, domain.ErrCorruptedPickle) {
		t.Fatalf("err = %v, want ErrCorruptedPickle", err)
	}
}

func TestSealOpen_RoundTrip(t *testing.T) {
	key := []byte("correct horse battery staple")
	raw := []byte("raw pickle layout bytes")

	sealed, err := pickle.Seal(key, raw)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	got, err := pickle.Open(key, sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(got, raw) {
		t.Fatalf("round trip mismatch: got %x, want %x", got, raw)
	}
}

func TestOpen_WrongKey(t *testing.T) {
	sealed, err := pickle.Seal([]byte("right key"), []byte("state"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if _, err := pickle.Open([]byte("wrong key"), sealed); !errors.Is(err, domain.ErrBadAccountKey) {
		t.Fatalf("err = %v, want ErrBadAccountKey", err)
	}
}

func TestOpen_Tampered(t *testing.T) {
	key := []byte("key")
	sealed, err := pickle.Seal(key, []byte("state"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	// Corrupt one base64 character; either the encoding or the MAC breaks.
	sealed[0] ^= 0x02
	if _, err := pickle.Open(key, sealed); err == nil {
		t.Fatal("tampered pickle opened")
	}
}

func TestOpen_InvalidBase64(t *testing.T) {
	if _, err := pickle.Open([]byte("key"), []byte("!!! not base64 !!!")); !errors.Is(err, domain.ErrInvalidBase64) {
		t.Fatalf("err = %v, want ErrInvalidBase64", err)
	}
}

func TestOpen_TooShort(t *testing.T) {
	if _, err := pickle.Open([]byte("key"), []byte("AAAA")); !errors.Is(err, domain.ErrCorruptedPickle) {
		t.Fatalf("err = %v, want ErrCorruptedPickle", err)
	}
}
