package types

// Key and signature sizes shared across the protocol.
const (
	KeyLength          = 32
	SignatureLength    = 64
	SHA256OutputLength = 32
)

// Curve25519Public is a Curve25519 public key.
type Curve25519Public [KeyLength]byte

// Slice returns the key as a []byte.
func (p Curve25519Public) Slice() []byte { return p[:] }

// Equal reports byte equality with o.
func (p Curve25519Public) Equal(o Curve25519Public) bool { return p == o }

// Curve25519Private is a Curve25519 private key.
type Curve25519Private [KeyLength]byte

// Slice returns the key as a []byte.
func (k Curve25519Private) Slice() []byte { return k[:] }

// Curve25519KeyPair holds a Curve25519 key pair.
type Curve25519KeyPair struct {
	Public  Curve25519Public
	Private Curve25519Private
}

// Ed25519Public is an Ed25519 signing public key.
type Ed25519Public [KeyLength]byte

// Slice returns the key as a []byte.
func (p Ed25519Public) Slice() []byte { return p[:] }

// Ed25519Private is an Ed25519 signing private key in the extended
// seed-plus-public form used by the signing scheme.
type Ed25519Private [2 * KeyLength]byte

// Slice returns the key as a []byte.
func (k Ed25519Private) Slice() []byte { return k[:] }

// Ed25519KeyPair holds an Ed25519 signing key pair.
type Ed25519KeyPair struct {
	Public  Ed25519Public
	Private Ed25519Private
}
