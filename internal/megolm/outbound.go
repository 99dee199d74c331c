package megolm

import (
	"encoding/base64"
	"encoding/binary"
	"io"

	"olmcore/internal/cipher"
	"olmcore/internal/crypto"
	"olmcore/internal/domain"
	"olmcore/internal/domain/types"
	"olmcore/internal/message"
	"olmcore/internal/pickle"
	"olmcore/internal/util/memzero"
)

const outboundPickleVersion uint32 = 1

// OutboundGroupSession encrypts and signs messages for one group sender.
type OutboundGroupSession struct {
	Ratchet    *Ratchet
	SigningKey types.Ed25519KeyPair
}

// NewOutboundGroupSession seeds a fresh ratchet at counter 0 and generates
// the Ed25519 signing key, both from random.
func NewOutboundGroupSession(random io.Reader) (*OutboundGroupSession, error) {
	ratchet, err := NewRandom(random)
	if err != nil {
		return nil, err
	}
	signingKey, err := crypto.GenerateEd25519(random)
	if err != nil {
		return nil, err
	}
	return &OutboundGroupSession{Ratchet: ratchet, SigningKey: signingKey}, nil
}

// ID identifies the session: the base64 of its signing public key.
func (s *OutboundGroupSession) ID() string {
	return base64.RawStdEncoding.EncodeToString(s.SigningKey.Public[:])
}

// MessageIndex is the index the next Encrypt will use.
func (s *OutboundGroupSession) MessageIndex() uint32 {
	return s.Ratchet.Counter
}

// SessionKey exports the current ratchet in the signed sharing format:
// version, counter, ratchet data, signing public key, signature; base64
// encoded. A recipient holding it can decrypt from the current index on.
func (s *OutboundGroupSession) SessionKey() []byte {
	key := make([]byte, 0, sharingLength)
	key = append(key, sharingVersion)
	key = binary.BigEndian.AppendUint32(key, s.Ratchet.Counter)
	key = append(key, s.Ratchet.Data[:]...)
	key = append(key, s.SigningKey.Public[:]...)
	key = append(key, crypto.Sign(s.SigningKey, key)...)

	out := make([]byte, base64.RawStdEncoding.EncodedLen(len(key)))
	base64.RawStdEncoding.Encode(out, key)
	memzero.Zero(key)
	return out
}

// Encrypt encrypts plaintext at the current index, signs the frame and
// advances the ratchet. The output is base64 encoded.
func (s *OutboundGroupSession) Encrypt(plaintext []byte) ([]byte, error) {
	c, err := cipher.NewAESSHA256(s.Ratchet.Data[:], CipherKDFInfo)
	if err != nil {
		return nil, err
	}
	defer c.Zero()

	ciphertext, err := c.Encrypt(plaintext)
	if err != nil {
		return nil, err
	}
	msg := &message.GroupMessage{
		Version:      message.Version,
		MessageIndex: s.Ratchet.Counter,
		Ciphertext:   ciphertext,
	}
	frame, err := msg.EncodeAndMACAndSign(c, s.SigningKey)
	if err != nil {
		return nil, err
	}
	s.Ratchet.Advance()

	out := make([]byte, base64.RawStdEncoding.EncodedLen(len(frame)))
	base64.RawStdEncoding.Encode(out, frame)
	return out, nil
}

// Zero wipes the session.
func (s *OutboundGroupSession) Zero() {
	if s.Ratchet != nil {
		s.Ratchet.Zero()
	}
	memzero.Zero(s.SigningKey.Private[:])
	*s = OutboundGroupSession{}
}

// Pickle serializes the session and seals it under key.
func (s *OutboundGroupSession) Pickle(key []byte) ([]byte, error) {
	e := pickle.NewEncoder()
	e.WriteUInt32(outboundPickleVersion)
	s.Ratchet.PickleTo(e)
	e.Write(s.SigningKey.Public[:])
	e.Write(s.SigningKey.Private[:])
	sealed, err := pickle.Seal(key, e.Bytes())
	memzero.Zero(e.Bytes())
	return sealed, err
}

// UnpickleOutboundGroupSession opens pickled under key and restores the
// session.
func UnpickleOutboundGroupSession(key, pickled []byte) (*OutboundGroupSession, error) {
	raw, err := pickle.Open(key, pickled)
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(raw)

	d := pickle.NewDecoder(raw)
	version, err := d.ReadUInt32()
	if err != nil {
		return nil, err
	}
	if version != outboundPickleVersion {
		return nil, domain.ErrUnknownPickleVersion
	}
	s := &OutboundGroupSession{Ratchet: &Ratchet{}}
	if err := s.Ratchet.UnpickleFrom(d); err != nil {
		return nil, err
	}
	pub, err := d.ReadBytes(types.KeyLength)
	if err != nil {
		return nil, err
	}
	copy(s.SigningKey.Public[:], pub)
	priv, err := d.ReadBytes(2 * types.KeyLength)
	if err != nil {
		return nil, err
	}
	copy(s.SigningKey.Private[:], priv)
	if d.Remaining() != 0 {
		return nil, domain.ErrCorruptedPickle
	}
	return s, nil
}
