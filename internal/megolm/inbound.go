package megolm

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"olmcore/internal/cipher"
	"olmcore/internal/crypto"
	"olmcore/internal/domain"
	"olmcore/internal/domain/types"
	"olmcore/internal/message"
	"olmcore/internal/pickle"
	"olmcore/internal/util/memzero"
)

const inboundPickleVersion uint32 = 1

// InboundGroupSession decrypts messages from one group sender. It keeps the
// earliest ratchet it was given, so indices at or after that point remain
// decryptable, and the latest ratchet observed, so in-order traffic costs no
// recomputation.
type InboundGroupSession struct {
	InitialRatchet *Ratchet
	LatestRatchet  *Ratchet

	SigningKey types.Ed25519Public

	// SigningKeyVerified records whether the signing key arrived in a
	// signed sharing blob or an unsigned export.
	SigningKeyVerified bool
}

// NewInboundGroupSession creates a session from a signed session-key blob as
// produced by OutboundGroupSession.SessionKey.
func NewInboundGroupSession(sessionKey []byte) (*InboundGroupSession, error) {
	return initInbound(sessionKey, false)
}

// ImportInboundGroupSession creates a session from either a signed sharing
// blob or an unsigned export blob.
func ImportInboundGroupSession(sessionKey []byte) (*InboundGroupSession, error) {
	return initInbound(sessionKey, true)
}

func initInbound(sessionKey []byte, allowExport bool) (*InboundGroupSession, error) {
	raw := make([]byte, base64.RawStdEncoding.DecodedLen(len(sessionKey)))
	if _, err := base64.RawStdEncoding.Decode(raw, sessionKey); err != nil {
		return nil, domain.ErrInvalidBase64
	}
	defer memzero.Zero(raw)

	if len(raw) < 1 {
		return nil, domain.ErrBadSessionKey
	}
	signed := false
	switch raw[0] {
	case sharingVersion:
		if len(raw) != sharingLength {
			return nil, domain.ErrBadSessionKey
		}
		signed = true
	case exportVersion:
		if !allowExport || len(raw) != exportLength {
			return nil, domain.ErrBadSessionKey
		}
	default:
		return nil, domain.ErrBadSessionKey
	}

	counter := binary.BigEndian.Uint32(raw[1:5])
	seed := raw[5 : 5+RatchetLength]

	s := &InboundGroupSession{}
	copy(s.SigningKey[:], raw[5+RatchetLength:5+RatchetLength+types.KeyLength])

	if signed {
		body := raw[:sharingLength-types.SignatureLength]
		sig := raw[sharingLength-types.SignatureLength:]
		if !crypto.Verify(s.SigningKey, body, sig) {
			return nil, domain.ErrBadSignature
		}
		s.SigningKeyVerified = true
	}

	initial, err := New(counter, seed)
	if err != nil {
		return nil, err
	}
	latest, err := New(counter, seed)
	if err != nil {
		return nil, err
	}
	s.InitialRatchet = initial
	s.LatestRatchet = latest
	return s, nil
}

// ID identifies the session: the base64 of the sender's signing public key.
func (s *InboundGroupSession) ID() string {
	return base64.RawStdEncoding.EncodeToString(s.SigningKey[:])
}

// FirstKnownIndex is the earliest message index this session can decrypt.
func (s *InboundGroupSession) FirstKnownIndex() uint32 {
	return s.InitialRatchet.Counter
}

// Decrypt verifies and decrypts a base64 group message and returns the
// plaintext with its message index. Session state advances only when the
// message authenticates.
func (s *InboundGroupSession) Decrypt(input []byte) ([]byte, uint32, error) {
	raw := make([]byte, base64.RawStdEncoding.DecodedLen(len(input)))
	if _, err := base64.RawStdEncoding.Decode(raw, input); err != nil {
		return nil, 0, domain.ErrInvalidBase64
	}

	msg := &message.GroupMessage{}
	if err := msg.Decode(raw); err != nil {
		return nil, 0, err
	}
	if msg.Version != message.Version {
		return nil, 0, domain.ErrBadMessageVersion
	}
	if !msg.HasMessageIndex || len(msg.Ciphertext) == 0 {
		return nil, 0, domain.ErrBadMessageFormat
	}
	if !msg.VerifySignature(s.SigningKey, raw) {
		return nil, 0, domain.ErrBadSignature
	}

	// Pick a starting ratchet: the latest when the index is at or past it,
	// otherwise a scratch copy of the initial, unless the index predates
	// even that. Comparisons are wrap-aware.
	var scratch Ratchet
	if msg.MessageIndex-s.LatestRatchet.Counter < 1<<31 {
		scratch = *s.LatestRatchet
	} else if msg.MessageIndex-s.InitialRatchet.Counter >= 1<<31 {
		return nil, 0, fmt.Errorf("message index %d predates session start %d: %w",
			msg.MessageIndex, s.InitialRatchet.Counter, domain.ErrUnknownMessageIndex)
	} else {
		scratch = *s.InitialRatchet
	}
	defer scratch.Zero()

	if err := scratch.AdvanceTo(msg.MessageIndex); err != nil {
		return nil, 0, err
	}

	c, err := cipher.NewAESSHA256(scratch.Data[:], CipherKDFInfo)
	if err != nil {
		return nil, 0, err
	}
	defer c.Zero()

	if !msg.VerifyMAC(c, raw) {
		return nil, 0, domain.ErrBadMessageMAC
	}
	plaintext, err := c.Decrypt(msg.Ciphertext)
	if err != nil {
		return nil, 0, err
	}

	// Remember the furthest point we have authenticated.
	if msg.MessageIndex-s.LatestRatchet.Counter < 1<<31 {
		*s.LatestRatchet = scratch
	}
	return plaintext, msg.MessageIndex, nil
}

// Export emits the unsigned export blob at the given index, from which a
// new inbound session can decrypt index onwards. The index must not predate
// the first known index.
func (s *InboundGroupSession) Export(index uint32) ([]byte, error) {
	if index-s.InitialRatchet.Counter >= 1<<31 {
		return nil, fmt.Errorf("export index %d predates session start %d: %w",
			index, s.InitialRatchet.Counter, domain.ErrUnknownMessageIndex)
	}

	var scratch Ratchet
	if index-s.LatestRatchet.Counter < 1<<31 {
		scratch = *s.LatestRatchet
	} else {
		scratch = *s.InitialRatchet
	}
	defer scratch.Zero()
	if err := scratch.AdvanceTo(index); err != nil {
		return nil, err
	}

	blob := make([]byte, 0, exportLength)
	blob = append(blob, exportVersion)
	blob = binary.BigEndian.AppendUint32(blob, scratch.Counter)
	blob = append(blob, scratch.Data[:]...)
	blob = append(blob, s.SigningKey[:]...)

	out := make([]byte, base64.RawStdEncoding.EncodedLen(len(blob)))
	base64.RawStdEncoding.Encode(out, blob)
	memzero.Zero(blob)
	return out, nil
}

// Zero wipes the session.
func (s *InboundGroupSession) Zero() {
	if s.InitialRatchet != nil {
		s.InitialRatchet.Zero()
	}
	if s.LatestRatchet != nil {
		s.LatestRatchet.Zero()
	}
	*s = InboundGroupSession{}
}

// Pickle serializes the session and seals it under key.
func (s *InboundGroupSession) Pickle(key []byte) ([]byte, error) {
	e := pickle.NewEncoder()
	e.WriteUInt32(inboundPickleVersion)
	s.InitialRatchet.PickleTo(e)
	s.LatestRatchet.PickleTo(e)
	e.Write(s.SigningKey[:])
	e.WriteBool(s.SigningKeyVerified)
	sealed, err := pickle.Seal(key, e.Bytes())
	memzero.Zero(e.Bytes())
	return sealed, err
}

// UnpickleInboundGroupSession opens pickled under key and restores the
// session.
func UnpickleInboundGroupSession(key, pickled []byte) (*InboundGroupSession, error) {
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
	if version != inboundPickleVersion {
		return nil, domain.ErrUnknownPickleVersion
	}
	s := &InboundGroupSession{InitialRatchet: &Ratchet{}, LatestRatchet: &Ratchet{}}
	if err := s.InitialRatchet.UnpickleFrom(d); err != nil {
		return nil, err
	}
	if err := s.LatestRatchet.UnpickleFrom(d); err != nil {
		return nil, err
	}
	pub, err := d.ReadBytes(types.KeyLength)
	if err != nil {
		return nil, err
	}
	copy(s.SigningKey[:], pub)
	if s.SigningKeyVerified, err = d.ReadBool(); err != nil {
		return nil, err
	}
	if d.Remaining() != 0 {
		return nil, domain.ErrCorruptedPickle
	}
	return s, nil
}
