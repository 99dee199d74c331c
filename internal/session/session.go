package session

import (
	"crypto/sha256"
	"fmt"
	"io"

	"olmcore/internal/crypto"
	"olmcore/internal/domain"
	"olmcore/internal/domain/types"
	"olmcore/internal/message"
	"olmcore/internal/pickle"
	"olmcore/internal/ratchet"
	"olmcore/internal/util/memzero"
)

const pickleVersion uint32 = 1

// Session is one pairwise conversation. The three stored public keys are the
// handshake triple; ReceivedMessage flips to true on the first successful
// decrypt and stays true, switching encryption from pre-key to normal
// framing.
type Session struct {
	ReceivedMessage  bool
	AliceIdentityKey types.Curve25519Public
	AliceBaseKey     types.Curve25519Public
	BobOneTimeKey    types.Curve25519Public
	Ratchet          *ratchet.Ratchet
}

// NewOutbound creates the Alice side of a session towards a peer identified
// by theirIdentityKey, claiming theirOneTimeKey. Fresh base and ratchet key
// pairs are drawn from random.
func NewOutbound(random io.Reader, ourIdentity types.Curve25519KeyPair, theirIdentityKey, theirOneTimeKey types.Curve25519Public) (*Session, error) {
	baseKey, err := crypto.GenerateCurve25519(random)
	if err != nil {
		return nil, err
	}
	ratchetKey, err := crypto.GenerateCurve25519(random)
	if err != nil {
		return nil, err
	}

	secret, err := tripleDH(
		dhPair{ourIdentity, theirOneTimeKey},
		dhPair{baseKey, theirIdentityKey},
		dhPair{baseKey, theirOneTimeKey},
	)
	if err != nil {
		return nil, err
	}

	s := &Session{
		AliceIdentityKey: ourIdentity.Public,
		AliceBaseKey:     baseKey.Public,
		BobOneTimeKey:    theirOneTimeKey,
		Ratchet:          ratchet.New(),
	}
	err = s.Ratchet.InitialiseAsAlice(secret, ratchetKey)
	memzero.ZeroAll(secret, baseKey.Private[:], ratchetKey.Private[:])
	if err != nil {
		return nil, err
	}
	return s, nil
}

// NewInbound creates the Bob side of a session from a pre-key envelope. When
// theirIdentityKey is known from an outer channel it is checked against the
// envelope; keys is consulted for the one-time key the sender claimed.
func NewInbound(ourIdentity types.Curve25519KeyPair, keys domain.KeyStore, theirIdentityKey *types.Curve25519Public, preKeyMessage []byte) (*Session, error) {
	env := &message.PreKeyMessage{}
	if err := env.Decode(preKeyMessage); err != nil {
		return nil, err
	}
	if !env.CheckFields(theirIdentityKey != nil) {
		return nil, domain.ErrBadMessageFormat
	}

	var aliceIdentity, aliceBase, bobOneTime types.Curve25519Public
	if env.IdentityKey != nil {
		copy(aliceIdentity[:], env.IdentityKey)
	}
	if theirIdentityKey != nil {
		if env.IdentityKey != nil && !theirIdentityKey.Equal(aliceIdentity) {
			return nil, fmt.Errorf("identity key on received message is incorrect: %w", domain.ErrBadMessageKeyID)
		}
		aliceIdentity = *theirIdentityKey
	}
	copy(aliceBase[:], env.BaseKey)
	copy(bobOneTime[:], env.OneTimeKey)

	inner := &message.Message{}
	if err := inner.Decode(env.Message); err != nil {
		return nil, err
	}
	if len(inner.RatchetKey) != types.KeyLength {
		return nil, domain.ErrBadMessageFormat
	}
	var theirRatchetKey types.Curve25519Public
	copy(theirRatchetKey[:], inner.RatchetKey)

	oneTimeKey := keys.LookupOneTimeKey(bobOneTime)
	if oneTimeKey == nil {
		return nil, fmt.Errorf("session uses unknown one-time key: %w", domain.ErrBadMessageKeyID)
	}

	secret, err := tripleDH(
		dhPair{oneTimeKey.Key, aliceIdentity},
		dhPair{ourIdentity, aliceBase},
		dhPair{oneTimeKey.Key, aliceBase},
	)
	if err != nil {
		return nil, err
	}

	s := &Session{
		AliceIdentityKey: aliceIdentity,
		AliceBaseKey:     aliceBase,
		BobOneTimeKey:    bobOneTime,
		Ratchet:          ratchet.New(),
	}
	err = s.Ratchet.InitialiseAsBob(secret, theirRatchetKey)
	memzero.Zero(secret)
	if err != nil {
		return nil, err
	}
	return s, nil
}

type dhPair struct {
	ours   types.Curve25519KeyPair
	theirs types.Curve25519Public
}

// tripleDH concatenates the three handshake shared secrets in order.
func tripleDH(pairs ...dhPair) ([]byte, error) {
	secret := make([]byte, 0, len(pairs)*types.KeyLength)
	for _, p := range pairs {
		dh, err := crypto.DH(p.ours.Private, p.theirs)
		if err != nil {
			memzero.Zero(secret)
			return nil, err
		}
		secret = append(secret, dh[:]...)
		memzero.Zero(dh[:])
	}
	return secret, nil
}

// ID returns the session id: SHA-256 over the handshake triple. It is
// deterministic and identical on both ends.
func (s *Session) ID() [sha256.Size]byte {
	tmp := make([]byte, 0, 3*types.KeyLength)
	tmp = append(tmp, s.AliceIdentityKey[:]...)
	tmp = append(tmp, s.AliceBaseKey[:]...)
	tmp = append(tmp, s.BobOneTimeKey[:]...)
	return sha256.Sum256(tmp)
}

// MatchesInbound reports whether a pre-key envelope targets this session:
// its handshake triple must byte-match ours. It never mutates state.
func (s *Session) MatchesInbound(theirIdentityKey *types.Curve25519Public, preKeyMessage []byte) bool {
	env := &message.PreKeyMessage{}
	if err := env.Decode(preKeyMessage); err != nil {
		return false
	}
	if !env.CheckFields(theirIdentityKey != nil) {
		return false
	}
	same := true
	if env.IdentityKey != nil {
		var key types.Curve25519Public
		copy(key[:], env.IdentityKey)
		same = same && key.Equal(s.AliceIdentityKey)
	}
	if theirIdentityKey != nil {
		same = same && theirIdentityKey.Equal(s.AliceIdentityKey)
	}
	var base, oneTime types.Curve25519Public
	copy(base[:], env.BaseKey)
	copy(oneTime[:], env.OneTimeKey)
	same = same && base.Equal(s.AliceBaseKey)
	same = same && oneTime.Equal(s.BobOneTimeKey)
	return same
}

// EncryptMessageType returns the framing the next Encrypt will use: pre-key
// until the first successful decrypt, normal afterwards.
func (s *Session) EncryptMessageType() types.MessageType {
	if s.ReceivedMessage {
		return types.MessageTypeNormal
	}
	return types.MessageTypePreKey
}

// Encrypt encrypts plaintext, wrapping the ratchet output in a pre-key
// envelope while the peer has not yet spoken.
func (s *Session) Encrypt(random io.Reader, plaintext []byte) (types.MessageType, []byte, error) {
	msgType := s.EncryptMessageType()
	body, err := s.Ratchet.Encrypt(random, plaintext)
	if err != nil {
		return msgType, nil, err
	}
	if msgType == types.MessageTypeNormal {
		return msgType, body, nil
	}
	env := &message.PreKeyMessage{
		Version:     message.Version,
		OneTimeKey:  s.BobOneTimeKey[:],
		BaseKey:     s.AliceBaseKey[:],
		IdentityKey: s.AliceIdentityKey[:],
		Message:     body,
	}
	return msgType, env.Encode(), nil
}

// Decrypt decrypts a message of the given framing. The first success marks
// the session as established.
func (s *Session) Decrypt(msgType types.MessageType, input []byte) ([]byte, error) {
	body := input
	if msgType == types.MessageTypePreKey {
		env := &message.PreKeyMessage{}
		if err := env.Decode(input); err != nil {
			return nil, err
		}
		if env.Message == nil {
			return nil, domain.ErrBadMessageFormat
		}
		body = env.Message
	}
	plaintext, err := s.Ratchet.Decrypt(body)
	if err != nil {
		return nil, err
	}
	s.ReceivedMessage = true
	return plaintext, nil
}

// Zero wipes the session, ratchet included.
func (s *Session) Zero() {
	if s.Ratchet != nil {
		s.Ratchet.Zero()
	}
	*s = Session{}
}

// Pickle serializes the session and seals it under key.
func (s *Session) Pickle(key []byte) ([]byte, error) {
	e := pickle.NewEncoder()
	e.WriteUInt32(pickleVersion)
	e.WriteBool(s.ReceivedMessage)
	e.Write(s.AliceIdentityKey[:])
	e.Write(s.AliceBaseKey[:])
	e.Write(s.BobOneTimeKey[:])
	s.Ratchet.PickleTo(e)
	sealed, err := pickle.Seal(key, e.Bytes())
	memzero.Zero(e.Bytes())
	return sealed, err
}

// Unpickle opens pickled under key and restores the session.
func Unpickle(key, pickled []byte) (*Session, error) {
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
	if version != pickleVersion {
		return nil, domain.ErrUnknownPickleVersion
	}
	s := &Session{Ratchet: ratchet.New()}
	if s.ReceivedMessage, err = d.ReadBool(); err != nil {
		return nil, err
	}
	for _, dst := range []*types.Curve25519Public{&s.AliceIdentityKey, &s.AliceBaseKey, &s.BobOneTimeKey} {
		b, err := d.ReadBytes(types.KeyLength)
		if err != nil {
			return nil, err
		}
		copy(dst[:], b)
	}
	if err := s.Ratchet.UnpickleFrom(d); err != nil {
		return nil, err
	}
	if d.Remaining() != 0 {
		return nil, domain.ErrCorruptedPickle
	}
	return s, nil
}
