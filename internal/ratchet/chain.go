package ratchet

import (
	"crypto/hmac"
	"crypto/sha256"

	"olmcore/internal/domain/types"
	"olmcore/internal/pickle"
	"olmcore/internal/util/memzero"
)

const (
	messageKeySeed = 0x01
	chainKeySeed   = 0x02
)

func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

// advanceChainKey rotates ck one step.
func advanceChainKey(ck *types.ChainKey) {
	next := hmacSHA256(ck.Key[:], []byte{chainKeySeed})
	copy(ck.Key[:], next)
	memzero.Zero(next)
	ck.Index++
}

// createMessageKey derives the one-shot message key at ck's index without
// advancing ck.
func createMessageKey(ck types.ChainKey) types.MessageKey {
	mk := types.MessageKey{Index: ck.Index}
	sum := hmacSHA256(ck.Key[:], []byte{messageKeySeed})
	copy(mk.Key[:], sum)
	memzero.Zero(sum)
	return mk
}

// senderChain is the single chain this side encrypts with. It exists only
// while we are the active sender of the current DH epoch.
type senderChain struct {
	ratchetKey types.Curve25519KeyPair
	chainKey   types.ChainKey
	set        bool
}

func (s *senderChain) zero() {
	memzero.ZeroAll(s.ratchetKey.Private[:], s.chainKey.Key[:])
	*s = senderChain{}
}

func (s senderChain) pickleTo(e *pickle.Encoder) {
	if !s.set {
		e.WriteUInt32(0)
		return
	}
	e.WriteUInt32(1)
	e.Write(s.ratchetKey.Public[:])
	e.Write(s.ratchetKey.Private[:])
	e.Write(s.chainKey.Key[:])
	e.WriteUInt32(s.chainKey.Index)
}

func (s *senderChain) unpickleFrom(d *pickle.Decoder) error {
	pub, err := d.ReadBytes(types.KeyLength)
	if err != nil {
		return err
	}
	copy(s.ratchetKey.Public[:], pub)
	priv, err := d.ReadBytes(types.KeyLength)
	if err != nil {
		return err
	}
	copy(s.ratchetKey.Private[:], priv)
	key, err := d.ReadBytes(types.KeyLength)
	if err != nil {
		return err
	}
	copy(s.chainKey.Key[:], key)
	s.chainKey.Index, err = d.ReadUInt32()
	if err != nil {
		return err
	}
	s.set = true
	return nil
}

// receiverChain decrypts messages for one historical DH epoch, keyed by the
// peer's ratchet public key for that epoch.
type receiverChain struct {
	ratchetKey types.Curve25519Public
	chainKey   types.ChainKey
}

func (r *receiverChain) zero() {
	memzero.Zero(r.chainKey.Key[:])
	*r = receiverChain{}
}

func (r receiverChain) pickleTo(e *pickle.Encoder) {
	e.Write(r.ratchetKey[:])
	e.Write(r.chainKey.Key[:])
	e.WriteUInt32(r.chainKey.Index)
}

func (r *receiverChain) unpickleFrom(d *pickle.Decoder) error {
	pub, err := d.ReadBytes(types.KeyLength)
	if err != nil {
		return err
	}
	copy(r.ratchetKey[:], pub)
	key, err := d.ReadBytes(types.KeyLength)
	if err != nil {
		return err
	}
	copy(r.chainKey.Key[:], key)
	r.chainKey.Index, err = d.ReadUInt32()
	return err
}

// skippedMessageKey retains a derived but unused message key so a delayed
// message can still decrypt after its chain moved on.
type skippedMessageKey struct {
	ratchetKey types.Curve25519Public
	messageKey types.MessageKey
}

func (s *skippedMessageKey) zero() {
	memzero.Zero(s.messageKey.Key[:])
	*s = skippedMessageKey{}
}

func (s skippedMessageKey) pickleTo(e *pickle.Encoder) {
	e.Write(s.ratchetKey[:])
	e.Write(s.messageKey.Key[:])
	e.WriteUInt32(s.messageKey.Index)
}

func (s *skippedMessageKey) unpickleFrom(d *pickle.Decoder) error {
	pub, err := d.ReadBytes(types.KeyLength)
	if err != nil {
		return err
	}
	copy(s.ratchetKey[:], pub)
	key, err := d.ReadBytes(types.KeyLength)
	if err != nil {
		return err
	}
	copy(s.messageKey.Key[:], key)
	s.messageKey.Index, err = d.ReadUInt32()
	return err
}
