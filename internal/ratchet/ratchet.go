package ratchet

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"olmcore/internal/cipher"
	"olmcore/internal/crypto"
	"olmcore/internal/domain"
	"olmcore/internal/domain/types"
	"olmcore/internal/message"
	"olmcore/internal/pickle"
	"olmcore/internal/util/memzero"
)

const (
	maxReceiverChains     = 5
	maxSkippedMessageKeys = 40

	// maxMessageGap bounds the chain derivations a single message may force,
	// so a hostile counter cannot burn unbounded CPU.
	maxMessageGap = 2000

	sharedKeyLength = types.KeyLength
)

// KDF domain-separation infos.
var (
	RootKDFInfo    = []byte("OLM_ROOT")
	RatchetKDFInfo = []byte("OLM_RATCHET")
	CipherKDFInfo  = []byte("OLM_KEYS")
)

var errUninitialised = errors.New("ratchet not initialised")

// Ratchet is the pairwise double-ratchet state machine.
type Ratchet struct {
	rootKey   types.SharedKey
	sender    senderChain
	receivers []receiverChain
	skipped   []skippedMessageKey
}

// New returns an empty ratchet. It must be initialised as Alice or Bob
// before use.
func New() *Ratchet {
	return &Ratchet{}
}

// InitialiseAsAlice seeds the ratchet from the handshake secret on the
// outbound side: a sender chain under ourRatchetKey and no receiver chain.
func (r *Ratchet) InitialiseAsAlice(secret []byte, ourRatchetKey types.Curve25519KeyPair) error {
	rootKey, chainKey, err := deriveInitialKeys(secret)
	if err != nil {
		return err
	}
	r.rootKey = rootKey
	r.sender = senderChain{
		ratchetKey: ourRatchetKey,
		chainKey:   types.ChainKey{Index: 0, Key: chainKey},
		set:        true,
	}
	r.receivers = nil
	memzero.Zero(chainKey[:])
	return nil
}

// InitialiseAsBob seeds the ratchet from the handshake secret on the inbound
// side: one receiver chain under the peer's first ratchet key and no sender
// chain.
func (r *Ratchet) InitialiseAsBob(secret []byte, theirRatchetKey types.Curve25519Public) error {
	rootKey, chainKey, err := deriveInitialKeys(secret)
	if err != nil {
		return err
	}
	r.rootKey = rootKey
	r.sender = senderChain{}
	r.receivers = []receiverChain{{
		ratchetKey: theirRatchetKey,
		chainKey:   types.ChainKey{Index: 0, Key: chainKey},
	}}
	memzero.Zero(chainKey[:])
	return nil
}

func deriveInitialKeys(secret []byte) (rootKey, chainKey types.SharedKey, err error) {
	reader := hkdf.New(sha256.New, secret, nil, RootKDFInfo)
	derived := make([]byte, 2*sharedKeyLength)
	if _, err = io.ReadFull(reader, derived); err != nil {
		return
	}
	copy(rootKey[:], derived[:sharedKeyLength])
	copy(chainKey[:], derived[sharedKeyLength:])
	memzero.Zero(derived)
	return
}

// advanceRootKey mixes a fresh DH output into the root chain and returns the
// next root key and chain seed.
func (r *Ratchet) advanceRootKey(ourKey types.Curve25519KeyPair, theirKey types.Curve25519Public) (rootKey, chainKey types.SharedKey, err error) {
	dh, err := crypto.DH(ourKey.Private, theirKey)
	if err != nil {
		return
	}
	reader := hkdf.New(sha256.New, dh[:], r.rootKey[:], RatchetKDFInfo)
	derived := make([]byte, 2*sharedKeyLength)
	if _, err = io.ReadFull(reader, derived); err != nil {
		memzero.Zero(dh[:])
		return
	}
	copy(rootKey[:], derived[:sharedKeyLength])
	copy(chainKey[:], derived[sharedKeyLength:])
	memzero.ZeroAll(dh[:], derived)
	return
}

// Encrypt derives the next message key, frames plaintext with the current
// ratchet public key and counter, and appends the truncated MAC. A fresh
// ratchet key pair is drawn from random when this side has just turned
// sender.
func (r *Ratchet) Encrypt(random io.Reader, plaintext []byte) ([]byte, error) {
	if !r.sender.set {
		if len(r.receivers) == 0 {
			return nil, errUninitialised
		}
		newRatchetKey, err := crypto.GenerateCurve25519(random)
		if err != nil {
			return nil, err
		}
		rootKey, chainKey, err := r.advanceRootKey(newRatchetKey, r.receivers[0].ratchetKey)
		if err != nil {
			return nil, err
		}
		r.rootKey = rootKey
		r.sender = senderChain{
			ratchetKey: newRatchetKey,
			chainKey:   types.ChainKey{Index: 0, Key: chainKey},
			set:        true,
		}
		memzero.Zero(chainKey[:])
	}

	mk := createMessageKey(r.sender.chainKey)
	advanceChainKey(&r.sender.chainKey)

	c, err := cipher.NewAESSHA256(mk.Key[:], CipherKDFInfo)
	memzero.Zero(mk.Key[:])
	if err != nil {
		return nil, err
	}
	defer c.Zero()

	ciphertext, err := c.Encrypt(plaintext)
	if err != nil {
		return nil, err
	}
	msg := &message.Message{
		Version:    message.Version,
		Counter:    mk.Index,
		RatchetKey: r.sender.ratchetKey.Public[:],
		Ciphertext: ciphertext,
	}
	return msg.EncodeAndMAC(c)
}

// Decrypt verifies and decrypts a framed message. State only advances after
// the MAC has verified; a rejected message leaves the ratchet byte-for-byte
// unchanged.
func (r *Ratchet) Decrypt(input []byte) ([]byte, error) {
	msg := &message.Message{}
	if err := msg.Decode(input); err != nil {
		return nil, err
	}
	if msg.Version != message.Version {
		return nil, domain.ErrBadMessageVersion
	}
	if !msg.HasCounter || len(msg.RatchetKey) != types.KeyLength || len(msg.Ciphertext) == 0 {
		return nil, domain.ErrBadMessageFormat
	}

	var theirKey types.Curve25519Public
	copy(theirKey[:], msg.RatchetKey)

	for i := range r.receivers {
		if r.receivers[i].ratchetKey.Equal(theirKey) {
			return r.decryptForExistingChain(i, msg, input)
		}
	}
	return r.decryptForNewChain(theirKey, msg, input)
}

// decryptForExistingChain decrypts against the chain at index idx, working
// on a copy so a failure commits nothing.
func (r *Ratchet) decryptForExistingChain(idx int, msg *message.Message, raw []byte) ([]byte, error) {
	chain := r.receivers[idx]

	if msg.Counter < chain.chainKey.Index {
		return r.decryptWithSkippedKey(msg, raw)
	}
	if msg.Counter-chain.chainKey.Index > maxMessageGap {
		return nil, fmt.Errorf("message %d outruns chain index %d: %w",
			msg.Counter, chain.chainKey.Index, domain.ErrUnknownMessageIndex)
	}

	var pending []skippedMessageKey
	zeroPending := func() {
		for i := range pending {
			pending[i].zero()
		}
	}
	for chain.chainKey.Index < msg.Counter {
		pending = append(pending, skippedMessageKey{
			ratchetKey: chain.ratchetKey,
			messageKey: createMessageKey(chain.chainKey),
		})
		advanceChainKey(&chain.chainKey)
	}
	mk := createMessageKey(chain.chainKey)
	advanceChainKey(&chain.chainKey)

	plaintext, err := openMessage(mk, msg, raw)
	memzero.Zero(mk.Key[:])
	if err != nil {
		zeroPending()
		memzero.Zero(chain.chainKey.Key[:])
		return nil, err
	}

	r.receivers[idx] = chain
	r.commitSkipped(pending)
	return plaintext, nil
}

// decryptWithSkippedKey serves a message whose chain already moved past it.
func (r *Ratchet) decryptWithSkippedKey(msg *message.Message, raw []byte) ([]byte, error) {
	var theirKey types.Curve25519Public
	copy(theirKey[:], msg.RatchetKey)

	for i := range r.skipped {
		if r.skipped[i].messageKey.Index != msg.Counter || !r.skipped[i].ratchetKey.Equal(theirKey) {
			continue
		}
		plaintext, err := openMessage(r.skipped[i].messageKey, msg, raw)
		if err != nil {
			return nil, err
		}
		r.skipped[i].zero()
		r.skipped = append(r.skipped[:i], r.skipped[i+1:]...)
		return plaintext, nil
	}
	return nil, fmt.Errorf("no skipped key for counter %d: %w", msg.Counter, domain.ErrUnknownMessageIndex)
}

// decryptForNewChain handles the peer's move to a new DH epoch: derive the
// next receiver chain from our live sender ratchet key, decrypt, and only
// then commit the root advance and retire the sender chain.
func (r *Ratchet) decryptForNewChain(theirKey types.Curve25519Public, msg *message.Message, raw []byte) ([]byte, error) {
	// The peer cannot start a new chain before we have sent on the current
	// one; without a sender ratchet key there is nothing to agree with.
	if !r.sender.set {
		return nil, fmt.Errorf("new chain without live sender chain: %w", domain.ErrBadMessageFormat)
	}
	if msg.Counter > maxMessageGap {
		return nil, fmt.Errorf("first message on new chain at %d: %w", msg.Counter, domain.ErrUnknownMessageIndex)
	}

	rootKey, chainKey, err := r.advanceRootKey(r.sender.ratchetKey, theirKey)
	if err != nil {
		return nil, err
	}
	chain := receiverChain{
		ratchetKey: theirKey,
		chainKey:   types.ChainKey{Index: 0, Key: chainKey},
	}

	var pending []skippedMessageKey
	for chain.chainKey.Index < msg.Counter {
		pending = append(pending, skippedMessageKey{
			ratchetKey: chain.ratchetKey,
			messageKey: createMessageKey(chain.chainKey),
		})
		advanceChainKey(&chain.chainKey)
	}
	mk := createMessageKey(chain.chainKey)
	advanceChainKey(&chain.chainKey)

	plaintext, err := openMessage(mk, msg, raw)
	memzero.Zero(mk.Key[:])
	if err != nil {
		for i := range pending {
			pending[i].zero()
		}
		memzero.ZeroAll(rootKey[:], chain.chainKey.Key[:])
		return nil, err
	}

	r.rootKey = rootKey
	r.receivers = append([]receiverChain{chain}, r.receivers...)
	if len(r.receivers) > maxReceiverChains {
		for i := maxReceiverChains; i < len(r.receivers); i++ {
			r.receivers[i].zero()
		}
		r.receivers = r.receivers[:maxReceiverChains]
	}
	r.sender.zero()
	r.commitSkipped(pending)
	return plaintext, nil
}

// openMessage verifies the frame MAC under mk and decrypts the body.
func openMessage(mk types.MessageKey, msg *message.Message, raw []byte) ([]byte, error) {
	c, err := cipher.NewAESSHA256(mk.Key[:], CipherKDFInfo)
	if err != nil {
		return nil, err
	}
	defer c.Zero()
	if !msg.VerifyMAC(c, raw) {
		return nil, domain.ErrBadMessageMAC
	}
	plaintext, err := c.Decrypt(msg.Ciphertext)
	if err != nil {
		return nil, err
	}
	return plaintext, nil
}

// commitSkipped stores freshly skipped keys, evicting the oldest entries
// beyond the cache bound.
func (r *Ratchet) commitSkipped(pending []skippedMessageKey) {
	r.skipped = append(r.skipped, pending...)
	if excess := len(r.skipped) - maxSkippedMessageKeys; excess > 0 {
		for i := 0; i < excess; i++ {
			r.skipped[i].zero()
		}
		remaining := make([]skippedMessageKey, len(r.skipped)-excess)
		copy(remaining, r.skipped[excess:])
		r.skipped = remaining
	}
}

// Zero wipes all chain state.
func (r *Ratchet) Zero() {
	memzero.Zero(r.rootKey[:])
	r.sender.zero()
	for i := range r.receivers {
		r.receivers[i].zero()
	}
	for i := range r.skipped {
		r.skipped[i].zero()
	}
	*r = Ratchet{}
}

// PickleTo writes the ratchet into e: root key, sender chain, receiver
// chains, skipped message keys.
func (r *Ratchet) PickleTo(e *pickle.Encoder) {
	e.Write(r.rootKey[:])
	r.sender.pickleTo(e)
	e.WriteUInt32(uint32(len(r.receivers)))
	for _, chain := range r.receivers {
		chain.pickleTo(e)
	}
	e.WriteUInt32(uint32(len(r.skipped)))
	for _, sk := range r.skipped {
		sk.pickleTo(e)
	}
}

// UnpickleFrom restores the ratchet from d.
func (r *Ratchet) UnpickleFrom(d *pickle.Decoder) error {
	rootKey, err := d.ReadBytes(types.KeyLength)
	if err != nil {
		return err
	}
	copy(r.rootKey[:], rootKey)

	senderCount, err := d.ReadUInt32()
	if err != nil {
		return err
	}
	r.sender = senderChain{}
	for i := uint32(0); i < senderCount; i++ {
		// Only one sender chain is live; older pickles may carry more.
		var chain senderChain
		if err := chain.unpickleFrom(d); err != nil {
			return err
		}
		if i == 0 {
			r.sender = chain
		}
	}

	receiverCount, err := d.ReadUInt32()
	if err != nil {
		return err
	}
	if receiverCount > maxReceiverChains {
		return domain.ErrCorruptedPickle
	}
	r.receivers = make([]receiverChain, receiverCount)
	for i := range r.receivers {
		if err := r.receivers[i].unpickleFrom(d); err != nil {
			return err
		}
	}

	skippedCount, err := d.ReadUInt32()
	if err != nil {
		return err
	}
	if skippedCount > maxSkippedMessageKeys {
		return domain.ErrCorruptedPickle
	}
	r.skipped = make([]skippedMessageKey, skippedCount)
	for i := range r.skipped {
		if err := r.skipped[i].unpickleFrom(d); err != nil {
			return err
		}
	}
	return nil
}
