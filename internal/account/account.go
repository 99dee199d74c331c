package account

import (
	"io"

	"olmcore/internal/crypto"
	"olmcore/internal/domain"
	"olmcore/internal/domain/types"
	"olmcore/internal/pickle"
	"olmcore/internal/util/memzero"
)

const pickleVersion uint32 = 1

// MaxOneTimeKeys bounds the unpublished plus published key pool.
const MaxOneTimeKeys = 100

// Account holds the identity key pairs and the one-time key pool.
type Account struct {
	IdentityEd25519    types.Ed25519KeyPair
	IdentityCurve25519 types.Curve25519KeyPair
	OneTimeKeys        []types.OneTimeKey
	NextOneTimeKeyID   uint32
}

// New creates an account with fresh identity keys drawn from random.
func New(random io.Reader) (*Account, error) {
	ed, err := crypto.GenerateEd25519(random)
	if err != nil {
		return nil, err
	}
	curve, err := crypto.GenerateCurve25519(random)
	if err != nil {
		return nil, err
	}
	return &Account{
		IdentityEd25519:    ed,
		IdentityCurve25519: curve,
		NextOneTimeKeyID:   1,
	}, nil
}

// Sign signs message with the identity signing key.
func (a *Account) Sign(message []byte) []byte {
	return crypto.Sign(a.IdentityEd25519, message)
}

// GenerateOneTimeKeys appends count fresh one-time keys, evicting the oldest
// past MaxOneTimeKeys.
func (a *Account) GenerateOneTimeKeys(random io.Reader, count int) error {
	for i := 0; i < count; i++ {
		pair, err := crypto.GenerateCurve25519(random)
		if err != nil {
			return err
		}
		a.OneTimeKeys = append(a.OneTimeKeys, types.OneTimeKey{
			ID:  a.NextOneTimeKeyID,
			Key: pair,
		})
		a.NextOneTimeKeyID++
	}
	if excess := len(a.OneTimeKeys) - MaxOneTimeKeys; excess > 0 {
		for i := 0; i < excess; i++ {
			memzero.Zero(a.OneTimeKeys[i].Key.Private[:])
		}
		remaining := make([]types.OneTimeKey, len(a.OneTimeKeys)-excess)
		copy(remaining, a.OneTimeKeys[excess:])
		a.OneTimeKeys = remaining
	}
	return nil
}

// UnpublishedOneTimeKeys returns the keys not yet marked as published.
func (a *Account) UnpublishedOneTimeKeys() []types.OneTimeKey {
	var out []types.OneTimeKey
	for _, k := range a.OneTimeKeys {
		if !k.Published {
			out = append(out, k)
		}
	}
	return out
}

// MarkKeysAsPublished flags every one-time key as published.
func (a *Account) MarkKeysAsPublished() {
	for i := range a.OneTimeKeys {
		a.OneTimeKeys[i].Published = true
	}
}

// LookupOneTimeKey finds a one-time key by its public bytes; nil if unknown.
func (a *Account) LookupOneTimeKey(pub types.Curve25519Public) *types.OneTimeKey {
	for i := range a.OneTimeKeys {
		if a.OneTimeKeys[i].Key.Public.Equal(pub) {
			return &a.OneTimeKeys[i]
		}
	}
	return nil
}

// RemoveOneTimeKey retires the key with the given public bytes, wiping its
// private half. It reports whether the key was present.
func (a *Account) RemoveOneTimeKey(pub types.Curve25519Public) bool {
	for i := range a.OneTimeKeys {
		if a.OneTimeKeys[i].Key.Public.Equal(pub) {
			memzero.Zero(a.OneTimeKeys[i].Key.Private[:])
			a.OneTimeKeys = append(a.OneTimeKeys[:i], a.OneTimeKeys[i+1:]...)
			return true
		}
	}
	return false
}

// MaxNumberOfOneTimeKeys reports the pool bound.
func (a *Account) MaxNumberOfOneTimeKeys() int { return MaxOneTimeKeys }

// Zero wipes all private key material.
func (a *Account) Zero() {
	memzero.ZeroAll(a.IdentityEd25519.Private[:], a.IdentityCurve25519.Private[:])
	for i := range a.OneTimeKeys {
		memzero.Zero(a.OneTimeKeys[i].Key.Private[:])
	}
	*a = Account{}
}

// Pickle serializes the account and seals it under key.
func (a *Account) Pickle(key []byte) ([]byte, error) {
	e := pickle.NewEncoder()
	e.WriteUInt32(pickleVersion)
	e.Write(a.IdentityEd25519.Public[:])
	e.Write(a.IdentityEd25519.Private[:])
	e.Write(a.IdentityCurve25519.Public[:])
	e.Write(a.IdentityCurve25519.Private[:])
	e.WriteUInt32(uint32(len(a.OneTimeKeys)))
	for _, k := range a.OneTimeKeys {
		e.WriteUInt32(k.ID)
		e.WriteBool(k.Published)
		e.Write(k.Key.Public[:])
		e.Write(k.Key.Private[:])
	}
	e.WriteUInt32(a.NextOneTimeKeyID)
	sealed, err := pickle.Seal(key, e.Bytes())
	memzero.Zero(e.Bytes())
	return sealed, err
}

// Unpickle opens pickled under key and restores the account.
func Unpickle(key, pickled []byte) (*Account, error) {
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
	a := &Account{}
	if err := readEd25519(d, &a.IdentityEd25519); err != nil {
		return nil, err
	}
	if err := readCurve25519(d, &a.IdentityCurve25519); err != nil {
		return nil, err
	}
	count, err := d.ReadUInt32()
	if err != nil {
		return nil, err
	}
	if count > MaxOneTimeKeys {
		return nil, domain.ErrCorruptedPickle
	}
	a.OneTimeKeys = make([]types.OneTimeKey, count)
	for i := range a.OneTimeKeys {
		k := &a.OneTimeKeys[i]
		if k.ID, err = d.ReadUInt32(); err != nil {
			return nil, err
		}
		if k.Published, err = d.ReadBool(); err != nil {
			return nil, err
		}
		if err := readCurve25519(d, &k.Key); err != nil {
			return nil, err
		}
	}
	if a.NextOneTimeKeyID, err = d.ReadUInt32(); err != nil {
		return nil, err
	}
	if d.Remaining() != 0 {
		return nil, domain.ErrCorruptedPickle
	}
	return a, nil
}

func readCurve25519(d *pickle.Decoder, pair *types.Curve25519KeyPair) error {
	pub, err := d.ReadBytes(types.KeyLength)
	if err != nil {
		return err
	}
	copy(pair.Public[:], pub)
	priv, err := d.ReadBytes(types.KeyLength)
	if err != nil {
		return err
	}
	copy(pair.Private[:], priv)
	return nil
}

func readEd25519(d *pickle.Decoder, pair *types.Ed25519KeyPair) error {
	pub, err := d.ReadBytes(types.KeyLength)
	if err != nil {
		return err
	}
	copy(pair.Public[:], pub)
	priv, err := d.ReadBytes(2 * types.KeyLength)
	if err != nil {
		return err
	}
	copy(pair.Private[:], priv)
	return nil
}
