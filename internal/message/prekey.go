package message

import (
	"olmcore/internal/domain"
	"olmcore/internal/domain/types"
)

// PreKeyMessage is the handshake envelope around the first ratchet messages
// of a session. It carries no MAC of its own; the embedded message does.
type PreKeyMessage struct {
	Version     uint8
	OneTimeKey  []byte
	BaseKey     []byte
	IdentityKey []byte
	Message     []byte
}

// Encode frames the envelope. A nil IdentityKey is omitted from the wire.
func (p *PreKeyMessage) Encode() []byte {
	out := []byte{p.Version}
	out = appendBytesField(out, oneTimeKeyTag, p.OneTimeKey)
	out = appendBytesField(out, baseKeyTag, p.BaseKey)
	if p.IdentityKey != nil {
		out = appendBytesField(out, identityKeyTag, p.IdentityKey)
	}
	out = appendBytesField(out, innerMessageTag, p.Message)
	return out
}

// Decode parses input into p.
func (p *PreKeyMessage) Decode(input []byte) error {
	if len(input) < 1 {
		return domain.ErrBadMessageFormat
	}
	p.Version = input[0]
	p.OneTimeKey, p.BaseKey, p.IdentityKey, p.Message = nil, nil, nil, nil

	d := decoder{rest: input[1:]}
	for !d.done() {
		tag, err := d.readTag()
		if err != nil {
			return err
		}
		switch tag {
		case oneTimeKeyTag:
			if p.OneTimeKey, err = d.readBytes(); err != nil {
				return err
			}
		case baseKeyTag:
			if p.BaseKey, err = d.readBytes(); err != nil {
				return err
			}
		case identityKeyTag:
			if p.IdentityKey, err = d.readBytes(); err != nil {
				return err
			}
		case innerMessageTag:
			if p.Message, err = d.readBytes(); err != nil {
				return err
			}
		default:
			if err := d.skipField(tag); err != nil {
				return err
			}
		}
	}
	return nil
}

// CheckFields reports whether the required handshake fields are present and
// correctly sized. The identity key may be omitted on the wire only when the
// caller already knows it.
func (p *PreKeyMessage) CheckFields(haveTheirIdentityKey bool) bool {
	ok := haveTheirIdentityKey || p.IdentityKey != nil
	if p.IdentityKey != nil {
		ok = ok && len(p.IdentityKey) == types.KeyLength
	}
	ok = ok && p.Message != nil
	ok = ok && p.BaseKey != nil && len(p.BaseKey) == types.KeyLength
	ok = ok && p.OneTimeKey != nil && len(p.OneTimeKey) == types.KeyLength
	return ok
}
