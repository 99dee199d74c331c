package message

import (
	"olmcore/internal/cipher"
	"olmcore/internal/domain"
)

// Message is a normal ratchet message: the sender's current ratchet public
// key, the chain counter and the ciphertext, followed on the wire by a
// truncated MAC over the whole preceding frame.
type Message struct {
	Version    uint8
	HasCounter bool
	Counter    uint32
	RatchetKey []byte
	Ciphertext []byte
}

// EncodeAndMAC frames the message and appends the truncated MAC computed
// with c over the framed bytes.
func (m *Message) EncodeAndMAC(c *cipher.AESSHA256) ([]byte, error) {
	out := []byte{m.Version}
	out = appendBytesField(out, ratchetKeyTag, m.RatchetKey)
	out = appendVarintField(out, counterTag, uint64(m.Counter))
	out = appendBytesField(out, ciphertextTag, m.Ciphertext)
	return append(out, c.MAC(out)[:cipher.MACLength]...), nil
}

// Decode parses input, which must still carry the trailing MAC. The MAC is
// not verified here; the key is not known until the chain is located.
func (m *Message) Decode(input []byte) error {
	if len(input) < 1+cipher.MACLength {
		return domain.ErrBadMessageFormat
	}
	m.Version = input[0]
	m.HasCounter = false
	m.RatchetKey = nil
	m.Ciphertext = nil

	d := decoder{rest: input[1 : len(input)-cipher.MACLength]}
	for !d.done() {
		tag, err := d.readTag()
		if err != nil {
			return err
		}
		switch tag {
		case ratchetKeyTag:
			if m.RatchetKey, err = d.readBytes(); err != nil {
				return err
			}
		case counterTag:
			v, err := d.readVarint()
			if err != nil {
				return err
			}
			m.Counter = uint32(v)
			m.HasCounter = true
		case ciphertextTag:
			if m.Ciphertext, err = d.readBytes(); err != nil {
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

// VerifyMAC checks the trailing truncated MAC of the raw frame with c.
func (m *Message) VerifyMAC(c *cipher.AESSHA256, raw []byte) bool {
	if len(raw) < cipher.MACLength {
		return false
	}
	body := raw[:len(raw)-cipher.MACLength]
	return c.VerifyTruncatedMAC(body, raw[len(raw)-cipher.MACLength:])
}
