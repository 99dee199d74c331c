package message

import (
	"olmcore/internal/cipher"
	"olmcore/internal/crypto"
	"olmcore/internal/domain"
	"olmcore/internal/domain/types"
)

// GroupMessage is one group frame: the sender's ratchet index and the
// ciphertext, followed on the wire by a truncated MAC and an Ed25519
// signature over everything before it.
type GroupMessage struct {
	Version         uint8
	HasMessageIndex bool
	MessageIndex    uint32
	Ciphertext      []byte
}

// trailerLength is the MAC plus signature suffix of every group frame.
const trailerLength = cipher.MACLength + types.SignatureLength

// EncodeAndMACAndSign frames the message, appends the truncated MAC computed
// with c, then appends the signature of the whole frame under signingKey.
func (g *GroupMessage) EncodeAndMACAndSign(c *cipher.AESSHA256, signingKey types.Ed25519KeyPair) ([]byte, error) {
	out := []byte{g.Version}
	out = appendVarintField(out, groupMessageIndexTag, uint64(g.MessageIndex))
	out = appendBytesField(out, groupCiphertextTag, g.Ciphertext)
	out = append(out, c.MAC(out)[:cipher.MACLength]...)
	return append(out, crypto.Sign(signingKey, out)...), nil
}

// Decode parses input, which must still carry the trailing MAC and
// signature. Neither is verified here.
func (g *GroupMessage) Decode(input []byte) error {
	if len(input) < 1+trailerLength {
		return domain.ErrBadMessageFormat
	}
	g.Version = input[0]
	g.HasMessageIndex = false
	g.Ciphertext = nil

	d := decoder{rest: input[1 : len(input)-trailerLength]}
	for !d.done() {
		tag, err := d.readTag()
		if err != nil {
			return err
		}
		switch tag {
		case groupMessageIndexTag:
			v, err := d.readVarint()
			if err != nil {
				return err
			}
			g.MessageIndex = uint32(v)
			g.HasMessageIndex = true
		case groupCiphertextTag:
			if g.Ciphertext, err = d.readBytes(); err != nil {
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

// VerifySignature checks the trailing signature of the raw frame under pub.
func (g *GroupMessage) VerifySignature(pub types.Ed25519Public, raw []byte) bool {
	if len(raw) < types.SignatureLength {
		return false
	}
	body := raw[:len(raw)-types.SignatureLength]
	return crypto.Verify(pub, body, raw[len(raw)-types.SignatureLength:])
}

// VerifyMAC checks the truncated MAC that precedes the signature with c.
func (g *GroupMessage) VerifyMAC(c *cipher.AESSHA256, raw []byte) bool {
	if len(raw) < trailerLength {
		return false
	}
	body := raw[:len(raw)-trailerLength]
	tag := raw[len(raw)-trailerLength : len(raw)-types.SignatureLength]
	return c.VerifyTruncatedMAC(body, tag)
}
