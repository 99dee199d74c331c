package message

import (
	"encoding/binary"

	"olmcore/internal/domain"
)

// Version is the protocol version byte leading every wire message.
const Version = 0x03

// Wire tags. The low three bits carry the wire type: 0 for varints, 2 for
// length-prefixed bytes.
const (
	ratchetKeyTag = 0x0A
	counterTag    = 0x10
	ciphertextTag = 0x22

	oneTimeKeyTag   = 0x2A
	baseKeyTag      = 0x32
	identityKeyTag  = 0x42
	innerMessageTag = 0x22

	groupMessageIndexTag = 0x08
	groupCiphertextTag   = 0x12
)

const (
	wireTypeVarint = 0
	wireTypeBytes  = 2
)

func appendVarint(out []byte, v uint64) []byte {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	return append(out, buf[:n]...)
}

func appendBytesField(out []byte, tag byte, value []byte) []byte {
	out = append(out, tag)
	out = appendVarint(out, uint64(len(value)))
	return append(out, value...)
}

func appendVarintField(out []byte, tag byte, value uint64) []byte {
	out = append(out, tag)
	return appendVarint(out, value)
}

// decoder walks a TLV region. All reads fail with ErrBadMessageFormat once
// the region is exhausted or malformed.
type decoder struct {
	rest []byte
}

func (d *decoder) done() bool { return len(d.rest) == 0 }

func (d *decoder) readVarint() (uint64, error) {
	v, n := binary.Uvarint(d.rest)
	if n <= 0 {
		return 0, domain.ErrBadMessageFormat
	}
	d.rest = d.rest[n:]
	return v, nil
}

func (d *decoder) readTag() (byte, error) {
	if len(d.rest) == 0 {
		return 0, domain.ErrBadMessageFormat
	}
	tag := d.rest[0]
	d.rest = d.rest[1:]
	return tag, nil
}

func (d *decoder) readBytes() ([]byte, error) {
	n, err := d.readVarint()
	if err != nil {
		return nil, err
	}
	if uint64(len(d.rest)) < n {
		return nil, domain.ErrBadMessageFormat
	}
	value := d.rest[:n]
	d.rest = d.rest[n:]
	return value, nil
}

// skipField consumes an unrecognised field by its wire type.
func (d *decoder) skipField(tag byte) error {
	switch tag & 0x7 {
	case wireTypeVarint:
		_, err := d.readVarint()
		return err
	case wireTypeBytes:
		_, err := d.readBytes()
		return err
	default:
		return domain.ErrBadMessageFormat
	}
}
