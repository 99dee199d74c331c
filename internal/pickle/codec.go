package pickle

import (
	"encoding/binary"

	"olmcore/internal/domain"
)

// Encoder accumulates the raw pickle layout: fixed-width big-endian
// integers, one-byte booleans and raw byte arrays, in declaration order.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an empty encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Bytes returns the accumulated layout.
func (e *Encoder) Bytes() []byte { return e.buf }

// Write appends raw bytes.
func (e *Encoder) Write(b []byte) {
	e.buf = append(e.buf, b...)
}

// WriteEmptyBytes appends n zero bytes.
func (e *Encoder) WriteEmptyBytes(n int) {
	e.buf = append(e.buf, make([]byte, n)...)
}

// WriteUInt8 appends a single byte.
func (e *Encoder) WriteUInt8(v uint8) {
	e.buf = append(e.buf, v)
}

// WriteBool appends a one-byte boolean.
func (e *Encoder) WriteBool(v bool) {
	if v {
		e.buf = append(e.buf, 1)
	} else {
		e.buf = append(e.buf, 0)
	}
}

// WriteUInt32 appends a big-endian uint32.
func (e *Encoder) WriteUInt32(v uint32) {
	e.buf = binary.BigEndian.AppendUint32(e.buf, v)
}

// Decoder reads the raw pickle layout back. Every read fails with
// ErrCorruptedPickle once the input is exhausted.
type Decoder struct {
	rest []byte
}

// NewDecoder wraps a raw layout.
func NewDecoder(data []byte) *Decoder {
	return &Decoder{rest: data}
}

// Remaining returns the number of unread bytes. A pickle with trailing bytes
// after its expected structure is corrupt.
func (d *Decoder) Remaining() int { return len(d.rest) }

// ReadBytes consumes exactly n raw bytes.
func (d *Decoder) ReadBytes(n int) ([]byte, error) {
	if len(d.rest) < n {
		return nil, domain.ErrCorruptedPickle
	}
	value := d.rest[:n]
	d.rest = d.rest[n:]
	return value, nil
}

// ReadUInt8 consumes one byte.
func (d *Decoder) ReadUInt8() (uint8, error) {
	b, err := d.ReadBytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadBool consumes a one-byte boolean; any non-zero byte is true.
func (d *Decoder) ReadBool() (bool, error) {
	b, err := d.ReadUInt8()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

// ReadUInt32 consumes a big-endian uint32.
func (d *Decoder) ReadUInt32() (uint32, error) {
	b, err := d.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}
