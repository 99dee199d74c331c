package megolm

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"io"

	"olmcore/internal/domain"
	"olmcore/internal/domain/types"
	"olmcore/internal/pickle"
	"olmcore/internal/util/memzero"
)

const (
	// RatchetParts is the number of sub-ratchets.
	RatchetParts = 4
	// RatchetPartLength is the size of one sub-ratchet in bytes.
	RatchetPartLength = 32
	// RatchetLength is the full ratchet state size.
	RatchetLength = RatchetParts * RatchetPartLength
)

// CipherKDFInfo is the domain separation for group message keys.
var CipherKDFInfo = []byte("MEGOLM_KEYS")

// hashKeySeeds domain-separates the successor derivation of each sub-ratchet.
var hashKeySeeds = [RatchetParts][]byte{{0x00}, {0x01}, {0x02}, {0x03}}

// Ratchet is the group hash ratchet: R0..R3 concatenated, plus the counter
// the state corresponds to.
type Ratchet struct {
	Data    [RatchetLength]byte
	Counter uint32
}

// New returns a ratchet over the given 128-byte seed at counter.
func New(counter uint32, seed []byte) (*Ratchet, error) {
	if len(seed) != RatchetLength {
		return nil, fmt.Errorf("megolm seed must be %d bytes, got %d: %w", RatchetLength, len(seed), domain.ErrBadSessionKey)
	}
	m := &Ratchet{Counter: counter}
	copy(m.Data[:], seed)
	return m, nil
}

// NewRandom returns a ratchet seeded from random at counter 0.
func NewRandom(random io.Reader) (*Ratchet, error) {
	m := &Ratchet{}
	if _, err := io.ReadFull(random, m.Data[:]); err != nil {
		return nil, fmt.Errorf("seed megolm ratchet: %w", domain.ErrNotEnoughRandom)
	}
	return m, nil
}

// rehashPart writes HMAC-SHA-256(R(from), seed of to) into R(to).
func (m *Ratchet) rehashPart(from, to int) {
	h := hmac.New(sha256.New, m.Data[from*RatchetPartLength:(from+1)*RatchetPartLength])
	h.Write(hashKeySeeds[to])
	sum := h.Sum(nil)
	copy(m.Data[to*RatchetPartLength:], sum)
	memzero.Zero(sum)
}

// Advance steps the ratchet by one. The sub-ratchets whose counter block
// changed are rekeyed from the lowest-cadence part that rolled.
func (m *Ratchet) Advance() {
	var mask uint32 = 0x00FFFFFF
	h := 0
	m.Counter++

	for h < RatchetParts {
		if m.Counter&mask == 0 {
			break
		}
		h++
		mask >>= 8
	}

	// Update R(h)...R(3) based on R(h).
	for i := RatchetParts - 1; i >= h; i-- {
		m.rehashPart(h, i)
	}
}

// AdvanceTo jumps forward so that Counter == target, performing the minimum
// set of rehashes. Targets behind the current counter are unreachable.
func (m *Ratchet) AdvanceTo(target uint32) error {
	if target < m.Counter {
		return fmt.Errorf("ratchet already advanced to %d: %w", m.Counter, domain.ErrUnknownMessageIndex)
	}
	// Starting with R0, work out how often each part needs rehashing.
	for j := 0; j < RatchetParts; j++ {
		shift := uint32((RatchetParts - j - 1) * 8)
		mask := ^uint32(0) << shift

		steps := ((target >> shift) - (m.Counter >> shift)) & 0xff
		if steps == 0 {
			continue
		}
		// For all but the last step R(j) feeds only itself.
		for steps > 1 {
			m.rehashPart(j, j)
			steps--
		}
		// The last step reseeds R(j+1)...R(3) from the updated R(j).
		for k := RatchetParts - 1; k >= j; k-- {
			m.rehashPart(j, k)
		}
		m.Counter = target & mask
	}
	return nil
}

// Zero wipes the ratchet state.
func (m *Ratchet) Zero() {
	memzero.Zero(m.Data[:])
	m.Counter = 0
}

// PickleTo writes the ratchet into e.
func (m *Ratchet) PickleTo(e *pickle.Encoder) {
	e.Write(m.Data[:])
	e.WriteUInt32(m.Counter)
}

// UnpickleFrom restores the ratchet from d.
func (m *Ratchet) UnpickleFrom(d *pickle.Decoder) error {
	data, err := d.ReadBytes(RatchetLength)
	if err != nil {
		return err
	}
	copy(m.Data[:], data)
	m.Counter, err = d.ReadUInt32()
	return err
}

// Version bytes and lengths of the two session-key formats.
const (
	sharingVersion = 0x02
	exportVersion  = 0x01

	sharingLength = 1 + 4 + RatchetLength + types.KeyLength + types.SignatureLength
	exportLength  = 1 + 4 + RatchetLength + types.KeyLength
)
