// Package xxh64 implements the 64-bit xxHash algorithm (XXH64) as an
// incremental hash.Hash64 with a 32-bit seed.
//
// All arithmetic is on uint64 with wraparound and all input words are read
// little-endian, so digests are identical on every platform.
package xxh64

import (
	"encoding/binary"
	"hash"
	"math/bits"
)

const (
	prime1 uint64 = 11400714785074694791
	prime2 uint64 = 14029467366897019727
	prime3 uint64 = 1609587929392839161
	prime4 uint64 = 9650029242287828579
	prime5 uint64 = 2870177450012600261

	// Size is the digest size in bytes.
	Size = 8
	// BlockSize is the stripe size the accumulators consume.
	BlockSize = 32
)

// Digest holds the state of one running hash. It is not safe for concurrent
// use.
type Digest struct {
	seed           uint32
	v1, v2, v3, v4 uint64
	total          uint64
	mem            [BlockSize]byte
	n              int // bytes buffered in mem
}

var _ hash.Hash64 = (*Digest)(nil)

// New returns a Digest initialized with seed.
func New(seed uint32) *Digest {
	d := &Digest{}
	d.ResetSeed(seed)
	return d
}

// Reset restarts the hash with the seed it was created with.
func (d *Digest) Reset() {
	d.ResetSeed(d.seed)
}

// ResetSeed restarts the hash with a new seed.
func (d *Digest) ResetSeed(seed uint32) {
	s := uint64(seed)
	d.seed = seed
	d.v1 = s + prime1 + prime2
	d.v2 = s + prime2
	d.v3 = s
	d.v4 = s - prime1
	d.total = 0
	d.n = 0
}

func (d *Digest) Size() int      { return Size }
func (d *Digest) BlockSize() int { return BlockSize }

// Write folds b into the state. Input is buffered until a full 32-byte stripe
// is available. It always returns len(b), nil.
func (d *Digest) Write(b []byte) (int, error) {
	n := len(b)
	d.total += uint64(n)

	if d.n+n < BlockSize {
		copy(d.mem[d.n:], b)
		d.n += n
		return n, nil
	}

	if d.n > 0 {
		c := copy(d.mem[d.n:], b)
		d.stripe(d.mem[:])
		b = b[c:]
		d.n = 0
	}
	for len(b) >= BlockSize {
		d.stripe(b[:BlockSize])
		b = b[BlockSize:]
	}
	d.n = copy(d.mem[:], b)
	return n, nil
}

// WriteString is Write for string input, hashing its UTF-8 bytes.
func (d *Digest) WriteString(s string) (int, error) {
	return d.Write([]byte(s))
}

func (d *Digest) stripe(b []byte) {
	d.v1 = round(d.v1, binary.LittleEndian.Uint64(b[0:]))
	d.v2 = round(d.v2, binary.LittleEndian.Uint64(b[8:]))
	d.v3 = round(d.v3, binary.LittleEndian.Uint64(b[16:]))
	d.v4 = round(d.v4, binary.LittleEndian.Uint64(b[24:]))
}

// Sum64 returns the digest of everything written so far. It does not change
// the state, so writing may continue afterwards.
func (d *Digest) Sum64() uint64 {
	var h uint64
	if d.total >= BlockSize {
		h = bits.RotateLeft64(d.v1, 1) + bits.RotateLeft64(d.v2, 7) +
			bits.RotateLeft64(d.v3, 12) + bits.RotateLeft64(d.v4, 18)
		h = mergeRound(h, d.v1)
		h = mergeRound(h, d.v2)
		h = mergeRound(h, d.v3)
		h = mergeRound(h, d.v4)
	} else {
		h = uint64(d.seed) + prime5
	}
	h += d.total

	b := d.mem[:d.n]
	for ; len(b) >= 8; b = b[8:] {
		h ^= round(0, binary.LittleEndian.Uint64(b))
		h = bits.RotateLeft64(h, 27)*prime1 + prime4
	}
	if len(b) >= 4 {
		h ^= uint64(binary.LittleEndian.Uint32(b)) * prime1
		h = bits.RotateLeft64(h, 23)*prime2 + prime3
		b = b[4:]
	}
	for _, c := range b {
		h ^= uint64(c) * prime5
		h = bits.RotateLeft64(h, 11) * prime1
	}

	h ^= h >> 33
	h *= prime2
	h ^= h >> 29
	h *= prime3
	h ^= h >> 32
	return h
}

// Sum appends the big-endian digest to b.
func (d *Digest) Sum(b []byte) []byte {
	return binary.BigEndian.AppendUint64(b, d.Sum64())
}

func round(acc, input uint64) uint64 {
	acc += input * prime2
	acc = bits.RotateLeft64(acc, 31)
	return acc * prime1
}

func mergeRound(acc, val uint64) uint64 {
	acc ^= round(0, val)
	return acc*prime1 + prime4
}

// Sum64 returns the digest of b.
func Sum64(b []byte, seed uint32) uint64 {
	d := New(seed)
	d.Write(b)
	return d.Sum64()
}

// Sum64String returns the digest of the UTF-8 bytes of s.
func Sum64String(s string, seed uint32) uint64 {
	return Sum64([]byte(s), seed)
}
