package flate

import (
	"fmt"
	"math/bits"
	"sync"
)

const maxCodeLen = 15

// huffmanTable is a single-level lookup table indexed by the next maxLen
// input bits. Codes are stored bit-reversed because DEFLATE packs Huffman
// codes starting from their most significant bit.
//
// entry >> 4 is the symbol, entry & 15 is the code length. A zero entry marks
// a bit pattern that no code maps to.
type huffmanTable struct {
	maxLen  uint
	entries []uint16
}

// newHuffmanTable builds canonical codes from a code length per symbol: codes
// are assigned in ascending order of length, then symbol. Incomplete codes are
// accepted; over-subscribed ones are not.
func newHuffmanTable(lengths []uint8) (*huffmanTable, error) {
	var count [maxCodeLen + 1]int
	var maxLen uint
	for _, n := range lengths {
		if n > maxCodeLen {
			return nil, fmt.Errorf("%w: code length %d", ErrInvalidHuffmanCode, n)
		}
		if n == 0 {
			continue
		}
		count[n]++
		if uint(n) > maxLen {
			maxLen = uint(n)
		}
	}

	var next [maxCodeLen + 1]int
	code := 0
	for n := 1; n <= maxCodeLen; n++ {
		code = (code + count[n-1]) << 1
		next[n] = code
		if count[n] > 1<<n-code {
			return nil, fmt.Errorf("%w: over-subscribed code of length %d", ErrInvalidHuffmanCode, n)
		}
	}

	t := &huffmanTable{
		maxLen:  maxLen,
		entries: make([]uint16, 1<<maxLen),
	}
	for sym, n := range lengths {
		if n == 0 {
			continue
		}
		c := next[n]
		next[n]++
		rev := int(bits.Reverse16(uint16(c)) >> (16 - uint(n)))
		entry := uint16(sym<<4 | int(n))
		for i := rev; i < len(t.entries); i += 1 << n {
			t.entries[i] = entry
		}
	}
	return t, nil
}

// decode reads one symbol.
func (t *huffmanTable) decode(br *bitReader) (int, error) {
	e := t.entries[br.peek(t.maxLen)]
	n := uint64(e & 15)
	if e == 0 || n > br.remaining() {
		if br.remaining() < uint64(t.maxLen) {
			return 0, ErrTruncatedStream
		}
		return 0, ErrInvalidHuffmanCode
	}
	br.skip(uint(n))
	return int(e >> 4), nil
}

var (
	fixedOnce     sync.Once
	fixedLiterals *huffmanTable
	fixedDistance *huffmanTable
)

// fixedTables returns the RFC 1951 section 3.2.6 tables.
func fixedTables() (*huffmanTable, *huffmanTable) {
	fixedOnce.Do(func() {
		var lit [288]uint8
		for i := range lit {
			switch {
			case i < 144:
				lit[i] = 8
			case i < 256:
				lit[i] = 9
			case i < 280:
				lit[i] = 7
			default:
				lit[i] = 8
			}
		}
		var dist [30]uint8
		for i := range dist {
			dist[i] = 5
		}
		fixedLiterals, _ = newHuffmanTable(lit[:])
		fixedDistance, _ = newHuffmanTable(dist[:])
	})
	return fixedLiterals, fixedDistance
}
