// Package intl maps translation keys to the short identifiers a minifier
// emits for them, and rewrites match patterns that name keys symbolically.
package intl

import (
	"encoding/binary"
	"math/bits"

	"github.com/kernel/extkit/pkg/xxh64"
)

// Alphabet is the 64-symbol set short identifiers draw from.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// IDLength is the length of every identifier ShortID returns.
const IDLength = 6

var littleEndianHost = binary.NativeEndian.Uint16([]byte{1, 0}) == 1

// ShortID encodes a digest as a six character identifier.
//
// The digest is first written as its minimal big-endian byte string (leading
// zero bytes dropped) and reversed on little-endian hosts. Only the first four
// bytes are used; positions past the end read as zero. The sixth character
// takes both of its halves from the fourth byte.
func ShortID(digest uint64) string {
	b := digestBytes(digest)
	at := func(i int) byte {
		if i < len(b) {
			return b[i]
		}
		return 0
	}
	b0, b1, b2, b3 := at(0), at(1), at(2), at(3)

	return string([]byte{
		Alphabet[b0>>2],
		Alphabet[(b0&3)<<4|b1>>4],
		Alphabet[(b1&15)<<2|b2>>6],
		Alphabet[b2&63],
		Alphabet[b3>>2],
		Alphabet[(b3&3)<<4|b3>>4],
	})
}

func digestBytes(v uint64) []byte {
	n := (bits.Len64(v) + 7) / 8
	b := make([]byte, n)
	for i := 0; i < n; i++ {
		b[n-1-i] = byte(v >> (8 * i))
	}
	if littleEndianHost {
		for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
			b[i], b[j] = b[j], b[i]
		}
	}
	return b
}

// HashKey returns the identifier for a translation key: the XXH64 digest of
// its UTF-8 bytes with seed 0, encoded by ShortID.
func HashKey(key string) string {
	return ShortID(xxh64.Sum64String(key, 0))
}
