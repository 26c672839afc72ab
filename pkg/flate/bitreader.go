package flate

// bitReader reads little-endian bit fields from a byte slice, starting at the
// least significant bit of each byte as RFC 1951 section 3.1.1 requires.
type bitReader struct {
	data []byte
	pos  uint64 // absolute bit offset into data
}

func newBitReader(data []byte) bitReader {
	return bitReader{data: data}
}

// remaining reports how many unread bits are left.
func (br *bitReader) remaining() uint64 {
	total := uint64(len(br.data)) * 8
	if br.pos >= total {
		return 0
	}
	return total - br.pos
}

// peek returns the next n bits (n <= 24) without consuming them. Bits past the
// end of the input read as zero.
func (br *bitReader) peek(n uint) uint32 {
	if n == 0 {
		return 0
	}
	i := br.pos >> 3
	var v uint32
	for k := uint64(0); k < 4 && i+k < uint64(len(br.data)); k++ {
		v |= uint32(br.data[i+k]) << (8 * k)
	}
	return (v >> (br.pos & 7)) & (1<<n - 1)
}

// bits consumes n bits (n <= 24).
func (br *bitReader) bits(n uint) (uint32, error) {
	if uint64(n) > br.remaining() {
		return 0, ErrTruncatedStream
	}
	v := br.peek(n)
	br.pos += uint64(n)
	return v, nil
}

func (br *bitReader) skip(n uint) {
	br.pos += uint64(n)
}

// alignByte discards bits up to the next byte boundary.
func (br *bitReader) alignByte() {
	br.pos = (br.pos + 7) &^ 7
}

// bytes consumes n whole bytes. The reader must be byte aligned.
func (br *bitReader) bytes(n int) ([]byte, error) {
	start := br.pos >> 3
	end := start + uint64(n)
	if end > uint64(len(br.data)) {
		return nil, ErrTruncatedStream
	}
	br.pos = end << 3
	return br.data[start:end], nil
}
