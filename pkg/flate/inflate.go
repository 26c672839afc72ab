// Package flate decodes raw DEFLATE streams as described in RFC 1951.
//
// Decode works on a complete in-memory input and either returns the whole
// output or an error; it never returns partially decoded data.
package flate

import (
	"errors"
	"fmt"
)

var (
	ErrTruncatedStream          = errors.New("flate: truncated stream")
	ErrInvalidBlockType         = errors.New("flate: invalid block type")
	ErrInvalidHuffmanCode       = errors.New("flate: invalid huffman code")
	ErrInvalidBackReference     = errors.New("flate: invalid back reference")
	ErrInvalidStoredBlockLength = errors.New("flate: invalid stored block length")
)

const (
	// WindowSize is the largest distance a back-reference may span.
	WindowSize = 1 << 15

	maxNumLit    = 286
	maxNumDist   = 30
	numMetaCodes = 19
	endOfBlock   = 256
)

const (
	blockStored = iota
	blockFixed
	blockDynamic
	blockReserved
)

var (
	lengthBase = [29]uint16{
		3, 4, 5, 6, 7, 8, 9, 10, 11, 13, 15, 17, 19, 23, 27, 31,
		35, 43, 51, 59, 67, 83, 99, 115, 131, 163, 195, 227, 258,
	}
	lengthExtra = [29]uint8{
		0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 2, 2, 2, 2,
		3, 3, 3, 3, 4, 4, 4, 4, 5, 5, 5, 5, 0,
	}
	distBase = [30]uint16{
		1, 2, 3, 4, 5, 7, 9, 13, 17, 25, 33, 49, 65, 97, 129, 193,
		257, 385, 513, 769, 1025, 1537, 2049, 3073, 4097, 6145,
		8193, 12289, 16385, 24577,
	}
	distExtra = [30]uint8{
		0, 0, 0, 0, 1, 1, 2, 2, 3, 3, 4, 4, 5, 5, 6, 6,
		7, 7, 8, 8, 9, 9, 10, 10, 11, 11, 12, 12, 13, 13,
	}
	// Order in which code length code lengths are transmitted.
	metaOrder = [numMetaCodes]uint8{16, 17, 18, 0, 8, 7, 9, 6, 10, 5, 11, 4, 12, 3, 13, 2, 14, 1, 15}
)

// Options tunes a single Decode call.
type Options struct {
	// ExpectedSize preallocates the output buffer. It is a hint, not a limit.
	ExpectedSize int
	// Dictionary holds bytes that logically precede the output. Back-references
	// reaching before the start of the output read from its tail.
	Dictionary []byte
}

// decoder is the state of one Decode call. out is the only output buffer;
// back-references index into it rather than into a separate window.
type decoder struct {
	br   bitReader
	out  []byte
	dict []byte
}

// Decode inflates a raw DEFLATE stream.
func Decode(input []byte, opts Options) ([]byte, error) {
	size := opts.ExpectedSize
	if size <= 0 {
		size = len(input) * 3
	}
	d := &decoder{
		br:   newBitReader(input),
		out:  make([]byte, 0, size),
		dict: opts.Dictionary,
	}
	if len(d.dict) > WindowSize {
		d.dict = d.dict[len(d.dict)-WindowSize:]
	}
	if err := d.run(); err != nil {
		return nil, err
	}
	return d.out, nil
}

func (d *decoder) run() error {
	for {
		header, err := d.br.bits(3)
		if err != nil {
			return err
		}
		final := header&1 == 1
		switch header >> 1 {
		case blockStored:
			err = d.stored()
		case blockFixed:
			lit, dist := fixedTables()
			err = d.huffmanBlock(lit, dist)
		case blockDynamic:
			err = d.dynamic()
		default:
			return ErrInvalidBlockType
		}
		if err != nil {
			return err
		}
		if final {
			return nil
		}
	}
}

func (d *decoder) stored() error {
	d.br.alignByte()
	hdr, err := d.br.bytes(4)
	if err != nil {
		return err
	}
	n := uint16(hdr[0]) | uint16(hdr[1])<<8
	nn := uint16(hdr[2]) | uint16(hdr[3])<<8
	if n != ^nn {
		return fmt.Errorf("%w: %d vs complement %d", ErrInvalidStoredBlockLength, n, nn)
	}
	data, err := d.br.bytes(int(n))
	if err != nil {
		return err
	}
	d.out = append(d.out, data...)
	return nil
}

func (d *decoder) dynamic() error {
	hlit, err := d.br.bits(5)
	if err != nil {
		return err
	}
	hdist, err := d.br.bits(5)
	if err != nil {
		return err
	}
	hclen, err := d.br.bits(4)
	if err != nil {
		return err
	}
	nlit, ndist, nmeta := int(hlit)+257, int(hdist)+1, int(hclen)+4
	if nlit > maxNumLit || ndist > maxNumDist {
		return fmt.Errorf("%w: %d literal and %d distance codes", ErrInvalidHuffmanCode, nlit, ndist)
	}

	var metaLengths [numMetaCodes]uint8
	for i := 0; i < nmeta; i++ {
		v, err := d.br.bits(3)
		if err != nil {
			return err
		}
		metaLengths[metaOrder[i]] = uint8(v)
	}
	meta, err := newHuffmanTable(metaLengths[:])
	if err != nil {
		return err
	}

	lengths := make([]uint8, nlit+ndist)
	for i := 0; i < len(lengths); {
		sym, err := meta.decode(&d.br)
		if err != nil {
			return err
		}
		if sym < 16 {
			lengths[i] = uint8(sym)
			i++
			continue
		}
		var rep int
		var val uint8
		switch sym {
		case 16:
			if i == 0 {
				return fmt.Errorf("%w: repeat with no previous length", ErrInvalidHuffmanCode)
			}
			val = lengths[i-1]
			v, err := d.br.bits(2)
			if err != nil {
				return err
			}
			rep = 3 + int(v)
		case 17:
			v, err := d.br.bits(3)
			if err != nil {
				return err
			}
			rep = 3 + int(v)
		default:
			v, err := d.br.bits(7)
			if err != nil {
				return err
			}
			rep = 11 + int(v)
		}
		if i+rep > len(lengths) {
			return fmt.Errorf("%w: code length repeat overruns table", ErrInvalidHuffmanCode)
		}
		for ; rep > 0; rep-- {
			lengths[i] = val
			i++
		}
	}

	lit, err := newHuffmanTable(lengths[:nlit])
	if err != nil {
		return err
	}
	dist, err := newHuffmanTable(lengths[nlit:])
	if err != nil {
		return err
	}
	return d.huffmanBlock(lit, dist)
}

func (d *decoder) huffmanBlock(lit, dist *huffmanTable) error {
	for {
		sym, err := lit.decode(&d.br)
		if err != nil {
			return err
		}
		switch {
		case sym < endOfBlock:
			d.out = append(d.out, byte(sym))
			continue
		case sym == endOfBlock:
			return nil
		}

		sym -= 257
		if sym >= len(lengthBase) {
			return fmt.Errorf("%w: length symbol %d", ErrInvalidHuffmanCode, sym+257)
		}
		extra, err := d.br.bits(uint(lengthExtra[sym]))
		if err != nil {
			return err
		}
		length := int(lengthBase[sym]) + int(extra)

		dsym, err := dist.decode(&d.br)
		if err != nil {
			return err
		}
		if dsym >= len(distBase) {
			return fmt.Errorf("%w: distance symbol %d", ErrInvalidHuffmanCode, dsym)
		}
		extra, err = d.br.bits(uint(distExtra[dsym]))
		if err != nil {
			return err
		}
		distance := int(distBase[dsym]) + int(extra)

		if err := d.copyBack(distance, length); err != nil {
			return err
		}
	}
}

// copyBack appends length bytes starting distance bytes behind the end of the
// output. Copies run byte by byte so overlapping references such as distance 1
// repeat the bytes they produce.
func (d *decoder) copyBack(distance, length int) error {
	start := len(d.out) - distance
	if -start > len(d.dict) {
		return fmt.Errorf("%w: distance %d with %d bytes of history",
			ErrInvalidBackReference, distance, len(d.out)+len(d.dict))
	}
	for i := 0; i < length; i++ {
		j := start + i
		if j < 0 {
			d.out = append(d.out, d.dict[len(d.dict)+j])
		} else {
			d.out = append(d.out, d.out[j])
		}
	}
	return nil
}
