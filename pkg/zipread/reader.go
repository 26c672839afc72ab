// Package zipread parses ZIP archives held entirely in memory, including the
// zip64 extensions, and extracts entries with the decoder in pkg/flate.
package zipread

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"strings"
	"unicode/utf8"

	"github.com/kernel/extkit/pkg/flate"
	"golang.org/x/text/encoding/charmap"
)

var (
	ErrNotAZipArchive               = errors.New("zipread: not a zip archive")
	ErrUnsupportedCompressionMethod = errors.New("zipread: unsupported compression method")
	ErrChecksumMismatch             = errors.New("zipread: checksum mismatch")
)

const (
	Store   uint16 = 0
	Deflate uint16 = 8

	// MetadataDir is the namespace signed packages reserve for verification
	// data; it is never materialized.
	MetadataDir = "_metadata/"

	localHeaderSig   = 0x04034b50
	centralHeaderSig = 0x02014b50
	eocdSig          = 0x06054b50
	zip64LocatorSig  = 0x07064b50
	zip64EOCDSig     = 0x06064b50
	zip64ExtraID     = 0x0001

	eocdLen          = 22
	zip64LocatorLen  = 20
	centralHeaderLen = 46
	localHeaderLen   = 30
	maxCommentLen    = 0xffff

	flagUTF8 = 1 << 11

	// Entries at least this large that also compress well are decoded off the
	// calling goroutine.
	asyncThreshold = 512 << 10
	asyncMaxRatio  = 0.8
)

// Entry describes one file or directory in an archive.
type Entry struct {
	Name              string
	Method            uint16
	CompressedSize    uint64
	UncompressedSize  uint64
	LocalHeaderOffset uint64
	CRC32             uint32

	dataOffset uint64
}

// IsDir reports whether the entry names a directory.
func (e Entry) IsDir() bool {
	return strings.HasSuffix(e.Name, "/")
}

// IsMetadata reports whether the entry lives under MetadataDir.
func (e Entry) IsMetadata() bool {
	return strings.HasPrefix(e.Name, MetadataDir)
}

// Open locates the end of central directory record and parses every central
// directory entry. Each entry's data range is checked against the archive size.
func Open(data []byte) ([]Entry, error) {
	eocd, err := findEOCD(data)
	if err != nil {
		return nil, err
	}

	count := uint64(le16(data, eocd+10))
	offset := uint64(le32(data, eocd+16))
	if count == 0xffff || offset == 0xffffffff {
		count, offset, err = readZip64EOCD(data, eocd)
		if err != nil {
			return nil, err
		}
	}

	entries := make([]Entry, 0, min(count, uint64(len(data)/centralHeaderLen)))
	p := offset
	for i := uint64(0); i < count; i++ {
		e, next, err := readCentralHeader(data, p)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
		p = next
	}
	return entries, nil
}

// ExtractEntry returns the uncompressed bytes of e. Large deflated entries are
// decoded on a background goroutine; ctx only bounds how long the caller waits.
func ExtractEntry(ctx context.Context, e Entry, data []byte) ([]byte, error) {
	raw := data[e.dataOffset : e.dataOffset+e.CompressedSize]

	var out []byte
	var err error
	switch e.Method {
	case Store:
		out = raw
	case Deflate:
		// DEFLATE cannot expand data by more than about 1032:1, which caps the
		// preallocation a forged size field can request.
		opts := flate.Options{ExpectedSize: int(min(e.UncompressedSize, e.CompressedSize*1032+64))}
		if e.UncompressedSize >= asyncThreshold && float64(e.CompressedSize) <= asyncMaxRatio*float64(e.UncompressedSize) {
			out, err = flate.Await(ctx, flate.DecodeAsync(raw, opts))
		} else {
			out, err = flate.Decode(raw, opts)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name, err)
		}
	default:
		return nil, fmt.Errorf("%w: method %d for %s", ErrUnsupportedCompressionMethod, e.Method, e.Name)
	}

	if sum := crc32.ChecksumIEEE(out); sum != e.CRC32 {
		return nil, fmt.Errorf("%w: %s has crc32 %08x, want %08x", ErrChecksumMismatch, e.Name, sum, e.CRC32)
	}
	return out, nil
}

// findEOCD scans backwards over the trailer window that can hold the record
// plus a maximum length comment.
func findEOCD(data []byte) (int, error) {
	if len(data) < eocdLen {
		return 0, fmt.Errorf("%w: %d bytes is too short", ErrNotAZipArchive, len(data))
	}
	stop := max(0, len(data)-eocdLen-maxCommentLen)
	for i := len(data) - eocdLen; i >= stop; i-- {
		if le32(data, i) == eocdSig {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: end of central directory not found", ErrNotAZipArchive)
}

func readZip64EOCD(data []byte, eocd int) (count, offset uint64, err error) {
	loc := eocd - zip64LocatorLen
	if loc < 0 || le32(data, loc) != zip64LocatorSig {
		return 0, 0, fmt.Errorf("%w: zip64 locator missing", ErrNotAZipArchive)
	}
	rec := le64(data, loc+8)
	if len(data) < 56 || rec > uint64(len(data)-56) || le32(data, int(rec)) != zip64EOCDSig {
		return 0, 0, fmt.Errorf("%w: zip64 end of central directory missing", ErrNotAZipArchive)
	}
	return le64(data, int(rec)+32), le64(data, int(rec)+48), nil
}

func readCentralHeader(data []byte, p uint64) (Entry, uint64, error) {
	if p > uint64(len(data)) || uint64(len(data))-p < centralHeaderLen {
		return Entry{}, 0, fmt.Errorf("%w: central directory out of bounds", ErrNotAZipArchive)
	}
	i := int(p)
	if le32(data, i) != centralHeaderSig {
		return Entry{}, 0, fmt.Errorf("%w: bad central directory signature at %d", ErrNotAZipArchive, i)
	}
	flags := le16(data, i+8)
	nameLen := int(le16(data, i+28))
	extraLen := int(le16(data, i+30))
	commentLen := int(le16(data, i+32))
	nameStart := i + centralHeaderLen
	extraStart := nameStart + nameLen
	next := extraStart + extraLen + commentLen
	if next > len(data) {
		return Entry{}, 0, fmt.Errorf("%w: central directory entry truncated", ErrNotAZipArchive)
	}

	e := Entry{
		Name:              decodeName(data[nameStart:extraStart], flags&flagUTF8 != 0),
		Method:            le16(data, i+10),
		CRC32:             le32(data, i+16),
		CompressedSize:    uint64(le32(data, i+20)),
		UncompressedSize:  uint64(le32(data, i+24)),
		LocalHeaderOffset: uint64(le32(data, i+42)),
	}
	applyZip64Extra(&e, data[extraStart:extraStart+extraLen])

	if err := locateData(&e, data); err != nil {
		return Entry{}, 0, err
	}
	return e, uint64(next), nil
}

// applyZip64Extra replaces sentinel sizes and offsets with the 64-bit values
// from the zip64 extended information field. Values appear only for fields
// whose 32-bit form is the sentinel, in fixed order.
func applyZip64Extra(e *Entry, extra []byte) {
	for len(extra) >= 4 {
		id := le16(extra, 0)
		size := int(le16(extra, 2))
		if 4+size > len(extra) {
			return
		}
		if id == zip64ExtraID {
			field := extra[4 : 4+size]
			for _, v := range []*uint64{&e.UncompressedSize, &e.CompressedSize, &e.LocalHeaderOffset} {
				if *v != 0xffffffff {
					continue
				}
				if len(field) < 8 {
					return
				}
				*v = binary.LittleEndian.Uint64(field)
				field = field[8:]
			}
			return
		}
		extra = extra[4+size:]
	}
}

func locateData(e *Entry, data []byte) error {
	size := uint64(len(data))
	if e.LocalHeaderOffset > size || size-e.LocalHeaderOffset < localHeaderLen {
		return fmt.Errorf("%w: local header for %s out of bounds", ErrNotAZipArchive, e.Name)
	}
	h := int(e.LocalHeaderOffset)
	if le32(data, h) != localHeaderSig {
		return fmt.Errorf("%w: bad local header signature for %s", ErrNotAZipArchive, e.Name)
	}
	start := e.LocalHeaderOffset + localHeaderLen + uint64(le16(data, h+26)) + uint64(le16(data, h+28))
	if start > size || size-start < e.CompressedSize {
		return fmt.Errorf("%w: data for %s exceeds archive", ErrNotAZipArchive, e.Name)
	}
	e.dataOffset = start
	return nil
}

func decodeName(b []byte, isUTF8 bool) string {
	if isUTF8 || isASCII(b) {
		return string(b)
	}
	name, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(name)
}

// isASCII reports whether b decodes the same under every name encoding.
func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

func le16(b []byte, i int) uint16 { return binary.LittleEndian.Uint16(b[i:]) }
func le32(b []byte, i int) uint32 { return binary.LittleEndian.Uint32(b[i:]) }
func le64(b []byte, i int) uint64 { return binary.LittleEndian.Uint64(b[i:]) }
