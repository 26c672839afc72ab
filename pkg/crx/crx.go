// Package crx strips the signature header from packaged browser extensions
// (CRX2 and CRX3) to expose the ZIP archive they wrap.
package crx

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

var ErrInvalidContainerFormat = errors.New("crx: invalid container format")

var (
	magic    = []byte("Cr24")
	zipMagic = []byte{'P', 'K', 0x03, 0x04}
)

// Header describes the container framing around the ZIP payload. Version is
// zero for input that is already a bare ZIP archive.
type Header struct {
	Version         uint32
	PublicKeyLength uint32
	SignatureLength uint32
	HeaderLength    uint32
	PayloadOffset   int
}

// Inspect parses the container header.
func Inspect(data []byte) (Header, error) {
	if bytes.HasPrefix(data, zipMagic) {
		return Header{}, nil
	}
	if len(data) < 12 || !bytes.HasPrefix(data, magic) {
		return Header{}, fmt.Errorf("%w: missing Cr24 magic", ErrInvalidContainerFormat)
	}

	h := Header{Version: binary.LittleEndian.Uint32(data[4:])}
	switch h.Version {
	case 2:
		if len(data) < 16 {
			return Header{}, fmt.Errorf("%w: truncated CRX2 header", ErrInvalidContainerFormat)
		}
		h.PublicKeyLength = binary.LittleEndian.Uint32(data[8:])
		h.SignatureLength = binary.LittleEndian.Uint32(data[12:])
		h.PayloadOffset = 16 + int(h.PublicKeyLength) + int(h.SignatureLength)
	case 3:
		h.HeaderLength = binary.LittleEndian.Uint32(data[8:])
		h.PayloadOffset = 12 + int(h.HeaderLength)
	default:
		return Header{}, fmt.Errorf("%w: unsupported version %d", ErrInvalidContainerFormat, h.Version)
	}

	if h.PayloadOffset < 0 || h.PayloadOffset > len(data) {
		return Header{}, fmt.Errorf("%w: header length exceeds file size", ErrInvalidContainerFormat)
	}
	return h, nil
}

// Unwrap returns the ZIP payload. Input that already starts with a ZIP local
// file header is returned unchanged, so Unwrap is idempotent.
func Unwrap(data []byte) ([]byte, error) {
	h, err := Inspect(data)
	if err != nil {
		return nil, err
	}
	return data[h.PayloadOffset:], nil
}
