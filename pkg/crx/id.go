package crx

import (
	"crypto/sha256"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers in the CRX3 CrxFileHeader and SignedData messages.
const (
	fieldRSAProof        protowire.Number = 2
	fieldSignedHeader    protowire.Number = 10000
	fieldProofPublicKey  protowire.Number = 1
	fieldSignedDataCrxID protowire.Number = 1

	idBytes = 16
)

// IDFromPublicKey derives an extension id from a DER public key: the first
// 16 bytes of its SHA-256, one letter a-p per nibble.
func IDFromPublicKey(pub []byte) string {
	sum := sha256.Sum256(pub)
	return encodeID(sum[:idBytes])
}

func encodeID(b []byte) string {
	out := make([]byte, 0, 2*len(b))
	for _, c := range b {
		out = append(out, 'a'+c>>4, 'a'+c&0x0f)
	}
	return string(out)
}

// ExtensionID returns the id a packaged extension declares. CRX2 ids come from
// the embedded public key. CRX3 ids come from the signed header's crx_id, or
// from the first RSA proof key when no signed data is present. Bare ZIP input
// carries no id.
func ExtensionID(data []byte) (string, error) {
	h, err := Inspect(data)
	if err != nil {
		return "", err
	}
	switch h.Version {
	case 2:
		return IDFromPublicKey(data[16 : 16+h.PublicKeyLength]), nil
	case 3:
		return idFromHeader(data[12 : 12+h.HeaderLength])
	default:
		return "", fmt.Errorf("%w: bare ZIP archives carry no extension id", ErrInvalidContainerFormat)
	}
}

func idFromHeader(b []byte) (string, error) {
	var rsaKey []byte
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return "", fmt.Errorf("%w: %w", ErrInvalidContainerFormat, protowire.ParseError(n))
		}
		b = b[n:]

		if typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return "", fmt.Errorf("%w: %w", ErrInvalidContainerFormat, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}

		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return "", fmt.Errorf("%w: %w", ErrInvalidContainerFormat, protowire.ParseError(n))
		}
		b = b[n:]

		switch num {
		case fieldSignedHeader:
			if id := bytesField(v, fieldSignedDataCrxID); len(id) == idBytes {
				return encodeID(id), nil
			}
		case fieldRSAProof:
			if rsaKey == nil {
				rsaKey = bytesField(v, fieldProofPublicKey)
			}
		}
	}
	if rsaKey != nil {
		return IDFromPublicKey(rsaKey), nil
	}
	return "", fmt.Errorf("%w: CRX3 header has no crx_id", ErrInvalidContainerFormat)
}

// bytesField returns the first length-delimited field numbered want in msg.
func bytesField(msg []byte, want protowire.Number) []byte {
	for len(msg) > 0 {
		num, typ, n := protowire.ConsumeTag(msg)
		if n < 0 {
			return nil
		}
		msg = msg[n:]
		if num == want && typ == protowire.BytesType {
			v, n := protowire.ConsumeBytes(msg)
			if n < 0 {
				return nil
			}
			return v
		}
		n = protowire.ConsumeFieldValue(num, typ, msg)
		if n < 0 {
			return nil
		}
		msg = msg[n:]
	}
	return nil
}
