package crx

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

var payload = append([]byte{'P', 'K', 0x03, 0x04}, []byte("rest of the archive")...)

func crx2(pubKey, sig, body []byte) []byte {
	out := []byte("Cr24")
	out = binary.LittleEndian.AppendUint32(out, 2)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(pubKey)))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(sig)))
	out = append(out, pubKey...)
	out = append(out, sig...)
	return append(out, body...)
}

func crx3(header, body []byte) []byte {
	out := []byte("Cr24")
	out = binary.LittleEndian.AppendUint32(out, 3)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(header)))
	out = append(out, header...)
	return append(out, body...)
}

func TestUnwrap(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
	}{
		{"crx2", crx2([]byte("public-key-bytes"), []byte("signature"), payload)},
		{"crx3", crx3([]byte("protobuf signed header"), payload)},
		{"bare zip", payload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Unwrap(tt.in)
			require.NoError(t, err)
			assert.Equal(t, payload, got)

			again, err := Unwrap(got)
			require.NoError(t, err)
			assert.Equal(t, got, again)
		})
	}
}

func TestInspect(t *testing.T) {
	h, err := Inspect(crx2(make([]byte, 10), make([]byte, 5), payload))
	require.NoError(t, err)
	assert.Equal(t, Header{Version: 2, PublicKeyLength: 10, SignatureLength: 5, PayloadOffset: 31}, h)

	h, err = Inspect(crx3(make([]byte, 20), payload))
	require.NoError(t, err)
	assert.Equal(t, Header{Version: 3, HeaderLength: 20, PayloadOffset: 32}, h)
}

func TestUnwrapInvalid(t *testing.T) {
	badVersion := crx3(nil, payload)
	badVersion[4] = 4

	highVersionByte := crx3(nil, payload)
	highVersionByte[5] = 1

	tooLong := crx3(nil, payload)
	binary.LittleEndian.PutUint32(tooLong[8:], 1<<20)

	tests := map[string][]byte{
		"empty":             nil,
		"wrong magic":       []byte("Cr25\x03\x00\x00\x00\x00\x00\x00\x00"),
		"unknown version":   badVersion,
		"nonzero high byte": highVersionByte,
		"header too long":   tooLong,
		"truncated crx2":    []byte("Cr24\x02\x00\x00\x00\x00\x00\x00\x00"),
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Unwrap(in)
			assert.ErrorIs(t, err, ErrInvalidContainerFormat)
		})
	}
}

func TestExtensionIDFromCrx2(t *testing.T) {
	pub := []byte("der-encoded-public-key")
	id, err := ExtensionID(crx2(pub, []byte("sig"), payload))
	require.NoError(t, err)
	assert.Equal(t, IDFromPublicKey(pub), id)
	assert.Len(t, id, 32)
	for _, c := range id {
		assert.True(t, c >= 'a' && c <= 'p', "unexpected %q in %s", c, id)
	}
}

func TestExtensionIDFromCrx3SignedData(t *testing.T) {
	crxID := []byte{0x00, 0x01, 0x23, 0x45, 0x67, 0x89, 0xab, 0xcd, 0xef, 0xff, 0, 0, 0, 0, 0, 0x10}

	var signed []byte
	signed = protowire.AppendTag(signed, 1, protowire.BytesType)
	signed = protowire.AppendBytes(signed, crxID)

	var proof []byte
	proof = protowire.AppendTag(proof, 1, protowire.BytesType)
	proof = protowire.AppendBytes(proof, []byte("rsa-key"))

	var header []byte
	header = protowire.AppendTag(header, 2, protowire.BytesType)
	header = protowire.AppendBytes(header, proof)
	header = protowire.AppendTag(header, 10000, protowire.BytesType)
	header = protowire.AppendBytes(header, signed)

	id, err := ExtensionID(crx3(header, payload))
	require.NoError(t, err)
	assert.Equal(t, "aaabcdefghijklmnopppaaaaaaaaaaba", id)
}

func TestExtensionIDFromCrx3RSAProof(t *testing.T) {
	var proof []byte
	proof = protowire.AppendTag(proof, 1, protowire.BytesType)
	proof = protowire.AppendBytes(proof, []byte("rsa-key"))

	var header []byte
	header = protowire.AppendTag(header, 2, protowire.BytesType)
	header = protowire.AppendBytes(header, proof)

	id, err := ExtensionID(crx3(header, payload))
	require.NoError(t, err)
	assert.Equal(t, IDFromPublicKey([]byte("rsa-key")), id)
}

func TestExtensionIDErrors(t *testing.T) {
	_, err := ExtensionID(payload)
	assert.ErrorIs(t, err, ErrInvalidContainerFormat)

	_, err = ExtensionID(crx3([]byte("not protobuf \xff"), payload))
	assert.ErrorIs(t, err, ErrInvalidContainerFormat)
}
