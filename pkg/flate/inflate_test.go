package flate

import (
	"bytes"
	stdflate "compress/flate"
	"context"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deflate(t *testing.T, data []byte, level int, dict []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	var w *stdflate.Writer
	var err error
	if dict != nil {
		w, err = stdflate.NewWriterDict(&buf, level, dict)
	} else {
		w, err = stdflate.NewWriter(&buf, level)
	}
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func sampleText(n int) []byte {
	words := strings.Fields("the quick brown fox jumps over the lazy dog while manifest background content scripts load icons")
	r := rand.New(rand.NewSource(7))
	var b bytes.Buffer
	for b.Len() < n {
		b.WriteString(words[r.Intn(len(words))])
		b.WriteByte(' ')
	}
	return b.Bytes()[:n]
}

func TestDecodeRoundTrip(t *testing.T) {
	random := make([]byte, 100_000)
	rand.New(rand.NewSource(1)).Read(random)

	inputs := map[string][]byte{
		"empty":      {},
		"single":     []byte("a"),
		"text":       sampleText(70_000),
		"random":     random,
		"run":        bytes.Repeat([]byte{'z'}, 300_000),
		"small-text": []byte("hello, hello, hello world"),
	}
	levels := map[string]int{
		"stored":      stdflate.NoCompression,
		"speed":       stdflate.BestSpeed,
		"default":     stdflate.DefaultCompression,
		"best":        stdflate.BestCompression,
		"huffmanOnly": stdflate.HuffmanOnly,
	}

	for name, data := range inputs {
		for lname, level := range levels {
			t.Run(name+"/"+lname, func(t *testing.T) {
				compressed := deflate(t, data, level, nil)
				got, err := Decode(compressed, Options{ExpectedSize: len(data)})
				require.NoError(t, err)
				assert.True(t, bytes.Equal(data, got), "decoded output differs from input")
			})
		}
	}
}

func TestDecodeWithoutSizeHint(t *testing.T) {
	data := sampleText(5000)
	got, err := Decode(deflate(t, data, stdflate.DefaultCompression, nil), Options{})
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestDecodeFixedHuffmanLiteral(t *testing.T) {
	// zlib's raw encoding of "a": one final fixed-Huffman block.
	got, err := Decode([]byte{0x4b, 0x04, 0x00}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "a", string(got))
}

// backRefAtStart is a final fixed-Huffman block holding a single
// length 3 / distance 1 pair followed by end-of-block.
var backRefAtStart = []byte{0x03, 0x02, 0x00}

func TestDecodeBackReferenceBeforeStart(t *testing.T) {
	_, err := Decode(backRefAtStart, Options{})
	assert.ErrorIs(t, err, ErrInvalidBackReference)
}

func TestDecodeBackReferenceIntoDictionary(t *testing.T) {
	got, err := Decode(backRefAtStart, Options{Dictionary: []byte("qx")})
	require.NoError(t, err)
	assert.Equal(t, "xxx", string(got))
}

func TestDecodeDynamicBlockDistanceBeyondOutput(t *testing.T) {
	dict := sampleText(2000)
	data := append(append([]byte{}, dict...), sampleText(6000)...)
	compressed := deflate(t, data, stdflate.BestCompression, dict)
	require.Equal(t, uint8(blockDynamic), (compressed[0]>>1)&3, "fixture should start with a dynamic block")

	_, err := Decode(compressed, Options{})
	assert.ErrorIs(t, err, ErrInvalidBackReference)

	got, err := Decode(compressed, Options{Dictionary: dict})
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestDecodeErrors(t *testing.T) {
	valid := deflate(t, sampleText(4000), stdflate.DefaultCompression, nil)

	tests := []struct {
		name  string
		input []byte
		want  error
	}{
		{"empty input", nil, ErrTruncatedStream},
		{"reserved block type", []byte{0x07}, ErrInvalidBlockType},
		{"stored length mismatch", []byte{0x01, 0x05, 0x00, 0x00, 0x00, 'h', 'e', 'l', 'l', 'o'}, ErrInvalidStoredBlockLength},
		{"stored block cut short", []byte{0x01, 0x05, 0x00, 0xfa, 0xff, 'h', 'e'}, ErrTruncatedStream},
		{"no final block", []byte{0x00, 0x00, 0x00, 0xff, 0xff}, ErrTruncatedStream},
		{"truncated compressed data", valid[:len(valid)/2], ErrTruncatedStream},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Decode(tt.input, Options{})
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, out)
		})
	}
}

func TestDecodeStoredBlock(t *testing.T) {
	got, err := Decode([]byte{0x01, 0x05, 0x00, 0xfa, 0xff, 'h', 'e', 'l', 'l', 'o'}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}

func TestHuffmanTableRejectsOversubscribed(t *testing.T) {
	_, err := newHuffmanTable([]uint8{1, 1, 1})
	assert.ErrorIs(t, err, ErrInvalidHuffmanCode)
}

func TestHuffmanTableCanonicalOrder(t *testing.T) {
	// RFC 1951 section 3.2.2 example: lengths (3,3,3,3,3,2,4,4) give
	// F=00, A=010 ... E=110, G=1110, H=1111.
	table, err := newHuffmanTable([]uint8{3, 3, 3, 3, 3, 2, 4, 4})
	require.NoError(t, err)

	// H=1111 followed by F=00, packed starting at the code's first bit.
	br := newBitReader([]byte{0x0f})
	sym, err := table.decode(&br)
	require.NoError(t, err)
	assert.Equal(t, 7, sym)
	sym, err = table.decode(&br)
	require.NoError(t, err)
	assert.Equal(t, 5, sym)
}

func TestBitReader(t *testing.T) {
	br := newBitReader([]byte{0b10110101, 0xff})
	v, err := br.bits(3)
	require.NoError(t, err)
	assert.Equal(t, uint32(0b101), v)
	v, err = br.bits(7)
	require.NoError(t, err)
	assert.Equal(t, uint32(0b1110110), v)
	br.alignByte()
	assert.Equal(t, uint64(0), br.remaining())
	_, err = br.bits(1)
	assert.ErrorIs(t, err, ErrTruncatedStream)
}

func TestDecodeAsync(t *testing.T) {
	data := sampleText(600_000)
	compressed := deflate(t, data, stdflate.DefaultCompression, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	got, err := Await(ctx, DecodeAsync(compressed, Options{ExpectedSize: len(data)}))
	require.NoError(t, err)
	assert.Equal(t, data, got)

	_, err = Await(ctx, DecodeAsync([]byte{0x07}, Options{}))
	assert.ErrorIs(t, err, ErrInvalidBlockType)
}

func TestAwaitAbandoned(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Await(ctx, make(chan Result))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPool(t *testing.T) {
	p := NewPool(3)
	defer p.Close()

	var chans []<-chan Result
	var want [][]byte
	for i := 0; i < 8; i++ {
		data := sampleText(10_000 + i*1000)
		want = append(want, data)
		chans = append(chans, p.Submit(deflate(t, data, stdflate.BestSpeed, nil), Options{}))
	}
	for i, ch := range chans {
		res := <-ch
		require.NoError(t, res.Err)
		assert.Equal(t, want[i], res.Data)
	}
}
