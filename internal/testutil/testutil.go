// Package testutil builds DEFLATE and gzip byte streams for tests, either by
// hand (BitWriter) or with a reference encoder.
package testutil

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"math/rand"

	kflate "github.com/klauspost/compress/flate"
	kgzip "github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// BitWriter packs bit fields least significant bit first, the DEFLATE order.
type BitWriter struct {
	buf   []byte
	bits  uint64
	nbits uint
}

// WriteBits appends the low n bits of v.
func (w *BitWriter) WriteBits(v uint32, n uint) {
	w.bits |= uint64(v&(1<<n-1)) << w.nbits
	w.nbits += n

	for w.nbits >= 8 {
		w.buf = append(w.buf, byte(w.bits))
		w.bits >>= 8
		w.nbits -= 8
	}
}

// WriteCode appends an n bit Huffman code, most significant bit first.
func (w *BitWriter) WriteCode(code uint32, n uint) {
	var reversed uint32
	for i := uint(0); i < n; i++ {
		reversed |= (code >> i & 1) << (n - 1 - i)
	}

	w.WriteBits(reversed, n)
}

// Align pads with zero bits up to the next byte boundary.
func (w *BitWriter) Align() {
	if w.nbits > 0 {
		w.WriteBits(0, 8-w.nbits)
	}
}

// WriteBytes aligns and appends p verbatim.
func (w *BitWriter) WriteBytes(p []byte) {
	w.Align()
	w.buf = append(w.buf, p...)
}

// Bytes returns the stream so far, zero padded to a whole byte.
func (w *BitWriter) Bytes() []byte {
	w.Align()
	return w.buf
}

// WriteFixedLiteral appends lit/len symbol sym using the fixed Huffman code.
func (w *BitWriter) WriteFixedLiteral(sym int) {
	switch {
	case sym < 144:
		w.WriteCode(uint32(0x30+sym), 8)
	case sym < 256:
		w.WriteCode(uint32(0x190+sym-144), 9)
	case sym < 280:
		w.WriteCode(uint32(sym-256), 7)
	default:
		w.WriteCode(uint32(0xc0+sym-280), 8)
	}
}

// MinimalHeader is a gzip header with no optional fields.
var MinimalHeader = []byte{0x1f, 0x8b, 0x08, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xff}

// Member frames a raw DEFLATE stream as a gzip member whose footer matches data.
func Member(header, deflated, data []byte) []byte {
	out := make([]byte, 0, len(header)+len(deflated)+8)
	out = append(out, header...)
	out = append(out, deflated...)
	out = binary.LittleEndian.AppendUint32(out, crc32.ChecksumIEEE(data))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(data)))

	return out
}

// Gzip compresses data as a single member with the reference encoder.
func Gzip(data []byte, level int) ([]byte, error) {
	return GzipHeader(data, level, kgzip.Header{})
}

// GzipHeader is Gzip with the given header fields.
func GzipHeader(data []byte, level int, hdr kgzip.Header) ([]byte, error) {
	var buf bytes.Buffer

	w, err := kgzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create gzip writer")
	}

	w.Header = hdr

	if _, err := w.Write(data); err != nil {
		return nil, errors.Wrap(err, "unable to write gzip data")
	}

	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "unable to close gzip writer")
	}

	return buf.Bytes(), nil
}

// Deflate compresses data as a raw DEFLATE stream with the reference encoder.
func Deflate(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer

	w, err := kflate.NewWriter(&buf, level)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create flate writer")
	}

	if _, err := w.Write(data); err != nil {
		return nil, errors.Wrap(err, "unable to write flate data")
	}

	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "unable to close flate writer")
	}

	return buf.Bytes(), nil
}

// Corpus returns n bytes of deterministic, moderately compressible text.
func Corpus(n int, seed int64) []byte {
	words := []string{
		"member ", "header ", "deflate ", "huffman ", "window ", "distance ",
		"literal ", "checksum ", "the ", "a ", "of ", "block\n", "32768 ", "\x00\xff",
	}

	rng := rand.New(rand.NewSource(seed))
	out := make([]byte, 0, n+16)

	for len(out) < n {
		if rng.Intn(10) == 0 {
			out = append(out, byte(rng.Intn(256)))
			continue
		}

		out = append(out, words[rng.Intn(len(words))]...)
	}

	return out[:n]
}

// Random returns n incompressible bytes.
func Random(n int, seed int64) []byte {
	out := make([]byte, n)
	rand.New(rand.NewSource(seed)).Read(out)

	return out
}
