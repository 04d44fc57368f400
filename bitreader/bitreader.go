// Package bitreader reads DEFLATE-ordered bit fields (least significant bit
// first within each byte) from a byte stream.
package bitreader

import (
	"io"

	"github.com/pkg/errors"
)

// MaxBits is the widest field a single ReadBits call can return.
const MaxBits = 16

var ErrTooManyBits = errors.New("bitreader: at most 16 bits can be read at a time")

// Source is the byte stream underneath a Reader.
type Source interface {
	io.Reader
	io.ByteReader
}

// Reader pulls bit fields from a Source. Residual bits of the last consumed
// byte are kept in buf; buf never holds a whole byte.
type Reader struct {
	src Source
	buf Sequence
}

func NewReader(src Source) *Reader {
	return &Reader{src: src}
}

// ReadBits returns the next n bits of the stream.
func (r *Reader) ReadBits(n uint8) (Sequence, error) {
	if n > MaxBits {
		return Sequence{}, errors.Wrapf(ErrTooManyBits, "requested %d bits", n)
	}

	if r.buf.Len() >= n {
		return r.buf.Shrink(n), nil
	}

	need := n - r.buf.Len()

	var (
		value uint16
		width uint8
	)

	if need > 8 {
		var two [2]byte
		if _, err := io.ReadFull(r.src, two[:]); err != nil {
			return Sequence{}, noEOF(err)
		}

		value = uint16(two[0]) | uint16(two[1])<<8
		width = 16
	} else {
		b, err := r.src.ReadByte()
		if err != nil {
			return Sequence{}, noEOF(err)
		}

		value = uint16(b)
		width = 8
	}

	head := r.buf
	r.buf = NewSequence(value>>need, width-need)

	return head.Concat(NewSequence(value, need)), nil
}

// Aligned discards the unread bits of the current byte and returns the
// underlying source, positioned at the next byte boundary.
func (r *Reader) Aligned() Source {
	r.buf = Sequence{}
	return r.src
}

// Buffered returns the number of bits read from the source but not yet
// returned by ReadBits.
func (r *Reader) Buffered() int {
	return int(r.buf.Len())
}

// noEOF converts io.EOF to io.ErrUnexpectedEOF; the bit stream never ends
// cleanly in the middle of a field.
func noEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}

	return err
}
