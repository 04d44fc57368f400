// Package deflate walks the block structure of a DEFLATE stream (RFC 1951).
// Block bodies are decoded by the caller through the shared bit reader.
package deflate

import (
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/dselans/ripgzip/bitreader"
)

// CompressionType is the BTYPE field of a block header.
type CompressionType uint8

const (
	Uncompressed CompressionType = iota
	FixedTree
	DynamicTree
	Reserved
)

func (c CompressionType) String() string {
	switch c {
	case Uncompressed:
		return "uncompressed"
	case FixedTree:
		return "fixed"
	case DynamicTree:
		return "dynamic"
	case Reserved:
		return "reserved"
	}

	return fmt.Sprintf("CompressionType(%d)", uint8(c))
}

type BlockHeader struct {
	Final bool
	Type  CompressionType
}

// Reader produces the block headers of one DEFLATE stream.
type Reader struct {
	bits *bitreader.Reader
	done bool
}

func NewReader(bits *bitreader.Reader) *Reader {
	return &Reader{bits: bits}
}

// NextBlock reads the next block header and hands back the bit reader
// positioned at the start of the block body. Once the final block header has
// been returned, or after any error, NextBlock returns io.EOF.
func (d *Reader) NextBlock() (BlockHeader, *bitreader.Reader, error) {
	if d.done {
		return BlockHeader{}, nil, io.EOF
	}

	final, err := d.bits.ReadBits(1)
	if err != nil {
		d.done = true
		return BlockHeader{}, nil, errors.Wrap(err, "unable to read BFINAL")
	}

	btype, err := d.bits.ReadBits(2)
	if err != nil {
		d.done = true
		return BlockHeader{}, nil, errors.Wrap(err, "unable to read BTYPE")
	}

	header := BlockHeader{
		Final: final.Bits() == 1,
		Type:  CompressionType(btype.Bits()),
	}

	d.done = header.Final

	return header, d.bits, nil
}
