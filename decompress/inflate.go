package decompress

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/dselans/ripgzip/bitreader"
	"github.com/dselans/ripgzip/deflate"
	"github.com/dselans/ripgzip/huffman"
	"github.com/dselans/ripgzip/tracking"
)

func (d *Decompressor) decodeBlock(header deflate.BlockHeader, bits *bitreader.Reader, writer *tracking.Writer) error {
	switch header.Type {
	case deflate.Uncompressed:
		return copyStored(bits, writer)
	case deflate.FixedTree:
		return inflateCodes(bits, writer, huffman.FixedLitLen(), huffman.FixedDistance())
	case deflate.DynamicTree:
		litLen, dist, err := huffman.DecodeTrees(bits)
		if err != nil {
			return errors.Wrap(err, "unable to decode trees")
		}

		d.log.Debugf("dynamic trees: %d literal/length code(s), %d distance code(s)", litLen.Len(), dist.Len())

		return inflateCodes(bits, writer, litLen, dist)
	}

	return ErrReservedBlock
}

// copyStored copies the body of an uncompressed block. The length fields
// start at the next byte boundary.
func copyStored(bits *bitreader.Reader, writer *tracking.Writer) error {
	src := bits.Aligned()

	var lens [4]byte
	if _, err := io.ReadFull(src, lens[:]); err != nil {
		return errors.Wrap(noEOF(err), "unable to read stored block length")
	}

	length := binary.LittleEndian.Uint16(lens[0:2])
	nlength := binary.LittleEndian.Uint16(lens[2:4])

	if length != ^nlength {
		return errors.Wrapf(ErrStoredLength, "LEN %#04x, NLEN %#04x", length, nlength)
	}

	if _, err := io.CopyN(writer, src, int64(length)); err != nil {
		return errors.Wrap(noEOF(err), "unable to copy stored block")
	}

	return nil
}

// inflateCodes decodes literal/length and distance symbols until the end of
// block symbol.
func inflateCodes(bits *bitreader.Reader, writer *tracking.Writer, litLen *huffman.Coding[huffman.LitLenToken], dist *huffman.Coding[huffman.DistanceToken]) error {
	for {
		token, err := litLen.ReadSymbol(bits)
		if err != nil {
			return errors.Wrap(err, "unable to read literal/length")
		}

		switch token.Kind {
		case huffman.LitLenEndOfBlock:
			return nil
		case huffman.LitLenLiteral:
			if err := writer.WriteByte(token.Literal); err != nil {
				return errors.Wrap(err, "unable to write literal")
			}

			continue
		}

		length, err := withExtra(bits, token.Base, token.ExtraBits)
		if err != nil {
			return errors.Wrap(err, "unable to read length extra bits")
		}

		distToken, err := dist.ReadSymbol(bits)
		if err != nil {
			return errors.Wrap(err, "unable to read distance")
		}

		distance, err := withExtra(bits, distToken.Base, distToken.ExtraBits)
		if err != nil {
			return errors.Wrap(err, "unable to read distance extra bits")
		}

		if err := writer.WritePrevious(distance, length); err != nil {
			return err
		}
	}
}

func withExtra(bits *bitreader.Reader, base uint16, extra uint8) (int, error) {
	if extra == 0 {
		return int(base), nil
	}

	seq, err := bits.ReadBits(extra)
	if err != nil {
		return 0, err
	}

	return int(base) + int(seq.Bits()), nil
}

func noEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}

	return err
}
