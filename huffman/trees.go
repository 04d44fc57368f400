package huffman

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/dselans/ripgzip/bitreader"
)

// codeLengthOrder is the order in which code length code lengths are
// transmitted (RFC 1951, section 3.2.7).
var codeLengthOrder = [NumTreeCodes]int{
	16, 17, 18, 0, 8, 7, 9, 6, 10, 5, 11, 4, 12, 3, 13, 2, 14, 1, 15,
}

var (
	fixedOnce     sync.Once
	fixedLitLen   *Coding[LitLenToken]
	fixedDistance *Coding[DistanceToken]
)

func buildFixed() {
	var lengths [NumLitLen]uint8

	for i := range lengths {
		switch {
		case i < 144:
			lengths[i] = 8
		case i < 256:
			lengths[i] = 9
		case i < 280:
			lengths[i] = 7
		default:
			lengths[i] = 8
		}
	}

	var err error

	fixedLitLen, err = FromLengths(lengths[:], ParseLitLenToken)
	if err != nil {
		panic(errors.Wrap(err, "unable to build fixed literal/length code"))
	}

	var distances [NumDistance]uint8
	for i := range distances {
		distances[i] = 5
	}

	fixedDistance, err = FromLengths(distances[:], ParseDistanceToken)
	if err != nil {
		panic(errors.Wrap(err, "unable to build fixed distance code"))
	}
}

// FixedLitLen returns the literal/length code of fixed Huffman blocks.
func FixedLitLen() *Coding[LitLenToken] {
	fixedOnce.Do(buildFixed)
	return fixedLitLen
}

// FixedDistance returns the distance code of fixed Huffman blocks.
func FixedDistance() *Coding[DistanceToken] {
	fixedOnce.Do(buildFixed)
	return fixedDistance
}

// DecodeTrees reads the header of a dynamic block and returns its
// literal/length and distance codes.
func DecodeTrees(r *bitreader.Reader) (*Coding[LitLenToken], *Coding[DistanceToken], error) {
	hlit, err := r.ReadBits(5)
	if err != nil {
		return nil, nil, errors.Wrap(err, "unable to read HLIT")
	}

	hdist, err := r.ReadBits(5)
	if err != nil {
		return nil, nil, errors.Wrap(err, "unable to read HDIST")
	}

	hclen, err := r.ReadBits(4)
	if err != nil {
		return nil, nil, errors.Wrap(err, "unable to read HCLEN")
	}

	numLitLen := int(hlit.Bits()) + 257
	numDistance := int(hdist.Bits()) + 1
	numCodeLen := int(hclen.Bits()) + 4

	var codeLengths [NumTreeCodes]uint8

	for i := 0; i < numCodeLen; i++ {
		length, err := r.ReadBits(3)
		if err != nil {
			return nil, nil, errors.Wrap(err, "unable to read code length code")
		}

		codeLengths[codeLengthOrder[i]] = uint8(length.Bits())
	}

	treeCoding, err := FromLengths(codeLengths[:], ParseTreeCodeToken)
	if err != nil {
		return nil, nil, errors.Wrap(err, "unable to build code length code")
	}

	// Literal/length and distance lengths form one sequence; a repeat may
	// cross from one table into the other.
	lengths, err := readLengths(r, numLitLen+numDistance, treeCoding)
	if err != nil {
		return nil, nil, err
	}

	if lengths[EndOfBlockSym] == 0 {
		return nil, nil, errors.Wrap(ErrBadCodeLengths, "end-of-block symbol has no code")
	}

	litLen, err := FromLengths(lengths[:numLitLen], ParseLitLenToken)
	if err != nil {
		return nil, nil, errors.Wrap(err, "unable to build literal/length code")
	}

	distance, err := FromLengths(lengths[numLitLen:], ParseDistanceToken)
	if err != nil {
		return nil, nil, errors.Wrap(err, "unable to build distance code")
	}

	return litLen, distance, nil
}

func readLengths(r *bitreader.Reader, n int, treeCoding *Coding[TreeCodeToken]) ([]uint8, error) {
	lengths := make([]uint8, 0, n)

	for len(lengths) < n {
		token, err := treeCoding.ReadSymbol(r)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to read code length %d of %d", len(lengths), n)
		}

		if token.Kind == TreeCodeLength {
			lengths = append(lengths, token.Length)
			continue
		}

		extra, err := r.ReadBits(token.ExtraBits)
		if err != nil {
			return nil, errors.Wrap(err, "unable to read repeat count")
		}

		repeat := int(token.Base) + int(extra.Bits())
		if len(lengths)+repeat > n {
			return nil, errors.Wrapf(ErrBadCodeLengths, "repeat of %d overruns %d lengths at %d", repeat, n, len(lengths))
		}

		var value uint8

		if token.Kind == TreeCodeCopyPrev {
			if len(lengths) == 0 {
				return nil, errors.Wrap(ErrBadCodeLengths, "copy of previous length with no previous length")
			}

			value = lengths[len(lengths)-1]
		}

		for i := 0; i < repeat; i++ {
			lengths = append(lengths, value)
		}
	}

	return lengths, nil
}
