package huffman

import (
	"github.com/pkg/errors"
)

// Alphabet sizes from RFC 1951, section 3.2.5 and 3.2.7.
const (
	NumTreeCodes  = 19
	NumLitLen     = 288
	NumDistance   = 32
	EndOfBlockSym = 256
)

type TreeCodeKind uint8

const (
	TreeCodeLength TreeCodeKind = iota
	TreeCodeCopyPrev
	TreeCodeRepeatZero
)

// TreeCodeToken is a symbol of the code length alphabet used to transmit the
// other two trees of a dynamic block.
type TreeCodeToken struct {
	Kind      TreeCodeKind
	Length    uint8 // TreeCodeLength
	Base      uint16
	ExtraBits uint8
}

func ParseTreeCodeToken(code uint16) (TreeCodeToken, error) {
	switch {
	case code <= 15:
		return TreeCodeToken{Kind: TreeCodeLength, Length: uint8(code)}, nil
	case code == 16:
		return TreeCodeToken{Kind: TreeCodeCopyPrev, Base: 3, ExtraBits: 2}, nil
	case code == 17:
		return TreeCodeToken{Kind: TreeCodeRepeatZero, Base: 3, ExtraBits: 3}, nil
	case code == 18:
		return TreeCodeToken{Kind: TreeCodeRepeatZero, Base: 11, ExtraBits: 7}, nil
	}

	return TreeCodeToken{}, errors.Wrapf(ErrInvalidCode, "tree code %d", code)
}

type LitLenKind uint8

const (
	LitLenLiteral LitLenKind = iota
	LitLenEndOfBlock
	LitLenLength
)

// LitLenToken is a symbol of the literal/length alphabet.
type LitLenToken struct {
	Kind      LitLenKind
	Literal   byte // LitLenLiteral
	Base      uint16
	ExtraBits uint8
}

// lengthBase and lengthExtra describe codes 257..285.
var (
	lengthBase = [29]uint16{
		3, 4, 5, 6, 7, 8, 9, 10, 11, 13,
		15, 17, 19, 23, 27, 31, 35, 43, 51, 59,
		67, 83, 99, 115, 131, 163, 195, 227, 258,
	}
	lengthExtra = [29]uint8{
		0, 0, 0, 0, 0, 0, 0, 0, 1, 1,
		1, 1, 2, 2, 2, 2, 3, 3, 3, 3,
		4, 4, 4, 4, 5, 5, 5, 5, 0,
	}
)

func ParseLitLenToken(code uint16) (LitLenToken, error) {
	switch {
	case code < EndOfBlockSym:
		return LitLenToken{Kind: LitLenLiteral, Literal: byte(code)}, nil
	case code == EndOfBlockSym:
		return LitLenToken{Kind: LitLenEndOfBlock}, nil
	case code <= 285:
		i := code - 257
		return LitLenToken{Kind: LitLenLength, Base: lengthBase[i], ExtraBits: lengthExtra[i]}, nil
	}

	return LitLenToken{}, errors.Wrapf(ErrInvalidCode, "literal/length code %d", code)
}

// DistanceToken is a symbol of the distance alphabet.
type DistanceToken struct {
	Base      uint16
	ExtraBits uint8
}

var (
	distanceBase = [30]uint16{
		1, 2, 3, 4, 5, 7, 9, 13, 17, 25,
		33, 49, 65, 97, 129, 193, 257, 385, 513, 769,
		1025, 1537, 2049, 3073, 4097, 6145, 8193, 12289, 16385, 24577,
	}
	distanceExtra = [30]uint8{
		0, 0, 0, 0, 1, 1, 2, 2, 3, 3,
		4, 4, 5, 5, 6, 6, 7, 7, 8, 8,
		9, 9, 10, 10, 11, 11, 12, 12, 13, 13,
	}
)

func ParseDistanceToken(code uint16) (DistanceToken, error) {
	if int(code) >= len(distanceBase) {
		return DistanceToken{}, errors.Wrapf(ErrInvalidCode, "distance code %d", code)
	}

	return DistanceToken{Base: distanceBase[code], ExtraBits: distanceExtra[code]}, nil
}
