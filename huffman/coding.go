// Package huffman builds canonical prefix codes from code length tables
// (RFC 1951, section 3.2.2) and decodes DEFLATE symbols with them.
package huffman

import (
	"github.com/pkg/errors"

	"github.com/dselans/ripgzip/bitreader"
)

// MaxCodeLength is the longest code DEFLATE allows.
const MaxCodeLength = 15

var (
	ErrNoSymbol       = errors.New("huffman: no symbol found for read bits")
	ErrInvalidCode    = errors.New("huffman: invalid code index")
	ErrCodeLength     = errors.New("huffman: code length exceeds 15 bits")
	ErrOversubscribed = errors.New("huffman: code lengths are over-subscribed")
	ErrBadCodeLengths = errors.New("huffman: malformed code length sequence")
)

// Coding maps bit sequences to code indices. The index is turned into an
// alphabet token by parse only when it is actually decoded, so tables may hold
// codes that are valid in the tree but meaningless in the alphabet.
type Coding[T any] struct {
	codes map[bitreader.Sequence]uint16
	parse func(code uint16) (T, error)
}

// FromLengths builds the canonical code for lengths, where lengths[i] is the
// code length of symbol i and 0 means the symbol is unused.
func FromLengths[T any](lengths []uint8, parse func(code uint16) (T, error)) (*Coding[T], error) {
	var count [MaxCodeLength + 1]int

	for symbol, length := range lengths {
		if length > MaxCodeLength {
			return nil, errors.Wrapf(ErrCodeLength, "symbol %d has length %d", symbol, length)
		}

		if length > 0 {
			count[length]++
		}
	}

	var next [MaxCodeLength + 1]int

	code := 0
	for bits := 1; bits <= MaxCodeLength; bits++ {
		code = (code + count[bits-1]) << 1
		next[bits] = code
	}

	codes := make(map[bitreader.Sequence]uint16, len(lengths))

	for symbol, length := range lengths {
		if length == 0 {
			continue
		}

		if next[length] >= 1<<length {
			return nil, errors.Wrapf(ErrOversubscribed, "no %d bit code left for symbol %d", length, symbol)
		}

		codes[bitreader.NewSequence(uint16(next[length]), length)] = uint16(symbol)
		next[length]++
	}

	return &Coding[T]{
		codes: codes,
		parse: parse,
	}, nil
}

// Lookup returns the code index assigned to seq, if any.
func (c *Coding[T]) Lookup(seq bitreader.Sequence) (uint16, bool) {
	code, ok := c.codes[seq]
	return code, ok
}

// Len returns the number of symbols with a code.
func (c *Coding[T]) Len() int {
	return len(c.codes)
}

// ReadSymbol reads bits one at a time, most significant code bit first, until
// they form a complete code, and returns the matching token.
func (c *Coding[T]) ReadSymbol(r *bitreader.Reader) (T, error) {
	var (
		zero T
		seq  bitreader.Sequence
	)

	if len(c.codes) == 0 {
		return zero, errors.Wrap(ErrNoSymbol, "empty code table")
	}

	for seq.Len() < MaxCodeLength {
		bit, err := r.ReadBits(1)
		if err != nil {
			return zero, errors.Wrap(err, "unable to read code bit")
		}

		seq = bit.Concat(seq)

		if code, ok := c.codes[seq]; ok {
			return c.parse(code)
		}
	}

	return zero, errors.Wrapf(ErrNoSymbol, "bits %s", seq)
}
