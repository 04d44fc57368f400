package huffman

import (
	"bytes"
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dselans/ripgzip/bitreader"
	"github.com/dselans/ripgzip/internal/testutil"
)

func identity(code uint16) (uint16, error) {
	return code, nil
}

func TestFromLengths(t *testing.T) {
	coding, err := FromLengths([]uint8{2, 3, 4, 3, 3, 4, 2}, identity)
	require.NoError(t, err)
	assert.Equal(t, 7, coding.Len())

	cases := []struct {
		bits   uint16
		length uint8
		symbol uint16
	}{
		{0b00, 2, 0},
		{0b100, 3, 1},
		{0b1110, 4, 2},
		{0b101, 3, 3},
		{0b110, 3, 4},
		{0b1111, 4, 5},
		{0b01, 2, 6},
	}

	for _, c := range cases {
		symbol, ok := coding.Lookup(bitreader.NewSequence(c.bits, c.length))
		require.True(t, ok, "code %b/%d", c.bits, c.length)
		assert.Equal(t, c.symbol, symbol)
	}

	for _, seq := range []bitreader.Sequence{
		bitreader.NewSequence(0b0, 1),
		bitreader.NewSequence(0b10, 2),
		bitreader.NewSequence(0b111, 3),
	} {
		_, ok := coding.Lookup(seq)
		assert.False(t, ok, "sequence %s", seq)
	}
}

func TestReadSymbol(t *testing.T) {
	coding, err := FromLengths([]uint8{2, 3, 4, 3, 3, 4, 2}, identity)
	require.NoError(t, err)

	r := bitreader.NewReader(bytes.NewReader([]byte{0b10111001, 0b11001010, 0b11101101}))

	for _, want := range []uint16{1, 2, 3, 6, 0, 2, 4} {
		got, err := coding.ReadSymbol(r)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err = coding.ReadSymbol(r)
	require.Error(t, err)
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
}

func TestFromLengthsRejectsBadTables(t *testing.T) {
	_, err := FromLengths([]uint8{1, 1, 1}, identity)
	assert.True(t, errors.Is(err, ErrOversubscribed))

	_, err = FromLengths([]uint8{3, 16}, identity)
	assert.True(t, errors.Is(err, ErrCodeLength))

	// Incomplete codes are legal (a single distance code is common).
	coding, err := FromLengths([]uint8{0, 1}, identity)
	require.NoError(t, err)

	symbol, ok := coding.Lookup(bitreader.NewSequence(0, 1))
	require.True(t, ok)
	assert.Equal(t, uint16(1), symbol)
}

func TestReadSymbolNoMatch(t *testing.T) {
	// Only code "0" exists; a run of ones never matches.
	coding, err := FromLengths([]uint8{1}, identity)
	require.NoError(t, err)

	r := bitreader.NewReader(bytes.NewReader([]byte{0xff, 0xff}))

	_, err = coding.ReadSymbol(r)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoSymbol))

	empty, err := FromLengths([]uint8{0, 0}, identity)
	require.NoError(t, err)

	_, err = empty.ReadSymbol(r)
	assert.True(t, errors.Is(err, ErrNoSymbol))
}

func TestParseTokens(t *testing.T) {
	tree, err := ParseTreeCodeToken(7)
	require.NoError(t, err)
	assert.Equal(t, TreeCodeToken{Kind: TreeCodeLength, Length: 7}, tree)

	tree, err = ParseTreeCodeToken(18)
	require.NoError(t, err)
	assert.Equal(t, TreeCodeToken{Kind: TreeCodeRepeatZero, Base: 11, ExtraBits: 7}, tree)

	_, err = ParseTreeCodeToken(19)
	assert.True(t, errors.Is(err, ErrInvalidCode))

	lit, err := ParseLitLenToken('x')
	require.NoError(t, err)
	assert.Equal(t, LitLenToken{Kind: LitLenLiteral, Literal: 'x'}, lit)

	lit, err = ParseLitLenToken(256)
	require.NoError(t, err)
	assert.Equal(t, LitLenEndOfBlock, lit.Kind)

	lengths := []struct {
		code  uint16
		base  uint16
		extra uint8
	}{
		{257, 3, 0}, {264, 10, 0}, {265, 11, 1}, {268, 17, 1}, {269, 19, 2},
		{273, 35, 3}, {277, 67, 4}, {281, 131, 5}, {284, 227, 5}, {285, 258, 0},
	}
	for _, l := range lengths {
		lit, err := ParseLitLenToken(l.code)
		require.NoError(t, err)
		assert.Equal(t, LitLenToken{Kind: LitLenLength, Base: l.base, ExtraBits: l.extra}, lit, "code %d", l.code)
	}

	_, err = ParseLitLenToken(286)
	assert.True(t, errors.Is(err, ErrInvalidCode))

	dist, err := ParseDistanceToken(0)
	require.NoError(t, err)
	assert.Equal(t, DistanceToken{Base: 1}, dist)

	dist, err = ParseDistanceToken(29)
	require.NoError(t, err)
	assert.Equal(t, DistanceToken{Base: 24577, ExtraBits: 13}, dist)

	_, err = ParseDistanceToken(30)
	assert.True(t, errors.Is(err, ErrInvalidCode))
}

func TestFixedTables(t *testing.T) {
	litLen := FixedLitLen()
	assert.Equal(t, NumLitLen, litLen.Len())
	assert.Same(t, litLen, FixedLitLen())

	code, ok := litLen.Lookup(bitreader.NewSequence(0x30+'a', 8))
	require.True(t, ok)
	assert.Equal(t, uint16('a'), code)

	code, ok = litLen.Lookup(bitreader.NewSequence(0, 7))
	require.True(t, ok)
	assert.Equal(t, uint16(EndOfBlockSym), code)

	code, ok = litLen.Lookup(bitreader.NewSequence(0x190, 9))
	require.True(t, ok)
	assert.Equal(t, uint16(144), code)

	assert.Equal(t, NumDistance, FixedDistance().Len())
}

func TestFixedInvalidSymbol(t *testing.T) {
	var w testutil.BitWriter
	w.WriteFixedLiteral('h')
	w.WriteFixedLiteral(286)

	r := bitreader.NewReader(bytes.NewReader(w.Bytes()))

	token, err := FixedLitLen().ReadSymbol(r)
	require.NoError(t, err)
	assert.Equal(t, LitLenToken{Kind: LitLenLiteral, Literal: 'h'}, token)

	_, err = FixedLitLen().ReadSymbol(r)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidCode))
}

func TestDecodeTreesCopyWithoutPrevious(t *testing.T) {
	var w testutil.BitWriter
	w.WriteBits(0, 5) // HLIT: 257
	w.WriteBits(0, 5) // HDIST: 1
	w.WriteBits(0, 4) // HCLEN: 4 (symbols 16, 17, 18, 0)
	w.WriteBits(1, 3)
	w.WriteBits(0, 3)
	w.WriteBits(0, 3)
	w.WriteBits(1, 3)
	w.WriteCode(1, 1) // symbol 16 right away
	w.WriteBits(0, 2)

	_, _, err := DecodeTrees(bitreader.NewReader(bytes.NewReader(w.Bytes())))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBadCodeLengths))
}

func TestDecodeTreesRepeatOverrun(t *testing.T) {
	var w testutil.BitWriter
	w.WriteBits(0, 5)
	w.WriteBits(0, 5)
	w.WriteBits(0, 4)
	w.WriteBits(0, 3) // 16 unused
	w.WriteBits(0, 3) // 17 unused
	w.WriteBits(1, 3) // 18: code "1"
	w.WriteBits(1, 3) // 0:  code "0"

	// 2 x 138 zeros overrun the 258 lengths.
	w.WriteCode(1, 1)
	w.WriteBits(127, 7)
	w.WriteCode(1, 1)
	w.WriteBits(127, 7)

	_, _, err := DecodeTrees(bitreader.NewReader(bytes.NewReader(w.Bytes())))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBadCodeLengths))
}

func TestDecodeTreesTruncated(t *testing.T) {
	_, _, err := DecodeTrees(bitreader.NewReader(bytes.NewReader([]byte{0x00})))
	require.Error(t, err)
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
}
