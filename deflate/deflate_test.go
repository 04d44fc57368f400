package deflate

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

func TestNextBlock(t *testing.T) {
	var w testutil.BitWriter
	for _, btype := range []uint32{0, 1, 2, 3} {
		w.WriteBits(0, 1)
		w.WriteBits(btype, 2)
	}
	w.WriteBits(1, 1)
	w.WriteBits(2, 2)

	br := bitreader.NewReader(bytes.NewReader(w.Bytes()))
	d := NewReader(br)

	for _, want := range []CompressionType{Uncompressed, FixedTree, DynamicTree, Reserved} {
		header, bits, err := d.NextBlock()
		require.NoError(t, err)
		assert.Equal(t, BlockHeader{Final: false, Type: want}, header)
		assert.Same(t, br, bits)
	}

	header, _, err := d.NextBlock()
	require.NoError(t, err)
	assert.Equal(t, BlockHeader{Final: true, Type: DynamicTree}, header)

	_, _, err = d.NextBlock()
	assert.Equal(t, io.EOF, err)
}

func TestNextBlockTruncated(t *testing.T) {
	d := NewReader(bitreader.NewReader(bytes.NewReader(nil)))

	_, _, err := d.NextBlock()
	require.Error(t, err)
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))

	_, _, err = d.NextBlock()
	assert.Equal(t, io.EOF, err)
}

func TestCompressionTypeString(t *testing.T) {
	assert.Equal(t, "uncompressed", Uncompressed.String())
	assert.Equal(t, "fixed", FixedTree.String())
	assert.Equal(t, "dynamic", DynamicTree.String())
	assert.Equal(t, "reserved", Reserved.String())
	assert.Equal(t, "CompressionType(7)", CompressionType(7).String())
}
