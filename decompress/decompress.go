// Package decompress drives the gzip member reader, the DEFLATE block reader
// and the Huffman decoders to turn a gzip stream into its original bytes,
// verifying every member's length and CRC32.
package decompress

import (
	"bufio"
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dselans/ripgzip/bitreader"
	"github.com/dselans/ripgzip/deflate"
	"github.com/dselans/ripgzip/gzip"
	"github.com/dselans/ripgzip/tracking"
)

const DefaultBufferSize = 64 * 1024

var (
	ErrReservedBlock = errors.New("deflate: reserved block type")
	ErrStoredLength  = errors.New("deflate: stored block length does not match its complement")
	ErrSizeMismatch  = errors.New("gzip: uncompressed size mismatch")
	ErrChecksum      = errors.New("gzip: crc32 mismatch")
)

type Options struct {
	// BufferSize is the size of the input and output buffers.
	BufferSize int

	Logger *logrus.Entry
}

// MemberStats describes one decompressed member.
type MemberStats struct {
	Header *gzip.MemberHeader
	Footer gzip.MemberFooter
	Blocks map[deflate.CompressionType]int
	Size   int64
}

type Stats struct {
	Members []*MemberStats
	Size    int64
}

type Decompressor struct {
	bufferSize int
	log        *logrus.Entry
}

func New(opts *Options) *Decompressor {
	if opts == nil {
		opts = &Options{}
	}

	d := &Decompressor{
		bufferSize: opts.BufferSize,
		log:        opts.Logger,
	}

	if d.bufferSize <= 0 {
		d.bufferSize = DefaultBufferSize
	}

	if d.log == nil {
		d.log = logrus.WithField("pkg", "decompress")
	}

	return d
}

// Decompress decodes every member of the gzip stream in input into output.
func Decompress(input io.Reader, output io.Writer) error {
	_, err := New(nil).Decompress(input, output)
	return err
}

// Decompress decodes every member of input into output and reports what it
// decoded. It stops at the first structural or integrity error; output
// written before the error is left in place.
func (d *Decompressor) Decompress(input io.Reader, output io.Writer) (*Stats, error) {
	src, ok := input.(*bufio.Reader)
	if !ok {
		src = bufio.NewReaderSize(input, d.bufferSize)
	}

	buffered := bufio.NewWriterSize(output, d.bufferSize)
	writer := tracking.NewWriter(buffered)

	stats, err := d.run(src, writer)
	if err != nil {
		// Best effort: hand over what was decoded before the failure.
		_ = buffered.Flush()
		return stats, err
	}

	if err := buffered.Flush(); err != nil {
		return stats, errors.Wrap(err, "unable to flush output")
	}

	return stats, nil
}

func (d *Decompressor) run(src *bufio.Reader, writer *tracking.Writer) (*Stats, error) {
	stats := &Stats{}
	reader := gzip.NewReader(src)

	for num := 0; ; num++ {
		if err := writer.Flush(); err != nil {
			return stats, err
		}

		header, member, err := reader.Next()
		if err == io.EOF {
			d.log.Debugf("end of stream after %d member(s)", num)
			return stats, nil
		}

		if err != nil {
			return stats, errors.Wrapf(err, "member %d: unable to parse header", num)
		}

		d.log.Debugf("member %d: name %q, mtime %d, os %d", num, header.Name, header.ModTime, header.OS)

		ms := &MemberStats{
			Header: header,
			Blocks: make(map[deflate.CompressionType]int),
		}
		stats.Members = append(stats.Members, ms)

		if err := d.inflate(num, member.Source(), writer, ms); err != nil {
			return stats, errors.Wrapf(err, "member %d", num)
		}

		footer, next, err := member.ReadFooter()
		if err != nil {
			return stats, errors.Wrapf(err, "member %d", num)
		}

		ms.Footer = footer
		ms.Size = int64(writer.ByteCount())
		stats.Size += ms.Size

		if size := uint32(writer.ByteCount()); size != footer.Size {
			return stats, errors.Wrapf(ErrSizeMismatch, "member %d: footer says %d bytes, decoded %d", num, footer.Size, size)
		}

		if crc := writer.CRC32(); crc != footer.CRC32 {
			return stats, errors.Wrapf(ErrChecksum, "member %d: footer says %#08x, decoded %#08x", num, footer.CRC32, crc)
		}

		reader = next
	}
}

// inflate decodes the DEFLATE stream of one member.
func (d *Decompressor) inflate(num int, src gzip.Source, writer *tracking.Writer, ms *MemberStats) error {
	blocks := deflate.NewReader(bitreader.NewReader(src))

	for i := 0; ; i++ {
		header, bits, err := blocks.NextBlock()
		if err == io.EOF {
			return nil
		}

		if err != nil {
			return errors.Wrapf(err, "block %d", i)
		}

		d.log.Debugf("member %d: block %d: %s, final %v", num, i, header.Type, header.Final)
		ms.Blocks[header.Type]++

		if err := d.decodeBlock(header, bits, writer); err != nil {
			return errors.Wrapf(err, "block %d (%s)", i, header.Type)
		}
	}
}
