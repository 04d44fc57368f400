// Package tracking provides the output side of a DEFLATE decoder: a writer
// that remembers the last 32 KiB it emitted so back-references can be copied
// from it, and that keeps a running CRC32 and byte count per gzip member.
package tracking

import (
	"hash"
	"hash/crc32"
	"io"

	"github.com/pkg/errors"
)

// HistorySize is the DEFLATE window: the farthest a back-reference may reach.
const HistorySize = 32768

var ErrDistance = errors.New("tracking: back-reference distance out of range")

// Writer forwards bytes to an underlying sink while tracking them.
type Writer struct {
	w      io.Writer
	length int
	crc    hash.Hash32

	// hist is a ring of the most recent bytes; head is where the next byte
	// goes and size how many slots hold data.
	hist [HistorySize]byte
	head int
	size int

	scratch []byte
	one     [1]byte
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{
		w:   w,
		crc: crc32.NewIEEE(),
	}
}

// Write forwards p to the sink. Checksum, count and history advance over the
// bytes the sink accepted, even when it also returns an error.
func (t *Writer) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	if n > 0 {
		t.track(p[:n])
	}

	if err == nil && n < len(p) {
		err = io.ErrShortWrite
	}

	return n, err
}

// WriteByte writes a single literal.
func (t *Writer) WriteByte(c byte) error {
	t.one[0] = c
	_, err := t.Write(t.one[:])

	return err
}

// WritePrevious copies length bytes starting dist bytes behind the current
// position. When length exceeds dist the copied span repeats, as an LZ77
// match overlapping its own output does. Nothing is written when dist is out
// of range.
func (t *Writer) WritePrevious(dist, length int) error {
	if dist < 1 || dist > t.size {
		return errors.Wrapf(ErrDistance, "distance %d with %d bytes of history", dist, t.size)
	}

	if cap(t.scratch) < dist {
		t.scratch = make([]byte, dist, HistorySize)
	}

	chunk := t.scratch[:dist]

	start := t.head - dist
	if start < 0 {
		start += HistorySize
	}

	if n := copy(chunk, t.hist[start:]); n < dist {
		copy(chunk[n:], t.hist[:dist-n])
	}

	for length > 0 {
		n := min(dist, length)

		if _, err := t.Write(chunk[:n]); err != nil {
			return errors.Wrap(err, "unable to write back-reference")
		}

		length -= n
	}

	return nil
}

// ByteCount returns the number of bytes written since the last Flush.
func (t *Writer) ByteCount() int {
	return t.length
}

// CRC32 returns the checksum of the bytes written since the last Flush.
func (t *Writer) CRC32() uint32 {
	return t.crc.Sum32()
}

// Flush starts a new member: count, history and checksum are reset. The sink
// is flushed too when it supports it.
func (t *Writer) Flush() error {
	t.length = 0
	t.head = 0
	t.size = 0
	t.crc.Reset()

	if f, ok := t.w.(interface{ Flush() error }); ok {
		if err := f.Flush(); err != nil {
			return errors.Wrap(err, "unable to flush output")
		}
	}

	return nil
}

func (t *Writer) track(p []byte) {
	t.crc.Write(p)
	t.length += len(p)

	if len(p) >= HistorySize {
		copy(t.hist[:], p[len(p)-HistorySize:])
		t.head = 0
		t.size = HistorySize

		return
	}

	n := copy(t.hist[t.head:], p)
	copy(t.hist[:], p[n:])

	t.head = (t.head + len(p)) % HistorySize
	t.size = min(t.size+len(p), HistorySize)
}
