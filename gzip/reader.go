// Package gzip parses the member framing of the gzip file format (RFC 1952):
// the member header, its optional fields and the CRC32/ISIZE footer. The
// DEFLATE body in between is consumed by the caller.
package gzip

import (
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"
)

var (
	ErrMagic             = errors.New("gzip: invalid magic bytes")
	ErrUnsupportedMethod = errors.New("gzip: unsupported compression method")
	ErrHeaderChecksum    = errors.New("gzip: header crc16 mismatch")
)

var le = binary.LittleEndian

// Source is the buffered input of a gzip stream.
type Source interface {
	io.Reader
	io.ByteReader
	ReadBytes(delim byte) ([]byte, error)
}

// Reader reads the header of the next member. After ParseHeader succeeds the
// stream belongs to the returned MemberReader; the next Reader comes from
// MemberReader.ReadFooter.
type Reader struct {
	src Source
}

func NewReader(src Source) *Reader {
	return &Reader{src: src}
}

// Next probes for another member and parses its header. It returns io.EOF
// when the stream ends cleanly at a member boundary.
func (g *Reader) Next() (*MemberHeader, *MemberReader, error) {
	fixed, err := g.Probe()
	if err != nil {
		return nil, nil, err
	}

	return g.ParseHeader(fixed)
}

// Probe reads the fixed 10 byte part of a member header. Zero bytes available
// is the end of the stream (io.EOF); a partial header is io.ErrUnexpectedEOF.
func (g *Reader) Probe() ([HeaderSize]byte, error) {
	var fixed [HeaderSize]byte

	if _, err := io.ReadFull(g.src, fixed[:]); err != nil {
		if err == io.EOF {
			return fixed, io.EOF
		}

		return fixed, errors.Wrap(err, "unable to read member header")
	}

	return fixed, nil
}

// ParseHeader validates the fixed header and reads the optional fields that
// its flags announce.
func (g *Reader) ParseHeader(fixed [HeaderSize]byte) (*MemberHeader, *MemberReader, error) {
	if fixed[0] != ID1 || fixed[1] != ID2 {
		return nil, nil, errors.Wrapf(ErrMagic, "got %#02x %#02x", fixed[0], fixed[1])
	}

	if CompressionMethod(fixed[2]) != MethodDeflate {
		return nil, nil, errors.Wrapf(ErrUnsupportedMethod, "method %d", fixed[2])
	}

	hdr := &MemberHeader{
		Method:     MethodDeflate,
		Flags:      Flags(fixed[3]),
		ModTime:    le.Uint32(fixed[4:8]),
		ExtraFlags: fixed[8],
		OS:         fixed[9],
	}

	digest := crc32.ChecksumIEEE(fixed[:])

	if hdr.Flags.HasExtra() {
		var xlen [2]byte
		if _, err := io.ReadFull(g.src, xlen[:]); err != nil {
			return nil, nil, errors.Wrap(noEOF(err), "unable to read XLEN")
		}

		extra := make([]byte, le.Uint16(xlen[:]))
		if _, err := io.ReadFull(g.src, extra); err != nil {
			return nil, nil, errors.Wrap(noEOF(err), "unable to read extra field")
		}

		digest = crc32.Update(digest, crc32.IEEETable, xlen[:])
		digest = crc32.Update(digest, crc32.IEEETable, extra)
		hdr.Extra = extra
	}

	var err error

	if hdr.Flags.HasName() {
		if hdr.Name, digest, err = g.readString(digest); err != nil {
			return nil, nil, errors.Wrap(err, "unable to read name")
		}
	}

	if hdr.Flags.HasComment() {
		if hdr.Comment, digest, err = g.readString(digest); err != nil {
			return nil, nil, errors.Wrap(err, "unable to read comment")
		}
	}

	if hdr.Flags.HasCRC() {
		var crc [2]byte
		if _, err := io.ReadFull(g.src, crc[:]); err != nil {
			return nil, nil, errors.Wrap(noEOF(err), "unable to read header crc16")
		}

		hdr.HeaderCRC = le.Uint16(crc[:])

		if hdr.HeaderCRC != uint16(digest) {
			return nil, nil, errors.Wrapf(ErrHeaderChecksum, "stored %#04x, computed %#04x", hdr.HeaderCRC, uint16(digest))
		}
	}

	return hdr, &MemberReader{src: g.src}, nil
}

// readString reads a NUL terminated ISO 8859-1 string and folds its bytes,
// terminator included, into digest.
func (g *Reader) readString(digest uint32) (string, uint32, error) {
	raw, err := g.src.ReadBytes(0)
	if err != nil {
		return "", digest, noEOF(err)
	}

	digest = crc32.Update(digest, crc32.IEEETable, raw)

	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw[:len(raw)-1])
	if err != nil {
		return "", digest, errors.Wrap(err, "unable to decode ISO 8859-1")
	}

	return string(decoded), digest, nil
}

// MemberReader gives access to the body of a member and then its footer.
type MemberReader struct {
	src Source
}

// Source returns the stream positioned at the member's DEFLATE data.
func (m *MemberReader) Source() Source {
	return m.src
}

// ReadFooter reads the CRC32 and ISIZE trailer and returns a Reader for the
// next member.
func (m *MemberReader) ReadFooter() (MemberFooter, *Reader, error) {
	var buf [FooterSize]byte

	if _, err := io.ReadFull(m.src, buf[:]); err != nil {
		return MemberFooter{}, nil, errors.Wrap(noEOF(err), "unable to read member footer")
	}

	footer := MemberFooter{
		CRC32: le.Uint32(buf[0:4]),
		Size:  le.Uint32(buf[4:8]),
	}

	return footer, NewReader(m.src), nil
}

// noEOF converts io.EOF to io.ErrUnexpectedEOF.
func noEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}

	return err
}
