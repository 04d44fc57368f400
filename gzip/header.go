package gzip

import (
	"encoding/binary"
	"hash/crc32"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"
)

const (
	ID1 = 0x1f
	ID2 = 0x8b

	// HeaderSize is the size of the fixed part of a member header.
	HeaderSize = 10
	// FooterSize is the size of the CRC32 + ISIZE trailer.
	FooterSize = 8
)

// CompressionMethod is the CM header byte. Only deflate is defined.
type CompressionMethod uint8

const MethodDeflate CompressionMethod = 8

// Flag bits of the FLG header byte (RFC 1952, section 2.3.1).
const (
	flagText    = 1 << 0
	flagHdrCrc  = 1 << 1
	flagExtra   = 1 << 2
	flagName    = 1 << 3
	flagComment = 1 << 4
)

// Flags is the FLG header byte.
type Flags uint8

func (f Flags) IsText() bool     { return f&flagText != 0 }
func (f Flags) HasCRC() bool     { return f&flagHdrCrc != 0 }
func (f Flags) HasExtra() bool   { return f&flagExtra != 0 }
func (f Flags) HasName() bool    { return f&flagName != 0 }
func (f Flags) HasComment() bool { return f&flagComment != 0 }

func (f *Flags) SetText(v bool)    { f.set(flagText, v) }
func (f *Flags) SetCRC(v bool)     { f.set(flagHdrCrc, v) }
func (f *Flags) SetExtra(v bool)   { f.set(flagExtra, v) }
func (f *Flags) SetName(v bool)    { f.set(flagName, v) }
func (f *Flags) SetComment(v bool) { f.set(flagComment, v) }

func (f *Flags) set(bit Flags, v bool) {
	if v {
		*f |= bit
	} else {
		*f &^= bit
	}
}

// MemberHeader is the metadata in front of each gzip member. Name and
// Comment are ISO 8859-1 on the wire and UTF-8 here.
type MemberHeader struct {
	Method     CompressionMethod
	Flags      Flags
	ModTime    uint32 // seconds since the Unix epoch, 0 if unset
	ExtraFlags uint8
	OS         uint8
	Extra      []byte // FEXTRA
	Name       string // FNAME
	Comment    string // FCOMMENT
	HeaderCRC  uint16 // FHCRC, as read
}

// Time returns ModTime as a time, or the zero time when it is unset.
func (h *MemberHeader) Time() time.Time {
	if h.ModTime == 0 {
		return time.Time{}
	}

	return time.Unix(int64(h.ModTime), 0)
}

// CRC16 returns the low 16 bits of the CRC32 of every header byte preceding
// the FHCRC field.
func (h *MemberHeader) CRC16() (uint16, error) {
	fields, err := h.appendFields(nil)
	if err != nil {
		return 0, err
	}

	return uint16(crc32.ChecksumIEEE(fields)), nil
}

// MarshalBinary encodes the header in wire form. Optional fields are written
// according to Flags; the FHCRC field is computed, not copied from HeaderCRC.
func (h *MemberHeader) MarshalBinary() ([]byte, error) {
	out, err := h.appendFields(make([]byte, 0, HeaderSize+len(h.Extra)+len(h.Name)+len(h.Comment)+6))
	if err != nil {
		return nil, err
	}

	if h.Flags.HasCRC() {
		out = binary.LittleEndian.AppendUint16(out, uint16(crc32.ChecksumIEEE(out)))
	}

	return out, nil
}

func (h *MemberHeader) appendFields(out []byte) ([]byte, error) {
	out = append(out, ID1, ID2, byte(h.Method), byte(h.Flags))
	out = binary.LittleEndian.AppendUint32(out, h.ModTime)
	out = append(out, h.ExtraFlags, h.OS)

	if h.Flags.HasExtra() {
		if len(h.Extra) > 0xffff {
			return nil, errors.Errorf("extra field of %d bytes does not fit XLEN", len(h.Extra))
		}

		out = binary.LittleEndian.AppendUint16(out, uint16(len(h.Extra)))
		out = append(out, h.Extra...)
	}

	if h.Flags.HasName() {
		name, err := charmap.ISO8859_1.NewEncoder().String(h.Name)
		if err != nil {
			return nil, errors.Wrap(err, "unable to encode name as ISO 8859-1")
		}

		out = append(append(out, name...), 0)
	}

	if h.Flags.HasComment() {
		comment, err := charmap.ISO8859_1.NewEncoder().String(h.Comment)
		if err != nil {
			return nil, errors.Wrap(err, "unable to encode comment as ISO 8859-1")
		}

		out = append(append(out, comment...), 0)
	}

	return out, nil
}

// MemberFooter is the trailer of a gzip member.
type MemberFooter struct {
	CRC32 uint32
	Size  uint32 // uncompressed length modulo 2^32
}
