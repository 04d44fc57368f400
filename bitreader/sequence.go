package bitreader

import "fmt"

// Sequence is an ordered group of up to 16 bits with an explicit length. Bits
// above the length are always zero, so two sequences compare equal (and hash
// equal as map keys) exactly when their lengths and meaningful bits match.
type Sequence struct {
	bits uint16
	len  uint8
}

// NewSequence masks bits down to length. A length above 16 panics.
func NewSequence(bits uint16, length uint8) Sequence {
	if length > MaxBits {
		panic(fmt.Sprintf("bitreader: sequence length %d exceeds %d bits", length, MaxBits))
	}

	if length < MaxBits {
		bits &= 1<<length - 1
	}

	return Sequence{bits: bits, len: length}
}

func (s Sequence) Bits() uint16 { return s.bits }

func (s Sequence) Len() uint8 { return s.len }

// Concat places other's bits above s's bits.
func (s Sequence) Concat(other Sequence) Sequence {
	if s.len+other.len > MaxBits {
		panic(fmt.Sprintf("bitreader: concatenated length %d exceeds %d bits", s.len+other.len, MaxBits))
	}

	return Sequence{
		bits: s.bits | other.bits<<s.len,
		len:  s.len + other.len,
	}
}

// Shrink splits off and returns the low n bits, leaving the remainder in s.
func (s *Sequence) Shrink(n uint8) Sequence {
	if n > s.len {
		panic(fmt.Sprintf("bitreader: cannot shrink %d bits from a %d bit sequence", n, s.len))
	}

	head := NewSequence(s.bits, n)

	s.bits >>= n
	s.len -= n

	return head
}

func (s Sequence) String() string {
	if s.len == 0 {
		return "<empty>"
	}

	return fmt.Sprintf("%0*b", int(s.len), s.bits)
}
