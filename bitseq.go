package prefixcode

import (
	"bytes"
	"strings"
)

// BitSeq is an ordered sequence of bits packed MSB-first into bytes: the
// first bit of the sequence is the most significant bit of the first byte.
// The zero value is an empty sequence ready to append to.
//
// Two invariants hold for every BitSeq: the packed buffer spans exactly
// ceil(n/8) bytes, and any unused low-order bits of the final byte are zero.
// Copies of a BitSeq share backing storage; call Clone before mutating a
// value that may be aliased.
type BitSeq struct {
	data []byte
	n    int
}

// MakeBits builds a BitSeq from individual bit values. Any nonzero value
// counts as a one bit.
func MakeBits(bits ...byte) BitSeq {
	var s BitSeq
	for _, b := range bits {
		s.AppendBit(b)
	}
	return s
}

// Len returns the number of bits in the sequence.
func (s BitSeq) Len() int {
	return s.n
}

// Bit returns the bit at index i as 0 or 1. It panics if i is out of range.
func (s BitSeq) Bit(i int) byte {
	if i < 0 || i >= s.n {
		panic("prefixcode: bit index out of range")
	}
	return (s.data[i>>3] >> uint(7-i&7)) & 1
}

// AppendBit appends a single bit. Any nonzero value counts as a one bit.
func (s *BitSeq) AppendBit(bit byte) {
	if s.n&7 == 0 {
		s.data = append(s.data, 0)
	}
	if bit != 0 {
		s.data[s.n>>3] |= 0x80 >> uint(s.n&7)
	}
	s.n++
}

// AppendSeq appends every bit of t to s.
func (s *BitSeq) AppendSeq(t BitSeq) {
	if s.n&7 == 0 {
		// Byte-aligned: splice the packed buffer directly.
		s.data = append(s.data, t.data...)
		s.n += t.n
		return
	}
	for i := 0; i < t.n; i++ {
		s.AppendBit(t.Bit(i))
	}
}

// Prefix returns a copy of the first n bits of s. It panics if n is
// negative or exceeds the sequence length.
func (s BitSeq) Prefix(n int) BitSeq {
	if n < 0 || n > s.n {
		panic("prefixcode: prefix length out of range")
	}
	p := BitSeq{n: n}
	if n > 0 {
		p.data = make([]byte, (n+7)/8)
		copy(p.data, s.data[:(n+7)/8])
		if rem := n & 7; rem != 0 {
			// Keep the unused tail of the final byte zeroed.
			p.data[len(p.data)-1] &= ^byte(0) << uint(8-rem)
		}
	}
	return p
}

// Clone returns a copy of s with its own backing storage.
func (s BitSeq) Clone() BitSeq {
	c := BitSeq{n: s.n}
	if len(s.data) > 0 {
		c.data = make([]byte, len(s.data))
		copy(c.data, s.data)
	}
	return c
}

// Equal reports whether s and t contain the same bits in the same order.
func (s BitSeq) Equal(t BitSeq) bool {
	return s.n == t.n && bytes.Equal(s.data, t.data)
}

// Bools expands the sequence into one bool per bit.
func (s BitSeq) Bools() []bool {
	out := make([]bool, s.n)
	for i := 0; i < s.n; i++ {
		out[i] = s.Bit(i) == 1
	}
	return out
}

// String renders the sequence as a string of '0' and '1' characters.
func (s BitSeq) String() string {
	var b strings.Builder
	b.Grow(s.n)
	for i := 0; i < s.n; i++ {
		b.WriteByte('0' + s.Bit(i))
	}
	return b.String()
}

// BytesToBits expands a byte buffer into its bit sequence, MSB-first within
// each byte. The result always holds exactly 8 bits per input byte.
func BytesToBits(p []byte) BitSeq {
	s := BitSeq{n: len(p) * 8}
	if len(p) > 0 {
		s.data = make([]byte, len(p))
		copy(s.data, p)
	}
	return s
}

// BitsToBytes packs a bit sequence into bytes, MSB-first within each byte.
// It fails with ErrUnalignedBitLength if the sequence length is not a
// multiple of 8.
func BitsToBytes(s BitSeq) ([]byte, error) {
	if s.n%8 != 0 {
		return nil, newUnalignedBitLengthError(s.n)
	}
	out := make([]byte, len(s.data))
	copy(out, s.data)
	return out, nil
}
