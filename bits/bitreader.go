/*
DESCRIPTION
  bitreader.go provides a bit reader implementation that reads and peeks over
  an immutable byte span, along with byte-aligned integer reads and the
  Exp-Golomb codes used pervasively by H.264 syntax.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package bits provides a bit reader implementation that can read or peek from
// an io.Reader data source, or from a fixed, immutable byte span.
package bits

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// ErrUnexpectedEndOfStream is returned when a read would extend beyond the
// end of the underlying span.
var ErrUnexpectedEndOfStream = errors.New("unexpected end of stream")

// ErrIntegerOverflow is returned by ReadUE when an Exp-Golomb prefix exceeds
// 63 leading zeros, meaning the encoded value cannot be represented.
var ErrIntegerOverflow = errors.New("exp-golomb prefix too long")

type bytePeeker interface {
	io.ByteReader
	Peek(int) ([]byte, error)
}

// spanPeeker is a bytePeeker over a fixed, immutable byte slice. Unlike
// bufio.Reader, Peek has no fixed buffer-size ceiling, since the whole span
// is already resident.
type spanPeeker struct {
	b   []byte
	off int
}

func (s *spanPeeker) ReadByte() (byte, error) {
	if s.off >= len(s.b) {
		return 0, io.EOF
	}
	b := s.b[s.off]
	s.off++
	return b, nil
}

func (s *spanPeeker) Peek(n int) ([]byte, error) {
	if s.off+n > len(s.b) {
		return nil, io.EOF
	}
	return s.b[s.off : s.off+n], nil
}

// BitReader is a bit reader that provides methods for reading bits from a
// byte source.
type BitReader struct {
	r     bytePeeker
	n     uint64
	bits  int
	nRead int
}

// NewBitReader returns a new BitReader that reads from r.
func NewBitReader(r io.Reader) *BitReader {
	byter, ok := r.(bytePeeker)
	if !ok {
		byter = bufio.NewReader(r)
	}
	return &BitReader{r: byter}
}

// NewSpanReader returns a new BitReader over the fixed, immutable byte span
// b. Unlike NewBitReader, PeekBits has no implicit limit derived from an
// internal buffer size; it is bounded only by len(b).
func NewSpanReader(b []byte) *BitReader {
	return &BitReader{r: &spanPeeker{b: b}}
}

// ReadBits reads n bits from the source and returns them the least-significant
// part of a uint64.
// For example, with a source as []byte{0x8f,0xe3} (1000 1111, 1110 0011), we
// would get the following results for consequtive reads with n values:
// n = 4, res = 0x8 (1000)
// n = 2, res = 0x3 (0011)
// n = 4, res = 0xf (1111)
// n = 6, res = 0x23 (0010 0011)
func (br *BitReader) ReadBits(n int) (uint64, error) {
	for n > br.bits {
		b, err := br.r.ReadByte()
		if err == io.EOF {
			return 0, ErrUnexpectedEndOfStream
		}
		if err != nil {
			return 0, err
		}
		br.nRead++
		br.n <<= 8
		br.n |= uint64(b)
		br.bits += 8
	}

	// br.n looks like this (assuming that br.bits = 14 and bits = 6):
	// Bit: 111111
	//      5432109876543210
	//
	//         (6 bits, the desired output)
	//        |-----|
	//        V     V
	//      0101101101001110
	//        ^            ^
	//        |------------|
	//           br.bits (num valid bits)
	//
	// This the next line right shifts the desired bits into the
	// least-significant places and masks off anything above.
	r := (br.n >> uint(br.bits-n)) & ((1 << uint(n)) - 1)
	br.bits -= n
	return r, nil
}

// ReadBit reads a single bit and returns it as 0 or 1.
func (br *BitReader) ReadBit() (uint64, error) {
	return br.ReadBits(1)
}

// PeekBits provides the next n bits returning them in the least-significant
// part of a uint64, without advancing through the source.
// For example, with a source as []byte{0x8f,0xe3} (1000 1111, 1110 0011), we
// would get the following results for consequtive peeks with n values:
// n = 4, res = 0x8 (1000)
// n = 8, res = 0x8f (1000 1111)
// n = 16, res = 0x8fe3 (1000 1111, 1110 0011)
func (br *BitReader) PeekBits(n int) (uint64, error) {
	byt, err := br.r.Peek(int((n-br.bits)+7) / 8)
	bits := br.bits
	if err != nil {
		if err == io.EOF {
			return 0, ErrUnexpectedEndOfStream
		}
		return 0, err
	}
	n0 := br.n
	for i := 0; n > bits; i++ {
		b := byt[i]
		n0 <<= 8
		n0 |= uint64(b)
		bits += 8
	}

	r := (n0 >> uint(bits-n)) & ((1 << uint(n)) - 1)
	return r, nil
}

// ByteAligned returns true if the reader position is at the start of a byte,
// and false otherwise.
func (br *BitReader) ByteAligned() bool {
	return br.bits == 0
}

// Off returns the current offset from the starting bit of the current byte.
func (br *BitReader) Off() int {
	return br.bits
}

// AlignToByte discards any bits remaining before the next byte boundary.
func (br *BitReader) AlignToByte() {
	br.bits = 0
	br.n = 0
}

// BytesRead returns the number of bytes that have been consumed from the
// underlying source, including any bits currently buffered but not yet
// returned by ReadBits.
func (br *BitReader) BytesRead() int {
	return br.nRead
}

// BitPos returns the number of bits that have been returned to the caller
// by ReadBits/ReadBit/ReadUE/etc. so far, i.e. the current position in the
// bitstream.
func (br *BitReader) BitPos() int {
	return br.nRead*8 - br.bits
}

// ReadU8 reads a byte-aligned, unsigned 8-bit integer.
func (br *BitReader) ReadU8() (uint8, error) {
	v, err := br.ReadBits(8)
	return uint8(v), err
}

// ReadU16 reads a byte-aligned, big-endian unsigned 16-bit integer.
func (br *BitReader) ReadU16() (uint16, error) {
	v, err := br.ReadBits(16)
	return uint16(v), err
}

// ReadU32 reads a byte-aligned, big-endian unsigned 32-bit integer.
func (br *BitReader) ReadU32() (uint32, error) {
	v, err := br.ReadBits(32)
	return uint32(v), err
}

// ReadU64 reads a byte-aligned, big-endian unsigned 64-bit integer.
func (br *BitReader) ReadU64() (uint64, error) {
	return br.ReadBits(64)
}

// ReadUE parses a syntax element of ue(v) descriptor, i.e. an unsigned
// integer Exp-Golomb-coded element, using the method specified in section
// 9.1 of ITU-T H.264.
func (br *BitReader) ReadUE() (uint64, error) {
	leadingZeroBits := -1
	for b := uint64(0); b == 0; leadingZeroBits++ {
		var err error
		b, err = br.ReadBits(1)
		if err != nil {
			return 0, err
		}
		if leadingZeroBits >= 63 {
			return 0, ErrIntegerOverflow
		}
	}
	if leadingZeroBits == 0 {
		return 0, nil
	}
	rem, err := br.ReadBits(leadingZeroBits)
	if err != nil {
		return 0, err
	}
	return (uint64(1)<<uint(leadingZeroBits) - 1) + rem, nil
}

// ReadSE parses a syntax element with descriptor se(v), i.e. a signed
// integer Exp-Golomb-coded syntax element, mapping codeNum v to ceil(v/2)
// with a positive sign when v is odd, negative otherwise, as described in
// sections 9.1 and 9.1.1.
func (br *BitReader) ReadSE() (int64, error) {
	codeNum, err := br.ReadUE()
	if err != nil {
		return 0, errors.Wrap(err, "could not read ue(v) for se(v)")
	}
	v := int64((codeNum + 1) / 2)
	if codeNum%2 == 0 {
		v = -v
	}
	return v, nil
}

// ReadTE parses a syntax element of te(v) descriptor, i.e. a truncated
// Exp-Golomb-coded syntax element, using the method described in section
// 9.1. When valRange is 1, a single bit is read and inverted; otherwise
// behaves as ue(v).
func (br *BitReader) ReadTE(valRange uint64) (uint64, error) {
	if valRange == 0 {
		return 0, errors.New("te(v) range must be at least 1")
	}
	if valRange == 1 {
		b, err := br.ReadBits(1)
		if err != nil {
			return 0, err
		}
		return 1 - b, nil
	}
	return br.ReadUE()
}

// binaryByteOrder names the big-endian byte order of the byte-aligned
// reads; nothing in this module reads through it (ISO-BMFF parsing uses
// ReadU16/ReadU32/ReadU64).
var binaryByteOrder = binary.BigEndian
