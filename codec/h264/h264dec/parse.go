/*
NAME
  parse.go

DESCRIPTION
  parse.go provides a sticky-error field reader over a bits.BitReader, used
  throughout parameter-set, slice-header, and macroblock parsing, plus the
  coded-block-pattern remapping table of clause 9.1.2 (Table 9-4).

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)
  mrmod <mcmoranbjr@gmail.com>
*/

package h264dec

import (
	"github.com/pkg/errors"

	"github.com/ausocean/mvflow/bits"
)

// mbPartPredMode represents a macroblock partition prediction mode, as
// defined in section 7.4.5.
type mbPartPredMode int8

const (
	intra4x4 mbPartPredMode = iota
	intra8x8
	intra16x16
	predL0
	predL1
	direct
	biPred
	inter
	naMbPartPredMode
)

// fieldReader provides methods for reading fields from a bits.BitReader
// with a sticky error that may be checked after a series of parsing read
// calls, so that parse functions covering many syntax elements need not
// check an error after every single read.
type fieldReader struct {
	e  error
	br *bits.BitReader
}

// newFieldReader returns a new fieldReader over br.
func newFieldReader(br *bits.BitReader) fieldReader {
	return fieldReader{br: br}
}

// readBits returns the next n bits from br as a uint64. The read does not
// happen if the fieldReader already holds an error.
func (r *fieldReader) readBits(n int) uint64 {
	if r.e != nil {
		return 0
	}
	var b uint64
	b, r.e = r.br.ReadBits(n)
	return b
}

// readUe parses a ue(v) syntax element.
func (r *fieldReader) readUe() uint64 {
	if r.e != nil {
		return 0
	}
	var v uint64
	v, r.e = r.br.ReadUE()
	return v
}

// readSe parses a se(v) syntax element and returns it as an int.
func (r *fieldReader) readSe() int {
	if r.e != nil {
		return 0
	}
	var v int64
	v, r.e = r.br.ReadSE()
	return int(v)
}

// readSe64 parses a se(v) syntax element and returns it as an int64, for
// fields whose range may exceed an int on 32-bit platforms.
func (r *fieldReader) readSe64() int64 {
	if r.e != nil {
		return 0
	}
	var v int64
	v, r.e = r.br.ReadSE()
	return v
}

// readTe parses a te(v) syntax element with the given range.
func (r *fieldReader) readTe(valRange uint64) uint64 {
	if r.e != nil {
		return 0
	}
	var v uint64
	v, r.e = r.br.ReadTE(valRange)
	return v
}

// err returns the fieldReader's sticky error.
func (r *fieldReader) err() error {
	return r.e
}

// codedBlockPattern contains the mapping data from Table 9-4 in ITU-T
// H.264, keyed first by chroma-array-type family, then by the code_num
// read via me(v), yielding the pair {CodedBlockPattern for intra,
// CodedBlockPattern for inter} prediction modes.
var codedBlockPattern = [][][2]uint{
	// Table 9-4 (a), for ChromaArrayType in {1, 2}: index is codeNum, value
	// is {CodedBlockPattern for Intra_4x4/Intra_8x8, CodedBlockPattern for
	// Inter}.
	{
		{47, 0}, {31, 16}, {15, 1}, {0, 2}, {23, 4}, {27, 8}, {29, 32}, {30, 3},
		{7, 5}, {11, 10}, {13, 12}, {14, 15}, {39, 47}, {43, 7}, {45, 11}, {46, 13},
		{16, 14}, {3, 6}, {5, 9}, {10, 31}, {12, 35}, {19, 37}, {21, 42}, {26, 44},
		{28, 33}, {35, 34}, {37, 36}, {42, 40}, {44, 39}, {1, 43}, {2, 45}, {4, 46},
		{8, 17}, {17, 18}, {18, 20}, {20, 24}, {24, 19}, {6, 21}, {9, 26}, {22, 28},
		{25, 23}, {32, 27}, {33, 29}, {34, 30}, {36, 22}, {40, 25}, {38, 38}, {41, 41},
	},
	// Table 9-4 (b), for ChromaArrayType in {0, 3}.
	{
		{15, 0}, {0, 1}, {7, 2}, {11, 4}, {13, 8}, {14, 3}, {3, 5}, {5, 10}, {10, 12},
		{12, 15}, {1, 7}, {2, 11}, {4, 13}, {8, 14}, {6, 6}, {9, 9},
	},
}

// readCodedBlockPattern parses a coded_block_pattern me(v) syntax element
// for the given chromaArrayType and macroblock partition prediction mode,
// and returns the remapped CodedBlockPattern value (clause 9.1.2).
func readCodedBlockPattern(br *bits.BitReader, chromaArrayType uint64, mpm mbPartPredMode) (uint, error) {
	var i1 uint64
	switch chromaArrayType {
	case 1, 2:
		i1 = 0
	case 0, 3:
		i1 = 1
	default:
		return 0, errors.Wrapf(ErrUnsupportedSyntax, "chroma_array_type %d", chromaArrayType)
	}

	codeNum, err := br.ReadUE()
	if err != nil {
		return 0, errors.Wrap(err, "could not read coded_block_pattern codeNum")
	}
	if int(codeNum) >= len(codedBlockPattern[i1]) {
		return 0, errors.Wrapf(ErrMalformedBitstream, "coded_block_pattern codeNum %d out of range", codeNum)
	}

	var i3 uint64
	switch mpm {
	case intra4x4, intra8x8:
		i3 = 0
	case inter:
		i3 = 1
	default:
		return 0, errors.Wrap(ErrNotImplemented, "coded_block_pattern for unsupported prediction mode")
	}

	return codedBlockPattern[i1][codeNum][i3], nil
}
