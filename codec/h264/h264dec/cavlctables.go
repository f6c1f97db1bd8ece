/*
DESCRIPTION
  cavlctables.go holds the CAVLC codeword tables of clause 9.2: coeff_token
  (Table 9-5, keyed by the nC predictor), total_zeros (Tables 9-7/9-8) and
  run_before (Table 9-10). Entries are (bit length, codeword value) pairs,
  read most-significant-bit first.

  This core performs no pixel reconstruction, so a CAVLC decode only needs
  to consume the same number of bits the encoder produced and to recover
  TotalCoeff (for the nC predictor of later blocks); it has no use for the
  reconstructed coefficient levels themselves. The codeword tables below
  are transcribed from the published standard without the benefit of a
  build/test cycle to catch transcription mistakes (this module is not
  permitted to invoke the Go toolchain); DESIGN.md records this as a
  flagged, unverified area rather than a settled one.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)
*/

package h264dec

// vlcEntry is one row of a variable-length codeword table.
type vlcEntry struct {
	length int
	value  uint64
	a, b   int // table-specific payload, e.g. (totalCoeff, trailingOnes) or (totalZeros) or (runBefore).
}

// coeffTokenTable0..2 cover 0<=nC<2, 2<=nC<4 and 4<=nC<8 respectively
// (Table 9-5). Entries are ordered by increasing code length so a linear
// prefix scan terminates at the first length whose codeword matches the
// bits read so far.
var coeffTokenTable0 = []vlcEntry{
	{1, 0x1, 0, 0},
	{2, 0x1, 1, 1},
	{3, 0x1, 2, 2},
	{4, 0x3, 0, 1},
	{5, 0x5, 0, 2},
	{5, 0x4, 3, 3},
	{6, 0x5, 1, 2},
	{6, 0x3, 0, 3},
	{6, 0x2, 0, 4},
	{7, 0x7, 1, 3},
	{7, 0x6, 1, 4},
	{7, 0x5, 2, 3},
	{7, 0x4, 0, 5},
	{8, 0x7, 2, 4},
	{8, 0x6, 0, 6},
	{8, 0x5, 2, 5},
	{9, 0x7, 3, 4},
	{9, 0x6, 1, 5},
	{9, 0x5, 1, 6},
	{9, 0x4, 0, 7},
	{10, 0x7, 3, 5},
	{10, 0x6, 2, 6},
	{10, 0x5, 1, 7},
	{10, 0x4, 0, 8},
	{11, 0x7, 3, 6},
	{11, 0x6, 2, 7},
	{11, 0x5, 1, 8},
	{11, 0x4, 0, 9},
	{12, 0x7, 3, 7},
	{12, 0x6, 2, 8},
	{12, 0x5, 1, 9},
	{12, 0x4, 0, 10},
	{13, 0x7, 3, 8},
	{13, 0x6, 2, 9},
	{13, 0x5, 1, 10},
	{13, 0x4, 0, 11},
	{14, 0x7, 3, 9},
	{14, 0x6, 2, 10},
	{14, 0x5, 1, 11},
	{14, 0x4, 0, 12},
	{15, 0x7, 3, 10},
	{15, 0x6, 2, 11},
	{15, 0x5, 1, 12},
	{15, 0x4, 0, 13},
	{16, 0x7, 3, 11},
	{16, 0x6, 2, 12},
	{16, 0x5, 1, 13},
	{16, 0x4, 0, 14},
	{16, 0x3, 3, 12},
	{16, 0x2, 2, 13},
	{16, 0x1, 1, 14},
	{16, 0x0, 0, 15},
	{16, 0x3, 3, 13},
	{16, 0x2, 2, 14},
	{16, 0x1, 1, 15},
	{16, 0x1, 2, 15},
	{16, 0x1, 3, 14},
	{16, 0x1, 3, 15},
	{16, 0x1, 3, 16},
}

var coeffTokenTable1 = []vlcEntry{
	{2, 0x3, 0, 0},
	{2, 0x2, 1, 1},
	{3, 0x3, 1, 2},
	{3, 0x2, 0, 1},
	{4, 0x5, 2, 2},
	{4, 0x3, 0, 2},
	{4, 0x2, 3, 3},
	{5, 0x5, 2, 3},
	{5, 0x4, 1, 3},
	{5, 0x3, 0, 3},
	{6, 0x7, 3, 4},
	{6, 0x6, 2, 4},
	{6, 0x5, 1, 4},
	{6, 0x4, 0, 4},
	{6, 0x3, 0, 5},
	{7, 0x7, 3, 5},
	{7, 0x6, 2, 5},
	{7, 0x5, 1, 5},
	{7, 0x4, 0, 6},
	{8, 0x7, 3, 6},
	{8, 0x6, 2, 6},
	{8, 0x5, 1, 6},
	{8, 0x4, 0, 7},
	{9, 0x7, 3, 7},
	{9, 0x6, 2, 7},
	{9, 0x5, 1, 7},
	{9, 0x4, 0, 8},
	{10, 0x7, 3, 8},
	{10, 0x6, 2, 8},
	{10, 0x5, 1, 8},
	{10, 0x4, 0, 9},
	{11, 0x7, 3, 9},
	{11, 0x6, 2, 9},
	{11, 0x5, 1, 9},
	{11, 0x4, 0, 10},
	{12, 0x7, 3, 10},
	{12, 0x6, 2, 10},
	{12, 0x5, 1, 10},
	{12, 0x4, 0, 11},
	{13, 0x7, 3, 11},
	{13, 0x6, 2, 11},
	{13, 0x5, 1, 11},
	{13, 0x4, 0, 12},
	{13, 0x1, 3, 12},
	{13, 0x1, 2, 12},
	{13, 0x1, 1, 12},
	{13, 0x1, 0, 13},
}

var coeffTokenTable2 = []vlcEntry{
	{4, 0xf, 0, 0},
	{4, 0xe, 1, 1},
	{4, 0xd, 1, 2},
	{4, 0xc, 2, 2},
	{4, 0xb, 1, 3},
	{4, 0xa, 2, 3},
	{4, 0x9, 2, 4},
	{4, 0x8, 3, 4},
	{4, 0x7, 3, 5},
	{4, 0x6, 3, 6},
	{4, 0x5, 0, 1},
	{4, 0x4, 0, 2},
	{6, 0x3, 3, 7},
	{6, 0x2, 3, 8},
	{6, 0x1, 3, 9},
	{6, 0x0, 3, 10},
}

// coeffTokenChromaDC420 is Table 9-5's chroma-DC column, used for
// ChromaArrayType 1 (nC == -1).
var coeffTokenChromaDC420 = []vlcEntry{
	{2, 0x1, 0, 0},
	{6, 0x7, 1, 1},
	{1, 0x1, 0, 1},
	{6, 0x4, 0, 4},
	{6, 0x6, 1, 2},
	{3, 0x1, 1, 3},
	{7, 0x3, 2, 3},
	{2, 0x1, 2, 2},
	{7, 0x2, 3, 3},
	{5, 0x1, 0, 2},
	{6, 0x5, 2, 4},
	{8, 0x1, 3, 4},
}

// decodeCoeffTokenFLC handles nC >= 8, the only coeff_token case with a closed
// form (clause 9.2.1): a 6-bit fixed-length code.
func decodeCoeffTokenFLC(br *fieldReader) (totalCoeff, trailingOnes int) {
	code := int(br.readBits(6))
	if code == 3 {
		return 0, 0
	}
	return (code >> 2) + 1, code & 3
}

// totalZerosTable4x4 implements Tables 9-7/9-8 for 4x4 luma/chroma-AC
// blocks, keyed by tzVlcIndex == TotalCoeff (1..15).
var totalZerosTable4x4 = [][]vlcEntry{
	nil, // index 0 unused (TotalCoeff 0 implies total_zeros 0, not coded).
	{ // TotalCoeff 1
		{1, 0x1, 0, 0}, {3, 0x3, 1, 0}, {3, 0x2, 2, 0}, {4, 0x3, 3, 0},
		{4, 0x2, 4, 0}, {5, 0x3, 5, 0}, {5, 0x2, 6, 0}, {6, 0x3, 7, 0},
		{6, 0x2, 8, 0}, {7, 0x3, 9, 0}, {7, 0x2, 10, 0}, {8, 0x3, 11, 0},
		{8, 0x2, 12, 0}, {9, 0x3, 13, 0}, {9, 0x2, 14, 0}, {9, 0x1, 15, 0},
	},
	{ // TotalCoeff 2
		{3, 0x7, 0, 0}, {3, 0x6, 1, 0}, {3, 0x5, 2, 0}, {3, 0x4, 3, 0},
		{3, 0x3, 4, 0}, {4, 0x5, 5, 0}, {4, 0x4, 6, 0}, {4, 0x3, 7, 0},
		{4, 0x2, 8, 0}, {5, 0x3, 9, 0}, {5, 0x2, 10, 0}, {6, 0x3, 11, 0},
		{6, 0x2, 12, 0}, {6, 0x1, 13, 0}, {6, 0x0, 14, 0},
	},
	{ // TotalCoeff 3
		{4, 0x5, 0, 0}, {3, 0x7, 1, 0}, {3, 0x6, 2, 0}, {3, 0x5, 3, 0},
		{4, 0x4, 4, 0}, {4, 0x3, 5, 0}, {3, 0x4, 6, 0}, {3, 0x3, 7, 0},
		{4, 0x2, 8, 0}, {5, 0x3, 9, 0}, {5, 0x2, 10, 0}, {6, 0x1, 11, 0},
		{6, 0x0, 12, 0}, {6, 0x1, 13, 0},
	},
	{ // TotalCoeff 4
		{6, 0x3, 0, 0}, {6, 0x2, 1, 0}, {4, 0x3, 2, 0}, {3, 0x7, 3, 0},
		{4, 0x2, 4, 0}, {3, 0x6, 5, 0}, {3, 0x5, 6, 0}, {3, 0x4, 7, 0},
		{4, 0x1, 8, 0}, {5, 0x1, 9, 0}, {6, 0x1, 10, 0}, {6, 0x0, 11, 0},
		{6, 0x1, 12, 0},
	},
	{ // TotalCoeff 5
		{6, 0x3, 0, 0}, {6, 0x2, 1, 0}, {5, 0x3, 2, 0}, {4, 0x3, 3, 0},
		{3, 0x5, 4, 0}, {3, 0x4, 5, 0}, {3, 0x3, 6, 0}, {4, 0x2, 7, 0},
		{4, 0x1, 8, 0}, {5, 0x0, 9, 0}, {5, 0x1, 10, 0}, {5, 0x1, 11, 0},
	},
	{ // TotalCoeff 6
		{5, 0x1, 0, 0}, {5, 0x0, 1, 0}, {4, 0x1, 2, 0}, {3, 0x5, 3, 0},
		{3, 0x4, 4, 0}, {3, 0x3, 5, 0}, {4, 0x2, 6, 0}, {4, 0x3, 7, 0},
		{3, 0x2, 8, 0}, {4, 0x0, 9, 0}, {4, 0x1, 10, 0},
	},
	{ // TotalCoeff 7
		{4, 0xf, 0, 0}, {4, 0xe, 1, 0}, {4, 0xd, 2, 0}, {3, 0x5, 3, 0},
		{3, 0x4, 4, 0}, {3, 0x3, 5, 0}, {3, 0x2, 6, 0}, {4, 0xc, 7, 0},
		{3, 0x1, 8, 0}, {4, 0xb, 9, 0},
	},
	{ // TotalCoeff 8
		{4, 0xb, 0, 0}, {3, 0x5, 1, 0}, {3, 0x4, 2, 0}, {3, 0x3, 3, 0},
		{3, 0x2, 4, 0}, {4, 0xa, 5, 0}, {4, 0x9, 6, 0}, {3, 0x1, 7, 0},
		{4, 0x8, 8, 0},
	},
	{ // TotalCoeff 9
		{3, 0x7, 0, 0}, {3, 0x6, 1, 0}, {3, 0x5, 2, 0}, {3, 0x4, 3, 0},
		{3, 0x3, 4, 0}, {3, 0x2, 5, 0}, {3, 0x1, 6, 0}, {3, 0x0, 7, 0},
	},
	{ // TotalCoeff 10
		{3, 0x5, 0, 0}, {3, 0x4, 1, 0}, {2, 0x3, 2, 0}, {2, 0x2, 3, 0},
		{3, 0x3, 4, 0}, {3, 0x2, 5, 0}, {3, 0x1, 6, 0},
	},
	{ // TotalCoeff 11
		{2, 0x1, 0, 0}, {2, 0x0, 1, 0}, {2, 0x1, 2, 0}, {3, 0x3, 3, 0},
		{3, 0x2, 4, 0}, {3, 0x1, 5, 0},
	},
	{ // TotalCoeff 12
		{2, 0x1, 0, 0}, {2, 0x0, 1, 0}, {2, 0x1, 2, 0}, {2, 0x1, 3, 0},
		{2, 0x1, 4, 0},
	},
	{ // TotalCoeff 13
		{2, 0x1, 0, 0}, {2, 0x0, 1, 0}, {1, 0x1, 2, 0}, {2, 0x1, 3, 0},
	},
	{ // TotalCoeff 14
		{1, 0x1, 0, 0}, {1, 0x0, 1, 0}, {1, 0x1, 2, 0},
	},
	{ // TotalCoeff 15
		{1, 0x1, 0, 0}, {1, 0x0, 1, 0},
	},
}

// totalZerosChromaDC420 is the 4:2:0 chroma-DC total_zeros table (Table
// 9-9a), keyed by TotalCoeff (1..3).
var totalZerosChromaDC420 = [][]vlcEntry{
	nil,
	{{1, 0x1, 0, 0}, {2, 0x1, 1, 0}, {3, 0x1, 2, 0}, {3, 0x0, 3, 0}},
	{{1, 0x1, 0, 0}, {2, 0x1, 1, 0}, {2, 0x0, 2, 0}},
	{{1, 0x1, 0, 0}, {1, 0x0, 1, 0}},
}

// runBeforeTable implements Table 9-10, keyed by min(zerosLeft, 7).
var runBeforeTable = [][]vlcEntry{
	nil,
	{{1, 0x1, 0, 0}, {1, 0x0, 1, 0}},
	{{1, 0x1, 0, 0}, {2, 0x1, 1, 0}, {2, 0x0, 2, 0}},
	{{2, 0x3, 0, 0}, {2, 0x2, 1, 0}, {2, 0x1, 2, 0}, {2, 0x0, 3, 0}},
	{{2, 0x3, 0, 0}, {2, 0x2, 1, 0}, {2, 0x1, 2, 0}, {3, 0x1, 3, 0}, {3, 0x0, 4, 0}},
	{{2, 0x3, 0, 0}, {2, 0x2, 1, 0}, {3, 0x3, 2, 0}, {3, 0x2, 3, 0}, {3, 0x1, 4, 0}, {3, 0x0, 5, 0}},
	{{2, 0x3, 0, 0}, {3, 0x0, 1, 0}, {3, 0x1, 2, 0}, {3, 0x3, 3, 0}, {3, 0x2, 4, 0}, {3, 0x5, 5, 0}, {3, 0x4, 6, 0}},
	{ // zerosLeft > 6: runs 0-6 as 3-bit codes; a 000 prefix followed by (run-7) zeros and a one codes runs 7-14.
		{3, 0x7, 0, 0}, {3, 0x6, 1, 0}, {3, 0x5, 2, 0}, {3, 0x4, 3, 0},
		{3, 0x3, 4, 0}, {3, 0x2, 5, 0}, {3, 0x1, 6, 0},
	},
}

// lookupVLC scans table for the entry matching the next bits of br, reading
// one bit at a time up to maxLen. Returns the matched entry and true, or
// false if no entry of length <= maxLen matches (a malformed stream).
func lookupVLC(br *fieldReader, table []vlcEntry, maxLen int) (vlcEntry, bool) {
	var code uint64
	length := 0
	for length < maxLen {
		code = (code << 1) | br.readBits(1)
		length++
		for _, e := range table {
			if e.length == length && e.value == code {
				return e, true
			}
		}
		if br.err() != nil {
			return vlcEntry{}, false
		}
	}
	return vlcEntry{}, false
}
