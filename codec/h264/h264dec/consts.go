package h264dec

// NAL unit types (Table 7-1) that the core dispatches on. Only a subset is
// recognised; others are skipped by the caller without being handed to a
// parse routine.
const (
	naluTypeSliceNonIDR = 1
	naluTypeSliceIDR    = 5
	naluTypeSPS         = 7
	naluTypePPS         = 8
)

// chroma_format_idc values (Table 6-1).
const (
	chroma400 = 0
	chroma420 = 1
	chroma422 = 2
	chroma444 = 3
)

// slice_type % 5 values (7.4.3).
const (
	sliceTypeP  = 0
	sliceTypeB  = 1
	sliceTypeI  = 2
	sliceTypeSP = 3
	sliceTypeSI = 4
)

// mb_type values for P slices (Table 7-13), plus the special I_NxN/I_PCM
// boundary and the synthetic P_Skip value this core assigns to skipped
// macroblocks.
const (
	pL016x16   = 0
	pL0L016x8  = 1
	pL0L08x16  = 2
	p8x8       = 3
	p8x8ref0   = 4
	iNxNStart  = 5
	iPCM       = 25 // mb_type - 5 == 25 <=> coded mb_type 30, see mbIsIPCM.
	codedIPCM  = 30
	codedPSkip = -1 // sentinel; P_Skip MBs never carry a coded mb_type.
)

// mbPartInfo describes the partition geometry implied by a P-slice mb_type,
// grounded on the mb_type table in clause 7.4.5 (Table 7-13).
type mbPartInfo struct {
	numMbPart  int
	partWidth  int
	partHeight int
}

// pMbPartTable maps a coded P-slice mb_type (0..4) to its partition
// geometry. mb_type values 5 and above are intra or I_PCM and are handled
// separately; P_Skip (no coded mb_type) uses the same geometry as
// P_L0_16x16.
var pMbPartTable = map[int]mbPartInfo{
	pL016x16:  {1, 16, 16},
	pL0L016x8: {2, 16, 8},
	pL0L08x16: {2, 8, 16},
	p8x8:      {4, 8, 8},
	p8x8ref0:  {4, 8, 8},
}

// mbIsIntra reports whether codedType (the raw mb_type read from the
// bitstream, before any P_Skip substitution) denotes an intra macroblock.
func mbIsIntra(codedType int) bool {
	return codedType >= iNxNStart
}

// mbIsIPCM reports whether codedType denotes I_PCM.
func mbIsIPCM(codedType int) bool {
	return codedType == codedIPCM
}

func maxi(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func mini(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func absi(a int) int {
	if a < 0 {
		return -a
	}
	return a
}

// median3 returns the median of three ints, as used by the 8.4.1.3.1
// component-wise median motion vector predictor:
// Median(a,b,c) = max(min(a,b), min(max(a,b),c)).
func median3(a, b, c int) int {
	return maxi(mini(a, b), mini(maxi(a, b), c))
}
