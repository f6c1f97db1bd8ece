/*
DESCRIPTION
  macroblock.go decodes slice_data() into a sequence of macroblocks, as
  defined by sections 7.3.4 and 7.3.5 of ITU-T H.264: the mb_skip_run
  scheduling loop, mb_type/mb_pred/sub_mb_pred dispatch, neighbouring
  macroblock derivation (clause 6.4.9), and the coded_block_pattern and
  residual trigger. Only the subset needed to keep a P-slice decode in
  sync and to recover per-partition motion vectors is implemented; intra
  macroblocks are parsed far enough to stay byte/bit aligned with the
  stream but are not used for prediction (clause 8.4.1 treats an intra
  neighbour's motion vector as unavailable).

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)
*/

package h264dec

import (
	"github.com/pkg/errors"

	"github.com/ausocean/mvflow/bits"
)

// macroblock holds the decoded state of one macroblock that downstream
// motion-vector derivation and residual parsing of later macroblocks need.
type macroblock struct {
	addr     int
	mbX, mbY int

	skip        bool // synthetic P_Skip, no coded mb_type.
	intra       bool
	ipcm        bool
	hasResidual bool // residual() was parsed for this macroblock (coded_block_pattern != 0, or Intra_16x16).

	codedType int // raw mb_type as read from the bitstream (or codedPSkip).

	numMbPart             int
	partWidth, partHeight int
	transform8x8          bool

	// Per-4x4-luma-block motion state, indexed by luma4x4BlkIdx (blk4x4XY).
	// Populated for every block covered by an inter partition; left at the
	// zero value (unavailable) for intra macroblocks.
	refIdxL0 [16]int
	mvL0     [16][2]int
	predL0   [16]bool

	// Per-block TotalCoeff, used by the CAVLC nC predictor for subsequent
	// macroblocks (clause 9.2.1).
	totalCoeffLuma     [16]int
	totalCoeffChromaAC [2][4]int
}

// frameCtx carries the picture-level state the macroblock decoder needs:
// the active parameter sets and the raster-order array of macroblocks
// decoded so far in the current picture.
type frameCtx struct {
	sps       *SPS
	pps       *PPS
	widthMbs  int
	heightMbs int
	mbs       []*macroblock // len == sps.PicSizeInMbs(); nil until decoded.

	// numRefIdxL0ActiveMinus1 is set from the active slice header before
	// each slice_data() call, since ref_idx_l0's te(v) range depends on it.
	numRefIdxL0ActiveMinus1 int
}

func newFrameCtx(sps *SPS, pps *PPS) *frameCtx {
	return &frameCtx{
		sps:       sps,
		pps:       pps,
		widthMbs:  sps.PicWidthInMbs(),
		heightMbs: sps.FrameHeightInMbs(),
		mbs:       make([]*macroblock, sps.PicSizeInMbs()),
	}
}

// neighbourA, neighbourB, neighbourC and neighbourD return the left, top,
// top-right and top-left neighbouring macroblocks of addr, per the
// non-MBAFF derivation of clause 6.4.9. They return nil when the
// neighbour would fall outside the picture or has not yet been decoded.
func (f *frameCtx) neighbourA(addr int) *macroblock {
	if addr%f.widthMbs == 0 {
		return nil
	}
	return f.mbs[addr-1]
}

func (f *frameCtx) neighbourB(addr int) *macroblock {
	if addr < f.widthMbs {
		return nil
	}
	return f.mbs[addr-f.widthMbs]
}

func (f *frameCtx) neighbourC(addr int) *macroblock {
	if addr < f.widthMbs || addr%f.widthMbs == f.widthMbs-1 {
		return nil
	}
	return f.mbs[addr-f.widthMbs+1]
}

func (f *frameCtx) neighbourD(addr int) *macroblock {
	if addr < f.widthMbs || addr%f.widthMbs == 0 {
		return nil
	}
	return f.mbs[addr-f.widthMbs-1]
}

// decodeSliceData parses slice_data() (clause 7.3.4) starting at br (already
// positioned just after the slice header, which must have been parsed from
// rbsp), filling in f.mbs from h.FirstMbInSlice onward. Only P-slices are
// supported; any other slice type is rejected here with
// ErrUnsupportedSyntax.
func decodeSliceData(rbsp []byte, br *bits.BitReader, h *SliceHeader, f *frameCtx) error {
	if !h.IsPSlice() {
		return errors.Wrap(ErrUnsupportedSyntax, "slice_data for non-P slice")
	}
	f.numRefIdxL0ActiveMinus1 = h.NumRefIdxL0ActiveMinus1

	addr := h.FirstMbInSlice
	total := len(f.mbs)

	for addr < total {
		skipRun, err := br.ReadUE()
		if err != nil {
			return errors.Wrap(err, "could not read mb_skip_run")
		}
		for i := uint64(0); i < skipRun && addr < total; i++ {
			f.mbs[addr] = decodePSkipMB(f, addr)
			addr++
		}
		if addr >= total {
			break
		}
		if !moreRBSPData(rbsp, br) {
			break
		}

		mb, err := decodeMacroblock(br, f, addr)
		if err != nil {
			return err
		}
		f.mbs[addr] = mb
		addr++

		if !moreRBSPData(rbsp, br) {
			break
		}
	}

	if addr != total {
		return errSliceIncomplete
	}
	return nil
}

// decodePSkipMB builds the synthetic macroblock record for a P_Skip
// macroblock at addr: partitioned as a single 16x16 inter partition with
// refIdxL0 0 and a motion vector derived by the P_Skip override rule
// (clause 8.4.1.1).
func decodePSkipMB(f *frameCtx, addr int) *macroblock {
	mb := &macroblock{
		addr:      addr,
		mbX:       addr % f.widthMbs,
		mbY:       addr / f.widthMbs,
		skip:      true,
		codedType: codedPSkip,
		numMbPart: 1,
		partWidth: 16, partHeight: 16,
	}
	mv := derivePSkipMV(f, mb)
	for blk := 0; blk < 16; blk++ {
		mb.predL0[blk] = true
		mb.mvL0[blk] = mv
	}
	return mb
}

// decodeMacroblock parses one coded macroblock() (clause 7.3.5) from br.
func decodeMacroblock(br *bits.BitReader, f *frameCtx, addr int) (*macroblock, error) {
	mbType, err := br.ReadUE()
	if err != nil {
		return nil, errors.Wrap(err, "could not read mb_type")
	}
	mb := &macroblock{
		addr:      addr,
		mbX:       addr % f.widthMbs,
		mbY:       addr / f.widthMbs,
		codedType: int(mbType),
	}

	if mbIsIntra(mb.codedType) {
		mb.intra = true
		if mbIsIPCM(mb.codedType) {
			mb.ipcm = true
			return mb, decodeIPCM(br)
		}
		return mb, decodeIntraMB(br, f, mb)
	}

	part, ok := pMbPartTable[mb.codedType]
	if !ok {
		return nil, errors.Wrapf(ErrMalformedBitstream, "invalid P-slice mb_type %d", mb.codedType)
	}
	mb.numMbPart, mb.partWidth, mb.partHeight = part.numMbPart, part.partWidth, part.partHeight

	if mb.numMbPart == 4 {
		return nil, errors.Wrap(ErrUnsupportedSyntax, "8x8 sub-macroblock partitions")
	}

	if err := decodeMbPredInter(br, f, mb); err != nil {
		return nil, err
	}

	cbp, err := readCodedBlockPattern(br, f.sps.ChromaArrayType(), inter)
	if err != nil {
		return nil, err
	}

	transform8x8 := false
	if f.pps.Transform8x8ModeFlag && cbp&0xf != 0 && mb.numMbPart != 4 {
		v, err := br.ReadBits(1)
		if err != nil {
			return nil, errors.Wrap(err, "could not read transform_size_8x8_flag")
		}
		transform8x8 = v == 1
	}
	mb.transform8x8 = transform8x8

	if cbp != 0 {
		if _, err := br.ReadSE(); err != nil { // mb_qp_delta.
			return nil, errors.Wrap(err, "could not read mb_qp_delta")
		}
		if err := parseResidual(br, f, mb, cbp); err != nil {
			return nil, err
		}
	}

	return mb, nil
}

// decodeMbPredInter parses mb_pred() for an inter (P) macroblock, reading
// ref_idx_l0 and mvd_l0 for each partition (clause 7.3.5.1), and derives
// each partition's motion vector via the median predictor (clause 8.4.1).
func decodeMbPredInter(br *bits.BitReader, f *frameCtx, mb *macroblock) error {
	refIdx := make([]int, mb.numMbPart)
	for p := 0; p < mb.numMbPart; p++ {
		if f.numRefIdxL0ActiveMinus1 == 0 {
			continue // ref_idx_l0 is inferred as 0 (clause 7.3.5.1), frame-only coding assumed.
		}
		v, err := br.ReadTE(uint64(f.numRefIdxL0ActiveMinus1))
		if err != nil {
			return errors.Wrap(err, "could not read ref_idx_l0")
		}
		refIdx[p] = int(v)
	}

	mvd := make([][2]int, mb.numMbPart)
	for p := 0; p < mb.numMbPart; p++ {
		x, err := br.ReadSE()
		if err != nil {
			return errors.Wrap(err, "could not read mvd_l0 x")
		}
		y, err := br.ReadSE()
		if err != nil {
			return errors.Wrap(err, "could not read mvd_l0 y")
		}
		mvd[p] = [2]int{int(x), int(y)}
	}

	for p := 0; p < mb.numMbPart; p++ {
		blocks, x, y, w, h := partitionBlocks(mb.numMbPart, mb.partWidth, mb.partHeight, p)
		pred := derivePartitionMVP(f, mb, x, y, w, h, refIdx[p])
		mv := [2]int{pred[0] + mvd[p][0], pred[1] + mvd[p][1]}
		for _, blk := range blocks {
			mb.refIdxL0[blk] = refIdx[p]
			mb.mvL0[blk] = mv
			mb.predL0[blk] = true
		}
	}
	return nil
}

// decodeIntraMB parses mb_pred() for an intra macroblock far enough to
// remain bit-aligned with the stream (clause 7.3.5.1), derives the implied
// coded_block_pattern for Intra_16x16 macroblocks (Table 7-11), and parses
// any residual. Motion vectors are left at their zero value: clause 8.4.1
// treats an intra neighbour as unavailable for prediction purposes.
func decodeIntraMB(br *bits.BitReader, f *frameCtx, mb *macroblock) error {
	localType := mb.codedType - iNxNStart // index into Table 7-11.

	isNxN := localType == 0
	if isNxN {
		transform8x8 := false
		if f.pps.Transform8x8ModeFlag {
			v, err := br.ReadBits(1)
			if err != nil {
				return errors.Wrap(err, "could not read transform_size_8x8_flag")
			}
			transform8x8 = v == 1
		}
		mb.transform8x8 = transform8x8
		numBlocks := 16
		if transform8x8 {
			numBlocks = 4
		}
		for i := 0; i < numBlocks; i++ {
			flag, err := br.ReadBits(1)
			if err != nil {
				return errors.Wrap(err, "could not read prev_intra_pred_mode_flag")
			}
			if flag == 0 {
				if _, err := br.ReadBits(3); err != nil { // rem_intra_pred_mode.
					return errors.Wrap(err, "could not read rem_intra_pred_mode")
				}
			}
		}
	}

	if f.sps.ChromaArrayType() == chroma420 || f.sps.ChromaArrayType() == chroma422 {
		if _, err := br.ReadUE(); err != nil { // intra_chroma_pred_mode.
			return errors.Wrap(err, "could not read intra_chroma_pred_mode")
		}
	}

	var cbpLuma, cbpChroma uint
	if !isNxN {
		// Table 7-11: I_16x16_x_y_z, local index 1..24.
		m := localType - 1
		cbpChroma = uint((m / 4) % 3)
		if m >= 12 {
			cbpLuma = 0xf
		}
	} else {
		cbp, err := readCodedBlockPattern(br, f.sps.ChromaArrayType(), intra4x4)
		if err != nil {
			return err
		}
		cbpLuma = cbp & 0xf
		cbpChroma = cbp >> 4
	}

	if cbpLuma != 0 || cbpChroma != 0 || !isNxN {
		if _, err := br.ReadSE(); err != nil { // mb_qp_delta.
			return errors.Wrap(err, "could not read mb_qp_delta")
		}
		cbp := cbpLuma | (cbpChroma << 4)
		if err := parseResidual(br, f, mb, cbp); err != nil {
			return err
		}
	}

	return nil
}

// decodeIPCM skips the pcm_alignment_zero_bit padding of an I_PCM
// macroblock (clause 7.3.5) and reports it as unsupported; the PCM sample
// array is not read. An I_PCM macroblock (which carries no motion
// information and, per the error taxonomy, is explicitly out of the
// supported subset) ends decoding of the slice.
func decodeIPCM(br *bits.BitReader) error {
	br.AlignToByte()
	return errors.Wrap(ErrUnsupportedSyntax, "I_PCM macroblock")
}
