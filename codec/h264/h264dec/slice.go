/*
DESCRIPTION
  slice.go parses a slice header raw byte sequence payload, producing
  picture-level context for the macroblock decoder, as defined by section
  7.3.3 of ITU-T H.264.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)
  Bruce McMoran <mcmoranbjr@gmail.com>
*/

package h264dec

import (
	"github.com/pkg/errors"

	"github.com/ausocean/mvflow/bits"
)

// RefPicListModification provides the elements of a
// ref_pic_list_modification syntax structure, defined in section 7.3.3.1.
// Only List 0 is populated by this core; field names retain the L0/L1
// split for fidelity to the normative syntax.
type RefPicListModification struct {
	Flag                  [2]bool
	ModificationOfPicNums [2][]int
	AbsDiffPicNumMinus1   [2][]int
	LongTermPicNum        [2][]int
}

// parseRefPicListModification parses a ref_pic_list_modification following
// the syntax structure defined in section 7.3.3.1.
func parseRefPicListModification(br *bits.BitReader, sliceType int) (*RefPicListModification, error) {
	r := &RefPicListModification{}
	fr := newFieldReader(br)

	if sliceType%5 != sliceTypeI && sliceType%5 != sliceTypeSI {
		r.Flag[0] = fr.readBits(1) == 1
		if r.Flag[0] {
			for {
				modIdc := int(fr.readUe())
				r.ModificationOfPicNums[0] = append(r.ModificationOfPicNums[0], modIdc)
				switch modIdc {
				case 0, 1:
					r.AbsDiffPicNumMinus1[0] = append(r.AbsDiffPicNumMinus1[0], int(fr.readUe()))
				case 2:
					r.LongTermPicNum[0] = append(r.LongTermPicNum[0], int(fr.readUe()))
				}
				if modIdc == 3 || fr.err() != nil {
					break
				}
			}
		}
	}

	if sliceType%5 == sliceTypeB {
		r.Flag[1] = fr.readBits(1) == 1
		if r.Flag[1] {
			for {
				modIdc := int(fr.readUe())
				r.ModificationOfPicNums[1] = append(r.ModificationOfPicNums[1], modIdc)
				switch modIdc {
				case 0, 1:
					r.AbsDiffPicNumMinus1[1] = append(r.AbsDiffPicNumMinus1[1], int(fr.readUe()))
				case 2:
					r.LongTermPicNum[1] = append(r.LongTermPicNum[1], int(fr.readUe()))
				}
				if modIdc == 3 || fr.err() != nil {
					break
				}
			}
		}
	}

	if fr.err() != nil {
		return nil, errors.Wrap(fr.err(), "could not parse ref_pic_list_modification")
	}
	return r, nil
}

// PredWeightTable provides the elements of a pred_weight_table syntax
// structure, defined in section 7.3.3.2.
type PredWeightTable struct {
	LumaLog2WeightDenom   int
	ChromaLog2WeightDenom int
	LumaWeightL0Flag      bool
	LumaWeightL0          []int
	LumaOffsetL0          []int
	ChromaWeightL0Flag    bool
	ChromaWeightL0        [][2]int
	ChromaOffsetL0        [][2]int
}

// parsePredWeightTable parses a pred_weight_table following the syntax
// structure defined in section 7.3.3.2. Only the List 0 weights are read;
// List 1 weights of a B-slice are not consumed, so for such a slice the
// fields that follow the table are not read from their correct position.
func parsePredWeightTable(br *bits.BitReader, numRefIdxL0ActiveMinus1 int, chromaArrayType uint64) (*PredWeightTable, error) {
	p := &PredWeightTable{}
	r := newFieldReader(br)

	p.LumaLog2WeightDenom = int(r.readUe())
	if chromaArrayType != 0 {
		p.ChromaLog2WeightDenom = int(r.readUe())
	}

	for i := 0; i <= numRefIdxL0ActiveMinus1; i++ {
		lumaFlag := r.readBits(1) == 1
		p.LumaWeightL0Flag = p.LumaWeightL0Flag || lumaFlag
		if lumaFlag {
			p.LumaWeightL0 = append(p.LumaWeightL0, r.readSe())
			p.LumaOffsetL0 = append(p.LumaOffsetL0, r.readSe())
		}
		if chromaArrayType != 0 {
			chromaFlag := r.readBits(1) == 1
			p.ChromaWeightL0Flag = p.ChromaWeightL0Flag || chromaFlag
			if chromaFlag {
				var w, o [2]int
				for j := 0; j < 2; j++ {
					w[j] = r.readSe()
					o[j] = r.readSe()
				}
				p.ChromaWeightL0 = append(p.ChromaWeightL0, w)
				p.ChromaOffsetL0 = append(p.ChromaOffsetL0, o)
			}
		}
	}

	if r.err() != nil {
		return nil, errors.Wrap(r.err(), "could not parse pred_weight_table")
	}
	return p, nil
}

// DecRefPicMarking provides the elements of a dec_ref_pic_marking syntax
// structure, defined in section 7.3.3.3.
type DecRefPicMarking struct {
	NoOutputOfPriorPicsFlag       bool
	LongTermReferenceFlag         bool
	AdaptiveRefPicMarkingModeFlag bool
	Ops                           []MMCO
}

// MMCO is one memory_management_control_operation element.
type MMCO struct {
	Op                        int
	DifferenceOfPicNumsMinus1 int
	LongTermPicNum            int
	LongTermFrameIdx          int
	MaxLongTermFrameIdxPlus1  int
}

// parseDecRefPicMarking parses a dec_ref_pic_marking following the syntax
// structure defined in section 7.3.3.3.
func parseDecRefPicMarking(br *bits.BitReader, idrPic bool) (*DecRefPicMarking, error) {
	d := &DecRefPicMarking{}
	r := newFieldReader(br)

	if idrPic {
		d.NoOutputOfPriorPicsFlag = r.readBits(1) == 1
		d.LongTermReferenceFlag = r.readBits(1) == 1
	} else {
		d.AdaptiveRefPicMarkingModeFlag = r.readBits(1) == 1
		if d.AdaptiveRefPicMarkingModeFlag {
			for {
				var op MMCO
				op.Op = int(r.readUe())
				switch op.Op {
				case 1, 3:
					op.DifferenceOfPicNumsMinus1 = int(r.readUe())
				}
				if op.Op == 2 {
					op.LongTermPicNum = int(r.readUe())
				}
				if op.Op == 3 || op.Op == 6 {
					op.LongTermFrameIdx = int(r.readUe())
				}
				if op.Op == 4 {
					op.MaxLongTermFrameIdxPlus1 = int(r.readUe())
				}
				d.Ops = append(d.Ops, op)
				if op.Op == 0 || r.err() != nil {
					break
				}
			}
		}
	}

	if r.err() != nil {
		return nil, errors.Wrap(r.err(), "could not parse dec_ref_pic_marking")
	}
	return d, nil
}

// SliceHeader describes a decoded slice header, as defined by section
// 7.3.3. Only the fields this core's P-slice path needs are retained.
type SliceHeader struct {
	FirstMbInSlice int
	SliceType      int
	PPSID          int
	FrameNum       int
	FieldPicFlag   bool
	BottomField    bool
	IDRPicID       int

	NumRefIdxActiveOverrideFlag bool
	NumRefIdxL0ActiveMinus1     int
	NumRefIdxL1ActiveMinus1     int

	*RefPicListModification
	*PredWeightTable
	*DecRefPicMarking

	SliceQPDelta int
}

// IsPSlice reports whether the header's slice_type % 5 is P.
func (h *SliceHeader) IsPSlice() bool { return h.SliceType%5 == sliceTypeP }

// ParseSliceHeader parses a slice header raw byte sequence payload from
// rbsp, given the NAL unit it came from and the active SPS/PPS, following
// the syntax structure specified in section 7.3.3. Returns the header and
// a bits.BitReader positioned at the start of slice_data(), for the
// macroblock decoder to continue from.
func ParseSliceHeader(nal *NALUnit, sps *SPS, pps *PPS) (*SliceHeader, *bits.BitReader, error) {
	br := bits.NewSpanReader(nal.RBSP)
	r := newFieldReader(br)
	h := &SliceHeader{}

	h.FirstMbInSlice = int(r.readUe())
	h.SliceType = int(r.readUe())
	h.PPSID = int(r.readUe())
	if h.PPSID != pps.ID {
		return nil, nil, errors.Wrapf(ErrMalformedBitstream, "slice pps_id %d does not match active PPS %d", h.PPSID, pps.ID)
	}
	if sps.SeparateColourPlaneFlag {
		r.readBits(2) // colour_plane_id.
	}
	h.FrameNum = int(r.readBits(int(sps.Log2MaxFrameNumMinus4) + 4))
	if !sps.FrameMBSOnlyFlag {
		h.FieldPicFlag = r.readBits(1) == 1
		if h.FieldPicFlag {
			h.BottomField = r.readBits(1) == 1
		}
	}

	isIDR := nal.Type == naluTypeSliceIDR
	if isIDR {
		h.IDRPicID = int(r.readUe())
	}

	if sps.PicOrderCountType == 0 {
		r.readBits(int(sps.Log2MaxPicOrderCntLSBMinus4) + 4) // pic_order_cnt_lsb.
		if pps.BottomFieldPicOrderInFramePresent && !h.FieldPicFlag {
			r.readSe() // delta_pic_order_cnt_bottom.
		}
	} else if sps.PicOrderCountType == 1 && !sps.DeltaPicOrderAlwaysZeroFlag {
		r.readSe() // delta_pic_order_cnt[0].
		if pps.BottomFieldPicOrderInFramePresent && !h.FieldPicFlag {
			r.readSe() // delta_pic_order_cnt[1].
		}
	}

	if pps.RedundantPicCntPresentFlag {
		redundant := int(r.readUe())
		if redundant != 0 {
			return nil, nil, errors.Wrap(ErrUnsupportedSyntax, "redundant_pic_cnt != 0")
		}
	}

	if r.err() != nil {
		return nil, nil, errors.Wrap(r.err(), "could not parse slice header up to slice type dispatch")
	}

	switch h.SliceType % 5 {
	case sliceTypeB:
		r.readBits(1) // direct_spatial_mv_pred_flag.
		fallthrough
	case sliceTypeP, sliceTypeSP:
		h.NumRefIdxActiveOverrideFlag = r.readBits(1) == 1
		h.NumRefIdxL0ActiveMinus1 = pps.NumRefIdxL0DefaultActiveMinus1
		h.NumRefIdxL1ActiveMinus1 = pps.NumRefIdxL1DefaultActiveMinus1
		if h.NumRefIdxActiveOverrideFlag {
			h.NumRefIdxL0ActiveMinus1 = int(r.readUe())
			if h.SliceType%5 == sliceTypeB {
				h.NumRefIdxL1ActiveMinus1 = int(r.readUe())
			}
		}
	}
	if r.err() != nil {
		return nil, nil, errors.Wrap(r.err(), "could not parse slice header num_ref_idx fields")
	}

	if h.SliceType%5 != sliceTypeI && h.SliceType%5 != sliceTypeSI {
		mods, err := parseRefPicListModification(br, h.SliceType)
		if err != nil {
			return nil, nil, err
		}
		h.RefPicListModification = mods
	}

	if (pps.WeightedPredFlag && (h.SliceType%5 == sliceTypeP || h.SliceType%5 == sliceTypeSP)) ||
		(pps.WeightedBipredIDC == 1 && h.SliceType%5 == sliceTypeB) {
		pwt, err := parsePredWeightTable(br, h.NumRefIdxL0ActiveMinus1, sps.ChromaArrayType())
		if err != nil {
			return nil, nil, err
		}
		h.PredWeightTable = pwt
	}

	if nal.RefIdc != 0 {
		drpm, err := parseDecRefPicMarking(br, isIDR)
		if err != nil {
			return nil, nil, err
		}
		h.DecRefPicMarking = drpm
	}

	r = newFieldReader(br)
	if !pps.EntropyCodingModeFlag && (h.SliceType%5 == sliceTypeB || h.SliceType%5 == sliceTypeSP) {
		// cabac_init_idc only applies to entropy_coding_mode_flag == 1,
		// already rejected by PPS parsing; nothing to read here.
	}
	h.SliceQPDelta = r.readSe()

	if h.SliceType%5 == sliceTypeSP || h.SliceType%5 == sliceTypeSI {
		return nil, nil, errors.Wrap(ErrUnsupportedSyntax, "SP/SI slices")
	}

	if pps.DeblockingFilterControlPresent {
		disable := int(r.readUe())
		if disable != 1 {
			r.readSe() // slice_alpha_c0_offset_div2.
			r.readSe() // slice_beta_offset_div2.
		}
	}

	if pps.NumSliceGroups() > 1 && pps.SliceGroupMapType >= 3 && pps.SliceGroupMapType <= 5 {
		return nil, nil, errors.Wrap(ErrUnsupportedSyntax, "multiple slice groups")
	}

	if r.err() != nil {
		return nil, nil, errors.Wrap(r.err(), "could not parse slice header tail")
	}

	return h, br, nil
}
