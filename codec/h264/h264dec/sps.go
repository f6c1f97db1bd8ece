/*
DESCRIPTION
  sps.go decodes a sequence parameter set raw byte sequence payload into a
  typed SPS record, as defined by section 7.3.2.1.1 of ITU-T H.264.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)
  mrmod <mcmoranbjr@gmail.com>
*/

package h264dec

import (
	"github.com/pkg/errors"

	"github.com/ausocean/mvflow/bits"
)

// profileIDCsWithChromaInfo lists profile_idc values for which the SPS
// carries chroma_format_idc, bit-depth, and scaling-matrix fields (the
// "special profile case" of 7.3.2.1.1).
var profileIDCsWithChromaInfo = []int{100, 110, 122, 244, 44, 83, 86, 118, 128, 138, 139, 134, 135}

// SPS describes a sequence parameter set as defined by section 7.3.2.1.1 in
// the Specification. For semantics see section 7.4.2.1; comments on fields
// are excerpts from that section.
type SPS struct {
	// profile_idc and level_idc indicate the profile and level to which the
	// coded video sequence conforms.
	Profile, LevelIDC uint8

	// The constraint_setx_flag flags specify the constraints defined in A.2
	// for which this stream conforms.
	Constraint0, Constraint1, Constraint2 bool
	Constraint3, Constraint4, Constraint5 bool

	// seq_parameter_set_id identifies this sequence parameter set, and is
	// then referenced by the picture parameter set.
	SPSID uint64

	// chroma_format_idc specifies the chroma sampling relative to the luma
	// sampling, as specified in clause 6.2. Defaults to 1 (4:2:0) when this
	// SPS's profile does not carry the field.
	ChromaFormatIDC uint64

	// separate_colour_plane_flag, if true, specifies that the three
	// components of the 4:4:4 chroma format are coded separately.
	SeparateColourPlaneFlag bool

	// bit_depth_luma_minus8 and bit_depth_chroma_minus8 specify the luma and
	// chroma array sample bit depths.
	BitDepthLumaMinus8   uint64
	BitDepthChromaMinus8 uint64

	// seq_scaling_matrix_present_flag equal to 1 specifies that scaling
	// lists are present; this core rejects that case (ErrUnsupportedSyntax).
	SeqScalingMatrixPresentFlag bool

	// log2_max_frame_num_minus4 allows derivation of MaxFrameNum (eq 7-10).
	Log2MaxFrameNumMinus4 uint64

	// pic_order_cnt_type specifies the method used to decode picture order
	// count, plus its type-dependent fields.
	PicOrderCountType              uint64
	Log2MaxPicOrderCntLSBMinus4    uint64
	DeltaPicOrderAlwaysZeroFlag    bool
	OffsetForNonRefPic             int64
	OffsetForTopToBottomField      int64
	NumRefFramesInPicOrderCntCycle uint64
	OffsetForRefFrameList          []int64

	// max_num_ref_frames specifies the max number of reference frames used
	// by the decoding process for inter prediction.
	MaxNumRefFrames uint64

	// gaps_in_frame_num_value_allowed_flag specifies the allowed values of
	// frame_num, per clause 7.4.3 and 8.2.5.2.
	GapsInFrameNumValueAllowedFlag bool

	// pic_width_in_mbs_minus1 plus 1 gives the picture width in macroblocks
	// (eq 7-13); pic_height_in_map_units_minus1 plus 1 gives the picture
	// height in slice group map units (eq 7-16).
	PicWidthInMBSMinus1       uint64
	PicHeightInMapUnitsMinus1 uint64

	// frame_mbs_only_flag, if 1, specifies every coded picture is a frame
	// containing only frame macroblocks (this core requires this to be 1;
	// field/MBAFF pictures are outside its scope).
	FrameMBSOnlyFlag bool

	// mb_adaptive_frame_field_flag, if 1, permits switching between frame
	// and field macroblocks within a frame. Unsupported by this core.
	MBAdaptiveFrameFieldFlag bool

	// direct_8x8_inference_flag specifies the method used to derive luma
	// motion vectors for B_Skip/B_Direct partitions, per clause 8.4.1.2.
	Direct8x8InferenceFlag bool

	// Frame cropping offsets, parsed and stored but not otherwise used by
	// this core (no pixel reconstruction is performed).
	FrameCroppingFlag     bool
	FrameCropLeftOffset   uint64
	FrameCropRightOffset  uint64
	FrameCropTopOffset    uint64
	FrameCropBottomOffset uint64

	// vui_parameters_present_flag is read to keep the bit cursor aligned,
	// but the vui_parameters() structure itself is never parsed.
	VUIParametersPresentFlag bool
}

// ChromaArrayType returns ChromaFormatIDC, or 0 when
// SeparateColourPlaneFlag is set, per the definition in clause 7.4.2.1.1.
func (s *SPS) ChromaArrayType() uint64 {
	if s.SeparateColourPlaneFlag {
		return 0
	}
	return s.ChromaFormatIDC
}

// PicWidthInMbs returns the picture width in macroblock units.
func (s *SPS) PicWidthInMbs() int { return int(s.PicWidthInMBSMinus1) + 1 }

// PicHeightInMapUnits returns the picture height in slice group map units.
func (s *SPS) PicHeightInMapUnits() int { return int(s.PicHeightInMapUnitsMinus1) + 1 }

// FrameHeightInMbs returns the frame height in macroblock units, per the
// glossary equation (2 - frame_mbs_only_flag) * PicHeightInMapUnits.
func (s *SPS) FrameHeightInMbs() int {
	f := 2
	if s.FrameMBSOnlyFlag {
		f = 1
	}
	return f * s.PicHeightInMapUnits()
}

// PicSizeInMbs returns the total number of macroblocks in a coded frame.
func (s *SPS) PicSizeInMbs() int { return s.PicWidthInMbs() * s.FrameHeightInMbs() }

// NewSPS parses a sequence parameter set raw byte sequence payload from
// rbsp following the syntax structure specified in section 7.3.2.1.1, and
// returns it as a new SPS. Scaling-matrix signalling and chroma layouts
// other than 4:2:0 are rejected with ErrUnsupportedSyntax, and
// non-frame-only / MBAFF pictures with ErrUnsupportedSyntax, since they
// fall outside this core's supported subset.
func NewSPS(rbsp []byte) (*SPS, error) {
	sps := SPS{ChromaFormatIDC: chroma420}
	br := bits.NewSpanReader(rbsp)
	r := newFieldReader(br)

	sps.Profile = uint8(r.readBits(8))
	sps.Constraint0 = r.readBits(1) == 1
	sps.Constraint1 = r.readBits(1) == 1
	sps.Constraint2 = r.readBits(1) == 1
	sps.Constraint3 = r.readBits(1) == 1
	sps.Constraint4 = r.readBits(1) == 1
	sps.Constraint5 = r.readBits(1) == 1
	r.readBits(2) // reserved_zero_2bits.
	sps.LevelIDC = uint8(r.readBits(8))
	sps.SPSID = r.readUe()
	sps.ChromaFormatIDC = chroma420

	if isInList(profileIDCsWithChromaInfo, int(sps.Profile)) {
		sps.ChromaFormatIDC = r.readUe()
		if sps.ChromaFormatIDC == chroma444 {
			sps.SeparateColourPlaneFlag = r.readBits(1) == 1
		}
		sps.BitDepthLumaMinus8 = r.readUe()
		sps.BitDepthChromaMinus8 = r.readUe()
		r.readBits(1) // qpprime_y_zero_transform_bypass_flag.
		sps.SeqScalingMatrixPresentFlag = r.readBits(1) == 1
		if sps.SeqScalingMatrixPresentFlag {
			return nil, errors.Wrap(ErrUnsupportedSyntax, "seq_scaling_matrix_present_flag set")
		}
	}

	sps.Log2MaxFrameNumMinus4 = r.readUe()
	sps.PicOrderCountType = r.readUe()

	switch sps.PicOrderCountType {
	case 0:
		sps.Log2MaxPicOrderCntLSBMinus4 = r.readUe()
	case 1:
		sps.DeltaPicOrderAlwaysZeroFlag = r.readBits(1) == 1
		sps.OffsetForNonRefPic = r.readSe64()
		sps.OffsetForTopToBottomField = r.readSe64()
		sps.NumRefFramesInPicOrderCntCycle = r.readUe()
		for i := uint64(0); i < sps.NumRefFramesInPicOrderCntCycle; i++ {
			sps.OffsetForRefFrameList = append(sps.OffsetForRefFrameList, r.readSe64())
		}
	}

	sps.MaxNumRefFrames = r.readUe()
	sps.GapsInFrameNumValueAllowedFlag = r.readBits(1) == 1
	sps.PicWidthInMBSMinus1 = r.readUe()
	sps.PicHeightInMapUnitsMinus1 = r.readUe()
	sps.FrameMBSOnlyFlag = r.readBits(1) == 1
	if !sps.FrameMBSOnlyFlag {
		sps.MBAdaptiveFrameFieldFlag = r.readBits(1) == 1
	}
	sps.Direct8x8InferenceFlag = r.readBits(1) == 1
	sps.FrameCroppingFlag = r.readBits(1) == 1
	if sps.FrameCroppingFlag {
		sps.FrameCropLeftOffset = r.readUe()
		sps.FrameCropRightOffset = r.readUe()
		sps.FrameCropTopOffset = r.readUe()
		sps.FrameCropBottomOffset = r.readUe()
	}
	sps.VUIParametersPresentFlag = r.readBits(1) == 1
	// vui_parameters() is intentionally not parsed; nothing downstream of
	// this point needs it and it is the final field in the RBSP before
	// trailing bits.

	if r.err() != nil {
		return nil, errors.Wrap(r.err(), "could not parse SPS")
	}

	if sps.ChromaArrayType() != chroma420 {
		return nil, errors.Wrapf(ErrUnsupportedSyntax, "chroma_array_type %d unsupported", sps.ChromaArrayType())
	}
	if !sps.FrameMBSOnlyFlag {
		return nil, errors.Wrap(ErrUnsupportedSyntax, "field/MBAFF coded pictures unsupported")
	}

	return &sps, nil
}
