/*
DESCRIPTION
  pps.go decodes a picture parameter set raw byte sequence payload into a
  typed PPS record, as defined by section 7.3.2.2 of ITU-T H.264.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)
  mrmod <mcmoranbjr@gmail.com>
*/

package h264dec

import (
	"github.com/pkg/errors"

	"github.com/ausocean/mvflow/bits"
)

// PPS describes a picture parameter set as defined by section 7.3.2.2 in
// the Specification.
type PPS struct {
	ID, SPSID                         int
	EntropyCodingModeFlag             bool
	BottomFieldPicOrderInFramePresent bool
	NumSliceGroupsMinus1              int
	SliceGroupMapType                 int
	RunLengthMinus1                   []int
	TopLeft                           []int
	BottomRight                       []int
	SliceGroupChangeDirectionFlag     bool
	SliceGroupChangeRateMinus1        int
	NumRefIdxL0DefaultActiveMinus1    int
	NumRefIdxL1DefaultActiveMinus1    int
	WeightedPredFlag                  bool
	WeightedBipredIDC                 int
	PicInitQPMinus26                  int
	PicInitQSMinus26                  int
	ChromaQPIndexOffset               int
	DeblockingFilterControlPresent    bool
	ConstrainedIntraPredFlag          bool
	RedundantPicCntPresentFlag        bool
	Transform8x8ModeFlag              bool
	PicScalingMatrixPresentFlag       bool
	SecondChromaQPIndexOffset         int
}

// NumSliceGroups returns the number of slice groups signalled by this PPS.
func (p *PPS) NumSliceGroups() int { return p.NumSliceGroupsMinus1 + 1 }

// NewPPS parses a picture parameter set raw byte sequence payload from
// rbsp following the syntax structure specified in section 7.3.2.2, given
// the ChromaFormatIDC of the SPS it refers to, and returns it as a new
// PPS. Fails with ErrUnsupportedSyntax if entropy_coding_mode_flag is set
// (CABAC), more than one slice group is signalled with an explicit
// (type-6) map, or a scaling matrix is present.
func NewPPS(rbsp []byte, chromaFormatIDC uint64) (*PPS, error) {
	pps := PPS{}
	br := bits.NewSpanReader(rbsp)
	r := newFieldReader(br)

	pps.ID = int(r.readUe())
	pps.SPSID = int(r.readUe())
	pps.EntropyCodingModeFlag = r.readBits(1) == 1
	pps.BottomFieldPicOrderInFramePresent = r.readBits(1) == 1
	pps.NumSliceGroupsMinus1 = int(r.readUe())

	if pps.NumSliceGroupsMinus1 > 0 {
		pps.SliceGroupMapType = int(r.readUe())
		switch {
		case pps.SliceGroupMapType == 0:
			for iGroup := 0; iGroup <= pps.NumSliceGroupsMinus1; iGroup++ {
				pps.RunLengthMinus1 = append(pps.RunLengthMinus1, int(r.readUe()))
			}
		case pps.SliceGroupMapType == 2:
			for iGroup := 0; iGroup < pps.NumSliceGroupsMinus1; iGroup++ {
				pps.TopLeft = append(pps.TopLeft, int(r.readUe()))
				pps.BottomRight = append(pps.BottomRight, int(r.readUe()))
			}
		case pps.SliceGroupMapType >= 3 && pps.SliceGroupMapType <= 5:
			pps.SliceGroupChangeDirectionFlag = r.readBits(1) == 1
			pps.SliceGroupChangeRateMinus1 = int(r.readUe())
		case pps.SliceGroupMapType == 6:
			return nil, errors.Wrap(ErrUnsupportedSyntax, "slice_group_map_type 6 (explicit map)")
		default:
			return nil, errors.Wrapf(ErrMalformedBitstream, "invalid slice_group_map_type %d", pps.SliceGroupMapType)
		}
	}

	pps.NumRefIdxL0DefaultActiveMinus1 = int(r.readUe())
	pps.NumRefIdxL1DefaultActiveMinus1 = int(r.readUe())
	pps.WeightedPredFlag = r.readBits(1) == 1
	pps.WeightedBipredIDC = int(r.readBits(2))
	pps.PicInitQPMinus26 = r.readSe()
	pps.PicInitQSMinus26 = r.readSe()
	pps.ChromaQPIndexOffset = r.readSe()
	pps.DeblockingFilterControlPresent = r.readBits(1) == 1
	pps.ConstrainedIntraPredFlag = r.readBits(1) == 1
	pps.RedundantPicCntPresentFlag = r.readBits(1) == 1

	if r.err() != nil {
		return nil, errors.Wrap(r.err(), "could not parse PPS")
	}

	if moreRBSPData(rbsp, br) {
		pps.Transform8x8ModeFlag = r.readBits(1) == 1
		pps.PicScalingMatrixPresentFlag = r.readBits(1) == 1
		if pps.PicScalingMatrixPresentFlag {
			return nil, errors.Wrap(ErrUnsupportedSyntax, "pic_scaling_matrix_present_flag set")
		}
		pps.SecondChromaQPIndexOffset = r.readSe()
		if r.err() != nil {
			return nil, errors.Wrap(r.err(), "could not parse PPS extension data")
		}
	}

	if pps.EntropyCodingModeFlag {
		return nil, errors.Wrap(ErrUnsupportedSyntax, "entropy_coding_mode_flag set (CABAC)")
	}

	return &pps, nil
}
