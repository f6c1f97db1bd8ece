/*
DESCRIPTION
  api.go exposes the entry points the top-level Decoder façade needs:
  decoding a P-slice's slice_data() into its output Grid, the empty-grid
  constructor used for non-P-slices and recoverable failures, and the
  recoverable/fatal error classification.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)
*/

package h264dec

import "github.com/ausocean/mvflow/bits"

// DecodePSliceGrid parses slice_data() for a P-slice (clause 7.3.4) from
// br, positioned by ParseSliceHeader just past the slice header in rbsp,
// and returns the resulting per-macroblock motion vector grid.
func DecodePSliceGrid(rbsp []byte, br *bits.BitReader, h *SliceHeader, sps *SPS, pps *PPS) (*Grid, error) {
	f := newFrameCtx(sps, pps)
	if err := decodeSliceData(rbsp, br, h, f); err != nil {
		return nil, err
	}
	return buildGrid(f), nil
}

// NewEmptyGrid returns an all-zero Grid of the given macroblock
// dimensions, for non-P-slices and recoverable failures.
func NewEmptyGrid(widthMbs, heightMbs int) *Grid {
	return newEmptyGrid(widthMbs, heightMbs)
}

// Recoverable reports whether err should cause LoadFrame to fall back to
// an empty grid for the affected frame rather than propagate.
func Recoverable(err error) bool {
	return recoverable(err)
}
