/*
DESCRIPTION
  grid.go builds the dense per-macroblock motion vector grid that is the
  core's output artefact, as defined by clause 4.8 of the design: one
  MotionVector per macroblock, scaled from quarter-luma-sample units to
  integer pixels and sign-negated.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)
*/

package h264dec

// MotionVector describes the motion of one macroblock in the output grid.
// Field order is stable and intended to be binary-encodable directly by a
// layered consumer persisting a compact per-frame artefact; do not reorder
// without a corresponding format-version bump in that layered consumer.
type MotionVector struct {
	// MvL0 and MvL1 are the List 0 and List 1 motion vector components, in
	// integer pixels. List 1 is always zero: this core supports P-slices
	// only, which never reference List 1.
	MvL0 [2]int16
	MvL1 [2]int16

	// XPixels and YPixels are the macroblock's top-left corner in luma
	// pixels (mb_x*16, mb_y*16).
	XPixels, YPixels uint32

	// Energy is the squared magnitude of MvL0, mvx²+mvy².
	Energy uint32
}

// Grid is the dense, raster-order array of MotionVector produced by
// decoding one picture.
type Grid struct {
	Width, Height int // in macroblocks.
	MVs           []MotionVector
	PFrame        bool // false for a grid derived from a non-P slice.
}

// At returns the MotionVector at macroblock coordinate (x,y).
func (g *Grid) At(x, y int) MotionVector {
	return g.MVs[y*g.Width+x]
}

// newEmptyGrid returns an all-zero grid of the given macroblock dimensions
// with PFrame false, used for non-P slices and for recoverable failures.
func newEmptyGrid(width, height int) *Grid {
	g := &Grid{Width: width, Height: height, MVs: make([]MotionVector, width*height)}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			g.MVs[y*width+x] = MotionVector{XPixels: uint32(x * 16), YPixels: uint32(y * 16)}
		}
	}
	return g
}

// buildGrid derives the output Grid from a fully decoded P-slice picture,
// per clause 4.8: each macroblock's mvL[0][0][0] motion vector is scaled
// -mv/4 (quarter-pel to integer pixels, sign-negated), and energy is the
// squared pixel-unit magnitude.
func buildGrid(f *frameCtx) *Grid {
	g := &Grid{Width: f.widthMbs, Height: f.heightMbs, PFrame: true, MVs: make([]MotionVector, len(f.mbs))}
	for addr, mb := range f.mbs {
		x, y := addr%f.widthMbs, addr/f.widthMbs
		mv := MotionVector{XPixels: uint32(x * 16), YPixels: uint32(y * 16)}
		if mb != nil && !mb.intra && !mb.ipcm {
			raw := mb.mvL0[0] // the MB's top-left 4x4 block carries its representative motion.
			px := int16(-raw[0] / 4)
			py := int16(-raw[1] / 4)
			mv.MvL0 = [2]int16{px, py}
			mv.Energy = uint32(int(px)*int(px) + int(py)*int(py))
		}
		g.MVs[addr] = mv
	}
	return g
}
