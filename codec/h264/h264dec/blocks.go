/*
DESCRIPTION
  blocks.go provides the 4x4 luma/chroma block geometry used by residual
  coefficient parsing (for nC derivation) and by motion vector derivation
  (for partition-level neighbour lookups), per the block scan order of
  clause 6.4.3 (Figure 6-10).

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)
*/

package h264dec

// blk4x4XY gives the (x,y) position, in 4x4-block units, of each of the 16
// luma4x4BlkIdx values within a macroblock: the four 8x8 quadrants are
// visited in raster order (top-left, top-right, bottom-left, bottom-right),
// and the four 4x4 blocks within each quadrant are visited in raster order.
var blk4x4XY = [][2]int{
	{0, 0}, {1, 0}, {0, 1}, {1, 1},
	{2, 0}, {3, 0}, {2, 1}, {3, 1},
	{0, 2}, {1, 2}, {0, 3}, {1, 3},
	{2, 2}, {3, 2}, {2, 3}, {3, 3},
}

// xyToBlk4x4 inverts blk4x4XY.
var xyToBlk4x4 = func() map[[2]int]int {
	m := make(map[[2]int]int, 16)
	for idx, xy := range blk4x4XY {
		m[xy] = idx
	}
	return m
}()

// chromaBlkXY gives the (x,y) position, in 4x4-block units, of each of the
// four chroma AC blocks in a ChromaArrayType==1 (4:2:0) macroblock, a 2x2
// raster grid.
var chromaBlkXY = [][2]int{{0, 0}, {1, 0}, {0, 1}, {1, 1}}

var xyToChromaBlk = map[[2]int]int{
	{0, 0}: 0, {1, 0}: 1, {0, 1}: 2, {1, 1}: 3,
}

// partitionBlocks returns the set of luma4x4BlkIdx values covered by
// partition partIdx of a macroblock with the given partition geometry, and
// the (x,y) position in 4x4-block units of the partition's top-left corner
// plus its width/height in 4x4-block units.
func partitionBlocks(numMbPart, partWidth, partHeight, partIdx int) (blocks []int, x, y, w, h int) {
	w, h = partWidth/4, partHeight/4
	switch {
	case numMbPart == 1:
		x, y = 0, 0
	case numMbPart == 2 && partWidth == 16: // 16x8
		x, y = 0, partIdx*2
	case numMbPart == 2 && partWidth == 8: // 8x16
		x, y = partIdx*2, 0
	case numMbPart == 4: // 8x8
		x, y = (partIdx%2)*2, (partIdx/2)*2
	}
	for blkIdx, xy := range blk4x4XY {
		if xy[0] >= x && xy[0] < x+w && xy[1] >= y && xy[1] < y+h {
			blocks = append(blocks, blkIdx)
		}
	}
	return blocks, x, y, w, h
}
