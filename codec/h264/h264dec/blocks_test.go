package h264dec

import "testing"

func TestXYToBlk4x4IsInverse(t *testing.T) {
	if len(xyToBlk4x4) != 16 {
		t.Fatalf("xyToBlk4x4 has %d entries, want 16", len(xyToBlk4x4))
	}
	for idx, xy := range blk4x4XY {
		if got := xyToBlk4x4[xy]; got != idx {
			t.Errorf("xyToBlk4x4[%v] = %d, want %d", xy, got, idx)
		}
	}
}

func TestXYToChromaBlkIsInverse(t *testing.T) {
	for idx, xy := range chromaBlkXY {
		if got := xyToChromaBlk[xy]; got != idx {
			t.Errorf("xyToChromaBlk[%v] = %d, want %d", xy, got, idx)
		}
	}
}

func TestPartitionBlocks16x16(t *testing.T) {
	blocks, x, y, w, h := partitionBlocks(1, 16, 16, 0)
	if x != 0 || y != 0 || w != 4 || h != 4 {
		t.Fatalf("16x16 geometry = (%d,%d,%d,%d), want (0,0,4,4)", x, y, w, h)
	}
	if len(blocks) != 16 {
		t.Fatalf("16x16 partition should cover all 16 blocks, got %d", len(blocks))
	}
}

func TestPartitionBlocks16x8(t *testing.T) {
	top, x, y, w, h := partitionBlocks(2, 16, 8, 0)
	if x != 0 || y != 0 || w != 4 || h != 2 {
		t.Fatalf("16x8 top geometry = (%d,%d,%d,%d), want (0,0,4,2)", x, y, w, h)
	}
	if len(top) != 8 {
		t.Fatalf("16x8 top partition should cover 8 blocks, got %d", len(top))
	}
	bottom, x, y, _, _ := partitionBlocks(2, 16, 8, 1)
	if x != 0 || y != 2 {
		t.Fatalf("16x8 bottom top-left = (%d,%d), want (0,2)", x, y)
	}
	if len(bottom) != 8 {
		t.Fatalf("16x8 bottom partition should cover 8 blocks, got %d", len(bottom))
	}
	seen := make(map[int]bool)
	for _, b := range append(top, bottom...) {
		if seen[b] {
			t.Errorf("block %d covered by both 16x8 partitions", b)
		}
		seen[b] = true
	}
	if len(seen) != 16 {
		t.Errorf("16x8 partitions together should cover 16 blocks, got %d", len(seen))
	}
}

func TestPartitionBlocks8x16(t *testing.T) {
	left, x, y, w, h := partitionBlocks(2, 8, 16, 0)
	if x != 0 || y != 0 || w != 2 || h != 4 {
		t.Fatalf("8x16 left geometry = (%d,%d,%d,%d), want (0,0,2,4)", x, y, w, h)
	}
	if len(left) != 8 {
		t.Fatalf("8x16 left partition should cover 8 blocks, got %d", len(left))
	}
	right, x, y, _, _ := partitionBlocks(2, 8, 16, 1)
	if x != 2 || y != 0 {
		t.Fatalf("8x16 right top-left = (%d,%d), want (2,0)", x, y)
	}
	if len(right) != 8 {
		t.Fatalf("8x16 right partition should cover 8 blocks, got %d", len(right))
	}
}

func TestPartitionBlocks8x8Quadrants(t *testing.T) {
	wantTopLeft := [2]int{0, 0}
	_, x, y, w, h := partitionBlocks(4, 8, 8, 0)
	if [2]int{x, y} != wantTopLeft || w != 2 || h != 2 {
		t.Errorf("8x8 quadrant 0 = (%d,%d,%d,%d), want (0,0,2,2)", x, y, w, h)
	}
	_, x, y, _, _ = partitionBlocks(4, 8, 8, 3)
	if x != 2 || y != 2 {
		t.Errorf("8x8 quadrant 3 top-left = (%d,%d), want (2,2)", x, y)
	}
}
