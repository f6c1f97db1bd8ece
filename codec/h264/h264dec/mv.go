/*
DESCRIPTION
  mv.go derives luma motion vectors for P-slice partitions, implementing
  the neighbouring partition derivation of clause 8.4.1.3, the median
  predictor of clause 8.4.1.3.1, and the P_Skip override rule of clause
  8.4.1.1.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)
*/

package h264dec

// resolveBlock maps a 4x4-block coordinate (x,y), possibly one step outside
// the [0,3] range of mb's own grid, to the macroblock that owns it and the
// block coordinate within that macroblock's own grid. The top-right corner
// case falls back from mbAddrC to mbAddrD when C is unavailable, per clause
// 6.4.11.7.
func (f *frameCtx) resolveBlock(mb *macroblock, x, y int) (owner *macroblock, bx, by int, ok bool) {
	switch {
	case x >= 0 && x <= 3 && y >= 0 && y <= 3:
		return mb, x, y, true
	case x < 0 && y >= 0 && y <= 3:
		n := f.neighbourA(mb.addr)
		if n == nil {
			return nil, 0, 0, false
		}
		return n, 3, y, true
	case y < 0 && x >= 0 && x <= 3:
		n := f.neighbourB(mb.addr)
		if n == nil {
			return nil, 0, 0, false
		}
		return n, x, 3, true
	case x > 3 && y < 0:
		if n := f.neighbourC(mb.addr); n != nil {
			return n, x - 4, 3, true
		}
		n := f.neighbourD(mb.addr)
		if n == nil {
			return nil, 0, 0, false
		}
		return n, 3, 3, true
	case x < 0 && y < 0:
		n := f.neighbourD(mb.addr)
		if n == nil {
			return nil, 0, 0, false
		}
		return n, 3, 3, true
	default:
		return nil, 0, 0, false
	}
}

// mvAt returns the motion vector and reference index carried by the 4x4
// luma block at (x,y) relative to mb (clause 8.4.1.3's mvLXN/refIdxLXN),
// plus whether the owning macroblock itself is available (decoded and
// inside the picture). An available but intra, or not-yet-predicted, block
// yields a zero motion vector and refIdx -1, matching clause 8.4.1.3.2.
func (f *frameCtx) mvAt(mb *macroblock, x, y int) (mv [2]int, refIdx int, mbAvail bool) {
	owner, bx, by, ok := f.resolveBlock(mb, x, y)
	if !ok {
		return [2]int{0, 0}, -1, false
	}
	if owner.intra || owner.ipcm {
		return [2]int{0, 0}, -1, true
	}
	blk := xyToBlk4x4[[2]int{bx, by}]
	if !owner.predL0[blk] {
		return [2]int{0, 0}, -1, true
	}
	return owner.mvL0[blk], owner.refIdxL0[blk], true
}

// derivePartitionMVP returns the motion vector predictor mvpLX for a
// partition at (x,y) with size (w,h) in 4x4-block units and reference
// index refIdxCur, per clause 8.4.1.3: the neighbouring partition
// shortcuts for 16x8 and 8x16 partitions, the single-matching-reference
// shortcut, and the component-wise median fallback (clause 8.4.1.3.1).
func derivePartitionMVP(f *frameCtx, mb *macroblock, x, y, w, h, refIdxCur int) [2]int {
	mvA, refA, availA := f.mvAt(mb, x-1, y)
	mvB, refB, availB := f.mvAt(mb, x, y-1)
	mvC, refC, availC := f.mvAt(mb, x+w, y-1)
	if !availC || (x+w > 3 && y == 0 && f.neighbourC(mb.addr) == nil) {
		// C is not available: use D, the block above-left of the partition.
		mvC, refC, availC = f.mvAt(mb, x-1, y-1)
	}

	if !availB && !availC && availA {
		mvB, refB = mvA, refA
		mvC, refC = mvA, refA
	}

	switch {
	case w == 4 && h == 2: // 16x8
		if y == 0 {
			if refB == refIdxCur {
				return mvB
			}
		} else {
			if refA == refIdxCur {
				return mvA
			}
		}
	case w == 2 && h == 4: // 8x16
		if x == 0 {
			if refA == refIdxCur {
				return mvA
			}
		} else {
			if refC == refIdxCur {
				return mvC
			}
		}
	}

	matches := 0
	var matched [2]int
	if refA == refIdxCur {
		matches++
		matched = mvA
	}
	if refB == refIdxCur {
		matches++
		matched = mvB
	}
	if refC == refIdxCur {
		matches++
		matched = mvC
	}
	if matches == 1 {
		return matched
	}

	return [2]int{
		median3(mvA[0], mvB[0], mvC[0]),
		median3(mvA[1], mvB[1], mvC[1]),
	}
}

// derivePSkipMV derives the motion vector of a P_Skip macroblock, per
// clause 8.4.1.1: zero when the left or top neighbouring macroblock is
// unavailable, or when either carries refIdxL0 0 and a zero motion vector;
// otherwise the ordinary 16x16 median predictor with refIdxL0 0.
func derivePSkipMV(f *frameCtx, mb *macroblock) [2]int {
	mvA, refA, availA := f.mvAt(mb, -1, 0)
	mvB, refB, availB := f.mvAt(mb, 0, -1)

	if !availA || !availB {
		return [2]int{0, 0}
	}
	if (refA == 0 && mvA == [2]int{0, 0}) || (refB == 0 && mvB == [2]int{0, 0}) {
		return [2]int{0, 0}
	}

	return derivePartitionMVP(f, mb, 0, 0, 4, 4, 0)
}
