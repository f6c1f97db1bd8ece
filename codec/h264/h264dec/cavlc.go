/*
DESCRIPTION
  cavlc.go parses residual_block_cavlc() and the macroblock residual()
  structure built from it (clauses 7.3.5.3.1 and 9.2), including the
  coeff_token/level/total_zeros/run_before bit-consumption sequence and
  the nC predictor of clause 9.2.1. Coefficient levels themselves are
  decoded only far enough to consume the right number of bits; this core
  performs no pixel reconstruction, so only each block's TotalCoeff (fed
  forward as the nC predictor for later blocks) is retained.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)
*/

package h264dec

import (
	"github.com/pkg/errors"

	"github.com/ausocean/mvflow/bits"
)

// nCLuma derives the nC predictor (clause 9.2.1) for the luma 4x4 block
// blkIdx of mb, from the TotalCoeff of the corresponding left and top
// neighbouring 4x4 blocks.
func nCLuma(f *frameCtx, mb *macroblock, blkIdx int) int {
	xy := blk4x4XY[blkIdx]
	nA, availA := totalCoeffNeighbour(f, mb, xy[0]-1, xy[1], blk4x4XY, xyToBlk4x4, (*macroblock).lumaTotalCoeff)
	nB, availB := totalCoeffNeighbour(f, mb, xy[0], xy[1]-1, blk4x4XY, xyToBlk4x4, (*macroblock).lumaTotalCoeff)
	return combineNC(nA, availA, nB, availB)
}

// nCChromaAC derives the nC predictor for chroma AC block blkIdx (0..3) of
// chroma component comp (0 or 1) of mb, ChromaArrayType 1 only.
func nCChromaAC(f *frameCtx, mb *macroblock, comp, blkIdx int) int {
	xy := chromaBlkXY[blkIdx]
	get := func(m *macroblock, i int) int { return m.totalCoeffChromaAC[comp][i] }
	nA, availA := totalCoeffNeighbour(f, mb, xy[0]-1, xy[1], chromaBlkXY, xyToChromaBlk, get)
	nB, availB := totalCoeffNeighbour(f, mb, xy[0], xy[1]-1, chromaBlkXY, xyToChromaBlk, get)
	return combineNC(nA, availA, nB, availB)
}

func combineNC(nA int, availA bool, nB int, availB bool) int {
	switch {
	case availA && availB:
		return (nA + nB + 1) >> 1
	case availA:
		return nA
	case availB:
		return nB
	default:
		return 0
	}
}

// totalCoeffNeighbour resolves the TotalCoeff of the block at (x,y)
// relative to mb, using the block-level neighbour derivation shared with
// motion vector prediction. An out-of-picture neighbour contributes "not
// available"; an intra neighbour without residual is available with
// TotalCoeff 0.
func totalCoeffNeighbour(f *frameCtx, mb *macroblock, x, y int, grid [][2]int, inv map[[2]int]int, get func(*macroblock, int) int) (int, bool) {
	var owner *macroblock
	var bx, by int
	var ok bool
	// grid may be the 4x4 luma grid (4x4 units) or the 2x2 chroma grid;
	// resolveBlock is expressed in 4x4-luma-block coordinate space, so for
	// the chroma grid (2x2) fall back to MB-level neighbours directly,
	// since chroma 4:2:0 has no in-MB block larger than the grid itself.
	if len(grid) == 4 { // chroma 2x2 grid
		switch {
		case x >= 0 && x <= 1 && y >= 0 && y <= 1:
			owner, bx, by, ok = mb, x, y, true
		case x < 0:
			n := f.neighbourA(mb.addr)
			if n == nil {
				return 0, false
			}
			owner, bx, by, ok = n, 1, y, true
		case y < 0:
			n := f.neighbourB(mb.addr)
			if n == nil {
				return 0, false
			}
			owner, bx, by, ok = n, x, 1, true
		default:
			return 0, false
		}
	} else {
		owner, bx, by, ok = f.resolveBlock(mb, x, y)
	}
	if !ok {
		return 0, false
	}
	if owner.intra && !owner.hasResidual {
		return 0, true // available, TotalCoeff 0 (no residual coded for this neighbour).
	}
	blk, in := inv[[2]int{bx, by}]
	if !in {
		return 0, false
	}
	return get(owner, blk), true
}

// lumaTotalCoeff is a method-value-friendly accessor for macroblock.totalCoeffLuma.
func (mb *macroblock) lumaTotalCoeff(i int) int { return mb.totalCoeffLuma[i] }

// parseResidual parses the residual() structure of clause 7.3.5.3 for a
// macroblock given its derived coded_block_pattern (low nibble luma,
// high nibble chroma). Intra_16x16 macroblocks are identified by mb.intra
// with a non-I_NxN codedType, and contribute a Luma DC block ahead of the
// sixteen Luma AC blocks; all other paths contribute full 4x4 blocks.
func parseResidual(br *bits.BitReader, f *frameCtx, mb *macroblock, cbp uint) error {
	mb.hasResidual = true
	fr := newFieldReader(br)

	isIntra16x16 := mb.intra && mb.codedType-iNxNStart != 0

	if isIntra16x16 {
		nC := nCLuma(f, mb, 0)
		if err := decodeResidualBlock(&fr, f, mb, nC, 16); err != nil {
			return errors.Wrap(err, "luma DC block")
		}
	}

	for blk8x8 := 0; blk8x8 < 4; blk8x8++ {
		if cbp&(1<<uint(blk8x8)) == 0 {
			continue
		}
		for i := 0; i < 4; i++ {
			blkIdx := blk8x8*4 + i
			maxCoeff := 16
			if isIntra16x16 {
				maxCoeff = 15
			}
			nC := nCLuma(f, mb, blkIdx)
			n, err := decodeResidualBlockN(&fr, nC, maxCoeff)
			if err != nil {
				return errors.Wrapf(err, "luma AC block %d", blkIdx)
			}
			mb.totalCoeffLuma[blkIdx] = n
		}
	}

	chromaCBP := (cbp >> 4) & 0x3
	if chromaCBP >= 1 {
		for comp := 0; comp < 2; comp++ {
			if err := decodeResidualBlock(&fr, f, mb, -1, 4); err != nil {
				return errors.Wrapf(err, "chroma DC block %d", comp)
			}
		}
	}
	if chromaCBP == 2 {
		for comp := 0; comp < 2; comp++ {
			for blkIdx := 0; blkIdx < 4; blkIdx++ {
				nC := nCChromaAC(f, mb, comp, blkIdx)
				n, err := decodeResidualBlockN(&fr, nC, 15)
				if err != nil {
					return errors.Wrapf(err, "chroma AC block comp %d blk %d", comp, blkIdx)
				}
				mb.totalCoeffChromaAC[comp][blkIdx] = n
			}
		}
	}

	if fr.err() != nil {
		return errors.Wrap(fr.err(), "could not parse residual")
	}
	return nil
}

// decodeResidualBlock parses a block whose TotalCoeff this core has no
// further use for (DC blocks), discarding the count.
func decodeResidualBlock(fr *fieldReader, f *frameCtx, mb *macroblock, nC, maxCoeff int) error {
	_, err := decodeResidualBlockN(fr, nC, maxCoeff)
	return err
}

// decodeResidualBlockN parses one residual_block_cavlc() (clause
// 7.3.5.3.1) and returns TotalCoeff. nC selects the coeff_token table:
// -1 selects the ChromaArrayType-1 chroma-DC table; otherwise the
// nC-range tables of clause 9.2.1 (nC>=8 uses the closed-form FLC code).
func decodeResidualBlockN(fr *fieldReader, nC, maxCoeff int) (int, error) {
	var totalCoeff, trailingOnes int
	switch {
	case nC == -1:
		e, ok := lookupVLC(fr, coeffTokenChromaDC420, 8)
		if !ok {
			return 0, errors.Wrap(ErrMalformedBitstream, "coeff_token (chroma DC)")
		}
		totalCoeff, trailingOnes = e.b, e.a
	case nC >= 8:
		totalCoeff, trailingOnes = decodeCoeffTokenFLC(fr)
	default:
		table := coeffTokenTable2
		switch {
		case nC < 2:
			table = coeffTokenTable0
		case nC < 4:
			table = coeffTokenTable1
		}
		e, ok := lookupVLC(fr, table, 16)
		if !ok {
			return 0, errors.Wrap(ErrMalformedBitstream, "coeff_token")
		}
		totalCoeff, trailingOnes = e.b, e.a
	}

	if fr.err() != nil {
		return 0, fr.err()
	}
	if totalCoeff == 0 {
		return 0, nil
	}

	for i := 0; i < trailingOnes; i++ {
		fr.readBits(1) // trailing_ones_sign_flag.
	}

	suffixLength := 0
	if totalCoeff > 10 && trailingOnes < 3 {
		suffixLength = 1
	}
	for i := trailingOnes; i < totalCoeff; i++ {
		levelPrefix := 0
		for fr.readBits(1) == 0 {
			levelPrefix++
			if fr.err() != nil || levelPrefix > 63 {
				return 0, errors.Wrap(ErrMalformedBitstream, "level_prefix overflow")
			}
		}

		levelSuffixSize := suffixLength
		if levelPrefix == 14 && suffixLength == 0 {
			levelSuffixSize = 4
		} else if levelPrefix >= 15 {
			levelSuffixSize = levelPrefix - 3
		}

		levelCode := mini(15, levelPrefix) << uint(suffixLength)
		if levelSuffixSize > 0 {
			levelCode += int(fr.readBits(levelSuffixSize))
		}
		if levelPrefix >= 15 && suffixLength == 0 {
			levelCode += 15
		}
		if levelPrefix >= 16 {
			levelCode += (1 << uint(levelPrefix-3)) - 4096
		}
		if i == trailingOnes && trailingOnes < 3 {
			levelCode += 2
		}
		// levelVal feeds only the suffixLength update; the coefficient itself is discarded.
		levelVal := (levelCode + 2) >> 1
		if levelCode%2 != 0 {
			levelVal = (-levelCode - 1) >> 1
		}

		if suffixLength == 0 {
			suffixLength = 1
		}
		if absi(levelVal) > (3<<uint(suffixLength-1)) && suffixLength < 6 {
			suffixLength++
		}
		if fr.err() != nil {
			return 0, fr.err()
		}
	}

	if totalCoeff < maxCoeff {
		var tz int
		var ok bool
		if maxCoeff == 4 {
			e, found := lookupVLC(fr, totalZerosChromaDC420[totalCoeff], 3)
			tz, ok = e.a, found
		} else {
			e, found := lookupVLC(fr, totalZerosTable4x4[totalCoeff], 9)
			tz, ok = e.a, found
		}
		if !ok {
			return 0, errors.Wrap(ErrMalformedBitstream, "total_zeros")
		}
		zerosLeft := tz
		for i := 0; i < totalCoeff-1 && zerosLeft > 0; i++ {
			idx := mini(zerosLeft, 7)
			maxLen := 11
			if idx == 7 {
				maxLen = 3 // a 000 prefix escapes to runs of 7 and above.
			}
			e, ok := lookupVLC(fr, runBeforeTable[idx], maxLen)
			run := e.a
			if !ok {
				if idx != 7 || fr.err() != nil {
					return 0, errors.Wrap(ErrMalformedBitstream, "run_before")
				}
				extra := 0
				for fr.readBits(1) == 0 {
					extra++
					if fr.err() != nil || extra > 32 {
						return 0, errors.Wrap(ErrMalformedBitstream, "run_before escape overflow")
					}
				}
				run = 7 + extra
			}
			zerosLeft -= run
			if fr.err() != nil {
				return 0, fr.err()
			}
		}
	}

	return totalCoeff, fr.err()
}
