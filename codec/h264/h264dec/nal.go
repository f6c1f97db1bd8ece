/*
DESCRIPTION
  nal.go parses the NAL unit header and removes emulation-prevention bytes
  from a NAL unit's payload to produce an RBSP, as defined by section 7.3.1
  and 7.4.1 of ITU-T H.264.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)
*/

package h264dec

import (
	"github.com/pkg/errors"

	"github.com/ausocean/mvflow/bits"
)

// NALUnit describes a network abstraction layer unit header plus its
// unescaped payload, as defined by section 7.3.1. Extension headers for
// SVC/MVC/3D-AVC (Annexes G/H/J) are out of this core's scope and are not
// represented: nal_unit_type values that would carry them are rejected by
// the caller before a NALUnit is constructed.
type NALUnit struct {
	// forbidden_zero_bit must be 0.
	ForbiddenZeroBit uint8

	// nal_ref_idc, non-zero for NAL units carrying reference pictures or
	// parameter sets.
	RefIdc uint8

	// nal_unit_type, per Table 7-1.
	Type uint8

	// RBSP is the NAL payload after emulation-prevention byte removal.
	RBSP []byte
}

// ParseNALUnit parses a NAL unit, including the leading header byte, from
// data (the full escaped NAL, start code already stripped), and returns a
// new NALUnit. Fails with ErrMalformedBitstream if the forbidden_zero_bit
// is set, or if a 0x000000 sequence appears before the end of the payload.
func ParseNALUnit(data []byte) (*NALUnit, error) {
	if len(data) == 0 {
		return nil, errors.Wrap(ErrMalformedBitstream, "empty NAL unit")
	}

	header := data[0]
	n := &NALUnit{
		ForbiddenZeroBit: header >> 7,
		RefIdc:           (header >> 5) & 0x3,
		Type:             header & 0x1f,
	}
	if n.ForbiddenZeroBit != 0 {
		return nil, errors.Wrap(ErrMalformedBitstream, "forbidden_zero_bit set")
	}

	rbsp, err := unescapeRBSP(data[1:])
	if err != nil {
		return nil, errors.Wrap(err, "could not unescape RBSP")
	}
	n.RBSP = rbsp

	return n, nil
}

// unescapeRBSP removes emulation-prevention three-bytes (0x03 following two
// 0x00 bytes) from an escaped NAL payload, returning the raw byte sequence
// payload. Fails with ErrMalformedBitstream if a 0x000000 sequence is found
// that is not the emulation-prevented pattern, since this would indicate
// either a malformed encode or a misplaced start code within the payload.
func unescapeRBSP(escaped []byte) ([]byte, error) {
	rbsp := make([]byte, 0, len(escaped))
	zeroRun := 0
	for i := 0; i < len(escaped); i++ {
		b := escaped[i]
		if zeroRun >= 2 && b == 0x03 {
			// Emulation-prevention byte: drop it and reset the run so a
			// following 0x00 0x00 0x03 is handled independently.
			zeroRun = 0
			continue
		}
		if zeroRun >= 2 && b == 0x00 {
			return nil, errors.Wrap(ErrMalformedBitstream, "0x000000 sequence in RBSP")
		}
		rbsp = append(rbsp, b)
		if b == 0x00 {
			zeroRun++
		} else {
			zeroRun = 0
		}
	}
	return rbsp, nil
}

// moreRBSPData reports whether br, reading over rbsp, has more data to
// parse before the rbsp_trailing_bits() that terminates every RBSP, per
// clause 7.2: it locates rbsp_stop_one_bit, the last bit of rbsp equal to
// 1, and compares the reader's current position against it.
func moreRBSPData(rbsp []byte, br *bits.BitReader) bool {
	stop := stopBitPos(rbsp)
	if stop < 0 {
		return false
	}
	return br.BitPos() < stop
}

// stopBitPos returns the bit position (0-indexed from the MSB of byte 0) of
// rbsp_stop_one_bit: the last bit of rbsp equal to 1. Returns -1 if rbsp is
// entirely zero.
func stopBitPos(rbsp []byte) int {
	for j := len(rbsp) - 1; j >= 0; j-- {
		b := rbsp[j]
		if b == 0 {
			continue
		}
		for k := 0; k < 8; k++ {
			if b&(1<<uint(k)) != 0 {
				return j*8 + (7 - k)
			}
		}
	}
	return -1
}
