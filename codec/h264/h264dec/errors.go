/*
DESCRIPTION
  errors.go defines the taxonomy of errors that can be returned by the
  container and bitstream parsing paths.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package h264dec

import "github.com/pkg/errors"

// Sentinel errors forming the taxonomy callers classify failures against
// with errors.Is / errors.Cause. Call sites wrap these with errors.Wrap to
// add context naming the offending syntax element or box.
var (
	// ErrIO indicates container bytes are missing, truncated, or unreadable.
	ErrIO = errors.New("io error")

	// ErrMalformedContainer indicates an inconsistent box size, a missing
	// required box (avc1, stco/co64, stsc, stsz), or an absent SPS/PPS.
	ErrMalformedContainer = errors.New("malformed container")

	// ErrMalformedBitstream indicates a forbidden bit set, an
	// emulation-prevention violation, an Exp-Golomb overflow, a slice that
	// did not cover all macroblocks, or a failed coeff_token lookup.
	ErrMalformedBitstream = errors.New("malformed bitstream")

	// ErrUnsupportedSyntax indicates well-formed syntax outside this core's
	// supported subset: CABAC, chroma_array_type != 1, scaling matrices,
	// slice_group_map_type 6, B-slices, 8x8 sub-partitions, I_PCM, MBAFF.
	ErrUnsupportedSyntax = errors.New("unsupported syntax")

	// ErrNotImplemented indicates well-formed input outside the core's
	// supported subset for a reason other than an explicit rejection above.
	ErrNotImplemented = errors.New("not implemented")
)

// recoverable reports whether err should cause LoadFrame to fall back to an
// empty grid for the affected frame rather than propagate, per the
// recoverable/fatal split of the failure semantics: NotImplemented,
// UnsupportedSyntax, and a malformed macroblock layout are recoverable;
// everything else (IO, malformed container, malformed RBSP, structurally
// invalid parameter sets) is fatal.
func recoverable(err error) bool {
	cause := errors.Cause(err)
	return cause == ErrNotImplemented || cause == ErrUnsupportedSyntax || cause == errSliceIncomplete
}

// errSliceIncomplete indicates slice data parsing stopped before every
// macroblock in the picture was assigned, per the end-of-slice sanity check.
var errSliceIncomplete = errors.New("slice data did not cover all macroblocks")
