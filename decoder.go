/*
DESCRIPTION
  decoder.go provides the public, single-goroutine façade over the motion
  vector extraction core: Open detects the backing file's framing (an
  ISO-BMFF/MP4 multiplex or a raw Annex-B elementary stream), and LoadFrame
  decodes one sample into its macroblock motion vector grid.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)
*/

// Package mvflow extracts per-macroblock motion vectors from H.264/AVC
// Baseline/Main profile P-slices, without performing pixel reconstruction.
package mvflow

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/ausocean/utils/logging"

	"github.com/ausocean/mvflow/bits"
	"github.com/ausocean/mvflow/codec/h264/h264dec"
	"github.com/ausocean/mvflow/container/annexb"
	"github.com/ausocean/mvflow/container/isobmff"
)

// Grid and MotionVector are re-exported from h264dec so callers never need
// to import the codec subpackage directly.
type (
	Grid         = h264dec.Grid
	MotionVector = h264dec.MotionVector
)

// Config holds the knobs a Decoder is opened with.
type Config struct {
	Logger logging.Logger
	Strict bool
}

// Option applies one setting to a Config under construction, following the
// functional-options idiom used by revid/config for pipeline construction.
type Option func(c *Config)

// WithLogger sets the logger a Decoder reports anomalies to. A nil logger
// (the default) discards all log output.
func WithLogger(l logging.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithStrict controls whether LoadFrame falls back to an empty grid on
// errors that h264dec.Recoverable classifies as recoverable. When strict,
// every error is propagated with a nil grid. Defaults to false (fallback
// enabled). Parsing accepts and rejects the same syntax in either mode.
func WithStrict(strict bool) Option {
	return func(c *Config) { c.Strict = strict }
}

// sampleSource abstracts the two supported container framings: an
// ISO-BMFF sample table, or a flat Annex-B NAL unit index.
type sampleSource interface {
	sampleCount() uint64
	sampleNALUnits(i uint64) ([][]byte, error)
}

// Decoder is the public façade over one opened media file. It is not safe
// for concurrent use; open an independent Decoder per goroutine over the
// same file for concurrent extraction.
type Decoder struct {
	f   *os.File
	src sampleSource
	sps map[int]*h264dec.SPS
	pps map[int]*h264dec.PPS
	cfg Config
}

// Open opens the media file at path, detects its framing, and locates the
// parameter sets needed to begin decoding. For an ISO-BMFF file the avcC
// record's embedded SPS/PPS seed the parameter set store; for an Annex-B
// stream the store is seeded by scanning for SPS/PPS NAL units as they are
// encountered.
func Open(path string, opts ...Option) (*Decoder, error) {
	cfg := Config{}
	for _, o := range opts {
		o(&cfg)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(h264dec.ErrIO, err.Error())
	}

	data, err := io.ReadAll(f)
	if err != nil {
		f.Close()
		return nil, errors.Wrap(h264dec.ErrIO, err.Error())
	}

	d := &Decoder{
		f:   f,
		sps: make(map[int]*h264dec.SPS),
		pps: make(map[int]*h264dec.PPS),
		cfg: cfg,
	}

	if looksLikeISOBMFF(data) {
		idx, err := isobmff.OpenBytes(data)
		if err != nil {
			f.Close()
			return nil, errors.Wrap(h264dec.ErrMalformedContainer, err.Error())
		}
		for _, raw := range idx.Config.SPS {
			if err := d.addParamSetNAL(raw); err != nil {
				d.logf("discarding unusable avcC SPS: %v", err)
			}
		}
		for _, raw := range idx.Config.PPS {
			if err := d.addParamSetNAL(raw); err != nil {
				d.logf("discarding unusable avcC PPS: %v", err)
			}
		}
		d.src = &isobmffSource{idx: idx, data: data}
		return d, nil
	}

	idx, err := annexb.Scan(data)
	if err != nil {
		f.Close()
		return nil, errors.Wrap(h264dec.ErrMalformedContainer, err.Error())
	}
	d.src = &annexbSource{idx: idx}
	return d, nil
}

// Close releases the backing file handle.
func (d *Decoder) Close() error {
	return d.f.Close()
}

// SampleCount returns the number of coded pictures available.
func (d *Decoder) SampleCount() uint64 {
	return d.src.sampleCount()
}

// LoadFrame decodes sample i into its motion vector grid. The second
// return reports whether the sample was a P-slice; non-P-slices and
// recoverable failures yield an empty, all-zero grid sized to the active
// SPS rather than a nil Grid, so callers can always index it uniformly.
func (d *Decoder) LoadFrame(i uint64) (*Grid, bool, error) {
	nalUnits, err := d.src.sampleNALUnits(i)
	if err != nil {
		return nil, false, errors.Wrap(h264dec.ErrIO, err.Error())
	}

	var sliceNAL *h264dec.NALUnit
	var sliceHeader *h264dec.SliceHeader

	var activeSPS *h264dec.SPS
	var activePPS *h264dec.PPS

	for _, raw := range nalUnits {
		nal, err := h264dec.ParseNALUnit(raw)
		if err != nil {
			return d.emptyFallback(), false, errors.Wrap(err, "could not parse NAL unit")
		}
		switch nal.Type {
		case 7: // SPS
			sps, err := h264dec.NewSPS(nal.RBSP)
			if err != nil {
				if d.recoverableForLoad(err) {
					d.logf("skipping unusable SPS: %v", err)
					continue
				}
				return nil, false, err
			}
			d.sps[int(sps.SPSID)] = sps
		case 8: // PPS
			// The PPS's SPS may not be known yet, so the PPS is parsed now
			// with chroma 4:2:0, the only supported format; NewPPS does not
			// read that argument.
			pps, err := h264dec.NewPPS(nal.RBSP, 1)
			if err != nil {
				if d.recoverableForLoad(err) {
					d.logf("skipping unusable PPS: %v", err)
					continue
				}
				return nil, false, err
			}
			d.pps[pps.ID] = pps
		case 1, 5: // slice_layer_without_partitioning_rbsp (non-IDR, IDR)
			if sliceNAL != nil {
				continue // only the first slice NAL of a sample is decoded.
			}
			sliceNAL = nal
		}
	}

	if sliceNAL == nil {
		return d.emptyFallback(), false, nil
	}

	ppsID, err := peekSlicePPSID(sliceNAL.RBSP)
	if err != nil {
		return d.emptyFallback(), false, errors.Wrap(h264dec.ErrMalformedBitstream, "could not peek slice pps_id")
	}
	if pps, ok := d.pps[ppsID]; ok {
		if sps, ok := d.sps[pps.SPSID]; ok {
			activeSPS, activePPS = sps, pps
		}
	}
	if activeSPS == nil || activePPS == nil {
		return d.emptyFallback(), false, errors.Wrap(h264dec.ErrMalformedContainer, "no active SPS/PPS for sample")
	}

	hdr, reader, err := h264dec.ParseSliceHeader(sliceNAL, activeSPS, activePPS)
	if err != nil {
		if d.recoverableForLoad(err) {
			d.logf("recoverable slice header failure: %v", err)
			return d.emptyFallbackFor(activeSPS), false, err
		}
		return nil, false, err
	}
	sliceHeader = hdr

	if !sliceHeader.IsPSlice() {
		return newEmptyGridFor(activeSPS), false, nil
	}

	grid, err := h264dec.DecodePSliceGrid(sliceNAL.RBSP, reader, sliceHeader, activeSPS, activePPS)
	if err != nil {
		if d.recoverableForLoad(err) {
			d.logf("recoverable slice data failure: %v", err)
			return newEmptyGridFor(activeSPS), true, err
		}
		return nil, true, err
	}
	return grid, true, nil
}

// addParamSetNAL parses a raw (unescaped, header-included) SPS or PPS NAL
// unit as found in an avcC record and registers it.
func (d *Decoder) addParamSetNAL(raw []byte) error {
	nal, err := h264dec.ParseNALUnit(raw)
	if err != nil {
		return err
	}
	switch nal.Type {
	case 7:
		sps, err := h264dec.NewSPS(nal.RBSP)
		if err != nil {
			return err
		}
		d.sps[int(sps.SPSID)] = sps
	case 8:
		pps, err := h264dec.NewPPS(nal.RBSP, 1)
		if err != nil {
			return err
		}
		d.pps[pps.ID] = pps
	}
	return nil
}

// recoverableForLoad applies the Strict override on top of the core's
// recoverable/fatal split: in strict mode, nothing is recoverable.
func (d *Decoder) recoverableForLoad(err error) bool {
	if d.cfg.Strict {
		return false
	}
	return h264dec.Recoverable(err)
}

func (d *Decoder) logf(format string, args ...interface{}) {
	if d.cfg.Logger == nil {
		return
	}
	d.cfg.Logger.Warning(fmt.Sprintf(format, args...))
}

func (d *Decoder) emptyFallback() *Grid {
	for _, sps := range d.sps {
		return newEmptyGridFor(sps)
	}
	return &Grid{}
}

func (d *Decoder) emptyFallbackFor(sps *h264dec.SPS) *Grid {
	return newEmptyGridFor(sps)
}

func newEmptyGridFor(sps *h264dec.SPS) *Grid {
	return h264dec.NewEmptyGrid(sps.PicWidthInMbs(), sps.FrameHeightInMbs())
}

// looksLikeISOBMFF reports whether data begins with a plausible ISO-BMFF
// box header: a 32-bit size followed by a 4-character printable type.
func looksLikeISOBMFF(data []byte) bool {
	if len(data) < 8 {
		return false
	}
	for _, c := range data[4:8] {
		if c < 0x20 || c > 0x7e {
			return false
		}
	}
	return true
}

// peekSlicePPSID reads just far enough into a slice RBSP to recover
// pic_parameter_set_id (clause 7.3.3's third field, after
// first_mb_in_slice and slice_type), using a throwaway reader: the real
// parse in ParseSliceHeader starts over from the beginning once the
// correct PPS/SPS pair is known.
func peekSlicePPSID(rbsp []byte) (int, error) {
	br := bits.NewSpanReader(rbsp)
	if _, err := br.ReadUE(); err != nil { // first_mb_in_slice.
		return 0, err
	}
	if _, err := br.ReadUE(); err != nil { // slice_type.
		return 0, err
	}
	ppsID, err := br.ReadUE()
	if err != nil {
		return 0, err
	}
	return int(ppsID), nil
}

// isobmffSource adapts an isobmff.Index, which speaks length-prefixed NAL
// units (per its avcC LengthSize), to sampleSource.
type isobmffSource struct {
	idx  *isobmff.Index
	data []byte
}

func (s *isobmffSource) sampleCount() uint64 { return s.idx.SampleCount() }

func (s *isobmffSource) sampleNALUnits(i uint64) ([][]byte, error) {
	off, size, err := s.idx.Sample(i)
	if err != nil {
		return nil, err
	}
	if off < 0 || int(off)+int(size) > len(s.data) {
		return nil, errors.Wrap(h264dec.ErrMalformedContainer, "sample byte range out of bounds")
	}
	buf := s.data[off : int(off)+int(size)]
	return splitLengthPrefixed(buf, s.idx.Config.LengthSize)
}

// splitLengthPrefixed splits an avcC-style sample (a sequence of
// lengthSize-byte big-endian length prefixes, each followed by that many
// bytes of NAL unit, start code absent) into its constituent NAL units.
func splitLengthPrefixed(buf []byte, lengthSize int) ([][]byte, error) {
	var out [][]byte
	for len(buf) > 0 {
		if len(buf) < lengthSize {
			return nil, errors.Wrap(h264dec.ErrMalformedBitstream, "truncated NAL length prefix")
		}
		var n int
		for i := 0; i < lengthSize; i++ {
			n = n<<8 | int(buf[i])
		}
		buf = buf[lengthSize:]
		if n > len(buf) {
			return nil, errors.Wrap(h264dec.ErrMalformedBitstream, "NAL length exceeds sample bounds")
		}
		out = append(out, buf[:n])
		buf = buf[n:]
	}
	return out, nil
}

// annexbSource adapts an annexb.Index, which groups NAL units into access
// units (coded pictures), to sampleSource: sample i is access unit i's full
// set of NAL units (any leading parameter sets/SEI plus its slice).
type annexbSource struct {
	idx *annexb.Index
}

func (s *annexbSource) sampleCount() uint64 { return uint64(s.idx.Count()) }

func (s *annexbSource) sampleNALUnits(i uint64) ([][]byte, error) {
	if i >= uint64(s.idx.Count()) {
		return nil, errors.Wrap(h264dec.ErrMalformedContainer, "sample index out of range")
	}
	return s.idx.AccessUnit(int(i)), nil
}
