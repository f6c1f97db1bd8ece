/*
DESCRIPTION
  Package isobmff provides a minimal ISO-BMFF (ISO/IEC 14496-12) box-tree
  reader sufficient to locate an AVC elementary stream's sample index and
  its avcC decoder configuration record: the box tree down to
  moov/trak/mdia/minf/stbl, the avc1/avcC sample description, and the
  stco/co64, stsc and stsz tables needed to resolve sample i to a byte
  offset and length in the backing file.

  Grounded on the per-sample offset walk in original_source/src/decoder/
  mp4.cc (index_nal's chunk/sample bookkeeping) and on the avcC record
  layout of the AVCDecoderConfigurationRecord reference in the pack's
  other_examples.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)
*/
package isobmff

import (
	"io"

	"github.com/pkg/errors"

	"github.com/ausocean/mvflow/bits"
)

// ErrMalformed indicates an inconsistent or missing box structure.
var ErrMalformed = errors.New("malformed ISO-BMFF container")

// AVCConfig is the subset of the AVC decoder configuration record (avcC,
// ISO/IEC 14496-15 5.3.3.1) this core needs: the NAL length field size and
// the initial SPS/PPS NAL units.
type AVCConfig struct {
	LengthSize int // bytes per sample's NAL length prefix (1, 2 or 4).
	SPS        [][]byte
	PPS        [][]byte
}

// sampleRun is one stsc entry: starting chunk index (1-based, as stored)
// and the number of samples per chunk from that point on.
type sampleRun struct {
	firstChunk      uint32
	samplesPerChunk uint32
}

// Index resolves sample numbers to byte offsets and lengths within a
// backing AVC elementary stream multiplexed into an ISO-BMFF file, and
// carries the avcC configuration needed to seed the parameter-set store.
type Index struct {
	Config      AVCConfig
	chunkOffset []uint64
	sampleRun   []sampleRun
	sampleSize  []uint32 // per-sample size; empty when all samples share a fixed size.
	fixedSize   uint32
	sampleCount uint32
}

// SampleCount returns the total number of samples indexed.
func (idx *Index) SampleCount() uint64 { return uint64(idx.sampleCount) }

// Sample returns the (offset, size) of sample i (0-based) within the
// backing file.
func (idx *Index) Sample(i uint64) (offset int64, size uint32, err error) {
	if i >= uint64(idx.sampleCount) {
		return 0, 0, errors.Wrap(ErrMalformedContainerRange, "sample index out of range")
	}
	if idx.fixedSize != 0 {
		size = idx.fixedSize
	} else {
		size = idx.sampleSize[i]
	}

	chunk, sampleInChunk := idx.chunkForSample(uint32(i))
	if int(chunk) >= len(idx.chunkOffset) {
		return 0, 0, errors.Wrap(ErrMalformed, "chunk index out of range")
	}
	off := idx.chunkOffset[chunk]
	for s := uint32(0); s < sampleInChunk; s++ {
		var sz uint32
		if idx.fixedSize != 0 {
			sz = idx.fixedSize
		} else {
			sz = idx.sampleSize[firstSampleOfChunk(idx, chunk)+s]
		}
		off += uint64(sz)
	}
	return int64(off), size, nil
}

// ErrMalformedContainerRange is the error Sample wraps for an out-of-range
// sample index. It is an alias of ErrMalformed, so errors.Cause does not
// distinguish an out-of-range query from a structurally broken box tree.
var ErrMalformedContainerRange = ErrMalformed

// chunkForSample returns the 0-based chunk index containing sample i and
// the sample's 0-based position within that chunk, derived by walking the
// stsc run-length table.
func (idx *Index) chunkForSample(i uint32) (chunk, posInChunk uint32) {
	var sampleCursor, chunkCursor uint32
	for runIdx, run := range idx.sampleRun {
		firstChunk := run.firstChunk - 1
		var nextFirstChunk uint32 = 1 << 31
		if runIdx+1 < len(idx.sampleRun) {
			nextFirstChunk = idx.sampleRun[runIdx+1].firstChunk - 1
		}
		for c := firstChunk; c < nextFirstChunk && c < uint32(len(idx.chunkOffset)); c++ {
			if i < sampleCursor+run.samplesPerChunk {
				return c, i - sampleCursor
			}
			sampleCursor += run.samplesPerChunk
			chunkCursor = c + 1
		}
	}
	return chunkCursor, 0
}

// firstSampleOfChunk returns the global sample index of the first sample
// in chunk, by re-walking the stsc table (small tables, called rarely
// relative to decode cost, so no memoised inverse index is kept).
func firstSampleOfChunk(idx *Index, chunk uint32) uint32 {
	var sampleCursor, chunkCursor uint32
	for runIdx, run := range idx.sampleRun {
		firstChunk := run.firstChunk - 1
		var nextFirstChunk uint32 = 1 << 31
		if runIdx+1 < len(idx.sampleRun) {
			nextFirstChunk = idx.sampleRun[runIdx+1].firstChunk - 1
		}
		for c := firstChunk; c < nextFirstChunk; c++ {
			if c == chunk {
				return sampleCursor
			}
			sampleCursor += run.samplesPerChunk
			chunkCursor = c + 1
		}
	}
	_ = chunkCursor
	return sampleCursor
}

// box is one parsed box header plus its payload span within the source.
type box struct {
	kind    string
	payload []byte
}

// Open reads the full contents of r, walks the ISO-BMFF box tree to find
// the first video track's sample table and avcC configuration, and
// returns an Index.
func Open(r io.Reader) (*Index, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(ErrIO, err.Error())
	}
	return OpenBytes(data)
}

// ErrIO indicates the backing reader failed.
var ErrIO = errors.New("io error")

// OpenBytes is Open over an already-materialized byte slice.
func OpenBytes(data []byte) (*Index, error) {
	boxes, err := parseBoxes(data)
	if err != nil {
		return nil, err
	}

	moov := findBox(boxes, "moov")
	if moov == nil {
		return nil, errors.Wrap(ErrMalformed, "no moov box")
	}
	stbl, avcC, err := findStblAndAVCC(moov.payload)
	if err != nil {
		return nil, err
	}

	idx := &Index{}
	idx.Config, err = parseAVCC(avcC)
	if err != nil {
		return nil, err
	}

	stblBoxes, err := parseBoxes(stbl)
	if err != nil {
		return nil, err
	}

	if stsz := findBox(stblBoxes, "stsz"); stsz != nil {
		if err := idx.parseSTSZ(stsz.payload); err != nil {
			return nil, err
		}
	} else {
		return nil, errors.Wrap(ErrMalformed, "no stsz box")
	}

	if stsc := findBox(stblBoxes, "stsc"); stsc != nil {
		if err := idx.parseSTSC(stsc.payload); err != nil {
			return nil, err
		}
	} else {
		return nil, errors.Wrap(ErrMalformed, "no stsc box")
	}

	if stco := findBox(stblBoxes, "stco"); stco != nil {
		if err := idx.parseSTCO(stco.payload); err != nil {
			return nil, err
		}
	} else if co64 := findBox(stblBoxes, "co64"); co64 != nil {
		if err := idx.parseCO64(co64.payload); err != nil {
			return nil, err
		}
	} else {
		return nil, errors.Wrap(ErrMalformed, "no stco/co64 box")
	}

	return idx, nil
}

// parseBoxes splits data into a flat list of top-level boxes (clause
// 4.2): each box is a 32-bit size, a 4-character type, and a payload;
// size 0 means "to end of data", size 1 introduces a 64-bit largesize.
func parseBoxes(data []byte) ([]box, error) {
	br := bits.NewSpanReader(data)
	var out []box
	for {
		if _, err := br.PeekBits(8); err != nil {
			break // clean end of data.
		}
		size, err := br.ReadU32()
		if err != nil {
			return nil, errors.Wrap(ErrMalformed, "truncated box header")
		}
		kindBytes := make([]byte, 4)
		for i := range kindBytes {
			b, err := br.ReadU8()
			if err != nil {
				return nil, errors.Wrap(ErrMalformed, "truncated box type")
			}
			kindBytes[i] = b
		}
		headerLen := 8
		total := uint64(size)
		if size == 1 {
			large, err := br.ReadU64()
			if err != nil {
				return nil, errors.Wrap(ErrMalformed, "truncated box largesize")
			}
			total = large
			headerLen = 16
		}

		start := br.BytesRead()
		var end int
		if size == 0 {
			end = len(data)
		} else {
			end = start - headerLen + int(total)
		}
		if end < start || end > len(data) {
			return nil, errors.Wrap(ErrMalformed, "box size out of range")
		}
		out = append(out, box{kind: string(kindBytes), payload: data[start:end]})

		if end == len(data) {
			break
		}
		// Re-seat the reader past this box's payload for the next header.
		br = bits.NewSpanReader(data[end:])
		adjustedLen := end
		_ = adjustedLen
		data = data // data slice itself is unchanged; br now reads from end onward.
		// Track absolute offsets via a fresh reader each iteration rather
		// than rewinding, since BitReader has no seek-backward primitive.
		remaining := data[end:]
		if len(remaining) == 0 {
			break
		}
		br = bits.NewSpanReader(remaining)
		data = remaining
	}
	return out, nil
}

func findBox(boxes []box, kind string) *box {
	for i := range boxes {
		if boxes[i].kind == kind {
			return &boxes[i]
		}
	}
	return nil
}

// findStblAndAVCC descends moov -> trak -> mdia -> minf -> stbl, returning
// the first track's sample table payload and its avc1 sample entry's avcC
// payload. Only the first video track found is used.
func findStblAndAVCC(moov []byte) (stbl, avcC []byte, err error) {
	moovBoxes, err := parseBoxes(moov)
	if err != nil {
		return nil, nil, err
	}
	for _, trak := range moovBoxes {
		if trak.kind != "trak" {
			continue
		}
		trakBoxes, err := parseBoxes(trak.payload)
		if err != nil {
			continue
		}
		mdia := findBox(trakBoxes, "mdia")
		if mdia == nil {
			continue
		}
		mdiaBoxes, err := parseBoxes(mdia.payload)
		if err != nil {
			continue
		}
		minf := findBox(mdiaBoxes, "minf")
		if minf == nil {
			continue
		}
		minfBoxes, err := parseBoxes(minf.payload)
		if err != nil {
			continue
		}
		stblBox := findBox(minfBoxes, "stbl")
		if stblBox == nil {
			continue
		}
		stblBoxes, err := parseBoxes(stblBox.payload)
		if err != nil {
			continue
		}
		stsd := findBox(stblBoxes, "stsd")
		if stsd == nil {
			continue
		}
		avc1, avcCPayload, ok := findAVC1(stsd.payload)
		if !ok {
			continue
		}
		_ = avc1
		return stblBox.payload, avcCPayload, nil
	}
	return nil, nil, errors.Wrap(ErrMalformed, "no AVC video track found")
}

// findAVC1 parses an stsd box's contents for an avc1 sample entry and
// returns its avcC child box's payload.
func findAVC1(stsd []byte) (avc1, avcC []byte, ok bool) {
	if len(stsd) < 8 {
		return nil, nil, false
	}
	entries := stsd[8:] // skip version/flags (4) + entry_count (4).
	boxes, err := parseBoxes(entries)
	if err != nil {
		return nil, nil, false
	}
	e := findBox(boxes, "avc1")
	if e == nil {
		return nil, nil, false
	}
	if len(e.payload) < 78 {
		return nil, nil, false
	}
	inner, err := parseBoxes(e.payload[78:]) // fixed-size VisualSampleEntry fields.
	if err != nil {
		return nil, nil, false
	}
	c := findBox(inner, "avcC")
	if c == nil {
		return nil, nil, false
	}
	return e.payload, c.payload, true
}

// parseAVCC decodes the avcC decoder configuration record (clause
// 5.3.3.1 of ISO/IEC 14496-15).
func parseAVCC(data []byte) (AVCConfig, error) {
	var cfg AVCConfig
	br := bits.NewSpanReader(data)
	if _, err := br.ReadU8(); err != nil { // configurationVersion.
		return cfg, errors.Wrap(ErrMalformed, "truncated avcC")
	}
	if _, err := br.ReadU8(); err != nil { // AVCProfileIndication.
		return cfg, errors.Wrap(ErrMalformed, "truncated avcC")
	}
	if _, err := br.ReadU8(); err != nil { // profile_compatibility.
		return cfg, errors.Wrap(ErrMalformed, "truncated avcC")
	}
	if _, err := br.ReadU8(); err != nil { // AVCLevelIndication.
		return cfg, errors.Wrap(ErrMalformed, "truncated avcC")
	}
	lengthByte, err := br.ReadU8()
	if err != nil {
		return cfg, errors.Wrap(ErrMalformed, "truncated avcC")
	}
	cfg.LengthSize = int(lengthByte&0x3) + 1

	numSPS, err := br.ReadU8()
	if err != nil {
		return cfg, errors.Wrap(ErrMalformed, "truncated avcC")
	}
	for i := 0; i < int(numSPS&0x1f); i++ {
		n, err := br.ReadU16()
		if err != nil {
			return cfg, errors.Wrap(ErrMalformed, "truncated avcC SPS length")
		}
		nal := make([]byte, n)
		for j := range nal {
			b, err := br.ReadU8()
			if err != nil {
				return cfg, errors.Wrap(ErrMalformed, "truncated avcC SPS")
			}
			nal[j] = b
		}
		cfg.SPS = append(cfg.SPS, nal)
	}

	numPPS, err := br.ReadU8()
	if err != nil {
		return cfg, errors.Wrap(ErrMalformed, "truncated avcC")
	}
	for i := 0; i < int(numPPS); i++ {
		n, err := br.ReadU16()
		if err != nil {
			return cfg, errors.Wrap(ErrMalformed, "truncated avcC PPS length")
		}
		nal := make([]byte, n)
		for j := range nal {
			b, err := br.ReadU8()
			if err != nil {
				return cfg, errors.Wrap(ErrMalformed, "truncated avcC PPS")
			}
			nal[j] = b
		}
		cfg.PPS = append(cfg.PPS, nal)
	}

	return cfg, nil
}

func (idx *Index) parseSTSZ(data []byte) error {
	br := bits.NewSpanReader(data)
	br.ReadU32() // version/flags.
	fixedSize, err := br.ReadU32()
	if err != nil {
		return errors.Wrap(ErrMalformed, "truncated stsz")
	}
	count, err := br.ReadU32()
	if err != nil {
		return errors.Wrap(ErrMalformed, "truncated stsz")
	}
	idx.sampleCount = count
	if fixedSize != 0 {
		idx.fixedSize = fixedSize
		return nil
	}
	idx.sampleSize = make([]uint32, count)
	for i := range idx.sampleSize {
		v, err := br.ReadU32()
		if err != nil {
			return errors.Wrap(ErrMalformed, "truncated stsz sample size table")
		}
		idx.sampleSize[i] = v
	}
	return nil
}

func (idx *Index) parseSTSC(data []byte) error {
	br := bits.NewSpanReader(data)
	br.ReadU32() // version/flags.
	count, err := br.ReadU32()
	if err != nil {
		return errors.Wrap(ErrMalformed, "truncated stsc")
	}
	idx.sampleRun = make([]sampleRun, count)
	for i := range idx.sampleRun {
		firstChunk, err := br.ReadU32()
		if err != nil {
			return errors.Wrap(ErrMalformed, "truncated stsc entry")
		}
		samplesPerChunk, err := br.ReadU32()
		if err != nil {
			return errors.Wrap(ErrMalformed, "truncated stsc entry")
		}
		if _, err := br.ReadU32(); err != nil { // sample_description_index.
			return errors.Wrap(ErrMalformed, "truncated stsc entry")
		}
		idx.sampleRun[i] = sampleRun{firstChunk: firstChunk, samplesPerChunk: samplesPerChunk}
	}
	return nil
}

func (idx *Index) parseSTCO(data []byte) error {
	br := bits.NewSpanReader(data)
	br.ReadU32() // version/flags.
	count, err := br.ReadU32()
	if err != nil {
		return errors.Wrap(ErrMalformed, "truncated stco")
	}
	idx.chunkOffset = make([]uint64, count)
	for i := range idx.chunkOffset {
		v, err := br.ReadU32()
		if err != nil {
			return errors.Wrap(ErrMalformed, "truncated stco entry")
		}
		idx.chunkOffset[i] = uint64(v)
	}
	return nil
}

func (idx *Index) parseCO64(data []byte) error {
	br := bits.NewSpanReader(data)
	br.ReadU32() // version/flags.
	count, err := br.ReadU32()
	if err != nil {
		return errors.Wrap(ErrMalformed, "truncated co64")
	}
	idx.chunkOffset = make([]uint64, count)
	for i := range idx.chunkOffset {
		v, err := br.ReadU64()
		if err != nil {
			return errors.Wrap(ErrMalformed, "truncated co64 entry")
		}
		idx.chunkOffset[i] = v
	}
	return nil
}
