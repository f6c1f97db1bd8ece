package isobmff

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// mkbox wraps payload in a standard 32-bit-size box header of the given
// four-character type.
func mkbox(kind string, payload []byte) []byte {
	size := 8 + len(payload)
	b := []byte{byte(size >> 24), byte(size >> 16), byte(size >> 8), byte(size)}
	b = append(b, []byte(kind)...)
	b = append(b, payload...)
	return b
}

func u32(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

func u64(v uint64) []byte {
	return []byte{
		byte(v >> 56), byte(v >> 48), byte(v >> 40), byte(v >> 32),
		byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v),
	}
}

func TestParseBoxesFlat(t *testing.T) {
	data := append(mkbox("ftyp", []byte("isom")), mkbox("free", nil)...)
	boxes, err := parseBoxes(data)
	if err != nil {
		t.Fatalf("parseBoxes: %v", err)
	}
	if len(boxes) != 2 {
		t.Fatalf("parseBoxes() found %d boxes, want 2", len(boxes))
	}
	if boxes[0].kind != "ftyp" || boxes[1].kind != "free" {
		t.Errorf("parseBoxes() kinds = %q, %q", boxes[0].kind, boxes[1].kind)
	}
	if diff := cmp.Diff([]byte("isom"), boxes[0].payload); diff != "" {
		t.Errorf("ftyp payload mismatch (-want +got):\n%s", diff)
	}
}

func TestParseSTSZFixedSize(t *testing.T) {
	payload := append(u32(0), u32(188)...) // version/flags, fixed sample_size.
	payload = append(payload, u32(5)...)   // sample_count.
	idx := &Index{}
	if err := idx.parseSTSZ(payload); err != nil {
		t.Fatalf("parseSTSZ: %v", err)
	}
	if idx.sampleCount != 5 || idx.fixedSize != 188 {
		t.Errorf("parseSTSZ() = count %d fixed %d, want 5, 188", idx.sampleCount, idx.fixedSize)
	}
}

func TestParseSTSZVariableSize(t *testing.T) {
	payload := append(u32(0), u32(0)...) // variable sample sizes.
	payload = append(payload, u32(3)...)
	payload = append(payload, u32(10)...)
	payload = append(payload, u32(20)...)
	payload = append(payload, u32(30)...)
	idx := &Index{}
	if err := idx.parseSTSZ(payload); err != nil {
		t.Fatalf("parseSTSZ: %v", err)
	}
	if diff := cmp.Diff([]uint32{10, 20, 30}, idx.sampleSize); diff != "" {
		t.Errorf("sampleSize mismatch (-want +got):\n%s", diff)
	}
}

func TestParseSTSC(t *testing.T) {
	payload := append(u32(0), u32(1)...)
	payload = append(payload, u32(1)...) // first_chunk.
	payload = append(payload, u32(3)...) // samples_per_chunk.
	payload = append(payload, u32(1)...) // sample_description_index.
	idx := &Index{}
	if err := idx.parseSTSC(payload); err != nil {
		t.Fatalf("parseSTSC: %v", err)
	}
	want := []sampleRun{{firstChunk: 1, samplesPerChunk: 3}}
	if diff := cmp.Diff(want, idx.sampleRun, cmp.AllowUnexported(sampleRun{})); diff != "" {
		t.Errorf("sampleRun mismatch (-want +got):\n%s", diff)
	}
}

func TestParseSTCOAndCO64(t *testing.T) {
	stco := append(u32(0), u32(2)...)
	stco = append(stco, u32(100)...)
	stco = append(stco, u32(500)...)
	idx := &Index{}
	if err := idx.parseSTCO(stco); err != nil {
		t.Fatalf("parseSTCO: %v", err)
	}
	if diff := cmp.Diff([]uint64{100, 500}, idx.chunkOffset); diff != "" {
		t.Errorf("chunkOffset mismatch (-want +got):\n%s", diff)
	}

	co64 := append(u32(0), u32(1)...)
	co64 = append(co64, u64(1<<33)...)
	idx2 := &Index{}
	if err := idx2.parseCO64(co64); err != nil {
		t.Fatalf("parseCO64: %v", err)
	}
	if diff := cmp.Diff([]uint64{1 << 33}, idx2.chunkOffset); diff != "" {
		t.Errorf("chunkOffset mismatch (-want +got):\n%s", diff)
	}
}

func TestParseAVCC(t *testing.T) {
	sps := []byte{0x67, 0x01, 0x02, 0x03}
	pps := []byte{0x68, 0x01}
	payload := []byte{
		1,            // configurationVersion.
		0x42, 0xc0, 0x1e, // profile, compat, level.
		0xff, // lengthSizeMinusOne (lower 2 bits = 3 => LengthSize 4).
		0xe1, // numSPS (lower 5 bits = 1).
	}
	payload = append(payload, byte(len(sps)>>8), byte(len(sps)))
	payload = append(payload, sps...)
	payload = append(payload, 1) // numPPS.
	payload = append(payload, byte(len(pps)>>8), byte(len(pps)))
	payload = append(payload, pps...)

	cfg, err := parseAVCC(payload)
	if err != nil {
		t.Fatalf("parseAVCC: %v", err)
	}
	if cfg.LengthSize != 4 {
		t.Errorf("LengthSize = %d, want 4", cfg.LengthSize)
	}
	if diff := cmp.Diff([][]byte{sps}, cfg.SPS); diff != "" {
		t.Errorf("SPS mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([][]byte{pps}, cfg.PPS); diff != "" {
		t.Errorf("PPS mismatch (-want +got):\n%s", diff)
	}
}

// buildMinimalFile assembles a full moov > trak > mdia > minf > stbl tree
// with one avc1/avcC sample entry and a single-chunk, fixed-run sample
// table, mirroring the smallest file OpenBytes needs to support.
func buildMinimalFile(t *testing.T, chunkOffset uint32, sampleSizes []uint32) []byte {
	t.Helper()

	avccPayload := []byte{1, 0x42, 0xc0, 0x1e, 0xff, 0xe1, 0, 4, 0x67, 1, 2, 3, 1, 0, 2, 0x68, 1}
	avcc := mkbox("avcC", avccPayload)

	avc1Payload := make([]byte, 78)
	avc1Payload = append(avc1Payload, avcc...)
	avc1 := mkbox("avc1", avc1Payload)

	stsdPayload := append(u32(0), u32(1)...)
	stsdPayload = append(stsdPayload, avc1...)
	stsd := mkbox("stsd", stsdPayload)

	stszPayload := append(u32(0), u32(0)...)
	stszPayload = append(stszPayload, u32(uint32(len(sampleSizes)))...)
	for _, s := range sampleSizes {
		stszPayload = append(stszPayload, u32(s)...)
	}
	stsz := mkbox("stsz", stszPayload)

	stscPayload := append(u32(0), u32(1)...)
	stscPayload = append(stscPayload, u32(1)...)
	stscPayload = append(stscPayload, u32(uint32(len(sampleSizes)))...)
	stscPayload = append(stscPayload, u32(1)...)
	stsc := mkbox("stsc", stscPayload)

	stcoPayload := append(u32(0), u32(1)...)
	stcoPayload = append(stcoPayload, u32(chunkOffset)...)
	stco := mkbox("stco", stcoPayload)

	var stblPayload []byte
	stblPayload = append(stblPayload, stsd...)
	stblPayload = append(stblPayload, stsz...)
	stblPayload = append(stblPayload, stsc...)
	stblPayload = append(stblPayload, stco...)
	stbl := mkbox("stbl", stblPayload)

	minf := mkbox("minf", stbl)
	mdia := mkbox("mdia", minf)
	trak := mkbox("trak", mdia)
	moov := mkbox("moov", trak)
	return moov
}

func TestOpenBytesEndToEnd(t *testing.T) {
	sampleSizes := []uint32{10, 20, 30}
	data := buildMinimalFile(t, 1000, sampleSizes)

	idx, err := OpenBytes(data)
	if err != nil {
		t.Fatalf("OpenBytes: %v", err)
	}
	if idx.Config.LengthSize != 4 {
		t.Errorf("LengthSize = %d, want 4", idx.Config.LengthSize)
	}
	if len(idx.Config.SPS) != 1 || len(idx.Config.PPS) != 1 {
		t.Fatalf("Config.SPS/PPS counts = %d/%d, want 1/1", len(idx.Config.SPS), len(idx.Config.PPS))
	}
	if idx.SampleCount() != 3 {
		t.Fatalf("SampleCount() = %d, want 3", idx.SampleCount())
	}

	wantOffsets := []int64{1000, 1010, 1030}
	wantSizes := []uint32{10, 20, 30}
	for i := range wantOffsets {
		off, size, err := idx.Sample(uint64(i))
		if err != nil {
			t.Fatalf("Sample(%d): %v", i, err)
		}
		if off != wantOffsets[i] || size != wantSizes[i] {
			t.Errorf("Sample(%d) = (%d,%d), want (%d,%d)", i, off, size, wantOffsets[i], wantSizes[i])
		}
	}

	if _, _, err := idx.Sample(3); err == nil {
		t.Error("Sample() past the end should error")
	}
}
