package annexb

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestScanThreeByteStartCodes(t *testing.T) {
	data := []byte{
		0x00, 0x00, 0x01, 0x41, 0xaa, 0xbb, // NAL 1: slice (type 1), its own access unit
		0x00, 0x00, 0x01, 0x45, 0xcc, // NAL 2: IDR slice (type 5), its own access unit
	}
	idx, err := Scan(data)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if idx.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", idx.Count())
	}
	if diff := cmp.Diff([][]byte{{0x41, 0xaa, 0xbb}}, idx.AccessUnit(0)); diff != "" {
		t.Errorf("AccessUnit(0) mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([][]byte{{0x45, 0xcc}}, idx.AccessUnit(1)); diff != "" {
		t.Errorf("AccessUnit(1) mismatch (-want +got):\n%s", diff)
	}
}

func TestScanFourByteStartCode(t *testing.T) {
	data := []byte{0x00, 0x00, 0x00, 0x01, 0x41, 0x11, 0x22}
	idx, err := Scan(data)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if idx.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", idx.Count())
	}
	if diff := cmp.Diff([][]byte{{0x41, 0x11, 0x22}}, idx.AccessUnit(0)); diff != "" {
		t.Errorf("AccessUnit(0) mismatch (-want +got):\n%s", diff)
	}
}

func TestScanMixedStartCodes(t *testing.T) {
	data := []byte{
		0x00, 0x00, 0x00, 0x01, 0x41, 0xaa, // 4-byte start code, slice
		0x00, 0x00, 0x01, 0x45, 0xbb, // 3-byte start code, IDR slice
	}
	idx, err := Scan(data)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if idx.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", idx.Count())
	}
}

func TestScanNoStartCode(t *testing.T) {
	_, err := Scan([]byte{0x01, 0x02, 0x03})
	if err != ErrNoStartCode {
		t.Errorf("Scan() error = %v, want ErrNoStartCode", err)
	}
}

func TestScanTrailingZerosTrimmed(t *testing.T) {
	// A NAL unit followed by trailing zero padding before the next start code.
	data := []byte{
		0x00, 0x00, 0x01, 0x41, 0xaa, 0x00, 0x00,
		0x00, 0x00, 0x01, 0x45, 0xbb,
	}
	idx, err := Scan(data)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if diff := cmp.Diff([][]byte{{0x41, 0xaa}}, idx.AccessUnit(0)); diff != "" {
		t.Errorf("AccessUnit(0) mismatch (-want +got):\n%s", diff)
	}
}

func TestScanGroupsParamSetsWithFollowingSlice(t *testing.T) {
	// SPS, PPS, then a P-slice: the minimal Annex-B case. All three NAL
	// units must land in a single access unit, and Count() must report
	// one coded picture, not three NAL units.
	data := []byte{
		0x00, 0x00, 0x01, 0x67, 0x01, // SPS (type 7)
		0x00, 0x00, 0x01, 0x68, 0x02, // PPS (type 8)
		0x00, 0x00, 0x01, 0x41, 0x03, // P-slice (type 1)
	}
	idx, err := Scan(data)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if idx.Count() != 1 {
		t.Fatalf("Count() = %d, want 1 (SPS+PPS+slice should form one access unit)", idx.Count())
	}
	want := [][]byte{{0x67, 0x01}, {0x68, 0x02}, {0x41, 0x03}}
	if diff := cmp.Diff(want, idx.AccessUnit(0)); diff != "" {
		t.Errorf("AccessUnit(0) mismatch (-want +got):\n%s", diff)
	}
}

func TestScanTrailingParamSetsWithoutSliceFormIncompleteAccessUnit(t *testing.T) {
	// A stream ending in parameter sets with no following slice still
	// surfaces those NAL units, rather than silently dropping them.
	data := []byte{
		0x00, 0x00, 0x01, 0x41, 0xaa, // slice, access unit 0
		0x00, 0x00, 0x01, 0x67, 0x01, // trailing SPS with no following slice
	}
	idx, err := Scan(data)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if idx.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", idx.Count())
	}
	if diff := cmp.Diff([][]byte{{0x67, 0x01}}, idx.AccessUnit(1)); diff != "" {
		t.Errorf("AccessUnit(1) mismatch (-want +got):\n%s", diff)
	}
}
