package h264dec

import "testing"

func TestMedian3(t *testing.T) {
	tests := []struct{ a, b, c, want int }{
		{1, 2, 3, 2},
		{3, 2, 1, 2},
		{-5, 0, 5, 0},
		{7, 7, 7, 7},
		{-1, -2, -3, -2},
	}
	for _, tc := range tests {
		if got := median3(tc.a, tc.b, tc.c); got != tc.want {
			t.Errorf("median3(%d,%d,%d) = %d, want %d", tc.a, tc.b, tc.c, got, tc.want)
		}
	}
}

func TestMinMaxAbs(t *testing.T) {
	if maxi(3, 5) != 5 || maxi(5, 3) != 5 {
		t.Error("maxi incorrect")
	}
	if mini(3, 5) != 3 || mini(5, 3) != 3 {
		t.Error("mini incorrect")
	}
	if absi(-4) != 4 || absi(4) != 4 || absi(0) != 0 {
		t.Error("absi incorrect")
	}
}

func TestMbIsIntraAndIPCM(t *testing.T) {
	if mbIsIntra(pL016x16) {
		t.Error("P_L0_16x16 should not be intra")
	}
	if !mbIsIntra(iNxNStart) {
		t.Error("I_NxN should be intra")
	}
	if !mbIsIPCM(codedIPCM) {
		t.Error("codedIPCM should report as I_PCM")
	}
	if mbIsIPCM(iNxNStart) {
		t.Error("I_NxN should not report as I_PCM")
	}
}

func TestPMbPartTable(t *testing.T) {
	tests := []struct {
		mbType                int
		numPart, width, height int
	}{
		{pL016x16, 1, 16, 16},
		{pL0L016x8, 2, 16, 8},
		{pL0L08x16, 2, 8, 16},
		{p8x8, 4, 8, 8},
		{p8x8ref0, 4, 8, 8},
	}
	for _, tc := range tests {
		part, ok := pMbPartTable[tc.mbType]
		if !ok {
			t.Fatalf("pMbPartTable missing entry for mb_type %d", tc.mbType)
		}
		if part.numMbPart != tc.numPart || part.partWidth != tc.width || part.partHeight != tc.height {
			t.Errorf("pMbPartTable[%d] = %+v, want {%d %d %d}", tc.mbType, part, tc.numPart, tc.width, tc.height)
		}
	}
}
