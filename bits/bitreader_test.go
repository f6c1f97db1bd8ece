package bits

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// bitsToBytes packs a string of '0'/'1' characters (spaces ignored) into a
// byte slice, left-aligned and zero-padded in the final byte.
func bitsToBytes(s string) []byte {
	var bits []byte
	for _, c := range s {
		switch c {
		case '0':
			bits = append(bits, 0)
		case '1':
			bits = append(bits, 1)
		}
	}
	out := make([]byte, (len(bits)+7)/8)
	for i, b := range bits {
		if b == 1 {
			out[i/8] |= 1 << uint(7-i%8)
		}
	}
	return out
}

func TestReadBits(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		ns   []int
		want []uint64
	}{
		{
			name: "mixed widths",
			data: []byte{0x8f, 0xe3},
			ns:   []int{4, 2, 4, 6},
			want: []uint64{0x8, 0x3, 0xf, 0x23},
		},
		{
			name: "single bits",
			data: []byte{0xa0},
			ns:   []int{1, 1, 1, 1},
			want: []uint64{1, 0, 1, 0},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			br := NewSpanReader(tc.data)
			var got []uint64
			for _, n := range tc.ns {
				v, err := br.ReadBits(n)
				if err != nil {
					t.Fatalf("ReadBits(%d): %v", n, err)
				}
				got = append(got, v)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("ReadBits() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReadUE(t *testing.T) {
	// Exp-Golomb codeNum 0..6, packed per Table 9-2.
	data := bitsToBytes("1 010 011 00100 00101 00110 00111")
	br := NewSpanReader(data)
	for want := uint64(0); want <= 6; want++ {
		got, err := br.ReadUE()
		if err != nil {
			t.Fatalf("ReadUE() at codeNum %d: %v", want, err)
		}
		if got != want {
			t.Errorf("ReadUE() = %d, want %d", got, want)
		}
	}
}

func TestReadSE(t *testing.T) {
	// se(v) mapping (Table 9-3): codeNum -> value 0,1,-1,2,-2,3,-3.
	data := bitsToBytes("1 010 011 00100 00101 00110 00111")
	want := []int64{0, 1, -1, 2, -2, 3, -3}
	br := NewSpanReader(data)
	for _, w := range want {
		got, err := br.ReadSE()
		if err != nil {
			t.Fatalf("ReadSE(): %v", err)
		}
		if got != w {
			t.Errorf("ReadSE() = %d, want %d", got, w)
		}
	}
}

func TestReadTE(t *testing.T) {
	// valRange 1 inverts a single bit.
	br := NewSpanReader([]byte{0x80})
	v, err := br.ReadTE(1)
	if err != nil {
		t.Fatalf("ReadTE(1): %v", err)
	}
	if v != 0 {
		t.Errorf("ReadTE(1) = %d, want 0", v)
	}

	if _, err := NewSpanReader([]byte{0}).ReadTE(0); err == nil {
		t.Error("ReadTE(0) should error, valRange must be at least 1")
	}
}

func TestReadU8U16U32U64(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09}
	br := NewSpanReader(data)

	u8, err := br.ReadU8()
	if err != nil || u8 != 0x01 {
		t.Fatalf("ReadU8() = %v, %v; want 0x01, nil", u8, err)
	}
	u16, err := br.ReadU16()
	if err != nil || u16 != 0x0203 {
		t.Fatalf("ReadU16() = %v, %v; want 0x0203, nil", u16, err)
	}
	u32, err := br.ReadU32()
	if err != nil || u32 != 0x04050607 {
		t.Fatalf("ReadU32() = %v, %v; want 0x04050607, nil", u32, err)
	}
	br2 := NewSpanReader(data[:8])
	u64, err := br2.ReadU64()
	if err != nil || u64 != 0x0102030405060708 {
		t.Fatalf("ReadU64() = %v, %v; want 0x0102030405060708, nil", u64, err)
	}
}

func TestPeekBitsDoesNotAdvance(t *testing.T) {
	br := NewSpanReader([]byte{0x8f, 0xe3})
	peeked, err := br.PeekBits(8)
	if err != nil {
		t.Fatalf("PeekBits: %v", err)
	}
	if peeked != 0x8f {
		t.Fatalf("PeekBits(8) = %#x, want 0x8f", peeked)
	}
	read, err := br.ReadBits(8)
	if err != nil {
		t.Fatalf("ReadBits: %v", err)
	}
	if read != peeked {
		t.Errorf("ReadBits() after PeekBits() = %#x, want %#x", read, peeked)
	}
}

func TestReadBitsUnexpectedEOF(t *testing.T) {
	br := NewSpanReader([]byte{0xff})
	if _, err := br.ReadBits(16); err != ErrUnexpectedEndOfStream {
		t.Errorf("ReadBits() past end = %v, want ErrUnexpectedEndOfStream", err)
	}
}

func TestByteAlignedAndAlignToByte(t *testing.T) {
	br := NewSpanReader([]byte{0xff, 0x00})
	if !br.ByteAligned() {
		t.Fatal("fresh reader should be byte-aligned")
	}
	if _, err := br.ReadBits(3); err != nil {
		t.Fatal(err)
	}
	if br.ByteAligned() {
		t.Fatal("reader should not be byte-aligned after reading 3 bits")
	}
	br.AlignToByte()
	if !br.ByteAligned() {
		t.Fatal("AlignToByte() should leave the reader byte-aligned")
	}
	v, err := br.ReadU8()
	if err != nil || v != 0x00 {
		t.Fatalf("ReadU8() after AlignToByte() = %v, %v; want 0x00, nil", v, err)
	}
}

func TestNewBitReaderOverIOReader(t *testing.T) {
	br := NewBitReader(bytes.NewReader([]byte{0x8f, 0xe3}))
	v, err := br.ReadBits(16)
	if err != nil {
		t.Fatalf("ReadBits: %v", err)
	}
	if v != 0x8fe3 {
		t.Errorf("ReadBits(16) = %#x, want 0x8fe3", v)
	}
}
