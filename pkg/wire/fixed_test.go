package wire

import "testing"

func TestFixedRoundTrip(t *testing.T) {
	// Every fractional value at full 8-bit precision must round-trip
	// through float64 exactly.
	for frac := 0; frac < 256; frac++ {
		f := Fixed(1<<8 | frac)
		if got := FixedFromFloat(f.Float()); got != f {
			t.Fatalf("FixedFromFloat(%v.Float()) = %d; want %d", f, got, f)
		}
	}
}

func TestFixedValues(t *testing.T) {
	tests := []struct {
		f    float64
		want Fixed
	}{
		{0, 0},
		{1, 256},
		{-1, -256},
		{0.5, 128},
		{-0.25, -64},
		{1234.75, 1234*256 + 192},
	}
	for _, tt := range tests {
		if got := FixedFromFloat(tt.f); got != tt.want {
			t.Errorf("FixedFromFloat(%v) = %d; want %d", tt.f, got, tt.want)
		}
		if got := tt.want.Float(); got != tt.f {
			t.Errorf("Fixed(%d).Float() = %v; want %v", tt.want, got, tt.f)
		}
	}
}

func TestFixedInt(t *testing.T) {
	if got := FixedFromInt(-42); got != -42*256 {
		t.Errorf("FixedFromInt(-42) = %d; want %d", got, -42*256)
	}
	if got := FixedFromInt(1000).Int(); got != 1000 {
		t.Errorf("FixedFromInt(1000).Int() = %d; want 1000", got)
	}
}
