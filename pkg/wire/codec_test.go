package wire

import (
	"bytes"
	"math"
	"testing"
)

func TestEncoderDecoderRoundTrip(t *testing.T) {
	e := NewEncoder()

	e.WriteInt32(-12345678)
	e.WriteInt32(math.MaxInt32)
	e.WriteInt32(math.MinInt32)
	e.WriteUint32(0xDEADBEEF)
	e.WriteUint32(math.MaxUint32)
	e.WriteFixed(FixedFromFloat(-273.125))
	e.WriteString("hello world")
	e.WriteString("") // empty, not null
	e.WriteNullString()
	e.WriteArray([]byte{0xDE, 0xAD, 0xBE, 0xEF, 0x01})
	e.WriteArray(nil)
	e.WriteFd(7)
	e.WriteFd(9)

	if e.Len()%4 != 0 {
		t.Fatalf("encoded length %d not word-aligned", e.Len())
	}
	if got := e.Fds(); len(got) != 2 || got[0] != 7 || got[1] != 9 {
		t.Fatalf("Fds() = %v; want [7 9]", got)
	}

	d := NewDecoder(e.Bytes(), e.Fds())

	i32, err := d.ReadInt32()
	if err != nil || i32 != -12345678 {
		t.Errorf("ReadInt32() = %d, %v; want -12345678, nil", i32, err)
	}
	i32, err = d.ReadInt32()
	if err != nil || i32 != math.MaxInt32 {
		t.Errorf("ReadInt32() = %d, %v; want MaxInt32, nil", i32, err)
	}
	i32, err = d.ReadInt32()
	if err != nil || i32 != math.MinInt32 {
		t.Errorf("ReadInt32() = %d, %v; want MinInt32, nil", i32, err)
	}
	u32, err := d.ReadUint32()
	if err != nil || u32 != 0xDEADBEEF {
		t.Errorf("ReadUint32() = %x, %v; want 0xDEADBEEF, nil", u32, err)
	}
	u32, err = d.ReadUint32()
	if err != nil || u32 != math.MaxUint32 {
		t.Errorf("ReadUint32() = %x, %v; want MaxUint32, nil", u32, err)
	}
	fx, err := d.ReadFixed()
	if err != nil || fx.Float() != -273.125 {
		t.Errorf("ReadFixed() = %v, %v; want -273.125, nil", fx.Float(), err)
	}
	s, isNil, err := d.ReadString()
	if err != nil || isNil || s != "hello world" {
		t.Errorf("ReadString() = %q, %v, %v; want \"hello world\", false, nil", s, isNil, err)
	}
	s, isNil, err = d.ReadString()
	if err != nil || isNil || s != "" {
		t.Errorf("ReadString() = %q, %v, %v; want \"\", false, nil", s, isNil, err)
	}
	_, isNil, err = d.ReadString()
	if err != nil || !isNil {
		t.Errorf("ReadString() null = %v, %v; want true, nil", isNil, err)
	}
	a, err := d.ReadArray()
	if err != nil || !bytes.Equal(a, []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x01}) {
		t.Errorf("ReadArray() = %v, %v", a, err)
	}
	a, err = d.ReadArray()
	if err != nil || len(a) != 0 {
		t.Errorf("ReadArray() empty = %v, %v; want [], nil", a, err)
	}
	fd, err := d.ReadFd()
	if err != nil || fd != 7 {
		t.Errorf("ReadFd() = %d, %v; want 7, nil", fd, err)
	}
	fd, err = d.ReadFd()
	if err != nil || fd != 9 {
		t.Errorf("ReadFd() = %d, %v; want 9, nil", fd, err)
	}
	if d.Remaining() != 0 {
		t.Errorf("Remaining() = %d after full read; want 0", d.Remaining())
	}
}

func TestStringPadding(t *testing.T) {
	// Lengths 0..7 cover every padding residue twice.
	for n := 0; n <= 7; n++ {
		s := "abcdefgh"[:n]
		e := NewEncoder()
		e.WriteString(s)
		if e.Len()%4 != 0 {
			t.Errorf("WriteString(%q): length %d not word-aligned", s, e.Len())
		}
		d := NewDecoder(e.Bytes(), nil)
		got, isNil, err := d.ReadString()
		if err != nil || isNil || got != s {
			t.Errorf("round trip of %q = %q, %v, %v", s, got, isNil, err)
		}
		if d.Remaining() != 0 {
			t.Errorf("WriteString(%q): %d bytes left over", s, d.Remaining())
		}
	}
}

func TestDecoderErrors(t *testing.T) {
	// Truncated word.
	d := NewDecoder([]byte{1, 2, 3}, nil)
	if _, err := d.ReadUint32(); err != ErrTruncated {
		t.Errorf("ReadUint32 on 3 bytes = %v; want ErrTruncated", err)
	}

	// String length larger than buffer.
	e := NewEncoder()
	e.WriteUint32(100)
	d = NewDecoder(e.Bytes(), nil)
	if _, _, err := d.ReadString(); err != ErrBadLength {
		t.Errorf("ReadString with oversized count = %v; want ErrBadLength", err)
	}

	// Missing NUL terminator.
	e.Reset()
	e.WriteUint32(4)
	e.WriteUint32(0x61616161) // "aaaa", no NUL
	d = NewDecoder(e.Bytes(), nil)
	if _, _, err := d.ReadString(); err != ErrBadTerminator {
		t.Errorf("ReadString without NUL = %v; want ErrBadTerminator", err)
	}

	// Array length larger than buffer.
	e.Reset()
	e.WriteUint32(0xFFFFFFFF)
	d = NewDecoder(e.Bytes(), nil)
	if _, err := d.ReadArray(); err != ErrBadLength {
		t.Errorf("ReadArray with huge count = %v; want ErrBadLength", err)
	}

	// Empty descriptor queue.
	d = NewDecoder(nil, nil)
	if _, err := d.ReadFd(); err != ErrMissingFd {
		t.Errorf("ReadFd with empty queue = %v; want ErrMissingFd", err)
	}
}

func TestEncoderReset(t *testing.T) {
	e := NewEncoderWithCap(16)
	e.WriteUint32(1)
	e.WriteFd(3)
	e.Reset()
	if e.Len() != 0 || len(e.Fds()) != 0 {
		t.Errorf("after Reset: Len=%d Fds=%v; want 0, []", e.Len(), e.Fds())
	}
}
