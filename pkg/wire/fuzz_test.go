package wire

import "testing"

// FuzzParseHeader tests that header parsing never panics.
func FuzzParseHeader(f *testing.F) {
	e := NewEncoder()
	_ = EncodeMessage(e, 1, 0, nil, nil)
	f.Add(e.Bytes())
	f.Add([]byte{})
	f.Add([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF})

	f.Fuzz(func(t *testing.T, data []byte) {
		// Should not panic
		_, _, _ = ParseHeader(data)
	})
}

// FuzzDecodeArgs tests that payload decoding never panics, for every
// argument kind.
func FuzzDecodeArgs(f *testing.F) {
	sig := Signature{
		{Kind: ArgInt},
		{Kind: ArgUint},
		{Kind: ArgFixed},
		{Kind: ArgString, Nullable: true},
		{Kind: ArgObject, Nullable: true},
		{Kind: ArgArray},
	}

	e := NewEncoder()
	args := []Arg{
		IntArg(-1),
		UintArg(2),
		FixedArg(FixedFromFloat(3.5)),
		StringArg("seed"),
		ObjectArg(4),
		ArrayArg([]byte{5, 6}),
	}
	if err := EncodeMessage(e, 1, 0, args, sig); err != nil {
		f.Fatalf("seed encode failed: %v", err)
	}
	f.Add(e.Bytes()[HeaderSize:])
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, data []byte) {
		// Should not panic
		_, _ = DecodeArgs(data, sig, nil)
	})
}

// FuzzReadString tests that string decoding never panics and never reads
// out of bounds.
func FuzzReadString(f *testing.F) {
	e := NewEncoder()
	e.WriteString("hello")
	f.Add(e.Bytes())
	f.Add([]byte{0, 0, 0, 0})
	f.Add([]byte{0xFF, 0xFF, 0xFF, 0xFF, 'a', 'b'})

	f.Fuzz(func(t *testing.T, data []byte) {
		d := NewDecoder(data, nil)
		// Should not panic
		_, _, _ = d.ReadString()
	})
}
