package wire

import (
	"errors"
	"math"
	"reflect"
	"testing"
)

var testSig = Signature{
	{Kind: ArgInt},
	{Kind: ArgUint},
	{Kind: ArgFixed},
	{Kind: ArgString, Nullable: true},
	{Kind: ArgObject, Nullable: true},
	{Kind: ArgNewID},
	{Kind: ArgArray},
	{Kind: ArgFd},
}

func testArgs() []Arg {
	return []Arg{
		IntArg(math.MinInt32),
		UintArg(math.MaxUint32),
		FixedArg(FixedFromFloat(12.5)),
		NullString(),
		ObjectArg(0),
		NewIDArg(3),
		ArrayArg([]byte{1, 2, 3}),
		FdArg(42),
	}
}

func TestMessageRoundTrip(t *testing.T) {
	e := NewEncoder()
	if err := EncodeMessage(e, 7, 4, testArgs(), testSig); err != nil {
		t.Fatalf("EncodeMessage() = %v", err)
	}

	h, ok, err := ParseHeader(e.Bytes())
	if err != nil || !ok {
		t.Fatalf("ParseHeader() = %+v, %v, %v", h, ok, err)
	}
	if h.Sender != 7 || h.Opcode != 4 || h.Size != e.Len() {
		t.Fatalf("header = %+v; want sender 7, opcode 4, size %d", h, e.Len())
	}

	args, err := DecodeArgs(e.Bytes()[HeaderSize:h.Size], testSig, e.Fds())
	if err != nil {
		t.Fatalf("DecodeArgs() = %v", err)
	}
	want := testArgs()
	for i := range want {
		if !reflect.DeepEqual(args[i], want[i]) {
			t.Errorf("arg %d = %+v; want %+v", i, args[i], want[i])
		}
	}
}

func TestParseHeaderIncomplete(t *testing.T) {
	e := NewEncoder()
	if err := EncodeMessage(e, 1, 0, nil, nil); err != nil {
		t.Fatalf("EncodeMessage() = %v", err)
	}
	for n := 0; n < HeaderSize; n++ {
		if _, ok, err := ParseHeader(e.Bytes()[:n]); ok || err != nil {
			t.Errorf("ParseHeader(%d bytes) = %v, %v; want false, nil", n, ok, err)
		}
	}
}

func TestParseHeaderMalformed(t *testing.T) {
	// Size below the header size.
	e := NewEncoder()
	e.WriteUint32(1)
	e.WriteUint32(4 << 16)
	if _, ok, err := ParseHeader(e.Bytes()); !ok || !errors.Is(err, ErrBadLength) {
		t.Errorf("ParseHeader(size=4) = %v, %v; want true, ErrBadLength", ok, err)
	}

	// Unaligned size.
	e.Reset()
	e.WriteUint32(1)
	e.WriteUint32(13 << 16)
	if _, ok, err := ParseHeader(e.Bytes()); !ok || !errors.Is(err, ErrUnalignedSize) {
		t.Errorf("ParseHeader(size=13) = %v, %v; want true, ErrUnalignedSize", ok, err)
	}
}

func TestEncodeMessageSignatureMismatch(t *testing.T) {
	e := NewEncoder()
	sig := Signature{{Kind: ArgUint}}

	// Wrong count.
	if err := EncodeMessage(e, 1, 0, nil, sig); !errors.Is(err, ErrSignature) {
		t.Errorf("EncodeMessage(no args) = %v; want ErrSignature", err)
	}

	// Wrong kind.
	if err := EncodeMessage(e, 1, 0, []Arg{IntArg(1)}, sig); !errors.Is(err, ErrSignature) {
		t.Errorf("EncodeMessage(int for uint) = %v; want ErrSignature", err)
	}

	// Null where not allowed.
	strict := Signature{{Kind: ArgString}}
	if err := EncodeMessage(e, 1, 0, []Arg{NullString()}, strict); !errors.Is(err, ErrSignature) {
		t.Errorf("EncodeMessage(null string) = %v; want ErrSignature", err)
	}
}

func TestEncodeMessageTooLarge(t *testing.T) {
	e := NewEncoder()
	sig := Signature{{Kind: ArgArray}}
	big := make([]byte, MaxMessageSize)
	if err := EncodeMessage(e, 1, 0, []Arg{ArrayArg(big)}, sig); !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("EncodeMessage(64k array) = %v; want ErrMessageTooLarge", err)
	}
}

func TestDecodeArgsErrors(t *testing.T) {
	// Null object where the signature forbids it.
	e := NewEncoder()
	e.WriteUint32(0)
	sig := Signature{{Kind: ArgObject}}
	if _, err := DecodeArgs(e.Bytes(), sig, nil); !errors.Is(err, ErrNullForbidden) {
		t.Errorf("DecodeArgs(null object) = %v; want ErrNullForbidden", err)
	}

	// Trailing bytes after the last argument.
	e.Reset()
	e.WriteUint32(5)
	e.WriteUint32(99)
	sig = Signature{{Kind: ArgUint}}
	if _, err := DecodeArgs(e.Bytes(), sig, nil); !errors.Is(err, ErrTrailingBytes) {
		t.Errorf("DecodeArgs(trailing bytes) = %v; want ErrTrailingBytes", err)
	}

	// Fd argument with an empty descriptor queue.
	sig = Signature{{Kind: ArgFd}}
	if _, err := DecodeArgs(nil, sig, nil); !errors.Is(err, ErrMissingFd) {
		t.Errorf("DecodeArgs(fd, no queue) = %v; want ErrMissingFd", err)
	}

	// String payload inconsistent with message length.
	e.Reset()
	e.WriteUint32(32) // declares more bytes than present
	sig = Signature{{Kind: ArgString}}
	if _, err := DecodeArgs(e.Bytes(), sig, nil); !errors.Is(err, ErrBadLength) {
		t.Errorf("DecodeArgs(bad string length) = %v; want ErrBadLength", err)
	}
}

func TestSignatureHelpers(t *testing.T) {
	if got := testSig.FdCount(); got != 1 {
		t.Errorf("FdCount() = %d; want 1", got)
	}
	if got := testSig.NewIDIndex(); got != 5 {
		t.Errorf("NewIDIndex() = %d; want 5", got)
	}
	if got := Signature(nil).NewIDIndex(); got != -1 {
		t.Errorf("NewIDIndex() on empty = %d; want -1", got)
	}
}
