package wire

// ArgKind identifies the kind of one message argument.
type ArgKind uint8

const (
	ArgInt    ArgKind = 0x01 // signed 32-bit integer
	ArgUint   ArgKind = 0x02 // unsigned 32-bit integer
	ArgFixed  ArgKind = 0x03 // signed 24.8 fixed point
	ArgString ArgKind = 0x04 // NUL-terminated string
	ArgObject ArgKind = 0x05 // reference to an existing object
	ArgNewID  ArgKind = 0x06 // ID of an object created by this message
	ArgArray  ArgKind = 0x07 // raw byte array
	ArgFd     ArgKind = 0x08 // file descriptor (ancillary channel)
)

// String returns the string representation of the argument kind.
func (k ArgKind) String() string {
	switch k {
	case ArgInt:
		return "Int"
	case ArgUint:
		return "Uint"
	case ArgFixed:
		return "Fixed"
	case ArgString:
		return "String"
	case ArgObject:
		return "Object"
	case ArgNewID:
		return "NewID"
	case ArgArray:
		return "Array"
	case ArgFd:
		return "Fd"
	default:
		return "Unknown"
	}
}

// ArgSpec describes one argument slot of a message signature.
type ArgSpec struct {
	Kind      ArgKind
	Nullable  bool   // null string / zero object ID allowed
	Interface string // expected interface for Object args, "" matches any
}

// Signature is the ordered argument layout of one request or event.
type Signature []ArgSpec

// FdCount returns the number of Fd-kind arguments in the signature.
func (s Signature) FdCount() int {
	n := 0
	for _, a := range s {
		if a.Kind == ArgFd {
			n++
		}
	}
	return n
}

// NewIDIndex returns the index of the NewID argument, or -1 if the
// signature creates no object.
func (s Signature) NewIDIndex() int {
	for i, a := range s {
		if a.Kind == ArgNewID {
			return i
		}
	}
	return -1
}

// Arg is one argument value. Kind selects which field carries the value;
// the zero value of the other fields is ignored.
type Arg struct {
	Kind ArgKind

	I   int32  // ArgInt
	U   uint32 // ArgUint, ArgObject, ArgNewID (0 means null)
	F   Fixed  // ArgFixed
	S   string // ArgString
	A   []byte // ArgArray
	Fd  int    // ArgFd
	Nil bool   // ArgString only: distinguishes null from empty
}

// IntArg returns an Int argument.
func IntArg(v int32) Arg { return Arg{Kind: ArgInt, I: v} }

// UintArg returns a Uint argument.
func UintArg(v uint32) Arg { return Arg{Kind: ArgUint, U: v} }

// FixedArg returns a Fixed argument.
func FixedArg(v Fixed) Arg { return Arg{Kind: ArgFixed, F: v} }

// StringArg returns a non-null String argument.
func StringArg(s string) Arg { return Arg{Kind: ArgString, S: s} }

// NullString returns a null String argument.
func NullString() Arg { return Arg{Kind: ArgString, Nil: true} }

// ObjectArg returns an Object argument. ID 0 is the null reference.
func ObjectArg(id uint32) Arg { return Arg{Kind: ArgObject, U: id} }

// NewIDArg returns a NewID argument. When sending, the ID is filled in by
// the backend; callers pass 0.
func NewIDArg(id uint32) Arg { return Arg{Kind: ArgNewID, U: id} }

// ArrayArg returns an Array argument. The slice is not copied.
func ArrayArg(b []byte) Arg { return Arg{Kind: ArgArray, A: b} }

// FdArg returns an Fd argument.
func FdArg(fd int) Arg { return Arg{Kind: ArgFd, Fd: fd} }

// Check verifies that args matches the signature in count, kinds and
// nullability. It reports the first offending index, or -1.
func (s Signature) Check(args []Arg) (int, bool) {
	if len(args) != len(s) {
		return len(s), false
	}
	for i, spec := range s {
		a := args[i]
		if a.Kind != spec.Kind {
			return i, false
		}
		if !spec.Nullable {
			switch spec.Kind {
			case ArgString:
				if a.Nil {
					return i, false
				}
			case ArgObject:
				if a.U == 0 {
					return i, false
				}
			}
		}
	}
	return -1, true
}
