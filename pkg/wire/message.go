package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Message-level errors.
var (
	ErrMessageTooLarge = errors.New("wire: message exceeds 16-bit size field")
	ErrUnalignedSize   = errors.New("wire: message size not word-aligned")
	ErrTooManyFds      = errors.New("wire: too many descriptors in one message")
	ErrSignature       = errors.New("wire: arguments do not match signature")
)

// Message is one decoded or to-be-encoded protocol message.
type Message struct {
	// Sender is the ID of the object the message targets.
	Sender uint32

	// Opcode indexes the message within the interface's request or event
	// list, depending on direction.
	Opcode uint16

	// Args is the argument list, typed per the resolved signature.
	Args []Arg
}

// Header is a parsed message header.
type Header struct {
	Sender uint32
	Opcode uint16
	Size   int // total message size in bytes, header included
}

// ParseHeader reads a message header. The second return is false when
// fewer than HeaderSize bytes are available, which is the incomplete-
// frame condition, not an error.
func ParseHeader(b []byte) (Header, bool, error) {
	if len(b) < HeaderSize {
		return Header{}, false, nil
	}
	d := NewDecoder(b, nil)
	sender, _ := d.ReadUint32()
	word, _ := d.ReadUint32()
	h := Header{
		Sender: sender,
		Opcode: uint16(word & 0xFFFF),
		Size:   int(word >> 16),
	}
	if h.Size < HeaderSize {
		return h, true, fmt.Errorf("%w: size %d below header size", ErrBadLength, h.Size)
	}
	if h.Size%4 != 0 {
		return h, true, ErrUnalignedSize
	}
	return h, true, nil
}

// EncodeMessage appends one complete message, header included, to the
// encoder, after validating args against the signature. NewID and Object
// argument IDs must already be resolved by the caller.
func EncodeMessage(e *Encoder, sender uint32, opcode uint16, args []Arg, sig Signature) error {
	if i, ok := sig.Check(args); !ok {
		return fmt.Errorf("%w: argument %d", ErrSignature, i)
	}
	if sig.FdCount() > MaxFdsPerMessage {
		return ErrTooManyFds
	}

	start := e.Len()
	e.WriteUint32(sender)
	e.WriteUint32(0) // opcode/size word, patched below

	for _, a := range args {
		switch a.Kind {
		case ArgInt:
			e.WriteInt32(a.I)
		case ArgUint:
			e.WriteUint32(a.U)
		case ArgFixed:
			e.WriteFixed(a.F)
		case ArgString:
			if a.Nil {
				e.WriteNullString()
			} else {
				e.WriteString(a.S)
			}
		case ArgObject, ArgNewID:
			e.WriteUint32(a.U)
		case ArgArray:
			e.WriteArray(a.A)
		case ArgFd:
			e.WriteFd(a.Fd)
		}
	}

	size := e.Len() - start
	if size > MaxMessageSize {
		return ErrMessageTooLarge
	}
	patchSizeOpcode(e.buf[start:], uint16(size), opcode)
	return nil
}

// patchSizeOpcode rewrites the second header word in place.
func patchSizeOpcode(msg []byte, size, opcode uint16) {
	binary.NativeEndian.PutUint32(msg[4:], uint32(size)<<16|uint32(opcode))
}

// DecodeArgs decodes the argument payload of one framed message against
// its signature, consuming descriptors from fds in argument order. The
// payload excludes the header. Returned strings are copied; arrays alias
// the payload.
//
// Any returned error is connection-fatal.
func DecodeArgs(payload []byte, sig Signature, fds []int) ([]Arg, error) {
	d := NewDecoder(payload, fds)
	args := make([]Arg, len(sig))
	for i, spec := range sig {
		switch spec.Kind {
		case ArgInt:
			v, err := d.ReadInt32()
			if err != nil {
				return nil, err
			}
			args[i] = IntArg(v)
		case ArgUint:
			v, err := d.ReadUint32()
			if err != nil {
				return nil, err
			}
			args[i] = UintArg(v)
		case ArgFixed:
			v, err := d.ReadFixed()
			if err != nil {
				return nil, err
			}
			args[i] = FixedArg(v)
		case ArgString:
			s, isNil, err := d.ReadString()
			if err != nil {
				return nil, err
			}
			if isNil {
				if !spec.Nullable {
					return nil, ErrNullForbidden
				}
				args[i] = NullString()
			} else {
				args[i] = StringArg(s)
			}
		case ArgObject:
			v, err := d.ReadUint32()
			if err != nil {
				return nil, err
			}
			if v == 0 && !spec.Nullable {
				return nil, ErrNullForbidden
			}
			args[i] = ObjectArg(v)
		case ArgNewID:
			v, err := d.ReadUint32()
			if err != nil {
				return nil, err
			}
			if v == 0 && !spec.Nullable {
				return nil, ErrNullForbidden
			}
			args[i] = NewIDArg(v)
		case ArgArray:
			b, err := d.ReadArray()
			if err != nil {
				return nil, err
			}
			args[i] = ArrayArg(b)
		case ArgFd:
			fd, err := d.ReadFd()
			if err != nil {
				return nil, err
			}
			args[i] = FdArg(fd)
		default:
			return nil, fmt.Errorf("%w: unknown argument kind %d", ErrSignature, spec.Kind)
		}
	}
	if d.Remaining() != 0 {
		return nil, ErrTrailingBytes
	}
	return args, nil
}
