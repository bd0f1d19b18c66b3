package backend

import (
	"errors"
	"fmt"
)

// ErrorCode classifies fatal protocol errors. Any of them leaves the
// connection in a terminal state: the wire has no resynchronization
// point, so corruption can only be answered by closing.
type ErrorCode uint16

const (
	CodeUnknown            ErrorCode = 0x0000 // unclassified
	CodeMalformed          ErrorCode = 0x0001 // inconsistent frame or argument lengths
	CodeUnknownObject      ErrorCode = 0x0002 // message targets a dead or never-allocated ID
	CodeInvalidOpcode      ErrorCode = 0x0003 // opcode outside the interface's declared range
	CodeInvalidArguments   ErrorCode = 0x0004 // payload does not decode against the signature
	CodeIDInUse            ErrorCode = 0x0005 // peer created an object on an occupied ID
	CodeVersionMismatch    ErrorCode = 0x0006 // opcode not valid at the negotiated version
	CodeInterfaceMismatch  ErrorCode = 0x0007 // object argument has the wrong interface
	CodeDescriptorMismatch ErrorCode = 0x0008 // descriptor queue out of step with signatures
	CodeDisplayError       ErrorCode = 0x0009 // peer reported a protocol error
)

// String returns the string representation of the error code.
func (c ErrorCode) String() string {
	switch c {
	case CodeMalformed:
		return "Malformed"
	case CodeUnknownObject:
		return "UnknownObject"
	case CodeInvalidOpcode:
		return "InvalidOpcode"
	case CodeInvalidArguments:
		return "InvalidArguments"
	case CodeIDInUse:
		return "IDInUse"
	case CodeVersionMismatch:
		return "VersionMismatch"
	case CodeInterfaceMismatch:
		return "InterfaceMismatch"
	case CodeDescriptorMismatch:
		return "DescriptorMismatch"
	case CodeDisplayError:
		return "DisplayError"
	default:
		return "Unknown"
	}
}

// ProtocolError is a fatal protocol-level failure, either detected
// locally while decoding or reported by the peer through the display's
// error event.
type ProtocolError struct {
	// Code classifies the failure.
	Code ErrorCode

	// ObjectID is the object the failure concerns, 0 if unknown.
	ObjectID uint32

	// Interface names the object's interface, "" if unknown.
	Interface string

	// PeerCode is the protocol-defined error code carried by a
	// peer-reported error event; 0 for locally detected errors.
	PeerCode uint32

	// Message is a human-readable description.
	Message string

	// Err is the underlying decode error, if any.
	Err error
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	if e.ObjectID != 0 {
		return fmt.Sprintf("backend: protocol error %s on %s@%d: %s", e.Code, e.Interface, e.ObjectID, e.Message)
	}
	return fmt.Sprintf("backend: protocol error %s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying decode error.
func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// Caller-misuse errors. These reflect local programming errors, never
// peer misbehavior, and are returned without touching the connection
// state: the wire is still healthy.
var (
	// ErrReentrantDispatch reports a dispatch call made from inside a
	// handler running on the same connection.
	ErrReentrantDispatch = errors.New("backend: dispatch re-entered from a handler")

	// ErrDestroyedObject reports use of an object ID whose object was
	// destroyed, or whose slot has since been reused by another object.
	ErrDestroyedObject = errors.New("backend: object is destroyed or ID was reused")

	// ErrInvalidOpcode reports a send with an opcode the interface does
	// not declare at the object's version.
	ErrInvalidOpcode = errors.New("backend: opcode not valid for interface and version")

	// ErrConstructorMisuse reports Send on a message that creates an
	// object, or SendConstructor on one that does not, or a generic
	// constructor without an explicit interface.
	ErrConstructorMisuse = errors.New("backend: constructor misuse")

	// ErrClosed reports use of a closed backend.
	ErrClosed = errors.New("backend: connection closed")
)
