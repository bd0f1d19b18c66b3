// Package wire implements the binary wire format for the protocol.
//
// Every message is addressed to an object and carries an opcode that
// selects one request or event of the object's interface. The argument
// payload is described by a Signature, an ordered list of argument kinds
// taken from a small closed set.
//
// # Wire Format
//
// All messages start with an 8-byte header in host byte order:
//
//	┌──────────────────────┬──────────────┬──────────────────────┐
//	│ Object ID            │ Opcode       │ Message Size         │
//	│ (4 bytes)            │ (2 bytes)    │ (2 bytes)            │
//	└──────────────────────┴──────────────┴──────────────────────┘
//
// The opcode and size share one 32-bit word: the opcode occupies the low
// 16 bits and the total message size in bytes, header included, occupies
// the high 16 bits. The size is always a multiple of 4.
//
// # Argument Encoding
//
//   - Int, Uint: one 32-bit word.
//   - Fixed: one 32-bit word holding a signed 24.8 fixed-point value.
//   - String: a 32-bit byte count that includes the mandatory NUL
//     terminator, the bytes, the terminator, then zero padding to the
//     next word boundary. A null string encodes as count 0 with no bytes.
//   - Array: a 32-bit byte count, the raw bytes, then padding. No
//     terminator.
//   - Object, NewID: one 32-bit word holding the object ID, 0 for null.
//   - Fd: no bytes at all. Descriptors travel on the transport's
//     ancillary channel and are matched to messages positionally.
//
// Encoding is zero-reflection and allocation-light: an Encoder appends to
// a reusable buffer and a Decoder reads from a borrowed slice.
package wire
