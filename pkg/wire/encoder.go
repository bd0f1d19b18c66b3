package wire

import "encoding/binary"

// Encoder is a binary encoder that appends words to an internal buffer
// and collects file descriptors on the side. It is designed for encoding
// without allocations in the hot path: Reset and reuse it between
// messages.
type Encoder struct {
	buf []byte
	fds []int
}

// NewEncoder creates a new encoder with a default initial capacity.
func NewEncoder() *Encoder {
	return &Encoder{
		buf: make([]byte, 0, 256),
	}
}

// NewEncoderWithCap creates a new encoder with the specified initial
// byte capacity.
func NewEncoderWithCap(cap int) *Encoder {
	return &Encoder{
		buf: make([]byte, 0, cap),
	}
}

// Reset resets the encoder to empty state, reusing the underlying buffer.
// Collected descriptors are dropped, not closed.
func (e *Encoder) Reset() {
	e.buf = e.buf[:0]
	e.fds = e.fds[:0]
}

// Bytes returns the encoded bytes. The returned slice is valid until the
// next call to Reset or any Write method.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Fds returns the descriptors collected so far, in argument order.
func (e *Encoder) Fds() []int {
	return e.fds
}

// Len returns the number of bytes currently encoded.
func (e *Encoder) Len() int {
	return len(e.buf)
}

// WriteUint32 appends a uint32 in host byte order.
func (e *Encoder) WriteUint32(v uint32) {
	e.buf = binary.NativeEndian.AppendUint32(e.buf, v)
}

// WriteInt32 appends an int32 in host byte order.
func (e *Encoder) WriteInt32(v int32) {
	e.WriteUint32(uint32(v))
}

// WriteFixed appends a 24.8 fixed-point value.
func (e *Encoder) WriteFixed(v Fixed) {
	e.WriteUint32(uint32(v))
}

// WriteString appends a length-prefixed NUL-terminated string padded to
// the next word boundary. The count includes the terminator.
func (e *Encoder) WriteString(s string) {
	e.WriteUint32(uint32(len(s) + 1))
	e.buf = append(e.buf, s...)
	e.buf = append(e.buf, 0)
	e.pad(len(s) + 1)
}

// WriteNullString appends a null string: count 0, no bytes.
func (e *Encoder) WriteNullString() {
	e.WriteUint32(0)
}

// WriteArray appends a length-prefixed byte array padded to the next word
// boundary. No terminator.
func (e *Encoder) WriteArray(b []byte) {
	e.WriteUint32(uint32(len(b)))
	e.buf = append(e.buf, b...)
	e.pad(len(b))
}

// WriteFd collects a descriptor. It contributes no bytes to the stream.
func (e *Encoder) WriteFd(fd int) {
	e.fds = append(e.fds, fd)
}

// pad appends zero bytes so that a payload of n bytes ends on a word
// boundary.
func (e *Encoder) pad(n int) {
	for n%4 != 0 {
		e.buf = append(e.buf, 0)
		n++
	}
}
