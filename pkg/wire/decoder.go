package wire

import (
	"encoding/binary"
	"errors"
)

// Decoding errors. Every one of them is message-fatal: the byte stream
// has no resynchronization point, so the caller must treat the connection
// as corrupt.
var (
	ErrTruncated     = errors.New("wire: argument data exceeds message length")
	ErrBadLength     = errors.New("wire: length field overflows message")
	ErrBadTerminator = errors.New("wire: string is not NUL-terminated")
	ErrNullForbidden = errors.New("wire: null value for non-nullable argument")
	ErrTrailingBytes = errors.New("wire: message longer than its signature")
	ErrMissingFd     = errors.New("wire: descriptor queue exhausted")
)

// Decoder reads argument values from a borrowed message payload and a
// borrowed descriptor queue. It never copies the payload; returned byte
// slices alias the input.
type Decoder struct {
	buf   []byte
	pos   int
	fds   []int
	fdPos int
}

// NewDecoder creates a decoder over one message's payload (header
// excluded) and the descriptors queued for it.
func NewDecoder(buf []byte, fds []int) *Decoder {
	return &Decoder{buf: buf, fds: fds}
}

// Remaining returns the number of unread payload bytes.
func (d *Decoder) Remaining() int {
	return len(d.buf) - d.pos
}

// ReadUint32 reads a uint32 in host byte order.
func (d *Decoder) ReadUint32() (uint32, error) {
	if d.pos+4 > len(d.buf) {
		return 0, ErrTruncated
	}
	v := binary.NativeEndian.Uint32(d.buf[d.pos:])
	d.pos += 4
	return v, nil
}

// ReadInt32 reads an int32 in host byte order.
func (d *Decoder) ReadInt32() (int32, error) {
	v, err := d.ReadUint32()
	return int32(v), err
}

// ReadFixed reads a 24.8 fixed-point value.
func (d *Decoder) ReadFixed() (Fixed, error) {
	v, err := d.ReadUint32()
	return Fixed(v), err
}

// ReadString reads a length-prefixed NUL-terminated string. The second
// return is true for a null string.
func (d *Decoder) ReadString() (string, bool, error) {
	count, err := d.ReadUint32()
	if err != nil {
		return "", false, err
	}
	if count == 0 {
		return "", true, nil
	}
	n := int(count)
	padded := pad4(n)
	if n < 0 || padded < n || d.pos+padded > len(d.buf) {
		return "", false, ErrBadLength
	}
	if d.buf[d.pos+n-1] != 0 {
		return "", false, ErrBadTerminator
	}
	s := string(d.buf[d.pos : d.pos+n-1])
	d.pos += padded
	return s, false, nil
}

// ReadArray reads a length-prefixed byte array. The returned slice
// aliases the decoder's buffer.
func (d *Decoder) ReadArray() ([]byte, error) {
	count, err := d.ReadUint32()
	if err != nil {
		return nil, err
	}
	n := int(count)
	padded := pad4(n)
	if n < 0 || padded < n || d.pos+padded > len(d.buf) {
		return nil, ErrBadLength
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += padded
	return b, nil
}

// ReadFd consumes the next descriptor from the queue.
func (d *Decoder) ReadFd() (int, error) {
	if d.fdPos >= len(d.fds) {
		return -1, ErrMissingFd
	}
	fd := d.fds[d.fdPos]
	d.fdPos++
	return fd, nil
}

// FdsConsumed returns how many descriptors were read so far.
func (d *Decoder) FdsConsumed() int {
	return d.fdPos
}

// pad4 rounds n up to the next multiple of 4. Wraps on overflow, which
// the callers' padded < n checks turn into ErrBadLength.
func pad4(n int) int {
	return (n + 3) &^ 3
}
