// Package transport provides the duplex byte channels the protocol
// engine runs over. The primary implementation is a unix-domain stream
// socket that carries file descriptors as ancillary data; a WebSocket
// implementation exists for remote peers that cannot pass descriptors.
//
// All transports are non-blocking: reads and writes that cannot make
// progress return ErrWouldBlock instead of suspending, leaving the
// scheduling policy (poll, event loop integration) to the caller.
package transport

import "errors"

// Transport errors.
var (
	// ErrWouldBlock reports that no progress could be made right now.
	// It is a retry condition, not a failure.
	ErrWouldBlock = errors.New("transport: operation would block")

	// ErrClosed reports use of a closed transport.
	ErrClosed = errors.New("transport: closed")

	// ErrFdPassingUnsupported reports an attempt to transfer descriptors
	// over a transport with no ancillary channel.
	ErrFdPassingUnsupported = errors.New("transport: descriptor passing unsupported")
)

// Transport is a connected duplex byte stream with an optional ancillary
// channel for file descriptors.
//
// Descriptor ordering is tied to byte ordering: descriptors written with
// a chunk of bytes are readable no later than the last byte of that
// chunk, in write order. The engine relies on this to match descriptors
// to messages positionally.
type Transport interface {
	// ReadMsg reads available bytes into b and any descriptors into fds,
	// returning the counts. It returns ErrWouldBlock when nothing is
	// pending and io.EOF when the peer closed the connection.
	ReadMsg(b []byte, fds []int) (n, nfds int, err error)

	// WriteMsg writes bytes and descriptors. A short write is possible;
	// the descriptors are transferred together with the first byte
	// written, so on a short write with n > 0 the descriptors are gone.
	WriteMsg(b []byte, fds []int) (n int, err error)

	// Close releases the underlying channel. Buffered data is discarded.
	Close() error
}
