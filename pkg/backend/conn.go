package backend

import (
	"errors"
	"fmt"
	"io"

	"github.com/waywire-dev/waywire/pkg/transport"
)

// conn is the buffered half of a connection: it owns the read and write
// byte buffers and the two descriptor FIFOs, and moves data between them
// and the transport. Bytes and descriptors are independent queues; their
// only coupling is the consumption contract: descriptors are taken in
// the order messages carrying Fd arguments are decoded.
type conn struct {
	t transport.Transport

	rbuf  []byte // unconsumed inbound bytes
	infds []int  // inbound descriptor FIFO

	wbuf   []byte // pending outbound bytes
	outfds []int  // outbound descriptor FIFO

	chunk   []byte // scratch for transport reads
	fdchunk []int  // scratch for ancillary reads
	cfg     Config
}

func newConn(t transport.Transport, cfg Config) *conn {
	return &conn{
		t:       t,
		chunk:   make([]byte, cfg.ReadChunkSize),
		fdchunk: make([]int, 32),
		cfg:     cfg,
	}
}

// enqueue appends one encoded message and its descriptors to the write
// buffers. Nothing is transmitted until flush.
func (c *conn) enqueue(msg []byte, fds []int) {
	c.wbuf = append(c.wbuf, msg...)
	c.outfds = append(c.outfds, fds...)
}

// pendingWrite reports whether unflushed bytes remain.
func (c *conn) pendingWrite() bool {
	return len(c.wbuf) > 0
}

// flush drains the write buffer to the transport. On a would-block it
// returns transport.ErrWouldBlock with the rest of the buffer intact, so
// it is safe to call repeatedly until it returns nil.
func (c *conn) flush() error {
	for len(c.wbuf) > 0 {
		n, err := c.t.WriteMsg(c.wbuf, c.outfds)
		if n > 0 {
			// Ancillary data rides with the first byte written.
			c.outfds = c.outfds[:0]
			c.wbuf = c.wbuf[:copy(c.wbuf, c.wbuf[n:])]
		}
		if err != nil {
			if errors.Is(err, transport.ErrWouldBlock) {
				return transport.ErrWouldBlock
			}
			return fmt.Errorf("backend: flush: %w", err)
		}
	}
	return nil
}

// fill reads whatever the transport has pending into the read buffers.
// It returns the number of bytes added; a would-block simply ends the
// fill. io.EOF propagates once all buffered bytes have been returned to
// the framing layer.
func (c *conn) fill() (int, error) {
	total := 0
	for {
		fdbuf := c.fdchunk
		if space := c.cfg.MaxFdsInFlight - len(c.infds); space < len(fdbuf) {
			if space < 0 {
				space = 0
			}
			fdbuf = fdbuf[:space]
		}
		n, nfds, err := c.t.ReadMsg(c.chunk, fdbuf)
		if n > 0 {
			c.rbuf = append(c.rbuf, c.chunk[:n]...)
			total += n
		}
		if nfds > 0 {
			c.infds = append(c.infds, fdbuf[:nfds]...)
		}
		if err != nil {
			if errors.Is(err, transport.ErrWouldBlock) {
				return total, nil
			}
			if err == io.EOF {
				return total, io.EOF
			}
			return total, fmt.Errorf("backend: read: %w", err)
		}
		if len(c.rbuf) > c.cfg.MaxReadBuffer {
			return total, &ProtocolError{
				Code:    CodeMalformed,
				Message: fmt.Sprintf("read buffer exceeded %d bytes without framing a message", c.cfg.MaxReadBuffer),
			}
		}
	}
}

// buffered returns the unconsumed inbound bytes.
func (c *conn) buffered() []byte {
	return c.rbuf
}

// consume drops n framed bytes from the front of the read buffer.
func (c *conn) consume(n int) {
	c.rbuf = c.rbuf[:copy(c.rbuf, c.rbuf[n:])]
}

// popFds removes and returns the first n inbound descriptors.
func (c *conn) popFds(n int) []int {
	fds := make([]int, n)
	copy(fds, c.infds[:n])
	c.infds = c.infds[:copy(c.infds, c.infds[n:])]
	return fds
}

// discard drops all buffered state. Descriptors still queued are closed
// by the caller before this.
func (c *conn) discard() {
	c.rbuf = nil
	c.wbuf = nil
	c.infds = nil
	c.outfds = nil
}
