package transport

import (
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

// WebSocket is a Transport over a WebSocket connection, for peers
// reached through a proxy rather than a local socket. It carries the
// byte stream as binary messages and has no ancillary channel: any
// protocol exchanged over it must be free of Fd arguments.
type WebSocket struct {
	conn     *websocket.Conn
	incoming chan []byte
	rem      []byte

	mu      sync.Mutex
	readErr error
	closed  bool
}

// NewWebSocket wraps an established WebSocket connection. A reader
// goroutine pumps incoming binary messages so that ReadMsg can stay
// non-blocking.
func NewWebSocket(conn *websocket.Conn) *WebSocket {
	w := &WebSocket{
		conn:     conn,
		incoming: make(chan []byte, 16),
	}
	go w.readLoop()
	return w
}

func (w *WebSocket) readLoop() {
	defer close(w.incoming)
	for {
		mt, msg, err := w.conn.ReadMessage()
		if err != nil {
			w.mu.Lock()
			w.readErr = err
			w.mu.Unlock()
			return
		}
		if mt != websocket.BinaryMessage {
			continue
		}
		w.incoming <- msg
	}
}

// ReadMsg copies pending bytes into b. It never yields descriptors.
func (w *WebSocket) ReadMsg(b []byte, fds []int) (int, int, error) {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return 0, 0, ErrClosed
	}

	n := 0
	for n < len(b) {
		if len(w.rem) == 0 {
			select {
			case msg, ok := <-w.incoming:
				if !ok {
					if n > 0 {
						return n, 0, nil
					}
					w.mu.Lock()
					err := w.readErr
					w.mu.Unlock()
					return 0, 0, fmt.Errorf("transport: websocket read: %w", err)
				}
				w.rem = msg
			default:
				if n > 0 {
					return n, 0, nil
				}
				return 0, 0, ErrWouldBlock
			}
		}
		c := copy(b[n:], w.rem)
		w.rem = w.rem[c:]
		n += c
	}
	return n, 0, nil
}

// WriteMsg writes bytes as one binary message. Descriptors are rejected.
func (w *WebSocket) WriteMsg(b []byte, fds []int) (int, error) {
	if len(fds) > 0 {
		return 0, ErrFdPassingUnsupported
	}
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return 0, ErrClosed
	}
	if err := w.conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
		return 0, fmt.Errorf("transport: websocket write: %w", err)
	}
	return len(b), nil
}

// Close closes the connection.
func (w *WebSocket) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()
	return w.conn.Close()
}
