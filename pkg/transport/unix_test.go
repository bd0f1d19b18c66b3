package transport

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"golang.org/x/sys/unix"
)

func TestUnixRoundTrip(t *testing.T) {
	a, b, err := Socketpair()
	if err != nil {
		t.Fatalf("Socketpair() = %v", err)
	}
	defer a.Close()
	defer b.Close()

	msg := []byte("hello wire")
	n, err := a.WriteMsg(msg, nil)
	if err != nil || n != len(msg) {
		t.Fatalf("WriteMsg() = %d, %v; want %d, nil", n, err, len(msg))
	}

	buf := make([]byte, 64)
	fds := make([]int, 4)
	n, nfds, err := b.ReadMsg(buf, fds)
	if err != nil {
		t.Fatalf("ReadMsg() = %v", err)
	}
	if !bytes.Equal(buf[:n], msg) || nfds != 0 {
		t.Errorf("ReadMsg() = %q, %d fds; want %q, 0 fds", buf[:n], nfds, msg)
	}
}

func TestUnixWouldBlock(t *testing.T) {
	a, b, err := Socketpair()
	if err != nil {
		t.Fatalf("Socketpair() = %v", err)
	}
	defer a.Close()
	defer b.Close()

	buf := make([]byte, 16)
	if _, _, err := a.ReadMsg(buf, nil); !errors.Is(err, ErrWouldBlock) {
		t.Errorf("ReadMsg on empty socket = %v; want ErrWouldBlock", err)
	}
}

func TestUnixFdPassing(t *testing.T) {
	a, b, err := Socketpair()
	if err != nil {
		t.Fatalf("Socketpair() = %v", err)
	}
	defer a.Close()
	defer b.Close()

	// Send one end of a pipe across the socket.
	var p [2]int
	if err := unix.Pipe2(p[:], unix.O_CLOEXEC); err != nil {
		t.Fatalf("Pipe2() = %v", err)
	}
	defer unix.Close(p[0])
	defer unix.Close(p[1])

	if _, err := a.WriteMsg([]byte{1, 2, 3, 4}, []int{p[1]}); err != nil {
		t.Fatalf("WriteMsg(fd) = %v", err)
	}

	buf := make([]byte, 16)
	fds := make([]int, 4)
	n, nfds, err := b.ReadMsg(buf, fds)
	if err != nil {
		t.Fatalf("ReadMsg() = %v", err)
	}
	if n != 4 || nfds != 1 {
		t.Fatalf("ReadMsg() = %d bytes, %d fds; want 4, 1", n, nfds)
	}
	defer unix.Close(fds[0])

	// Verify the received descriptor is the pipe's write end.
	if _, err := unix.Write(fds[0], []byte("ping")); err != nil {
		t.Fatalf("write through received fd = %v", err)
	}
	got := make([]byte, 4)
	if _, err := unix.Read(p[0], got); err != nil || !bytes.Equal(got, []byte("ping")) {
		t.Errorf("read from pipe = %q, %v; want \"ping\", nil", got, err)
	}
}

func TestUnixEOF(t *testing.T) {
	a, b, err := Socketpair()
	if err != nil {
		t.Fatalf("Socketpair() = %v", err)
	}
	defer b.Close()

	a.Close()
	buf := make([]byte, 16)
	if _, _, err := b.ReadMsg(buf, nil); err != io.EOF {
		t.Errorf("ReadMsg after peer close = %v; want io.EOF", err)
	}
}

func TestUnixClosed(t *testing.T) {
	a, b, err := Socketpair()
	if err != nil {
		t.Fatalf("Socketpair() = %v", err)
	}
	defer b.Close()

	a.Close()
	if _, err := a.WriteMsg([]byte{1}, nil); !errors.Is(err, ErrClosed) {
		t.Errorf("WriteMsg on closed transport = %v; want ErrClosed", err)
	}
	if err := a.Close(); err != nil {
		t.Errorf("second Close() = %v; want nil", err)
	}
}
