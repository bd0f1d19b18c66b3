package transport

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// maxFdsPerRead bounds the descriptors accepted by one recvmsg. The
// kernel caps SCM_RIGHTS arrays at 253 per message; 28 matches the
// per-message limit of peer implementations with room in one cmsg.
const maxFdsPerRead = 28

// Unix is a Transport over a connected unix-domain stream socket in
// non-blocking mode. Descriptors travel as SCM_RIGHTS control messages.
type Unix struct {
	fd     int
	oob    []byte
	closed bool
}

// NewUnix wraps an already-connected unix stream socket. The descriptor
// is switched to non-blocking mode and ownership transfers to the
// returned transport.
func NewUnix(fd int) (*Unix, error) {
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, fmt.Errorf("transport: set nonblock: %w", err)
	}
	unix.CloseOnExec(fd)
	return &Unix{
		fd:  fd,
		oob: make([]byte, unix.CmsgSpace(maxFdsPerRead*4)),
	}, nil
}

// Dial connects to the unix socket at path.
func Dial(path string) (*Unix, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("transport: socket: %w", err)
	}
	err = unix.Connect(fd, &unix.SockaddrUnix{Name: path})
	for err == unix.EINTR {
		err = unix.Connect(fd, &unix.SockaddrUnix{Name: path})
	}
	if err != nil && err != unix.EISCONN {
		unix.Close(fd)
		return nil, fmt.Errorf("transport: connect %s: %w", path, err)
	}
	return NewUnix(fd)
}

// DialDisplay connects to the display socket named by the conventional
// environment: $WAYLAND_SOCKET (an inherited descriptor), or
// $XDG_RUNTIME_DIR/$WAYLAND_DISPLAY.
func DialDisplay() (*Unix, error) {
	if s := os.Getenv("WAYLAND_SOCKET"); s != "" {
		var fd int
		if _, err := fmt.Sscanf(s, "%d", &fd); err != nil {
			return nil, fmt.Errorf("transport: WAYLAND_SOCKET contains %q: %w", s, err)
		}
		os.Unsetenv("WAYLAND_SOCKET")
		return NewUnix(fd)
	}
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		return nil, fmt.Errorf("transport: XDG_RUNTIME_DIR not set")
	}
	display := os.Getenv("WAYLAND_DISPLAY")
	if display == "" {
		display = "wayland-0"
	}
	return Dial(filepath.Join(dir, display))
}

// Socketpair returns two connected Unix transports. Useful for tests and
// for compositors spawning clients with an inherited socket.
func Socketpair() (*Unix, *Unix, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("transport: socketpair: %w", err)
	}
	a, err := NewUnix(fds[0])
	if err != nil {
		unix.Close(fds[0])
		unix.Close(fds[1])
		return nil, nil, err
	}
	b, err := NewUnix(fds[1])
	if err != nil {
		a.Close()
		unix.Close(fds[1])
		return nil, nil, err
	}
	return a, b, nil
}

// Fd returns the socket descriptor, for poll integration.
func (u *Unix) Fd() int {
	return u.fd
}

// ReadMsg reads bytes and descriptors. Received descriptors get
// FD_CLOEXEC set atomically.
func (u *Unix) ReadMsg(b []byte, fds []int) (int, int, error) {
	if u.closed {
		return 0, 0, ErrClosed
	}
	n, oobn, _, _, err := unix.Recvmsg(u.fd, b, u.oob, unix.MSG_DONTWAIT|unix.MSG_CMSG_CLOEXEC)
	for err == unix.EINTR {
		n, oobn, _, _, err = unix.Recvmsg(u.fd, b, u.oob, unix.MSG_DONTWAIT|unix.MSG_CMSG_CLOEXEC)
	}
	if err == unix.EAGAIN {
		return 0, 0, ErrWouldBlock
	}
	if err != nil {
		return 0, 0, fmt.Errorf("transport: recvmsg: %w", err)
	}
	if n == 0 && oobn == 0 {
		return 0, 0, io.EOF
	}

	nfds := 0
	if oobn > 0 {
		msgs, err := unix.ParseSocketControlMessage(u.oob[:oobn])
		if err != nil {
			return n, 0, fmt.Errorf("transport: parse control message: %w", err)
		}
		for i := range msgs {
			got, err := unix.ParseUnixRights(&msgs[i])
			if err != nil {
				continue // not SCM_RIGHTS
			}
			for _, fd := range got {
				if nfds < len(fds) {
					fds[nfds] = fd
					nfds++
				} else {
					// No room queued for it; close rather than leak.
					unix.Close(fd)
				}
			}
		}
	}
	return n, nfds, nil
}

// WriteMsg writes bytes, attaching the descriptors to the first byte as
// SCM_RIGHTS. The descriptors are not closed; the caller keeps ownership
// of its copies.
func (u *Unix) WriteMsg(b []byte, fds []int) (int, error) {
	if u.closed {
		return 0, ErrClosed
	}
	var oob []byte
	if len(fds) > 0 {
		oob = unix.UnixRights(fds...)
	}
	n, err := unix.SendmsgN(u.fd, b, oob, nil, unix.MSG_DONTWAIT|unix.MSG_NOSIGNAL)
	for err == unix.EINTR {
		n, err = unix.SendmsgN(u.fd, b, oob, nil, unix.MSG_DONTWAIT|unix.MSG_NOSIGNAL)
	}
	if err == unix.EAGAIN {
		return 0, ErrWouldBlock
	}
	if err != nil {
		return 0, fmt.Errorf("transport: sendmsg: %w", err)
	}
	return n, nil
}

// Close closes the socket.
func (u *Unix) Close() error {
	if u.closed {
		return nil
	}
	u.closed = true
	return unix.Close(u.fd)
}
