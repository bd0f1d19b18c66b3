package transport

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// wsPair dials a test server and returns both ends as transports.
func wsPair(t *testing.T) (*WebSocket, *WebSocket) {
	t.Helper()

	upgrader := websocket.Upgrader{}
	serverSide := make(chan *WebSocket, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		serverSide <- NewWebSocket(conn)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	client := NewWebSocket(conn)
	t.Cleanup(func() { client.Close() })

	server := <-serverSide
	t.Cleanup(func() { server.Close() })
	return client, server
}

func TestWebSocketRoundTrip(t *testing.T) {
	client, server := wsPair(t)

	msg := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	if n, err := client.WriteMsg(msg, nil); err != nil || n != len(msg) {
		t.Fatalf("WriteMsg() = %d, %v; want %d, nil", n, err, len(msg))
	}

	// The reader goroutine needs a moment to pump the message.
	buf := make([]byte, 16)
	deadline := time.Now().Add(2 * time.Second)
	for {
		n, nfds, err := server.ReadMsg(buf, nil)
		if errors.Is(err, ErrWouldBlock) {
			if time.Now().After(deadline) {
				t.Fatal("timed out waiting for message")
			}
			time.Sleep(time.Millisecond)
			continue
		}
		if err != nil {
			t.Fatalf("ReadMsg() = %v", err)
		}
		if !bytes.Equal(buf[:n], msg) || nfds != 0 {
			t.Errorf("ReadMsg() = %v, %d fds; want %v, 0 fds", buf[:n], nfds, msg)
		}
		break
	}
}

func TestWebSocketRejectsFds(t *testing.T) {
	client, _ := wsPair(t)

	if _, err := client.WriteMsg([]byte{1}, []int{5}); !errors.Is(err, ErrFdPassingUnsupported) {
		t.Errorf("WriteMsg with fds = %v; want ErrFdPassingUnsupported", err)
	}
}

func TestWebSocketWouldBlock(t *testing.T) {
	client, _ := wsPair(t)

	buf := make([]byte, 16)
	if _, _, err := client.ReadMsg(buf, nil); !errors.Is(err, ErrWouldBlock) {
		t.Errorf("ReadMsg on idle socket = %v; want ErrWouldBlock", err)
	}
}
