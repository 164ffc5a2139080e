package source

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

// tcpServe starts a listener that writes payload to every connection and
// closes it.
func tcpServe(t *testing.T, payload []byte) net.Addr {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Write(payload)
			conn.Close()
		}
	}()
	return ln.Addr()
}

func TestDialTCP(t *testing.T) {
	addr := tcpServe(t, []byte("ping"))

	for _, target := range []string{"tcp://" + addr.String(), addr.String()} {
		t.Run(target, func(t *testing.T) {
			src, closer, err := Dial(context.Background(), target, 0)
			if err != nil {
				t.Fatalf("Dial: %v", err)
			}
			defer closer.Close()

			p := make([]byte, 8)
			if n := src.Load(p); n != 4 || string(p[:4]) != "ping" {
				t.Fatalf("Load = %d %q, want 4 %q", n, p[:n], "ping")
			}
			if n := src.Load(p); n != 0 {
				t.Fatalf("Load = %d, want 0 after server close", n)
			}
		})
	}
}

func TestDialWebSocket(t *testing.T) {
	var upgrader websocket.Upgrader
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		ws.WriteMessage(websocket.BinaryMessage, []byte("frame"))
		ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		ws.ReadMessage()
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	src, closer, err := Dial(context.Background(), url, 0)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer closer.Close()

	p := make([]byte, 16)
	if n := src.Load(p); n != 5 || string(p[:5]) != "frame" {
		t.Fatalf("Load = %d %q, want 5 %q", n, p[:n], "frame")
	}
	if n := src.Load(p); n != 0 {
		t.Fatalf("Load = %d, want 0", n)
	}
}

func TestDialTLSHandshakeError(t *testing.T) {
	addr := tcpServe(t, []byte("not a tls server"))

	_, _, err := Dial(context.Background(), "tls://"+addr.String(), 0)
	if err == nil {
		t.Fatal("Dial succeeded against a non-TLS server")
	}
	if !strings.Contains(err.Error(), "tls handshake") {
		t.Fatalf("error %q, want it to mention the handshake", err)
	}
}

func TestDialErrors(t *testing.T) {
	tests := []struct {
		name string
		addr string
		want string
	}{
		{"unsupported scheme", "udp://localhost:9", "unsupported scheme"},
		{"tcp missing port", "tcp://localhost", "missing port"},
		{"tls missing port", "tls://localhost", "missing port"},
		{"bare missing port", "localhost", "missing port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Dial(context.Background(), tt.addr, 0)
			if err == nil {
				t.Fatal("Dial succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q, want it to mention %q", err, tt.want)
			}
		})
	}
}
