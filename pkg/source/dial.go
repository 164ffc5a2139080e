package source

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Dial connects to addr and returns a Source reading from it, together
// with the closer that releases the connection. Supported schemes are
// tcp://, tls://, ws://, and wss://; a bare host:port is dialed as plain
// TCP. timeout applies per read, as in Conn and WebSocket.
func Dial(ctx context.Context, addr string, timeout time.Duration) (Source, io.Closer, error) {
	if !strings.Contains(addr, "://") {
		conn, err := dialTCP(ctx, addr)
		if err != nil {
			return nil, nil, err
		}
		return Conn(conn, timeout), conn, nil
	}

	u, err := url.Parse(addr)
	if err != nil {
		return nil, nil, fmt.Errorf("source: parse %s: %w", addr, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "tcp":
		conn, err := dialTCP(ctx, u.Host)
		if err != nil {
			return nil, nil, err
		}
		return Conn(conn, timeout), conn, nil

	case "tls":
		conn, err := dialTLS(ctx, u.Host)
		if err != nil {
			return nil, nil, err
		}
		return Conn(conn, timeout), conn, nil

	case "ws", "wss":
		ws, _, err := websocket.DefaultDialer.DialContext(ctx, addr, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("source: dial %s: %w", addr, err)
		}
		return WebSocket(ws, timeout), ws, nil

	default:
		return nil, nil, fmt.Errorf("source: unsupported scheme %q in %s", u.Scheme, addr)
	}
}

// NetDialer returns a DialFunc for a tcp:// or tls:// address (or bare
// host:port, dialed as plain TCP), for use with Redial. WebSocket schemes
// are not supported: a websocket source carries message framing that
// cannot be resumed mid-stream on a fresh connection.
func NetDialer(addr string) (DialFunc, error) {
	if !strings.Contains(addr, "://") {
		if !strings.Contains(addr, ":") {
			return nil, fmt.Errorf("source: missing port in address %q", addr)
		}
		return func(ctx context.Context) (net.Conn, error) {
			return dialTCP(ctx, addr)
		}, nil
	}

	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("source: parse %s: %w", addr, err)
	}
	if !strings.Contains(u.Host, ":") {
		return nil, fmt.Errorf("source: missing port in address %q", addr)
	}
	switch strings.ToLower(u.Scheme) {
	case "tcp":
		return func(ctx context.Context) (net.Conn, error) {
			return dialTCP(ctx, u.Host)
		}, nil
	case "tls":
		return func(ctx context.Context) (net.Conn, error) {
			return dialTLS(ctx, u.Host)
		}, nil
	default:
		return nil, fmt.Errorf("source: unsupported scheme %q for redial in %s", u.Scheme, addr)
	}
}

func dialTCP(ctx context.Context, addr string) (net.Conn, error) {
	if !strings.Contains(addr, ":") {
		return nil, fmt.Errorf("source: missing port in address %q", addr)
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("source: dial %s: %w", addr, err)
	}
	return conn, nil
}

func dialTLS(ctx context.Context, addr string) (net.Conn, error) {
	if !strings.Contains(addr, ":") {
		return nil, fmt.Errorf("source: missing port in address %q", addr)
	}
	// Extract hostname for SNI
	host, _, _ := net.SplitHostPort(addr)
	config := &tls.Config{ServerName: host}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("source: dial %s: %w", addr, err)
	}
	tlsConn := tls.Client(conn, config)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("source: tls handshake with %s: %w", addr, err)
	}
	return tlsConn, nil
}
