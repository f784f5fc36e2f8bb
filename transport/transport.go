// Package transport wraps the websocket dialer the relay package drives,
// with optional per-relay SOCKS5 proxy pass-through. It is the one place
// net.Conn and nhooyr.io/websocket details are visible to the rest of this
// module.
package transport

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"golang.org/x/net/proxy"
	"nhooyr.io/websocket"
)

// Conn is the minimal surface the relay read/write loops need from a
// websocket connection.
type Conn interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close() error
}

type wsConn struct {
	c *websocket.Conn
}

func (w *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := w.c.Read(ctx)
	return data, err
}

func (w *wsConn) Write(ctx context.Context, data []byte) error {
	return w.c.Write(ctx, websocket.MessageText, data)
}

func (w *wsConn) Close() error {
	return w.c.Close(websocket.StatusNormalClosure, "")
}

// Dial opens a websocket connection to url. If proxyAddr is non-empty it is
// used as a SOCKS5 proxy address (host:port) the TCP dial is routed through,
// the pass-through the spec requires for per-relay proxy configuration.
func Dial(ctx context.Context, url string, proxyAddr string) (Conn, error) {
	httpClient := http.DefaultClient
	if proxyAddr != "" {
		dialer, err := proxy.SOCKS5("tcp", proxyAddr, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("transport: build socks5 dialer: %w", err)
		}
		contextDialer, ok := dialer.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("transport: socks5 dialer does not support context dial")
		}
		httpClient = &http.Client{
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
					return contextDialer.DialContext(ctx, network, addr)
				},
			},
		}
	}

	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPClient:     httpClient,
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", url, err)
	}
	c.SetReadLimit(-1)
	return &wsConn{c: c}, nil
}
