// Package obscura is the disguised-traffic endpoint: TLS over TCP with
// a WebSocket stream on top, carrying tunneled bytes as binary
// messages. The same type serves both roles; the server side accepts
// the upgrade and reports the requested path, the client side performs
// it.
package obscura

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/url"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/ngx-proxy/forward-engine/common/errs"
)

type Endpoint struct {
	raw   net.Conn
	conn  net.Conn
	conf  *tls.Config
	state ws.State
}

// NewServer wraps an accepted connection for the server role. The TLS
// handshake happens lazily in Handshake.
func NewServer(conn net.Conn, conf *tls.Config) *Endpoint {
	return &Endpoint{raw: conn, conf: conf, state: ws.StateServerSide}
}

// NewClient wraps an outbound connection for the client role.
func NewClient(conn net.Conn, conf *tls.Config) *Endpoint {
	return &Endpoint{raw: conn, conf: conf, state: ws.StateClientSide}
}

// Handshake completes TLS and the WebSocket upgrade. In the server role
// host and path are ignored and the request's target path is returned;
// in the client role the SNI defaults to host, the upgrade request goes
// to path, and the returned string is empty.
func (e *Endpoint) Handshake(ctx context.Context, host, path string) (string, error) {
	if e.state.ClientSide() {
		return "", e.clientHandshake(ctx, host, path)
	}
	return e.serverHandshake(ctx)
}

func (e *Endpoint) serverHandshake(ctx context.Context) (string, error) {
	tconn := tls.Server(e.raw, e.conf)
	if err := tconn.HandshakeContext(ctx); err != nil {
		return "", errs.Protocol("tls accept: %v", err)
	}
	e.conn = tconn

	var target []byte
	upgrader := ws.Upgrader{
		OnRequest: func(uri []byte) error {
			target = append(target[:0], uri...)
			return nil
		},
	}
	if _, err := upgrader.Upgrade(tconn); err != nil {
		return "", errs.Protocol("websocket accept: %v", err)
	}
	return string(target), nil
}

func (e *Endpoint) clientHandshake(ctx context.Context, host, path string) error {
	conf := e.conf.Clone()
	if conf.ServerName == "" && host != "" {
		conf.ServerName = host
	}
	tconn := tls.Client(e.raw, conf)
	if err := tconn.HandshakeContext(ctx); err != nil {
		return errs.Protocol("tls connect: %v", err)
	}
	e.conn = tconn

	u := url.URL{Scheme: "wss", Host: host, Path: path}
	br, _, err := (&ws.Dialer{}).Upgrade(tconn, &u)
	if err != nil {
		return errs.Protocol("websocket connect: %v", err)
	}
	if br != nil && br.Buffered() > 0 {
		// Frames arrived together with the upgrade response; keep them
		// ahead of the TLS stream.
		e.conn = &bufferedConn{Conn: tconn, r: io.MultiReader(br, tconn)}
	}
	return nil
}

// Read returns the payload of the next data message, binary or text. A peer close
// surfaces as wsutil.ClosedError, which the graceful classifier accepts.
func (e *Endpoint) Read() ([]byte, error) {
	for {
		data, op, err := wsutil.ReadData(e.conn, e.state)
		if err != nil {
			return nil, err
		}
		if op == ws.OpBinary || op == ws.OpText {
			return data, nil
		}
	}
}

// Write sends one binary message.
func (e *Endpoint) Write(p []byte) error {
	return wsutil.WriteMessage(e.conn, e.state, ws.OpBinary, p)
}

// Close sends a normal-closure frame and closes the transport. Errors
// from a peer that closed first are swallowed.
func (e *Endpoint) Close() error {
	var werr error
	if e.conn != nil {
		body := ws.NewCloseFrameBody(ws.StatusNormalClosure, "")
		werr = wsutil.WriteMessage(e.conn, e.state, ws.OpClose, body)
	}
	_ = e.raw.Close()
	if werr != nil && !errs.IsGraceful(werr) {
		return errs.Protocol("websocket close: %v", werr)
	}
	return nil
}

// ForceClose tears down the transport without a close frame.
func (e *Endpoint) ForceClose() {
	_ = e.raw.Close()
}

type bufferedConn struct {
	net.Conn
	r io.Reader
}

func (c *bufferedConn) Read(p []byte) (int, error) {
	return c.r.Read(p)
}
