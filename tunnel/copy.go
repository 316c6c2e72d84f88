package tunnel

import (
	"io"
	"net"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ngx-proxy/forward-engine/common/arena"
	"github.com/ngx-proxy/forward-engine/common/errs"
	"github.com/ngx-proxy/forward-engine/transport/obscura"
)

// copyHalf pumps bytes from src to dst until EOF, a graceful close or a
// real failure. Graceful conditions return nil so the opposite
// direction can quiesce the same way.
func copyHalf(dst io.Writer, src io.Reader, buf []byte) error {
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				if errs.IsGraceful(werr) {
					return nil
				}
				return errs.Network("write failed: %v", werr)
			}
		}
		if err != nil {
			if errs.IsGraceful(err) {
				return nil
			}
			return errs.Network("read failed: %v", err)
		}
	}
}

// relay runs both directions of a TCP-to-TCP tunnel. Whichever half
// finishes first closes both sockets, which unblocks the other half
// with a graceful error. The first non-graceful error wins; the client
// socket is closed before the upstream so the pool sees a dead socket
// and destroys it instead of re-caching.
func relay(client net.Conn, upstream net.Conn, scratch *arena.Arena) error {
	a, b := scratch.Halves()
	var once sync.Once
	closeBoth := func() {
		once.Do(func() {
			_ = client.Close()
			_ = upstream.Close()
		})
	}

	var g errgroup.Group
	g.Go(func() error {
		defer closeBoth()
		return copyHalf(upstream, client, a)
	})
	g.Go(func() error {
		defer closeBoth()
		return copyHalf(client, upstream, b)
	})
	err := g.Wait()
	closeBoth()
	return err
}

// relayObscura is the WebSocket variant: one side moves whole binary
// messages, the other raw bytes. A message read drives one raw write
// and a raw read drives one message write.
func relayObscura(oe *obscura.Endpoint, upstream net.Conn, scratch *arena.Arena) error {
	_, b := scratch.Halves()
	var once sync.Once
	closeBoth := func() {
		once.Do(func() {
			oe.ForceClose()
			_ = upstream.Close()
		})
	}

	var g errgroup.Group
	g.Go(func() error {
		defer closeBoth()
		for {
			msg, err := oe.Read()
			if err != nil {
				if errs.IsGraceful(err) {
					return nil
				}
				return errs.Network("read failed: %v", err)
			}
			if _, err := upstream.Write(msg); err != nil {
				if errs.IsGraceful(err) {
					return nil
				}
				return errs.Network("write failed: %v", err)
			}
		}
	})
	g.Go(func() error {
		defer closeBoth()
		for {
			n, err := upstream.Read(b)
			if n > 0 {
				if werr := oe.Write(b[:n]); werr != nil {
					if errs.IsGraceful(werr) {
						return nil
					}
					return errs.Network("write failed: %v", werr)
				}
			}
			if err != nil {
				if errs.IsGraceful(err) {
					return nil
				}
				return errs.Network("read failed: %v", err)
			}
		}
	})
	err := g.Wait()
	// Best-effort close frame; the transport is usually gone already
	// and a failure here only means the peer closed first.
	_ = oe.Close()
	return err
}
