package pool

import (
	"net"
	"sync"

	"github.com/ngx-proxy/forward-engine/constant"
)

// Handle is the exclusive owner of one borrowed upstream connection.
// Releasing it hands the socket back to the pool, which re-caches it if
// still open and destroys it otherwise. The endpoint is cached at
// acquire time because the remote address of a closing socket may no
// longer be readable.
type Handle struct {
	conn     *net.TCPConn
	pool     *Pool
	endpoint constant.Endpoint
	once     sync.Once
}

func (h *Handle) Conn() *net.TCPConn {
	return h.conn
}

func (h *Handle) Endpoint() constant.Endpoint {
	return h.endpoint
}

// Release returns the connection to the pool. Safe to call more than
// once; only the first call has any effect.
func (h *Handle) Release() {
	h.once.Do(func() {
		if h.pool == nil {
			_ = h.conn.Close()
			return
		}
		h.pool.recycle(h.conn, h.endpoint)
	})
}

// Discard closes the connection and marks the handle spent without
// offering the socket back to the pool.
func (h *Handle) Discard() {
	h.once.Do(func() {
		_ = h.conn.Close()
	})
}
