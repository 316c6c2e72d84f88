// Package pool caches idle upstream TCP connections per endpoint so
// consecutive requests to the same backend skip the connect round trip.
// Each worker owns one pool; entries are checked for peer-side death at
// acquire time and expired after an idle deadline.
package pool

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/ngx-proxy/forward-engine/common/errs"
	"github.com/ngx-proxy/forward-engine/component/keepalive"
	"github.com/ngx-proxy/forward-engine/constant"
	"github.com/ngx-proxy/forward-engine/log"
)

const (
	// MaxCachePerEndpoint caps the idle stack of one endpoint.
	MaxCachePerEndpoint = 32
	// MaxIdle is how long an entry may sit unused before it is dropped
	// at the next acquire.
	MaxIdle = 60 * time.Second
	// ConnectTimeout bounds a fresh upstream connect.
	ConnectTimeout = 5 * time.Second
)

type idleEntry struct {
	conn     *net.TCPConn
	lastUsed time.Time
}

// Pool is the per-worker idle connection cache. Although each worker
// drives its pool from one accept loop, sessions run on their own
// goroutines, so the idle map is guarded by a mutex.
type Pool struct {
	mu     sync.Mutex
	idle   map[constant.Endpoint][]idleEntry
	dialer net.Dialer
	now    func() time.Time
}

func New() *Pool {
	dialer := net.Dialer{Timeout: ConnectTimeout}
	keepalive.SetNetDialer(&dialer)
	return &Pool{
		idle:   make(map[constant.Endpoint][]idleEntry),
		dialer: dialer,
		now:    time.Now,
	}
}

// Acquire returns a handle on a live connection to ep, reusing the most
// recently recycled idle entry when one is still healthy. Stale and
// zombie entries found on the way are closed and dropped.
func (p *Pool) Acquire(ctx context.Context, ep constant.Endpoint) (*Handle, error) {
	if conn := p.takeIdle(ep); conn != nil {
		return &Handle{conn: conn, pool: p, endpoint: ep}, nil
	}
	conn, err := p.dial(ctx, ep)
	if err != nil {
		return nil, err
	}
	return &Handle{conn: conn, pool: p, endpoint: ep}, nil
}

func (p *Pool) takeIdle(ep constant.Endpoint) *net.TCPConn {
	p.mu.Lock()
	defer p.mu.Unlock()
	stack := p.idle[ep]
	for len(stack) > 0 {
		entry := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if p.now().Sub(entry.lastUsed) > MaxIdle {
			log.Debugln("pool: dropping expired connection to %s", ep)
			_ = entry.conn.Close()
			continue
		}
		if isZombie(entry.conn) {
			log.Debugln("pool: dropping zombie connection to %s", ep)
			_ = entry.conn.Close()
			continue
		}
		if len(stack) == 0 {
			delete(p.idle, ep)
		} else {
			p.idle[ep] = stack
		}
		return entry.conn
	}
	delete(p.idle, ep)
	return nil
}

func (p *Pool) dial(ctx context.Context, ep constant.Endpoint) (*net.TCPConn, error) {
	conn, err := p.dialer.DialContext(ctx, "tcp", ep.String())
	if err != nil {
		return nil, errs.Network("connect %s: %v", ep, err)
	}
	tcp := conn.(*net.TCPConn)
	_ = tcp.SetNoDelay(true)
	return tcp, nil
}

// recycle stores a still-open connection for reuse. Closed connections
// and overflow beyond the per-endpoint cap are destroyed instead. Never
// fails; the worst case is a closed socket.
func (p *Pool) recycle(conn *net.TCPConn, ep constant.Endpoint) {
	if !isOpen(conn) {
		_ = conn.Close()
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	stack := p.idle[ep]
	if len(stack) >= MaxCachePerEndpoint {
		_ = conn.CloseWrite()
		_ = conn.Close()
		return
	}
	p.idle[ep] = append(stack, idleEntry{conn: conn, lastUsed: p.now()})
}

// recycleUnkeyed recovers the endpoint from the socket itself. If the
// remote address can no longer be read the socket is destroyed.
func (p *Pool) recycleUnkeyed(conn *net.TCPConn) {
	ep, ok := constant.EndpointFromAddr(conn.RemoteAddr())
	if !ok {
		_ = conn.Close()
		return
	}
	p.recycle(conn, ep)
}

// Clear closes and drops every idle connection.
func (p *Pool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for ep, stack := range p.idle {
		for _, entry := range stack {
			_ = entry.conn.Close()
		}
		delete(p.idle, ep)
	}
}

// IdleCount reports how many idle entries are cached for ep.
func (p *Pool) IdleCount(ep constant.Endpoint) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle[ep])
}

// isOpen reports whether the connection's descriptor is still usable
// from the local side.
func isOpen(conn *net.TCPConn) bool {
	sc, err := conn.SyscallConn()
	if err != nil {
		return false
	}
	return sc.Control(func(uintptr) {}) == nil
}
