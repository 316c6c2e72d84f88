// Package listener owns the accept side of the proxy. A worker is one
// listening socket plus its private connection pool and router; several
// workers share one port through SO_REUSEPORT so the kernel spreads
// accepted connections across them.
package listener

import (
	"context"
	"crypto/tls"
	"net"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/ngx-proxy/forward-engine/common/errs"
	"github.com/ngx-proxy/forward-engine/component/keepalive"
	"github.com/ngx-proxy/forward-engine/component/pool"
	"github.com/ngx-proxy/forward-engine/component/resolver"
	"github.com/ngx-proxy/forward-engine/component/router"
	"github.com/ngx-proxy/forward-engine/constant"
	"github.com/ngx-proxy/forward-engine/log"
	"github.com/ngx-proxy/forward-engine/rule/blacklist"
	"github.com/ngx-proxy/forward-engine/tunnel"
)

// Options carries everything a worker needs besides its listener. The
// resolver, blacklist and reverse map are shared read-only; the pool is
// always per worker.
type Options struct {
	Addr       string
	TLSConfig  *tls.Config
	Resolver   *resolver.Resolver
	Blacklist  *blacklist.Blacklist
	ReverseMap map[string]constant.Endpoint
}

type Worker struct {
	ln      net.Listener
	pool    *pool.Pool
	router  *router.Router
	tlsConf *tls.Config
	closed  atomic.Bool
}

// NewWorker binds a listening socket with SO_REUSEADDR and, where the
// platform has it, SO_REUSEPORT, then builds the worker's own pool and
// router around the shared lookup state.
func NewWorker(opts Options) (*Worker, error) {
	lc := net.ListenConfig{Control: controlReuse}
	keepalive.SetNetListenConfig(&lc)
	ln, err := lc.Listen(context.Background(), "tcp", opts.Addr)
	if err != nil {
		return nil, errs.Network("listen %s: %v", opts.Addr, err)
	}
	p := pool.New()
	return &Worker{
		ln:      ln,
		pool:    p,
		router:  router.New(p, opts.Resolver, opts.Blacklist, opts.ReverseMap),
		tlsConf: opts.TLSConfig,
	}, nil
}

func (w *Worker) Addr() net.Addr {
	return w.ln.Addr()
}

// Run accepts until the worker is closed. Every accepted connection
// becomes a session on its own goroutine and the loop re-arms
// immediately.
func (w *Worker) Run() error {
	for {
		conn, err := w.ln.Accept()
		if err != nil {
			if w.closed.Load() || errs.IsGraceful(err) {
				return nil
			}
			return errs.Network("accept: %v", err)
		}
		tcp := conn.(*net.TCPConn)
		_ = tcp.SetNoDelay(true)
		tunnel.NewSession(tcp, w.router, w.tlsConf).Start()
	}
}

// Close stops the accept loop and drops the worker's idle connections.
// Sessions already running keep their borrowed sockets until they end.
func (w *Worker) Close() {
	w.closed.Store(true)
	_ = w.ln.Close()
	w.pool.Clear()
}

// Server fans one address out to n workers.
type Server struct {
	workers []*Worker
}

// NewServer starts n workers on addr. When the platform cannot share
// the port the fan-out degrades to however many listeners bound.
func NewServer(opts Options, n int) (*Server, error) {
	if n < 1 {
		n = 1
	}
	s := &Server{workers: make([]*Worker, 0, n)}
	for i := 0; i < n; i++ {
		w, err := NewWorker(opts)
		if err != nil {
			if i > 0 {
				log.Warnln("worker %d failed to bind, continuing with %d: %v", i, i, err)
				break
			}
			return nil, err
		}
		s.workers = append(s.workers, w)
		// Port 0 resolves on first bind; later workers must join it.
		opts.Addr = w.Addr().String()
	}
	return s, nil
}

func (s *Server) Addr() net.Addr {
	return s.workers[0].Addr()
}

// Run blocks until every worker stops. The first accept failure tears
// the rest down.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, w := range s.workers {
		w := w
		g.Go(w.Run)
	}
	g.Go(func() error {
		<-ctx.Done()
		s.Close()
		return nil
	})
	return g.Wait()
}

func (s *Server) Close() {
	for _, w := range s.workers {
		w.Close()
	}
}
