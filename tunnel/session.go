// Package tunnel runs one accepted connection from first peek to
// teardown: classify the protocol, speak HTTP or accept the obscura
// handshake, borrow an upstream from the router, then relay bytes in
// both directions until either side closes.
package tunnel

import (
	"bufio"
	"context"
	"crypto/tls"
	"net"
	"strings"

	"github.com/gofrs/uuid/v5"

	"github.com/ngx-proxy/forward-engine/common/arena"
	"github.com/ngx-proxy/forward-engine/common/errs"
	"github.com/ngx-proxy/forward-engine/component/analyzer"
	"github.com/ngx-proxy/forward-engine/component/pool"
	"github.com/ngx-proxy/forward-engine/component/router"
	"github.com/ngx-proxy/forward-engine/component/sniffer"
	"github.com/ngx-proxy/forward-engine/httpwire"
	"github.com/ngx-proxy/forward-engine/log"
	"github.com/ngx-proxy/forward-engine/transport/obscura"
)

// arenaSize is the per-session scratch buffer backing the peek buffer,
// request serialization and the two tunnel halves.
const arenaSize = 16 * 1024

const connectEstablished = "HTTP/1.1 200 Connection Established\r\n\r\n"

// Session owns the client socket for its lifetime and borrows at most
// one upstream handle at a time. The scratch arena is reset at every
// phase boundary.
type Session struct {
	id       uuid.UUID
	conn     *net.TCPConn
	router   *router.Router
	tlsConf  *tls.Config
	scratch  *arena.Arena
	upstream *pool.Handle
	state    SessionState
}

// NewSession wraps one accepted client connection. tlsConf may be nil,
// which disables the obscura pipeline.
func NewSession(conn *net.TCPConn, r *router.Router, tlsConf *tls.Config) *Session {
	return &Session{
		id:      uuid.Must(uuid.NewV4()),
		conn:    conn,
		router:  r,
		tlsConf: tlsConf,
		scratch: arena.New(arenaSize),
		state:   Init,
	}
}

func (s *Session) State() SessionState {
	return s.state
}

// Start runs the session on its own goroutine. Unexpected errors are
// logged with their source location; graceful endings are quiet. The
// client socket and any upstream handle are always released on exit.
func (s *Session) Start() {
	go s.run()
}

func (s *Session) run() {
	defer s.close()
	if err := s.diversion(); err != nil {
		if e, ok := errs.AsError(err); ok {
			log.Errorln("session %s: %s", s.id, e.Dump())
		} else {
			log.Errorln("session %s: %v", s.id, err)
		}
	}
}

func (s *Session) diversion() error {
	s.state = Peek
	s.scratch.Reset()
	buf := s.scratch.Alloc(sniffer.PeekSize)
	n, err := peek(s.conn, buf)
	if err != nil {
		if errs.IsGraceful(err) {
			return nil
		}
		return errs.Network("peek: %v", err)
	}
	switch sniffer.Classify(buf[:n]) {
	case sniffer.HTTP:
		return s.handleHTTP()
	case sniffer.Obscura:
		return s.handleObscura()
	default:
		// Too few bytes to classify; drop the connection quietly.
		return nil
	}
}

func (s *Session) handleHTTP() error {
	s.state = HTTP
	s.scratch.Reset()

	br := bufio.NewReaderSize(s.conn, 4096)
	req, err := httpwire.ReadRequest(br)
	if err != nil {
		// Parse failures and half-open clients end the session without
		// writing anything back.
		log.Debugln("session %s: http read: %v", s.id, err)
		return nil
	}

	target := analyzer.AnalyzeRequest(req)
	ctx := context.Background()
	if target.ForwardProxy {
		s.upstream, err = s.router.RouteForward(ctx, target.Host, target.Port)
	} else {
		s.upstream, err = s.router.RouteReverse(ctx, target.Host)
	}
	if err != nil {
		s.upstream = nil
		return err
	}

	if req.Method == httpwire.MethodConnect {
		if _, err := s.conn.Write([]byte(connectEstablished)); err != nil {
			if errs.IsGraceful(err) {
				return nil
			}
			return errs.Network("write established: %v", err)
		}
	} else {
		// Serialization appends into arena-backed scratch; oversized
		// requests spill to the heap through append growth.
		wire := req.Append(s.scratch.Alloc(s.scratch.Remaining())[:0])
		if _, err := s.upstream.Conn().Write(wire); err != nil {
			if errs.IsGraceful(err) {
				return nil
			}
			return errs.Network("write request: %v", err)
		}
	}

	// The reader may have buffered bytes past the parsed request:
	// pipelined requests or early tunnel data. They belong upstream.
	if pending := br.Buffered(); pending > 0 {
		head, _ := br.Peek(pending)
		if _, err := s.upstream.Conn().Write(head); err != nil {
			if errs.IsGraceful(err) {
				return nil
			}
			return errs.Network("write prefetch: %v", err)
		}
		_, _ = br.Discard(pending)
	}

	return s.tunnel()
}

func (s *Session) handleObscura() error {
	if s.tlsConf == nil {
		// Consume the peeked bytes so the close ends with a FIN rather
		// than a reset for unread data.
		_, _ = s.conn.Read(s.scratch.Alloc(sniffer.PeekSize))
		return nil
	}
	s.state = Obscura
	s.scratch.Reset()

	oe := obscura.NewServer(s.conn, s.tlsConf)
	path, err := oe.Handshake(context.Background(), "", "")
	if err != nil {
		oe.ForceClose()
		return err
	}

	authority := strings.TrimPrefix(path, "/")
	if authority == "" {
		oe.ForceClose()
		return nil
	}
	target := analyzer.AnalyzeAuthority(authority)
	s.upstream, err = s.router.RouteForward(context.Background(), target.Host, target.Port)
	if err != nil {
		s.upstream = nil
		oe.ForceClose()
		return err
	}

	s.state = Tunnel
	s.scratch.Reset()
	return relayObscura(oe, s.upstream.Conn(), s.scratch)
}

func (s *Session) tunnel() error {
	s.state = Tunnel
	s.scratch.Reset()
	return relay(s.conn, s.upstream.Conn(), s.scratch)
}

// close tears the session down: client socket first, then the upstream
// handle, so a tunneled socket reaches the pool already closed and is
// destroyed rather than re-cached.
func (s *Session) close() {
	_ = s.conn.Close()
	if s.upstream != nil {
		s.upstream.Release()
		s.upstream = nil
	}
	s.state = Closed
}
