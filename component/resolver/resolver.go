// Package resolver maps hostnames to connectable endpoints. Lookups go
// through the system resolver by default, or through a configured
// nameserver, and answers are cached until their TTL runs out.
package resolver

import (
	"context"
	"net"
	"net/netip"
	"strconv"
	"time"

	"github.com/miekg/dns"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/ngx-proxy/forward-engine/common/errs"
	"github.com/ngx-proxy/forward-engine/constant"
)

const (
	minCacheTTL  = 1 * time.Second
	maxCacheTTL  = 10 * time.Minute
	systemTTL    = 1 * time.Minute
	queryTimeout = 5 * time.Second
)

type cacheEntry struct {
	addrs   []netip.Addr
	expires time.Time
}

type Resolver struct {
	nameserver string
	client     *dns.Client
	cache      *xsync.MapOf[string, cacheEntry]
}

// New builds a resolver. An empty nameserver selects the system
// resolver; otherwise queries go to the given server, defaulting to
// port 53 when none is given.
func New(nameserver string) *Resolver {
	r := &Resolver{cache: xsync.NewMapOf[string, cacheEntry]()}
	if nameserver != "" {
		if _, _, err := net.SplitHostPort(nameserver); err != nil {
			nameserver = net.JoinHostPort(nameserver, "53")
		}
		r.nameserver = nameserver
		r.client = &dns.Client{Timeout: queryTimeout}
	}
	return r
}

// Resolve maps host and port to a connectable endpoint. IP literals skip
// the lookup entirely; otherwise the first resolved address wins.
func (r *Resolver) Resolve(ctx context.Context, host, port string) (constant.Endpoint, error) {
	portNum, err := strconv.ParseUint(port, 10, 16)
	if err != nil {
		return constant.Endpoint{}, errs.Protocol("bad port %q", port)
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		return constant.NewEndpoint(addr, uint16(portNum)), nil
	}
	addrs, err := r.LookupAddrs(ctx, host)
	if err != nil {
		return constant.Endpoint{}, err
	}
	return constant.NewEndpoint(addrs[0], uint16(portNum)), nil
}

// LookupAddrs resolves host, serving repeated lookups from cache until
// the answer TTL expires.
func (r *Resolver) LookupAddrs(ctx context.Context, host string) ([]netip.Addr, error) {
	if e, ok := r.cache.Load(host); ok && time.Now().Before(e.expires) {
		return e.addrs, nil
	}
	addrs, ttl, err := r.lookup(ctx, host)
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, errs.Network("no addresses for %q", host)
	}
	r.cache.Store(host, cacheEntry{addrs: addrs, expires: time.Now().Add(clampTTL(ttl))})
	return addrs, nil
}

func (r *Resolver) lookup(ctx context.Context, host string) ([]netip.Addr, time.Duration, error) {
	if r.client != nil {
		return r.query(ctx, host)
	}
	addrs, err := net.DefaultResolver.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return nil, 0, errs.Network("resolve %q: %v", host, err)
	}
	for i, a := range addrs {
		addrs[i] = a.Unmap()
	}
	return addrs, systemTTL, nil
}

func (r *Resolver) query(ctx context.Context, host string) ([]netip.Addr, time.Duration, error) {
	fqdn := dns.Fqdn(host)
	var addrs []netip.Addr
	ttl := maxCacheTTL
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		msg := new(dns.Msg)
		msg.SetQuestion(fqdn, qtype)
		reply, _, err := r.client.ExchangeContext(ctx, msg, r.nameserver)
		if err != nil {
			return nil, 0, errs.Network("resolve %q: %v", host, err)
		}
		for _, rr := range reply.Answer {
			var ip net.IP
			switch a := rr.(type) {
			case *dns.A:
				ip = a.A
			case *dns.AAAA:
				ip = a.AAAA
			default:
				continue
			}
			if addr, ok := netip.AddrFromSlice(ip); ok {
				addrs = append(addrs, addr.Unmap())
			}
			if d := time.Duration(rr.Header().Ttl) * time.Second; d < ttl {
				ttl = d
			}
		}
	}
	return addrs, ttl, nil
}

func clampTTL(d time.Duration) time.Duration {
	if d < minCacheTTL {
		return minCacheTTL
	}
	if d > maxCacheTTL {
		return maxCacheTTL
	}
	return d
}
