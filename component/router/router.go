// Package router resolves routing decisions to live upstream sockets
// borrowed from the worker's pool, enforcing the blacklist on the way.
package router

import (
	"context"

	"github.com/ngx-proxy/forward-engine/common/errs"
	"github.com/ngx-proxy/forward-engine/component/pool"
	"github.com/ngx-proxy/forward-engine/component/resolver"
	"github.com/ngx-proxy/forward-engine/constant"
	"github.com/ngx-proxy/forward-engine/rule/blacklist"
)

// Router is per-worker. The reverse map is built once at startup and
// read-only afterwards.
type Router struct {
	pool      *pool.Pool
	resolver  *resolver.Resolver
	blacklist *blacklist.Blacklist
	reverse   map[string]constant.Endpoint
}

func New(p *pool.Pool, r *resolver.Resolver, b *blacklist.Blacklist, reverse map[string]constant.Endpoint) *Router {
	if reverse == nil {
		reverse = map[string]constant.Endpoint{}
	}
	return &Router{pool: p, resolver: r, blacklist: b, reverse: reverse}
}

// RouteForward resolves host and connects to the first resolved address.
// Blocked domains and blocked resolved addresses fail before any
// connect is attempted.
func (r *Router) RouteForward(ctx context.Context, host, port string) (*pool.Handle, error) {
	if r.blacklist.BlockedDomain(host) {
		return nil, errs.Security("domain %q is blocked", host)
	}
	ep, err := r.resolver.Resolve(ctx, host, port)
	if err != nil {
		return nil, err
	}
	if r.blacklist.BlockedIP(ep.Addr.String()) {
		return nil, errs.Security("address %s is blocked", ep.Addr)
	}
	return r.pool.Acquire(ctx, ep)
}

// RouteReverse maps an incoming Host value to its configured backend.
func (r *Router) RouteReverse(ctx context.Context, host string) (*pool.Handle, error) {
	ep, ok := r.reverse[host]
	if !ok {
		return nil, errs.Network("unknown host %q", host)
	}
	return r.pool.Acquire(ctx, ep)
}

// RouteDirect connects to a known endpoint without lookups.
func (r *Router) RouteDirect(ctx context.Context, ep constant.Endpoint) (*pool.Handle, error) {
	return r.pool.Acquire(ctx, ep)
}
