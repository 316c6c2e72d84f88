package constant

import "net"

// Target is a routing decision produced by the request analyzer: where the
// upstream connection should go and whether the proxy acts in forward mode
// (client-specified destination) or reverse mode (Host-keyed table lookup).
type Target struct {
	Host         string
	Port         string
	ForwardProxy bool
}

func (t Target) String() string {
	return net.JoinHostPort(t.Host, t.Port)
}
