package constant

import (
	"net"
	"net/netip"
	"strconv"
)

// Endpoint identifies a remote TCP address. It is comparable, so it can be
// used directly as a map key; equality and hashing are structural.
type Endpoint struct {
	Addr netip.Addr
	Port uint16
}

// NewEndpoint builds an Endpoint from an address and port.
func NewEndpoint(addr netip.Addr, port uint16) Endpoint {
	return Endpoint{Addr: addr.Unmap(), Port: port}
}

// EndpointFromAddrPort converts a netip.AddrPort.
func EndpointFromAddrPort(ap netip.AddrPort) Endpoint {
	return NewEndpoint(ap.Addr(), ap.Port())
}

// EndpointFromAddr converts a net.Addr as returned by net.Conn.RemoteAddr.
// ok is false when the address is not a TCP address.
func EndpointFromAddr(addr net.Addr) (Endpoint, bool) {
	tcpAddr, ok := addr.(*net.TCPAddr)
	if !ok || tcpAddr == nil {
		return Endpoint{}, false
	}
	ip, ok := netip.AddrFromSlice(tcpAddr.IP)
	if !ok {
		return Endpoint{}, false
	}
	return NewEndpoint(ip, uint16(tcpAddr.Port)), true
}

// ParseEndpoint parses an IP literal and a decimal port string.
func ParseEndpoint(host, port string) (Endpoint, bool) {
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return Endpoint{}, false
	}
	p, err := strconv.ParseUint(port, 10, 16)
	if err != nil {
		return Endpoint{}, false
	}
	return NewEndpoint(ip, uint16(p)), true
}

// Family reports 4 or 6 depending on the address family.
func (e Endpoint) Family() uint8 {
	if e.Addr.Is4() || e.Addr.Is4In6() {
		return 4
	}
	return 6
}

// IsValid reports whether the endpoint carries a real address.
func (e Endpoint) IsValid() bool {
	return e.Addr.IsValid()
}

func (e Endpoint) String() string {
	return net.JoinHostPort(e.Addr.String(), strconv.Itoa(int(e.Port)))
}
