//go:build !unix

package tunnel

import (
	"net"

	"github.com/ngx-proxy/forward-engine/common/errs"
)

// peek needs MSG_PEEK on the raw descriptor, which only the unix build
// provides.
func peek(conn *net.TCPConn, buf []byte) (int, error) {
	return 0, errs.Network("connection peek is not supported on this platform")
}
