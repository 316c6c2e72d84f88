//go:build !unix

package pool

import "net"

// isZombie has no portable probe here; entries are assumed alive and
// bad ones surface as write errors on first use.
func isZombie(conn *net.TCPConn) bool {
	return false
}
