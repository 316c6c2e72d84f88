//go:build unix

package pool

import (
	"net"

	"golang.org/x/sys/unix"
)

// isZombie probes the socket with a one-byte non-blocking peek. A
// would-block result means the peer is quiet but alive; zero bytes or
// any other error means the peer is gone.
func isZombie(conn *net.TCPConn) bool {
	sc, err := conn.SyscallConn()
	if err != nil {
		return true
	}
	dead := false
	cerr := sc.Control(func(fd uintptr) {
		var buf [1]byte
		n, _, err := unix.Recvfrom(int(fd), buf[:], unix.MSG_PEEK|unix.MSG_DONTWAIT)
		switch {
		case err == unix.EAGAIN || err == unix.EWOULDBLOCK:
			dead = false
		case err != nil:
			dead = true
		case n == 0:
			dead = true
		default:
			dead = false
		}
	})
	return dead || cerr != nil
}
