//go:build unix

package tunnel

import (
	"io"
	"net"

	"golang.org/x/sys/unix"
)

// peek waits until the client has sent something, then reads up to
// len(buf) bytes without consuming them. Zero bytes means the peer
// closed before sending anything.
func peek(conn *net.TCPConn, buf []byte) (int, error) {
	sc, err := conn.SyscallConn()
	if err != nil {
		return 0, err
	}
	var n int
	var rerr error
	err = sc.Read(func(fd uintptr) bool {
		n, _, rerr = unix.Recvfrom(int(fd), buf, unix.MSG_PEEK)
		if rerr == unix.EAGAIN || rerr == unix.EWOULDBLOCK {
			return false
		}
		return true
	})
	if err != nil {
		return 0, err
	}
	if rerr != nil {
		return 0, rerr
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}
