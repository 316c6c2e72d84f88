package errs

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"

	"github.com/gobwas/ws/wsutil"
)

// IsGraceful reports whether err indicates normal termination or
// cancellation rather than a real failure. Graceful errors are never
// escalated to tagged errors: the copy loops treat them as clean EOF so the
// opposite tunnel direction can quiesce without noise.
//
// The set covers end-of-file, operation-aborted (context cancellation and
// closed sockets), connection-reset, connection-aborted, broken-pipe,
// not-connected, and the WebSocket closed condition.
func IsGraceful(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, context.Canceled) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ENOTCONN) {
		return true
	}
	var closed wsutil.ClosedError
	return errors.As(err, &closed)
}
