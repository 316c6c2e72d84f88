package keepalive

import (
	"net"
	"time"
)

// Interval between TCP keep-alive probes on proxied connections.
// Idle pooled connections are reaped well before the kernel would
// notice a dead peer, so probes only matter for active tunnels.
const Interval = 30 * time.Second

func SetNetDialer(dialer *net.Dialer) {
	dialer.KeepAlive = Interval
}

func SetNetListenConfig(lc *net.ListenConfig) {
	lc.KeepAlive = Interval
}
