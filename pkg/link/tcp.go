package link

import (
	"context"
	"fmt"
	"net"
	"time"
)

// dialTimeout bounds a single connection attempt.
const dialTimeout = 2 * time.Second

// TCPLink dials the controller over TCP.
type TCPLink struct {
	*client
}

// NewTCP creates a TCP link to cfg.Addr (host:port).
func NewTCP(cfg Config, binder Binder) *TCPLink {
	l := &TCPLink{}
	l.client = newClient(KindTCP, cfg, binder, l.dial)
	return l
}

func (l *TCPLink) dial(ctx context.Context) (transport, error) {
	d := net.Dialer{Timeout: dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", l.cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", l.cfg.Addr, err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	return newStreamTransport(conn, l.cfg.Codec, conn.SetWriteDeadline), nil
}
