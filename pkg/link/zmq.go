package link

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	zmq "github.com/pebbe/zmq4"

	"github.com/teslashibe/go-targetlink/internal/log"
)

// zmqTransport publishes frames on a PUB socket. Publishing is one-way:
// reads block until the transport is closed.
type zmqTransport struct {
	sock *zmq.Socket
	done chan struct{}

	mu     sync.Mutex // sockets are not goroutine-safe
	closed bool
}

func (t *zmqTransport) readFrame() ([]byte, error) {
	<-t.done
	return nil, ErrClosed
}

func (t *zmqTransport) writeFrame(data []byte, _ time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	// PUB never blocks; messages past the high-water mark are dropped.
	_, err := t.sock.SendBytes(data, zmq.DONTWAIT)
	return err
}

// ZMQ delivers whole messages or none.
func (t *zmqTransport) atomicWrites() bool { return true }

func (t *zmqTransport) close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	close(t.done)
	return t.sock.Close()
}

// ZMQLink publishes telemetry on a ZeroMQ PUB socket. Subscribers come and
// go without the link knowing, so the session stays attached while the
// socket is bound.
type ZMQLink struct {
	cfg      Config
	endpoint string
	binder   Binder
	ctr      counters
	log      *slog.Logger
}

// NewZMQ creates a ZMQ link bound to cfg.Addr. A bare host:port is bound
// as tcp://host:port.
func NewZMQ(cfg Config, binder Binder) *ZMQLink {
	cfg = cfg.withDefaults()
	cfg.StaleAfter = 0 // nothing comes back on a PUB socket
	ep := zmqEndpoint(cfg.Addr)
	return &ZMQLink{
		cfg:      cfg,
		endpoint: ep,
		binder:   binder,
		log:      log.Component("link").With("kind", string(KindZMQ), "endpoint", ep),
	}
}

func zmqEndpoint(addr string) string {
	if strings.Contains(addr, "://") {
		return addr
	}
	return "tcp://" + addr
}

// Kind implements Link.
func (l *ZMQLink) Kind() Kind { return KindZMQ }

// Stats implements Link.
func (l *ZMQLink) Stats() Stats { return l.ctr.stats(KindZMQ) }

// Endpoint returns the bound endpoint.
func (l *ZMQLink) Endpoint() string { return l.endpoint }

// Run implements Link.
func (l *ZMQLink) Run(ctx context.Context) error {
	sock, err := zmq.NewSocket(zmq.PUB)
	if err != nil {
		l.ctr.failures.Add(1)
		return fmt.Errorf("zmq socket: %w", err)
	}
	if err := sock.SetLinger(0); err != nil {
		l.log.Debug("set linger", "error", err)
	}
	if err := sock.Bind(l.endpoint); err != nil {
		l.ctr.failures.Add(1)
		sock.Close()
		return fmt.Errorf("zmq bind %s: %w", l.endpoint, err)
	}

	t := &zmqTransport{sock: sock, done: make(chan struct{})}
	s := newSession(uuid.NewString(), t, l.cfg, &l.ctr, l.log)

	l.ctr.sessions.Add(1)
	l.ctr.current.Store(s)
	l.binder.Attach(s)
	l.log.Info("publishing telemetry")

	err = serve(ctx, s)

	l.binder.Detach(s)
	l.ctr.current.CompareAndSwap(s, nil)
	if err != nil {
		l.ctr.failures.Add(1)
	}
	return err
}
