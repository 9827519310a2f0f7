package link

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-targetlink/pkg/telemetry"
)

// transport moves whole frames. Writes are serialized by the session.
type transport interface {
	readFrame() ([]byte, error)
	writeFrame(data []byte, timeout time.Duration) error
	close() error
	// atomicWrites reports whether a failed write leaves the peer's
	// framing intact. When it does not, the session must end.
	atomicWrites() bool
}

// counters are shared by every session of one link.
type counters struct {
	sessions atomic.Uint64
	failures atomic.Uint64
	sent     atomic.Uint64
	received atomic.Uint64
	current  atomic.Pointer[session]
}

func (c *counters) stats(kind Kind) Stats {
	s := Stats{
		Kind:     kind,
		Sessions: c.sessions.Load(),
		Failures: c.failures.Load(),
		Sent:     c.sent.Load(),
		Received: c.received.Load(),
	}
	if cur := c.current.Load(); cur != nil {
		s.Connected = true
		s.SessionID = cur.id
	}
	return s
}

// session is one connection to a controller. It implements
// dispatch.Connection.
type session struct {
	id    string
	t     transport
	codec telemetry.Codec
	cfg   Config
	ctr   *counters
	log   *slog.Logger

	mu        sync.Mutex // serializes writes
	seq       uint64     // heartbeat sequence, guarded by mu
	closeOnce sync.Once
	closed    atomic.Bool
	lastSeen  atomic.Int64 // unix nanos of the last inbound frame
	started   time.Time
}

func newSession(id string, t transport, cfg Config, ctr *counters, logger *slog.Logger) *session {
	s := &session{
		id:      id,
		t:       t,
		codec:   cfg.Codec,
		cfg:     cfg,
		ctr:     ctr,
		log:     logger.With("session", id),
		started: time.Now(),
	}
	s.lastSeen.Store(s.started.UnixNano())
	return s
}

// ID implements dispatch.Connection.
func (s *session) ID() string { return s.id }

// Send implements dispatch.Connection. It is not retried on failure.
func (s *session) Send(msg *telemetry.Message) error {
	if s.closed.Load() {
		return ErrClosed
	}
	data, err := s.codec.Marshal(msg)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.t.writeFrame(data, s.cfg.WriteTimeout); err != nil {
		if !s.t.atomicWrites() {
			// Part of the frame may be on the wire; anything written after it
			// would be misread. Drop the session so the link reconnects.
			s.log.Warn("send failed, closing session", "error", err)
			s.close()
		}
		return fmt.Errorf("send %s: %w", msg.Type, err)
	}
	s.ctr.sent.Add(1)
	return nil
}

func (s *session) heartbeat() error {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()
	return s.Send(telemetry.NewHeartbeatMessage(seq, s.cfg.Source))
}

// idle returns how long since the controller last sent anything.
func (s *session) idle(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, s.lastSeen.Load()))
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		if err := s.t.close(); err != nil {
			s.log.Debug("close", "error", err)
		}
	})
}

func (s *session) readLoop() error {
	for {
		data, err := s.t.readFrame()
		if err != nil {
			return err
		}
		s.lastSeen.Store(time.Now().UnixNano())
		s.ctr.received.Add(1)

		msg, err := s.codec.Unmarshal(data)
		if err != nil {
			s.log.Debug("unreadable frame from controller", "error", err, "bytes", len(data))
			continue
		}
		if hb := msg.HeartbeatData(); hb != nil {
			s.log.Debug("controller heartbeat", "seq", hb.Seq, "source", hb.Source)
		}
	}
}

// serve runs a session until ctx is done, the transport fails, or the
// controller goes stale. It returns nil only on ctx cancellation.
func serve(ctx context.Context, s *session) error {
	stop := context.AfterFunc(ctx, s.close)
	defer func() {
		stop()
		s.close()
	}()

	readErr := make(chan error, 1)
	go func() { readErr <- s.readLoop() }()

	var tick <-chan time.Time
	if s.cfg.Heartbeat > 0 {
		t := time.NewTicker(s.cfg.Heartbeat)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-ctx.Done():
			<-readErr
			return nil
		case err := <-readErr:
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		case now := <-tick:
			if s.cfg.StaleAfter > 0 {
				if idle := s.idle(now); idle > s.cfg.StaleAfter {
					return fmt.Errorf("%w: silent for %s", ErrStale, idle.Round(time.Millisecond))
				}
			}
			if err := s.heartbeat(); err != nil {
				return err
			}
		}
	}
}
