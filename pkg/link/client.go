package link

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-targetlink/internal/log"
)

// dialFunc opens a transport to the controller.
type dialFunc func(ctx context.Context) (transport, error)

// client dials out to the controller and redials after every failure.
type client struct {
	kind   Kind
	cfg    Config
	binder Binder
	dial   dialFunc
	ctr    counters
	log    *slog.Logger
}

func newClient(kind Kind, cfg Config, binder Binder, dial dialFunc) *client {
	return &client{
		kind:   kind,
		cfg:    cfg.withDefaults(),
		binder: binder,
		dial:   dial,
		log:    log.Component("link").With("kind", string(kind), "addr", cfg.Addr),
	}
}

// Kind implements Link.
func (c *client) Kind() Kind { return c.kind }

// Stats implements Link.
func (c *client) Stats() Stats { return c.ctr.stats(c.kind) }

// Run implements Link.
func (c *client) Run(ctx context.Context) error {
	for {
		err := c.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		c.ctr.failures.Add(1)
		c.log.Warn("controller link down", "error", err, "retry_in", c.cfg.ReconnectDelay)

		timer := time.NewTimer(c.cfg.ReconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (c *client) session(ctx context.Context) error {
	t, err := c.dial(ctx)
	if err != nil {
		return err
	}
	s := newSession(uuid.NewString(), t, c.cfg, &c.ctr, c.log)

	c.ctr.sessions.Add(1)
	c.ctr.current.Store(s)
	c.binder.Attach(s)
	c.log.Info("controller connected", "session", s.id)

	err = serve(ctx, s)

	c.binder.Detach(s)
	c.ctr.current.CompareAndSwap(s, nil)
	c.log.Info("controller disconnected", "session", s.id, "uptime", time.Since(s.started).Round(time.Millisecond))
	if err == nil && ctx.Err() == nil {
		err = errors.New("session ended")
	}
	return err
}
