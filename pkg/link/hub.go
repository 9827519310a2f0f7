package link

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/go-targetlink/internal/log"
)

// Hub accepts controllers that dial in over a websocket. The most
// recently connected controller is attached; when it leaves, the newest
// remaining one takes over.
type Hub struct {
	cfg    Config
	binder Binder
	ctr    counters
	log    *slog.Logger

	mu       sync.Mutex
	sessions []*session // oldest first

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub creates a controller hub. If cfg.Addr is set, Run serves the hub
// on its own listener; otherwise mount it with RegisterRoutes.
func NewHub(cfg Config, binder Binder) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		cfg:    cfg.withDefaults(),
		binder: binder,
		log:    log.Component("link").With("kind", string(KindHub)),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Kind implements Link.
func (h *Hub) Kind() Kind { return KindHub }

// Stats implements Link.
func (h *Hub) Stats() Stats { return h.ctr.stats(KindHub) }

// RegisterRoutes registers the controller endpoints on a Fiber app.
func (h *Hub) RegisterRoutes(app fiber.Router) {
	app.Use("/ws/controller", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	handler := websocket.New(h.handleController, websocket.Config{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	})
	app.Get("/ws/controller", handler)
	app.Get("/ws/controller/:id", handler)
}

// Run implements Link. With an address configured it serves its own app;
// either way it closes every controller session when ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	defer h.cancel()
	if h.cfg.Addr == "" {
		<-ctx.Done()
		return nil
	}

	ln, err := net.Listen("tcp", h.cfg.Addr)
	if err != nil {
		h.ctr.failures.Add(1)
		return err
	}
	return h.Serve(ctx, ln)
}

// Serve runs the hub on ln until ctx is done.
func (h *Hub) Serve(ctx context.Context, ln net.Listener) error {
	app := fiber.New(fiber.Config{
		AppName:               "targetlink controller hub",
		DisableStartupMessage: true,
	})
	h.RegisterRoutes(app)

	errc := make(chan error, 1)
	go func() { errc <- app.Listener(ln) }()
	h.log.Info("controller hub listening", "addr", ln.Addr().String())

	select {
	case <-ctx.Done():
		h.cancel()
		if err := app.ShutdownWithTimeout(2 * time.Second); err != nil {
			h.log.Debug("shutdown", "error", err)
		}
		<-errc
		return nil
	case err := <-errc:
		h.ctr.failures.Add(1)
		return err
	}
}

func (h *Hub) handleController(c *websocket.Conn) {
	id := c.Params("id")
	if id == "" {
		id = uuid.NewString()
	}
	c.SetReadLimit(maxMessageSize)

	s := h.open(id, newWSTransport(c, h.cfg.Codec))

	err := serve(h.ctx, s)
	if err != nil && !errors.Is(err, ErrStale) {
		h.log.Debug("controller read ended", "session", id, "error", err)
	}
	h.remove(s, err)
}

// open registers and attaches a new controller session. A reused ID gets a
// suffix so that detaching one controller never detaches another.
func (h *Hub) open(id string, t transport) *session {
	h.mu.Lock()
	for _, other := range h.sessions {
		if other.id == id {
			id = id + "-" + uuid.NewString()[:8]
			break
		}
	}
	s := newSession(id, t, h.cfg, &h.ctr, h.log)
	h.sessions = append(h.sessions, s)
	count := len(h.sessions)
	h.ctr.sessions.Add(1)
	h.ctr.current.Store(s)
	h.binder.Attach(s)
	h.mu.Unlock()

	h.log.Info("controller connected", "session", s.id, "total", count)
	return s
}

func (h *Hub) remove(s *session, err error) {
	h.mu.Lock()
	for i, other := range h.sessions {
		if other == s {
			h.sessions = append(h.sessions[:i], h.sessions[i+1:]...)
			break
		}
	}
	count := len(h.sessions)
	if h.binder.Detach(s) {
		h.ctr.current.Store(nil)
		if count > 0 {
			next := h.sessions[count-1]
			h.ctr.current.Store(next)
			h.binder.Attach(next)
		}
	}
	h.mu.Unlock()

	if err != nil && h.ctx.Err() == nil {
		h.ctr.failures.Add(1)
	}
	h.log.Info("controller disconnected", "session", s.id, "remaining", count, "error", err)
}

// ControllerInfo describes a connected controller.
type ControllerInfo struct {
	ID        string    `json:"id"`
	Connected time.Time `json:"connected"`
	LastSeen  time.Time `json:"last_seen"`
	Attached  bool      `json:"attached"`
}

// Controllers returns the connected controllers, oldest first.
func (h *Hub) Controllers() []ControllerInfo {
	cur := h.ctr.current.Load()

	h.mu.Lock()
	defer h.mu.Unlock()
	infos := make([]ControllerInfo, 0, len(h.sessions))
	for _, s := range h.sessions {
		infos = append(infos, ControllerInfo{
			ID:        s.id,
			Connected: s.started,
			LastSeen:  time.Unix(0, s.lastSeen.Load()),
			Attached:  s == cur,
		})
	}
	return infos
}

// ControllerCount returns the number of connected controllers.
func (h *Hub) ControllerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}
