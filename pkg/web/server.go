// Package web provides the operator dashboard: REST endpoints for status,
// thresholds and processing mode, and websocket feeds of telemetry and
// display frames. Feeds are driven by the events bus, never by the frame
// loop directly.
package web

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-targetlink/internal/log"
	"github.com/teslashibe/go-targetlink/pkg/dispatch"
	"github.com/teslashibe/go-targetlink/pkg/events"
	"github.com/teslashibe/go-targetlink/pkg/geometry"
	"github.com/teslashibe/go-targetlink/pkg/hub"
	"github.com/teslashibe/go-targetlink/pkg/link"
	"github.com/teslashibe/go-targetlink/pkg/telemetry"
	"github.com/teslashibe/go-targetlink/pkg/threshold"
)

// Options configures the dashboard.
type Options struct {
	Port  int
	Debug bool // Log every request
}

// Server is the dashboard server.
type Server struct {
	app        *fiber.App
	port       int
	disp       *dispatch.Dispatcher
	thresholds *threshold.Store
	link       link.Link // may be nil
	started    time.Time
	log        *slog.Logger

	statusHub  *hub.Hub
	updatesHub *hub.Hub
	cameraHub  *hub.Hub
}

// NewServer creates the dashboard. lk may be nil when no link is running.
func NewServer(opts Options, disp *dispatch.Dispatcher, thresholds *threshold.Store, lk link.Link) *Server {
	s := &Server{
		port:       opts.Port,
		disp:       disp,
		thresholds: thresholds,
		link:       lk,
		started:    time.Now(),
		log:        log.Component("web"),
		statusHub:  hub.New("status", hub.WithRetainLast()),
		updatesHub: hub.New("updates"),
		cameraHub:  hub.New("camera"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "targetlink dashboard",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,OPTIONS",
		AllowHeaders: "Content-Type",
	}))
	if opts.Debug {
		app.Use(logger.New())
	}

	app.Get("/healthz", s.handleHealth)
	app.Get("/metrics", s.handleMetrics)

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/thresholds", s.handleGetThresholds)
	api.Put("/thresholds", s.handlePutThresholds)
	api.Post("/thresholds/reset", s.handleResetThresholds)
	api.Get("/modes", s.handleModes)
	api.Put("/mode", s.handlePutMode)
	api.Get("/link", s.handleLink)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", s.statusHub.Handler())
	app.Get("/ws/updates", s.updatesHub.Handler())
	app.Get("/ws/camera", s.cameraHub.Handler())

	s.app = app
	return s
}

// App returns the underlying Fiber app, for mounting extra routes such as
// the controller hub.
func (s *Server) App() *fiber.App {
	return s.app
}

// Subscribe feeds the dashboard from bus.
func (s *Server) Subscribe(bus *events.Bus) error {
	if err := bus.OnRate(func(events.RateEvent) { s.pushStatus() }); err != nil {
		return err
	}
	if err := bus.OnLink(func(events.LinkEvent) { s.pushStatus() }); err != nil {
		return err
	}
	return bus.OnFrame(s.onFrame)
}

func (s *Server) onFrame(ev events.FrameEvent) {
	if s.updatesHub.ClientCount() > 0 {
		if err := s.updatesHub.BroadcastJSON(newUpdateView(ev)); err != nil {
			s.log.Debug("update encode failed", "error", err)
		}
	}
	if len(ev.Display) > 0 && s.cameraHub.ClientCount() > 0 {
		s.cameraHub.BroadcastBinary(ev.Display)
	}
}

func (s *Server) pushStatus() {
	if err := s.statusHub.BroadcastJSON(s.status()); err != nil {
		s.log.Debug("status encode failed", "error", err)
	}
}

// Start runs the hubs and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	go s.statusHub.Run(ctx)
	go s.updatesHub.Run(ctx)
	go s.cameraHub.Run(ctx)

	errc := make(chan error, 1)
	go func() { errc <- s.app.Listen(fmt.Sprintf(":%d", s.port)) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.app.ShutdownWithContext(shutdownCtx); err != nil {
			s.log.Warn("dashboard shutdown", "error", err)
		}
		return nil
	case err := <-errc:
		return err
	}
}

// Status is the dashboard view of the whole pipeline.
type Status struct {
	State     string         `json:"state"`
	Mode      string         `json:"mode"`
	ModeLabel string         `json:"mode_label"`
	FPS       float64        `json:"fps"`
	Uptime    string         `json:"uptime"`
	Vision    dispatch.Stats `json:"vision"`
	Link      *link.Stats    `json:"link,omitempty"`
	Clients   int            `json:"clients"`
}

func (s *Server) status() Status {
	vs := s.disp.Stats()
	mode := s.disp.Mode()
	st := Status{
		State:     vs.State,
		Mode:      mode.Name(),
		ModeLabel: mode.Label(),
		FPS:       vs.FPS,
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Vision:    vs,
		Clients:   s.statusHub.ClientCount() + s.updatesHub.ClientCount() + s.cameraHub.ClientCount(),
	}
	if s.link != nil {
		ls := s.link.Stats()
		st.Link = &ls
	}
	return st
}

// UpdateView is one frame's update as pushed to /ws/updates. Records that
// JSON cannot carry are left out.
type UpdateView struct {
	Seq          uint64                    `json:"seq"`
	Mode         string                    `json:"mode"`
	Sent         bool                      `json:"sent"`
	CapturedAtNs int64                     `json:"captured_at_ns"`
	Measurements []geometry.RawMeasurement `json:"measurements"`
	Targets      []telemetry.Record        `json:"targets"`
}

func newUpdateView(ev events.FrameEvent) UpdateView {
	v := UpdateView{
		Seq:          ev.Seq,
		Mode:         ev.Mode,
		Sent:         ev.Sent,
		Measurements: ev.Measurements,
		Targets:      []telemetry.Record{},
	}
	if ev.Update != nil {
		v.CapturedAtNs = ev.Update.CapturedAt
		for _, r := range telemetry.Records(ev.Update) {
			if r.Finite() {
				v.Targets = append(v.Targets, r)
			}
		}
	}
	return v
}
