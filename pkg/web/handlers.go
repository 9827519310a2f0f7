package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-targetlink/pkg/dispatch"
	"github.com/teslashibe/go-targetlink/pkg/link"
	"github.com/teslashibe/go-targetlink/pkg/threshold"
)

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
		"state":  s.disp.State().String(),
	})
}

// handleMetrics exposes counters in Prometheus text format.
func (s *Server) handleMetrics(c *fiber.Ctx) error {
	vs := s.disp.Stats()
	var b strings.Builder
	gauge := func(name, help string, v float64) {
		fmt.Fprintf(&b, "# HELP %s %s\n# TYPE %s gauge\n%s %g\n", name, help, name, name, v)
	}
	counter := func(name, help string, v uint64) {
		fmt.Fprintf(&b, "# HELP %s %s\n# TYPE %s counter\n%s %d\n", name, help, name, name, v)
	}

	active := 0.0
	if vs.State == dispatch.Active.String() {
		active = 1
	}
	gauge("targetlink_fps", "Frames processed per second", vs.FPS)
	gauge("targetlink_link_active", "1 when a controller connection is attached", active)
	counter("targetlink_frames_total", "Frames processed", vs.Frames)
	counter("targetlink_updates_sent_total", "Updates sent to the controller", vs.Sent)
	counter("targetlink_updates_idle_dropped_total", "Updates dropped with no connection", vs.IdleDrops)
	counter("targetlink_send_errors_total", "Failed sends", vs.SendErrors)
	counter("targetlink_process_errors_total", "Frames the processor failed on", vs.ProcessErrors)

	c.Set(fiber.HeaderContentType, "text/plain; version=0.0.4")
	return c.SendString(b.String())
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.status())
}

func (s *Server) handleGetThresholds(c *fiber.Ctx) error {
	return c.JSON(s.thresholds.Snapshot())
}

// handlePutThresholds accepts either the nested form
// {"h":{"min":..,"max":..},...} or flat keys {"h_min":..,"v_max":..}.
// Omitted values keep their current setting. Invalid input changes nothing.
func (s *Server) handlePutThresholds(c *fiber.Ctx) error {
	body := c.Body()
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(body, &keys); err != nil {
		return badRequest(c, fmt.Errorf("invalid JSON: %w", err))
	}

	_, nested := keys["h"]
	if !nested {
		_, nested = keys["s"]
	}
	if !nested {
		_, nested = keys["v"]
	}

	if nested {
		// Channels missing from the body keep their current range.
		cfg, err := s.thresholds.Modify(func(cfg *threshold.Config) error {
			return json.Unmarshal(body, cfg)
		})
		if err != nil {
			return badRequest(c, err)
		}
		return c.JSON(cfg)
	}

	var flat map[string]any
	if err := json.Unmarshal(body, &flat); err != nil {
		return badRequest(c, err)
	}
	cfg, err := s.thresholds.Update(flat)
	if err != nil {
		return badRequest(c, err)
	}
	return c.JSON(cfg)
}

func (s *Server) handleResetThresholds(c *fiber.Ctx) error {
	s.thresholds.Reset()
	return c.JSON(s.thresholds.Snapshot())
}

// ModeInfo describes one processing mode.
type ModeInfo struct {
	Value int    `json:"value"`
	Name  string `json:"name"`
	Label string `json:"label"`
}

func (s *Server) handleModes(c *fiber.Ctx) error {
	modes := make([]ModeInfo, 0, len(dispatch.Modes()))
	for _, m := range dispatch.Modes() {
		modes = append(modes, ModeInfo{Value: int(m), Name: m.Name(), Label: m.Label()})
	}
	return c.JSON(fiber.Map{
		"modes":   modes,
		"current": s.disp.Mode().Name(),
	})
}

// handlePutMode takes {"mode": "targets"} or {"mode": 2}. An invalid mode
// is rejected with 400 and the current mode is kept.
func (s *Server) handlePutMode(c *fiber.Ctx) error {
	var req struct {
		Mode any `json:"mode"`
	}
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return badRequest(c, fmt.Errorf("invalid JSON: %w", err))
	}

	var err error
	switch v := req.Mode.(type) {
	case string:
		err = s.disp.SetModeName(v)
	case float64:
		if v != math.Trunc(v) || v < math.MinInt32 || v > math.MaxInt32 {
			err = fmt.Errorf("%w: %v", dispatch.ErrInvalidMode, v)
			break
		}
		err = s.disp.SetMode(int(v))
	case nil:
		err = errors.New("mode is required")
	default:
		err = fmt.Errorf("%w: %v", dispatch.ErrInvalidMode, v)
	}
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   err.Error(),
			"current": s.disp.Mode().Name(),
		})
	}
	s.pushStatus()
	return c.JSON(fiber.Map{"mode": s.disp.Mode().Name()})
}

func (s *Server) handleLink(c *fiber.Ctx) error {
	if s.link == nil {
		return c.JSON(fiber.Map{"kind": link.KindNone})
	}
	resp := fiber.Map{"stats": s.link.Stats()}
	if h, ok := s.link.(*link.Hub); ok {
		resp["controllers"] = h.Controllers()
	}
	return c.JSON(resp)
}
