// Package capture reads frames from an OpenCV video source into a
// camera.Mailbox.
package capture

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-targetlink/internal/log"
	"github.com/teslashibe/go-targetlink/pkg/camera"
)

const (
	// Consecutive read failures before a live source is reopened.
	maxReadFailures = 30
	reopenDelay     = time.Second
)

// Capture pulls frames from a device, file or stream URL.
type Capture struct {
	cfg   camera.Config
	clock *camera.Clock
	out   *camera.Mailbox
	log   *slog.Logger
}

// New creates a capture publishing into out, stamped by clock.
func New(cfg camera.Config, clock *camera.Clock, out *camera.Mailbox) *Capture {
	return &Capture{
		cfg:   cfg,
		clock: clock,
		out:   out,
		log:   log.Component("capture"),
	}
}

func (c *Capture) open() (*gocv.VideoCapture, error) {
	var src any = c.cfg.Source
	if idx, ok := c.cfg.DeviceIndex(); ok {
		src = idx
	}
	vc, err := gocv.OpenVideoCapture(src)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", c.cfg.Source, err)
	}
	vc.Set(gocv.VideoCaptureFrameWidth, float64(c.cfg.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(c.cfg.Height))
	vc.Set(gocv.VideoCaptureFPS, float64(c.cfg.Framerate))
	return vc, nil
}

// Run reads frames until ctx is done or a file source ends. Live sources
// (devices and stream URLs) are reopened after repeated read failures, and
// retried when they cannot be opened at all.
func (c *Capture) Run(ctx context.Context) error {
	live := c.cfg.IsLive()

	for {
		vc, err := c.open()
		if err != nil {
			if !live {
				return err
			}
			c.log.Warn("capture unavailable, retrying", "source", c.cfg.Source, "error", err)
		} else {
			c.log.Info("capture started", "source", c.cfg.Source, "width", c.cfg.Width, "height", c.cfg.Height)
			err = c.readLoop(ctx, vc)
			vc.Close()
			if err == nil || ctx.Err() != nil || !live {
				return err
			}
			c.log.Warn("capture lost, reopening", "source", c.cfg.Source, "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reopenDelay):
		}
	}
}

func (c *Capture) readLoop(ctx context.Context, vc *gocv.VideoCapture) error {
	img := gocv.NewMat()
	defer img.Close()
	resized := gocv.NewMat()
	defer resized.Close()

	size := image.Pt(c.cfg.Width, c.cfg.Height)
	failures := 0

	for ctx.Err() == nil {
		if ok := vc.Read(&img); !ok || img.Empty() {
			failures++
			if failures >= maxReadFailures {
				return fmt.Errorf("%d consecutive read failures", failures)
			}
			if !ok && !c.cfg.IsLive() {
				c.log.Info("source ended", "source", c.cfg.Source)
				return nil
			}
			continue
		}
		stamp := c.clock.Now()
		failures = 0

		frame := img
		if img.Cols() != size.X || img.Rows() != size.Y {
			gocv.Resize(img, &resized, size, 0, 0, gocv.InterpolationLinear)
			frame = resized
		}

		c.out.Publish(camera.Frame{
			CapturedAt: stamp,
			Width:      frame.Cols(),
			Height:     frame.Rows(),
			Pixels:     frame.ToBytes(),
		})
	}
	return nil
}
