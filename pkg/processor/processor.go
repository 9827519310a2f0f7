// Package processor finds retroreflective targets in camera frames with
// OpenCV: HSV threshold, external contours, blob pairing, and a display
// image rendered for the selected mode.
package processor

import (
	"fmt"
	"image"
	"log/slog"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-targetlink/internal/log"
	"github.com/teslashibe/go-targetlink/pkg/blobs"
	"github.com/teslashibe/go-targetlink/pkg/camera"
	"github.com/teslashibe/go-targetlink/pkg/debug"
	"github.com/teslashibe/go-targetlink/pkg/dispatch"
	"github.com/teslashibe/go-targetlink/pkg/threshold"
)

// Config holds processor settings.
type Config struct {
	Limits      blobs.Limits
	Display     bool // Render and encode a display image
	JPEGQuality int  // 1-100
}

// DefaultConfig returns the default processor settings.
func DefaultConfig() Config {
	return Config{
		Limits:      blobs.DefaultLimits(),
		Display:     true,
		JPEGQuality: 75,
	}
}

// Processor implements dispatch.FrameProcessor.
type Processor struct {
	cfg Config
	log *slog.Logger

	mu sync.Mutex // gocv mats are not shared; one frame at a time
}

// New creates a processor.
func New(cfg Config) *Processor {
	if cfg.JPEGQuality < 1 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = DefaultConfig().JPEGQuality
	}
	return &Processor{cfg: cfg, log: log.Component("processor")}
}

// Process detects targets in frame using the given thresholds.
func (p *Processor) Process(frame camera.Frame, mode dispatch.Mode, th threshold.Config) (dispatch.Result, error) {
	if err := frame.Validate(); err != nil {
		return dispatch.Result{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	img, err := gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC3, frame.Pixels)
	if err != nil {
		return dispatch.Result{}, fmt.Errorf("wrap frame: %w", err)
	}
	defer img.Close()

	mask := hsvMask(img, th)
	defer mask.Close()

	parts := findParts(mask)
	ex := blobs.Extract(parts, p.cfg.Limits)

	for _, r := range ex.Rejected {
		p.log.Debug("part rejected", "box", r.Part.Box.String(), "reason", r.Reason)
	}
	for _, t := range ex.Targets {
		m := t.Measurement()
		debug.TargetLog(m.CentroidX, m.CentroidY, m.Width, m.Height, m.LeftToRightRatio)
	}

	res := dispatch.Result{Measurements: ex.Measurements(p.cfg.Limits.MaxTargets)}
	if p.cfg.Display {
		res.Display, err = p.render(img, mask, mode, ex)
		if err != nil {
			// Display is best effort; measurements still stand.
			p.log.Warn("display encode failed", "error", err)
		}
	}
	return res, nil
}

// hsvMask converts BGR to HSV and keeps pixels inside th.
func hsvMask(img gocv.Mat, th threshold.Config) gocv.Mat {
	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(img, &hsv, gocv.ColorBGRToHSV)

	hMin, sMin, vMin := th.Lower()
	hMax, sMax, vMax := th.Upper()
	lower := gocv.NewScalar(float64(hMin), float64(sMin), float64(vMin), 0)
	upper := gocv.NewScalar(float64(hMax), float64(sMax), float64(vMax), 0)

	mask := gocv.NewMat()
	gocv.InRangeWithScalar(hsv, lower, upper, &mask)
	return mask
}

// findParts returns the bounding box and fill ratio of every outer contour.
func findParts(mask gocv.Mat) []blobs.Part {
	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxTC89KCOS)
	defer contours.Close()

	parts := make([]blobs.Part, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		box := gocv.BoundingRect(contours.At(i))
		parts = append(parts, blobs.Part{Box: box, Fill: fill(mask, box)})
	}
	return parts
}

func fill(mask gocv.Mat, box image.Rectangle) float64 {
	area := box.Dx() * box.Dy()
	if area == 0 {
		return 0
	}
	region := mask.Region(box)
	defer region.Close()
	return float64(gocv.CountNonZero(region)) / float64(area)
}
