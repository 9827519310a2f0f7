package processor

import (
	"bytes"
	"image"
	"testing"

	"github.com/teslashibe/go-targetlink/pkg/camera"
	"github.com/teslashibe/go-targetlink/pkg/dispatch"
	"github.com/teslashibe/go-targetlink/pkg/threshold"
)

// greenThresholds selects pure green (OpenCV hue 60).
var greenThresholds = threshold.Config{
	H: threshold.Range{Min: 50, Max: 70},
	S: threshold.Range{Min: 100, Max: 255},
	V: threshold.Range{Min: 100, Max: 255},
}

// newFrame returns a black BGR frame with the given boxes filled green.
func newFrame(w, h int, boxes ...image.Rectangle) camera.Frame {
	px := make([]byte, w*h*camera.BytesPerPixel)
	for _, b := range boxes {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				px[(y*w+x)*camera.BytesPerPixel+1] = 255
			}
		}
	}
	return camera.Frame{Width: w, Height: h, Pixels: px}
}

func TestProcess_FindsTarget(t *testing.T) {
	p := New(DefaultConfig())
	frame := newFrame(640, 480, image.Rect(100, 100, 110, 140), image.Rect(140, 100, 150, 140))

	res, err := p.Process(frame, dispatch.ModeTargets, greenThresholds)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(res.Measurements) != 1 {
		t.Fatalf("got %d measurements, want 1: %+v", len(res.Measurements), res.Measurements)
	}
	m := res.Measurements[0]
	if m.CentroidX != 125 || m.CentroidY != 120 || m.Width != 50 || m.Height != 40 {
		t.Errorf("measurement = %+v", m)
	}
	if m.LeftToRightRatio != 1 {
		t.Errorf("ratio = %v, want 1", m.LeftToRightRatio)
	}
}

func TestProcess_FullRangeMatchesEverything(t *testing.T) {
	p := New(DefaultConfig())
	frame := newFrame(640, 480, image.Rect(100, 100, 110, 140), image.Rect(140, 100, 150, 140))

	res, err := p.Process(frame, dispatch.ModeThresholded, threshold.Default())
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(res.Measurements) != 0 {
		t.Errorf("whole-frame blob should be rejected, got %+v", res.Measurements)
	}
}

func TestProcess_DisplayPerMode(t *testing.T) {
	p := New(DefaultConfig())
	frame := newFrame(320, 240, image.Rect(50, 50, 60, 90), image.Rect(90, 50, 100, 90))

	for _, mode := range dispatch.Modes() {
		res, err := p.Process(frame, mode, greenThresholds)
		if err != nil {
			t.Fatalf("%s: Process() error = %v", mode, err)
		}
		if !bytes.HasPrefix(res.Display, []byte{0xFF, 0xD8}) {
			t.Errorf("%s: display is not a JPEG", mode)
		}
	}
}

func TestProcess_NoDisplay(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Display = false
	p := New(cfg)

	res, err := p.Process(newFrame(160, 120), dispatch.ModeRaw, greenThresholds)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if res.Display != nil {
		t.Error("display should be nil when disabled")
	}
}

func TestProcess_MalformedFrame(t *testing.T) {
	p := New(DefaultConfig())
	bad := camera.Frame{Width: 10, Height: 10, Pixels: make([]byte, 7)}

	if _, err := p.Process(bad, dispatch.ModeRaw, greenThresholds); err == nil {
		t.Error("expected error for short pixel buffer")
	}
	if _, err := p.Process(camera.Frame{}, dispatch.ModeRaw, greenThresholds); err == nil {
		t.Error("expected error for empty frame")
	}
}
