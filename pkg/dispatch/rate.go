package dispatch

import (
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-targetlink/pkg/events"
)

// DefaultRateWindow is the number of frames per FPS measurement.
const DefaultRateWindow = 30

// RateMeter measures frames per second over fixed windows of frames.
// Tick is called from the frame goroutine only; FPS may be read anywhere.
type RateMeter struct {
	window int
	bus    *events.Bus
	log    *slog.Logger

	start  time.Time
	n      int
	total  uint64
	fpsBit atomic.Uint64
}

// NewRateMeter creates a meter. bus may be nil.
func NewRateMeter(window int, bus *events.Bus, logger *slog.Logger) *RateMeter {
	if window <= 0 {
		window = DefaultRateWindow
	}
	return &RateMeter{window: window, bus: bus, log: logger}
}

// Tick records one frame at now. When a window completes it logs the rate
// and publishes a RateEvent without waiting for subscribers.
func (r *RateMeter) Tick(now time.Time) (float64, bool) {
	r.total++
	if r.start.IsZero() {
		r.start = now
		return 0, false
	}

	r.n++
	if r.n < r.window {
		return 0, false
	}

	elapsed := now.Sub(r.start).Seconds()
	fps := 0.0
	if elapsed > 0 {
		fps = float64(r.n) / elapsed
	}
	r.n = 0
	r.start = now
	r.fpsBit.Store(math.Float64bits(fps))

	if r.log != nil {
		r.log.Info("frame rate", "fps", math.Round(fps*10)/10, "frames", r.total)
	}
	if r.bus != nil {
		r.bus.PublishAsync(events.TopicRate, events.RateEvent{FPS: fps, Frames: r.total, At: now})
	}
	return fps, true
}

// FPS returns the last measured rate.
func (r *RateMeter) FPS() float64 {
	return math.Float64frombits(r.fpsBit.Load())
}
