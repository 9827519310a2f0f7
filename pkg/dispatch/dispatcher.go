package dispatch

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-targetlink/internal/log"
	"github.com/teslashibe/go-targetlink/pkg/camera"
	"github.com/teslashibe/go-targetlink/pkg/events"
	"github.com/teslashibe/go-targetlink/pkg/geometry"
	"github.com/teslashibe/go-targetlink/pkg/telemetry"
	"github.com/teslashibe/go-targetlink/pkg/threshold"
)

// Minimum interval between repeated warning logs of one kind.
const errorLogInterval = 5 * time.Second

// Config holds dispatcher parameters.
type Config struct {
	Intrinsics geometry.Intrinsics
	Bearing    geometry.BearingEstimator // nil = ratio placeholder
	Mode       Mode                      // Initial mode
	RateWindow int                       // Frames per FPS measurement
}

// DefaultConfig returns the 640x480 geometry starting in thresholded mode.
func DefaultConfig() Config {
	return Config{
		Intrinsics: geometry.DefaultIntrinsics(),
		Bearing:    geometry.RatioBearing{},
		Mode:       ModeThresholded,
		RateWindow: DefaultRateWindow,
	}
}

// connRef boxes a Connection for atomic.Pointer.
type connRef struct {
	conn Connection
}

// Dispatcher turns frames into vision updates and forwards them.
//
// The connection may be attached or detached from any goroutine at any
// time. Each frame reads it exactly once, so a frame either sends on the
// connection it observed or drops its update; it never sends twice.
type Dispatcher struct {
	processor  FrameProcessor
	thresholds threshold.Source
	cfg        Config
	bus        *events.Bus
	rate       *RateMeter
	now        func() int64
	log        *slog.Logger

	conn atomic.Pointer[connRef]
	mode atomic.Int32

	frames        atomic.Uint64
	sent          atomic.Uint64
	idleDrops     atomic.Uint64
	sendErrors    atomic.Uint64
	processErrors atomic.Uint64

	lastSendErrLog    atomic.Int64
	lastProcessErrLog atomic.Int64
}

// New creates a dispatcher. thresholds and bus may be nil; a nil
// threshold source means full-range thresholds.
func New(processor FrameProcessor, cfg Config, thresholds threshold.Source, bus *events.Bus) *Dispatcher {
	if cfg.Intrinsics == (geometry.Intrinsics{}) {
		cfg.Intrinsics = geometry.DefaultIntrinsics()
	}
	if cfg.Bearing == nil {
		cfg.Bearing = geometry.RatioBearing{}
	}
	if !cfg.Mode.Valid() {
		cfg.Mode = ModeThresholded
	}

	logger := log.Component("dispatch")
	d := &Dispatcher{
		processor:  processor,
		thresholds: thresholds,
		cfg:        cfg,
		bus:        bus,
		rate:       NewRateMeter(cfg.RateWindow, bus, logger),
		log:        logger,
	}
	clock := camera.NewClock()
	d.now = clock.Now
	d.mode.Store(int32(cfg.Mode))
	return d
}

// SetClock sets the monotonic clock used for captured_ago_ms. It must be
// the clock that stamps the frames. Call before Run.
func (d *Dispatcher) SetClock(c *camera.Clock) {
	d.now = c.Now
}

// Attach makes conn the active connection, replacing any previous one.
func (d *Dispatcher) Attach(conn Connection) {
	if conn == nil {
		return
	}
	d.conn.Store(&connRef{conn: conn})
	d.log.Info("connection attached", "conn", conn.ID())
	d.publishLink(true, conn.ID())
}

// Detach clears the active connection if it is still conn. A connection
// that has already been replaced by a newer one is left alone.
func (d *Dispatcher) Detach(conn Connection) bool {
	if conn == nil {
		return false
	}
	cur := d.conn.Load()
	if cur == nil || cur.conn.ID() != conn.ID() {
		return false
	}
	if !d.conn.CompareAndSwap(cur, nil) {
		return false
	}
	d.log.Info("connection detached", "conn", conn.ID())
	d.publishLink(false, conn.ID())
	return true
}

func (d *Dispatcher) publishLink(active bool, id string) {
	if d.bus != nil {
		d.bus.PublishAsync(events.TopicLink, events.LinkEvent{Active: active, ConnID: id})
	}
}

// connection returns the attached connection or nil.
func (d *Dispatcher) connection() Connection {
	if ref := d.conn.Load(); ref != nil {
		return ref.conn
	}
	return nil
}

// Active reports whether a connection is attached.
func (d *Dispatcher) Active() bool {
	return d.conn.Load() != nil
}

// State returns Idle or Active.
func (d *Dispatcher) State() State {
	if d.Active() {
		return Active
	}
	return Idle
}

// SetMode selects the processing mode by number. Values outside the enum
// are logged and rejected with ErrInvalidMode; the current mode is kept.
func (d *Dispatcher) SetMode(v int) error {
	m, err := ParseMode(v)
	if err != nil {
		d.log.Warn("processing mode rejected", "requested", v, "current", d.Mode().Name())
		return err
	}
	d.setMode(m)
	return nil
}

// SetModeName selects the processing mode by name, with the same rules
// as SetMode.
func (d *Dispatcher) SetModeName(name string) error {
	m, err := ParseModeName(name)
	if err != nil {
		d.log.Warn("processing mode rejected", "requested", name, "current", d.Mode().Name())
		return err
	}
	d.setMode(m)
	return nil
}

func (d *Dispatcher) setMode(m Mode) {
	if prev := Mode(d.mode.Swap(int32(m))); prev != m {
		d.log.Info("processing mode changed", "from", prev.Name(), "to", m.Name())
	}
}

// Mode returns the current processing mode.
func (d *Dispatcher) Mode() Mode {
	return Mode(d.mode.Load())
}

// Intrinsics returns the camera intrinsics in use.
func (d *Dispatcher) Intrinsics() geometry.Intrinsics {
	return d.cfg.Intrinsics
}

// OnFrame processes one frame and returns its update. The update is sent
// once if a connection was attached when the frame started, and dropped
// otherwise. It never blocks on UI work and never retries a failed send.
func (d *Dispatcher) OnFrame(frame camera.Frame) *telemetry.VisionUpdate {
	conn := d.connection()
	th := threshold.SnapshotOf(d.thresholds)
	mode := d.Mode()

	var res Result
	if d.processor != nil {
		var err error
		res, err = d.processor.Process(frame, mode, th)
		if err != nil {
			d.processErrors.Add(1)
			d.warnThrottled(&d.lastProcessErrLog, "frame processing failed",
				"seq", frame.Seq, "error", err, "total", d.processErrors.Load())
			res = Result{}
		}
	}

	update := telemetry.NewVisionUpdate(frame.CapturedAt)
	for _, info := range geometry.TransformAll(res.Measurements, d.cfg.Intrinsics, d.cfg.Bearing) {
		d.log.Debug("target", "x", info.X, "y", info.Y, "z", info.Z, "theta", info.Theta)
		update.Add(info)
	}
	d.log.Debug("targets", "seq", frame.Seq, "count", update.Len())

	sent := false
	if conn != nil {
		msg := telemetry.NewTargetsMessage(update, d.now(), time.Now())
		if err := conn.Send(msg); err != nil {
			d.sendErrors.Add(1)
			d.warnThrottled(&d.lastSendErrLog, "send failed",
				"conn", conn.ID(), "error", err, "total", d.sendErrors.Load())
		} else {
			d.sent.Add(1)
			sent = true
		}
	} else {
		d.idleDrops.Add(1)
	}

	d.frames.Add(1)
	d.rate.Tick(time.Now())

	if d.bus != nil {
		d.bus.PublishAsync(events.TopicFrame, events.FrameEvent{
			Seq:          frame.Seq,
			Mode:         mode.Name(),
			Update:       update,
			Measurements: res.Measurements,
			Sent:         sent,
			Display:      res.Display,
		})
	}

	return update
}

// Run feeds frames from src through OnFrame until src is exhausted or ctx
// is done.
func (d *Dispatcher) Run(ctx context.Context, src FrameSource) {
	for {
		frame, ok := src.Next(ctx)
		if !ok {
			return
		}
		d.OnFrame(frame)
	}
}

func (d *Dispatcher) warnThrottled(last *atomic.Int64, msg string, args ...any) {
	now := time.Now().UnixNano()
	prev := last.Load()
	if prev != 0 && time.Duration(now-prev) < errorLogInterval {
		return
	}
	if last.CompareAndSwap(prev, now) {
		d.log.Warn(msg, args...)
	}
}

// Stats is a snapshot of dispatcher counters.
type Stats struct {
	State         string  `json:"state"`
	ConnID        string  `json:"conn_id,omitempty"`
	Mode          string  `json:"mode"`
	FPS           float64 `json:"fps"`
	Frames        uint64  `json:"frames"`
	Sent          uint64  `json:"sent"`
	IdleDrops     uint64  `json:"idle_drops"`
	SendErrors    uint64  `json:"send_errors"`
	ProcessErrors uint64  `json:"process_errors"`
}

// Stats returns the current counters.
func (d *Dispatcher) Stats() Stats {
	s := Stats{
		State:         d.State().String(),
		Mode:          d.Mode().Name(),
		FPS:           d.rate.FPS(),
		Frames:        d.frames.Load(),
		Sent:          d.sent.Load(),
		IdleDrops:     d.idleDrops.Load(),
		SendErrors:    d.sendErrors.Load(),
		ProcessErrors: d.processErrors.Load(),
	}
	if c := d.connection(); c != nil {
		s.ConnID = c.ID()
	}
	return s
}
