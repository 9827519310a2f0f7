// targetlink: vision target tracking for the robot controller
//
// Captures camera frames, finds retroreflective targets, converts them to
// camera-frame estimates and streams one update per frame to the robot
// controller. An operator dashboard shows rate, telemetry and the display
// image, and tunes thresholds and processing mode live.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-targetlink/internal/config"
	"github.com/teslashibe/go-targetlink/internal/log"
	"github.com/teslashibe/go-targetlink/pkg/blobs"
	"github.com/teslashibe/go-targetlink/pkg/camera"
	"github.com/teslashibe/go-targetlink/pkg/camera/capture"
	"github.com/teslashibe/go-targetlink/pkg/debug"
	"github.com/teslashibe/go-targetlink/pkg/dispatch"
	"github.com/teslashibe/go-targetlink/pkg/events"
	"github.com/teslashibe/go-targetlink/pkg/link"
	"github.com/teslashibe/go-targetlink/pkg/processor"
	"github.com/teslashibe/go-targetlink/pkg/recorder"
	"github.com/teslashibe/go-targetlink/pkg/telemetry"
	"github.com/teslashibe/go-targetlink/pkg/threshold"
	"github.com/teslashibe/go-targetlink/pkg/web"
)

var version = "0.3.0"

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}

	log.Init(cfg.Log.Level)

	fmt.Println()
	fmt.Println("🎯 targetlink v" + version)
	fmt.Printf("   Camera: %s (%dx%d @ %d fps)\n", cfg.Camera.Source, cfg.Camera.Width, cfg.Camera.Height, cfg.Camera.Framerate)
	fmt.Printf("   Link:   %s %s (%s)\n", cfg.Link.Kind, cfg.Link.Addr, cfg.Link.Codec)
	fmt.Printf("   Mode:   %s\n", cfg.Vision.Mode)
	fmt.Println()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		fmt.Printf("❌ Runtime error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("👋 Goodbye!")
}

// parseFlags loads the config file and applies command line overrides.
func parseFlags() (config.Config, error) {
	configPath := flag.String("config", "", "YAML config file")
	source := flag.String("source", "", "Camera device index, file or stream URL")
	preset := flag.String("preset", "", "Camera size preset: "+strings.Join(camera.PresetNames(), ", "))
	linkKind := flag.String("link", "", "Controller link: "+kindNames())
	addr := flag.String("addr", "", "Controller address (host:port, ws URL, zmq endpoint or serial device)")
	mode := flag.String("mode", "", "Processing mode: "+strings.Join(dispatch.Names(), ", "))
	port := flag.Int("port", 0, "Dashboard port (0 keeps config)")
	noDashboard := flag.Bool("no-dashboard", false, "Disable the web dashboard")
	record := flag.String("record", "", "Record observations to this sqlite file")
	debugFlag := flag.Bool("debug", false, "Enable verbose debug logging")
	debugTargets := flag.Bool("debug-targets", false, "Print every found target (calibration log format)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return cfg, err
	}

	if *source != "" {
		cfg.Camera.Source = *source
	}
	if *preset != "" {
		p := camera.GetPreset(*preset)
		if p == nil {
			return cfg, fmt.Errorf("unknown camera preset %q", *preset)
		}
		cfg.Camera.Width, cfg.Camera.Height = p.Width, p.Height
	}
	if *linkKind != "" {
		cfg.Link.Kind = strings.ToLower(*linkKind)
	}
	if *addr != "" {
		cfg.Link.Addr = *addr
	}
	if *mode != "" {
		cfg.Vision.Mode = *mode
	}
	if *port != 0 {
		cfg.Dashboard.Port = *port
	}
	if *noDashboard {
		cfg.Dashboard.Enabled = false
	}
	if *record != "" {
		cfg.Recorder.Enabled = true
		cfg.Recorder.Path = *record
	}
	if *debugFlag {
		cfg.Log.Level = "debug"
	}
	debug.Enabled = *debugFlag
	debug.Targets = *debugTargets

	if errs := cfg.Validate(); len(errs) > 0 {
		return cfg, fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func kindNames() string {
	names := make([]string, 0, len(link.Kinds()))
	for _, k := range link.Kinds() {
		names = append(names, string(k))
	}
	return strings.Join(names, ", ")
}

func run(ctx context.Context, cfg config.Config) error {
	logger := log.Component("main")

	bus := events.New(2, 256)
	bus.Start()
	defer bus.Stop()

	store := threshold.NewStore(cfg.InitialThresholds())

	mode, err := dispatch.ParseModeName(cfg.Vision.Mode)
	if err != nil {
		return err
	}
	dcfg := dispatch.DefaultConfig()
	dcfg.Intrinsics = cfg.Intrinsics()
	dcfg.Mode = mode

	proc := processor.New(processor.Config{
		Limits:      blobs.DefaultLimits(),
		Display:     cfg.Dashboard.Enabled,
		JPEGQuality: camera.DefaultConfig().Quality,
	})
	disp := dispatch.New(proc, dcfg, store, bus)
	clock := camera.NewClock()
	disp.SetClock(clock)

	lk, err := newLink(cfg, disp)
	if err != nil {
		return err
	}

	var dash *web.Server
	if cfg.Dashboard.Enabled {
		dash = web.NewServer(web.Options{Port: cfg.Dashboard.Port, Debug: debug.Enabled}, disp, store, lk)
		if err := dash.Subscribe(bus); err != nil {
			return err
		}
		if h, ok := lk.(*link.Hub); ok {
			h.RegisterRoutes(dash.App())
		}
	}

	if cfg.Recorder.Enabled {
		rec, err := recorder.Open(cfg.Recorder.Path, recorder.RunInfo{
			Source:     cfg.Camera.Source,
			Intrinsics: dcfg.Intrinsics,
		})
		if err != nil {
			return fmt.Errorf("recorder: %w", err)
		}
		defer func() {
			st := rec.Stats()
			fmt.Printf("💾 Recorded %d frames, %d targets (run %s)\n", st.Frames, st.Targets, st.RunID)
			if err := rec.Close(); err != nil {
				logger.Warn("recorder close", "error", err)
			}
		}()
		if err := rec.Subscribe(bus); err != nil {
			return err
		}
		fmt.Printf("💾 Recording to %s\n", cfg.Recorder.Path)
	}

	camCfg := camera.Config{
		Source:    cfg.Camera.Source,
		Width:     cfg.Camera.Width,
		Height:    cfg.Camera.Height,
		Framerate: cfg.Camera.Framerate,
		Quality:   camera.DefaultConfig().Quality,
	}
	if errs := camCfg.Validate(); len(errs) > 0 {
		return fmt.Errorf("camera config: %s", strings.Join(errs, "; "))
	}
	frames := camera.NewMailbox()
	cam := capture.New(camCfg, clock, frames)

	ctx, stop := context.WithCancel(ctx)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// A file source ending is a normal way to finish.
		defer stop()
		defer frames.Close()
		if err := cam.Run(gctx); err != nil {
			return fmt.Errorf("camera: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := lk.Run(gctx); err != nil {
			// The vision loop keeps running idle without a controller.
			logger.Error("controller link stopped", "kind", lk.Kind(), "error", err)
			fmt.Printf("⚠️  Controller link stopped: %v\n", err)
		}
		return nil
	})

	if dash != nil {
		g.Go(func() error {
			fmt.Printf("🌐 Dashboard: http://localhost:%d\n", cfg.Dashboard.Port)
			if err := dash.Start(gctx); err != nil {
				logger.Error("dashboard stopped", "error", err)
				fmt.Printf("⚠️  Dashboard stopped: %v\n", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		fmt.Println("🔄 Vision loop running (Ctrl+C to stop)")
		disp.Run(gctx, frames)
		return nil
	})

	err = g.Wait()

	st := disp.Stats()
	ls := lk.Stats()
	fmt.Println()
	fmt.Printf("📊 %d frames, %d sent, %d dropped idle, %d send errors, %.1f fps\n",
		st.Frames, st.Sent, st.IdleDrops, st.SendErrors, st.FPS)
	fmt.Printf("📡 Link %s: %d sessions, %d failures\n", ls.Kind, ls.Sessions, ls.Failures)
	fmt.Printf("📷 Camera: %d frames captured, %d superseded\n", frames.Published(), frames.Drops())
	if bus.Dropped() > 0 {
		fmt.Printf("⚠️  %d UI events dropped\n", bus.Dropped())
	}
	return err
}

// newLink builds the controller link from config.
func newLink(cfg config.Config, binder link.Binder) (link.Link, error) {
	kind, err := link.ParseKind(cfg.Link.Kind)
	if err != nil {
		return nil, err
	}
	codec, err := telemetry.CodecByName(cfg.Link.Codec)
	if err != nil {
		return nil, err
	}

	lcfg := link.Config{
		Addr:           cfg.Link.Addr,
		Codec:          codec,
		Heartbeat:      cfg.Link.Heartbeat,
		WriteTimeout:   cfg.Link.WriteTimeout,
		StaleAfter:     cfg.Link.StaleAfter,
		ReconnectDelay: cfg.Link.ReconnectDelay,
		Baud:           cfg.Link.Baud,
		Source:         "targetlink/" + version,
	}
	if kind == link.KindHub {
		// Controllers dial in: mount on the dashboard when it runs,
		// otherwise listen on the controller port.
		if cfg.Dashboard.Enabled {
			lcfg.Addr = ""
		} else if lcfg.Addr == "" {
			lcfg.Addr = net.JoinHostPort("", config.DefaultControllerPort)
		}
	}
	return link.New(kind, lcfg, binder)
}
