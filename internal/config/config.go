package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-targetlink/internal/log"
	"github.com/teslashibe/go-targetlink/pkg/dispatch"
	"github.com/teslashibe/go-targetlink/pkg/geometry"
	"github.com/teslashibe/go-targetlink/pkg/threshold"
)

// Env var prefix for overrides.
const envPrefix = "TARGETLINK_"

// Config is the full runtime configuration of the vision stage.
type Config struct {
	Camera    CameraConfig    `yaml:"camera"`
	Vision    VisionConfig    `yaml:"vision"`
	Link      LinkConfig      `yaml:"link"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Recorder  RecorderConfig  `yaml:"recorder"`
	Log       LogConfig       `yaml:"log"`
}

// CameraConfig selects the frame source and its geometry.
type CameraConfig struct {
	Source    string  `yaml:"source"`    // Device index, file path or stream URL
	Width     int     `yaml:"width"`     // Frame width in pixels
	Height    int     `yaml:"height"`    // Frame height in pixels
	Framerate int     `yaml:"framerate"` // Requested capture rate
	HFOVDeg   float64 `yaml:"hfov_deg"`  // Horizontal FOV, used when focal_length is 0

	// Optional overrides. Zero means derive from size/FOV.
	FocalLength float64 `yaml:"focal_length"`
	CenterCol   float64 `yaml:"center_col"`
	CenterRow   float64 `yaml:"center_row"`
}

// VisionConfig holds processing parameters.
type VisionConfig struct {
	DistanceConstant float64           `yaml:"distance_constant"`
	Mode             string            `yaml:"mode"`
	Thresholds       *threshold.Config `yaml:"thresholds"` // nil => full range
}

// LinkConfig selects and tunes the controller connection.
type LinkConfig struct {
	Kind           string        `yaml:"kind"` // tcp, ws, hub, zmq, serial, none
	Addr           string        `yaml:"addr"`
	Codec          string        `yaml:"codec"` // json, cbor
	Heartbeat      time.Duration `yaml:"heartbeat"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	StaleAfter     time.Duration `yaml:"stale_after"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	Baud           int           `yaml:"baud"`
}

// DashboardConfig controls the operator web UI.
type DashboardConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// RecorderConfig controls the sqlite telemetry recorder.
type RecorderConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Camera: CameraConfig{
			Source:    "0",
			Width:     geometry.DefaultFrameWidth,
			Height:    geometry.DefaultFrameHeight,
			Framerate: 30,
			HFOVDeg:   60,
		},
		Vision: VisionConfig{
			DistanceConstant: geometry.DefaultDistanceConstant,
			Mode:             dispatch.ModeThresholded.Name(),
		},
		Link: LinkConfig{
			Kind:           "tcp",
			Addr:           ControllerAddr(DefaultRobotIP),
			Codec:          "json",
			Heartbeat:      500 * time.Millisecond,
			WriteTimeout:   100 * time.Millisecond,
			StaleAfter:     3 * time.Second,
			ReconnectDelay: time.Second,
			Baud:           115200,
		},
		Dashboard: DashboardConfig{
			Enabled: true,
			Port:    8080,
		},
		Recorder: RecorderConfig{
			Path: "targetlink.db",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is non-empty), then .env, then environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil {
		// Missing .env is normal; system environment still applies.
		log.Debug("no .env file, using system environment")
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return cfg, err
	}

	if problems := cfg.Validate(); len(problems) > 0 {
		return cfg, fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return cfg, nil
}

// applyEnv overlays TARGETLINK_* variables and ROBOT_IP.
func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(envPrefix + key); v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v := getenv(envPrefix + key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	flag := func(key string, dst *bool) {
		if v := getenv(envPrefix + key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = b
		}
	}

	// TARGETLINK_LINK_ADDR, applied below, takes precedence over ROBOT_IP.
	if ip := getenv("ROBOT_IP"); ip != "" {
		c.Link.Addr = ControllerAddr(ip)
	}

	str("CAMERA_SOURCE", &c.Camera.Source)
	num("CAMERA_WIDTH", &c.Camera.Width)
	num("CAMERA_HEIGHT", &c.Camera.Height)
	str("MODE", &c.Vision.Mode)
	str("LINK_KIND", &c.Link.Kind)
	str("LINK_ADDR", &c.Link.Addr)
	str("LINK_CODEC", &c.Link.Codec)
	flag("DASHBOARD", &c.Dashboard.Enabled)
	num("DASHBOARD_PORT", &c.Dashboard.Port)
	flag("RECORD", &c.Recorder.Enabled)
	str("RECORD_PATH", &c.Recorder.Path)
	str("LOG_LEVEL", &c.Log.Level)

	return errors.Join(errs...)
}

// Validate checks the configuration and returns a list of problems.
func (c Config) Validate() []string {
	var errs []string

	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		errs = append(errs, fmt.Sprintf("camera size must be positive, got %dx%d", c.Camera.Width, c.Camera.Height))
	}
	if c.Camera.Framerate < 1 || c.Camera.Framerate > 120 {
		errs = append(errs, fmt.Sprintf("camera framerate must be 1-120, got %d", c.Camera.Framerate))
	}
	if c.Camera.FocalLength == 0 && (c.Camera.HFOVDeg <= 0 || c.Camera.HFOVDeg >= 180) {
		errs = append(errs, fmt.Sprintf("camera hfov_deg must be in (0, 180), got %v", c.Camera.HFOVDeg))
	}
	if c.Camera.FocalLength < 0 {
		errs = append(errs, "camera focal_length must not be negative")
	}
	if c.Vision.DistanceConstant <= 0 {
		errs = append(errs, "vision distance_constant must be positive")
	}
	if _, err := dispatch.ParseModeName(c.Vision.Mode); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Vision.Thresholds != nil {
		if err := c.Vision.Thresholds.Validate(); err != nil {
			errs = append(errs, err.Error())
		}
	}

	switch c.Link.Kind {
	case "tcp", "ws", "hub", "zmq", "serial":
		if c.Link.Addr == "" && c.Link.Kind != "hub" {
			errs = append(errs, fmt.Sprintf("link addr required for kind %q", c.Link.Kind))
		}
	case "none":
	default:
		errs = append(errs, fmt.Sprintf("unknown link kind %q", c.Link.Kind))
	}
	if c.Link.Codec != "json" && c.Link.Codec != "cbor" {
		errs = append(errs, fmt.Sprintf("unknown link codec %q", c.Link.Codec))
	}

	if c.Dashboard.Enabled && (c.Dashboard.Port <= 0 || c.Dashboard.Port > 65535) {
		errs = append(errs, fmt.Sprintf("dashboard port out of range: %d", c.Dashboard.Port))
	}
	if c.Recorder.Enabled && c.Recorder.Path == "" {
		errs = append(errs, "recorder path required when enabled")
	}

	return errs
}

// Intrinsics derives the camera intrinsics from the camera and vision sections.
func (c Config) Intrinsics() geometry.Intrinsics {
	f := c.Camera.FocalLength
	if f == 0 {
		f = geometry.FocalLengthFromFOV(c.Camera.Width, c.Camera.HFOVDeg*math.Pi/180.0)
	}
	in := geometry.NewIntrinsics(c.Camera.Width, c.Camera.Height, f)
	if c.Camera.CenterCol != 0 {
		in.CenterCol = c.Camera.CenterCol
	}
	if c.Camera.CenterRow != 0 {
		in.CenterRow = c.Camera.CenterRow
	}
	in.DistanceConstant = c.Vision.DistanceConstant
	return in
}

// InitialThresholds returns the configured thresholds or the full range.
func (c Config) InitialThresholds() threshold.Config {
	if c.Vision.Thresholds == nil {
		return threshold.Default()
	}
	return *c.Vision.Thresholds
}
