package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-targetlink/pkg/threshold"
)

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	assert.Empty(t, cfg.Validate())
	assert.Equal(t, "localhost:8254", cfg.Link.Addr)
	assert.Nil(t, cfg.Vision.Thresholds)
	assert.Equal(t, threshold.Default(), cfg.InitialThresholds())
}

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "targetlink.yaml")
	yml := `
camera:
  source: "rtsp://cam.local/stream"
  framerate: 15
vision:
  mode: targets
  thresholds:
    h: {min: 40, max: 90}
    s: {min: 100, max: 255}
    v: {min: 60, max: 255}
link:
  kind: zmq
  addr: "tcp://*:5556"
  heartbeat: 250ms
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "rtsp://cam.local/stream", cfg.Camera.Source)
	assert.Equal(t, 15, cfg.Camera.Framerate)
	assert.Equal(t, 640, cfg.Camera.Width, "unset fields keep defaults")
	assert.Equal(t, "targets", cfg.Vision.Mode)
	assert.Equal(t, "zmq", cfg.Link.Kind)
	assert.Equal(t, 250*time.Millisecond, cfg.Link.Heartbeat)
	require.NotNil(t, cfg.Vision.Thresholds)
	assert.Equal(t, threshold.Range{Min: 40, Max: 90}, cfg.Vision.Thresholds.H)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("vision:\n  mode: sepia\n"), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"ROBOT_IP":                  "10.0.0.7",
		"TARGETLINK_LINK_KIND":      "ws",
		"TARGETLINK_DASHBOARD_PORT": "9090",
		"TARGETLINK_RECORD":         "true",
	}
	cfg := Default()
	require.NoError(t, cfg.applyEnv(func(k string) string { return env[k] }))

	assert.Equal(t, "10.0.0.7:8254", cfg.Link.Addr)
	assert.Equal(t, "ws", cfg.Link.Kind)
	assert.Equal(t, 9090, cfg.Dashboard.Port)
	assert.True(t, cfg.Recorder.Enabled)
}

func TestApplyEnv_LinkAddrWinsOverRobotIP(t *testing.T) {
	env := map[string]string{
		"ROBOT_IP":             "10.0.0.7",
		"TARGETLINK_LINK_ADDR": "192.168.1.2:9000",
	}
	cfg := Default()
	require.NoError(t, cfg.applyEnv(func(k string) string { return env[k] }))
	assert.Equal(t, "192.168.1.2:9000", cfg.Link.Addr)
}

func TestApplyEnv_BadNumber(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(func(k string) string {
		if k == "TARGETLINK_CAMERA_WIDTH" {
			return "wide"
		}
		return ""
	})
	assert.Error(t, err)
	assert.Equal(t, 640, cfg.Camera.Width)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*Config)
	}{
		{"zero width", func(c *Config) { c.Camera.Width = 0 }},
		{"bad framerate", func(c *Config) { c.Camera.Framerate = 0 }},
		{"bad fov", func(c *Config) { c.Camera.HFOVDeg = 180 }},
		{"bad K", func(c *Config) { c.Vision.DistanceConstant = 0 }},
		{"bad link kind", func(c *Config) { c.Link.Kind = "carrier-pigeon" }},
		{"bad codec", func(c *Config) { c.Link.Codec = "xml" }},
		{"missing addr", func(c *Config) { c.Link.Addr = "" }},
		{"bad port", func(c *Config) { c.Dashboard.Port = 70000 }},
		{"recorder without path", func(c *Config) { c.Recorder.Enabled = true; c.Recorder.Path = "" }},
		{"bad thresholds", func(c *Config) {
			c.Vision.Thresholds = &threshold.Config{H: threshold.Range{Min: 10, Max: 5}, S: threshold.Full(), V: threshold.Full()}
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mut(&cfg)
			assert.NotEmpty(t, cfg.Validate())
		})
	}
}

func TestValidate_HubNeedsNoAddr(t *testing.T) {
	cfg := Default()
	cfg.Link.Kind = "hub"
	cfg.Link.Addr = ""
	assert.Empty(t, cfg.Validate())
}

func TestIntrinsics(t *testing.T) {
	cfg := Default()
	in := cfg.Intrinsics()
	assert.Equal(t, 319.5, in.CenterCol)
	assert.Equal(t, 239.5, in.CenterRow)
	assert.InDelta(t, 320/math.Tan(math.Pi/6), in.FocalLengthPixels, 1e-9)

	cfg.Camera.FocalLength = 500
	cfg.Camera.CenterCol = 320
	cfg.Camera.CenterRow = 240
	in = cfg.Intrinsics()
	assert.Equal(t, 500.0, in.FocalLengthPixels)
	assert.Equal(t, 320.0, in.CenterCol)
	assert.Equal(t, 240.0, in.CenterRow)
}

func TestRobotIP(t *testing.T) {
	t.Setenv("ROBOT_IP", "")
	assert.Equal(t, "fallback", RobotIP("fallback"))
	t.Setenv("ROBOT_IP", "1.2.3.4")
	assert.Equal(t, "1.2.3.4", RobotIP("fallback"))
	assert.Equal(t, "1.2.3.4:8254", ControllerAddr("1.2.3.4"))
}
